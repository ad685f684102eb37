package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ca-srg/yelpmcp/internal/aggregator"
	"github.com/ca-srg/yelpmcp/internal/logging"
	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

// Forwarder is the upstream API surface the single-request tools call.
type Forwarder interface {
	Search(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error)
	BusinessDetails(ctx context.Context, req yelpapi.BusinessDetailsRequest) (json.RawMessage, error)
	Reviews(ctx context.Context, req yelpapi.ReviewsRequest) (json.RawMessage, error)
	Menus(ctx context.Context, businessID string) (json.RawMessage, error)
	PopularDishes(ctx context.Context, businessID string) (json.RawMessage, error)
	BusinessURLToID(ctx context.Context, businessURL string) (json.RawMessage, error)
	Upcheck(ctx context.Context, check string) (json.RawMessage, error)
}

// FullLister runs the multi-page search behind get_full_yelp_list.
type FullLister interface {
	FullList(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

const (
	errTypeInvalidArgument = "invalid_argument"
	errTypeUpstream        = "upstream_failure"
	errTypeToolCall        = "tool_call_failed"
	errTypeMalformed       = "malformed_arguments"
)

// toolFunc runs one tool against already-received raw arguments.
type toolFunc func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error)

// YelpTools exposes the business API operations as MCP tools.
type YelpTools struct {
	client   Forwarder
	lister   FullLister
	validate *validator.Validate
	maxPages int
	logger   zerolog.Logger
}

// NewYelpTools creates the tool set. maxPages is only used to describe the
// full list tool; the lister enforces it.
func NewYelpTools(client Forwarder, lister FullLister, maxPages int) (*YelpTools, error) {
	if client == nil {
		return nil, fmt.Errorf("forwarder cannot be nil")
	}
	if lister == nil {
		return nil, fmt.Errorf("full lister cannot be nil")
	}
	return &YelpTools{
		client:   client,
		lister:   lister,
		validate: newArgumentValidator(),
		maxPages: maxPages,
		logger:   logging.NewLogger("mcp-tools"),
	}, nil
}

// Register adds every tool to the registry in a stable order.
func (t *YelpTools) Register(registry *ToolRegistry) error {
	if registry == nil {
		return fmt.Errorf("tool registry cannot be nil")
	}

	entries := []struct {
		tool *mcp.Tool
		fn   toolFunc
	}{
		{BuildSearchToolDefinition(), bind(t.validate, t.search)},
		{BuildBusinessDetailsToolDefinition(), bind(t.validate, t.businessDetails)},
		{BuildReviewsToolDefinition(), bind(t.validate, t.reviews)},
		{BuildMenusToolDefinition(), bind(t.validate, t.menus)},
		{BuildPopularDishesToolDefinition(), bind(t.validate, t.popularDishes)},
		{BuildBusinessURLToIDToolDefinition(), bind(t.validate, t.businessURLToID)},
		{BuildUpcheckToolDefinition(), bind(t.validate, t.upcheck)},
		{BuildFullListToolDefinition(t.maxPages), bind(t.validate, t.fullList)},
	}

	for _, e := range entries {
		if err := registry.RegisterTool(e.tool, t.wrap(e.tool.Name, e.fn)); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", e.tool.Name, err)
		}
	}
	return nil
}

func bind[T any](v *validator.Validate, call func(context.Context, *T) (json.RawMessage, error)) toolFunc {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args T
		if err := decodeArguments(v, raw, &args); err != nil {
			return nil, err
		}
		return call(ctx, &args)
	}
}

func (t *YelpTools) search(ctx context.Context, args *searchArgs) (json.RawMessage, error) {
	return t.client.Search(ctx, args.request())
}

func (t *YelpTools) businessDetails(ctx context.Context, args *businessDetailsArgs) (json.RawMessage, error) {
	return t.client.BusinessDetails(ctx, yelpapi.BusinessDetailsRequest{
		BusinessURL: args.BusinessURL,
		BusinessIDs: args.BusinessIDs,
	})
}

func (t *YelpTools) reviews(ctx context.Context, args *reviewsArgs) (json.RawMessage, error) {
	return t.client.Reviews(ctx, yelpapi.ReviewsRequest{
		BusinessURL:    args.BusinessURL,
		BusinessID:     args.BusinessID,
		ReviewsPerPage: args.ReviewsPerPage,
		EndCursor:      args.EndCursor,
		SortBy:         args.SortBy,
		RatingFilter:   args.RatingFilter,
	})
}

func (t *YelpTools) menus(ctx context.Context, args *businessIDArgs) (json.RawMessage, error) {
	return t.client.Menus(ctx, *args.BusinessID)
}

func (t *YelpTools) popularDishes(ctx context.Context, args *businessIDArgs) (json.RawMessage, error) {
	return t.client.PopularDishes(ctx, *args.BusinessID)
}

func (t *YelpTools) businessURLToID(ctx context.Context, args *businessURLArgs) (json.RawMessage, error) {
	return t.client.BusinessURLToID(ctx, *args.BusinessURL)
}

func (t *YelpTools) upcheck(ctx context.Context, args *upcheckArgs) (json.RawMessage, error) {
	return t.client.Upcheck(ctx, *args.Check)
}

func (t *YelpTools) fullList(ctx context.Context, args *fullListArgs) (json.RawMessage, error) {
	result, err := t.lister.FullList(ctx, args.request())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode full list result")
	}
	return body, nil
}

// wrap turns fn into an SDK handler with tracing, metrics and error mapping.
// Argument and upstream failures become tool results with IsError set; only
// undecodable argument payloads are returned as protocol errors.
func (t *YelpTools) wrap(name string, fn toolFunc) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		calledAs := name
		var raw json.RawMessage
		if req != nil && req.Params != nil {
			if req.Params.Name != "" {
				calledAs = req.Params.Name
			}
			raw = req.Params.Arguments
		}

		attrs := []attribute.KeyValue{
			attribute.String("tool.name", name),
			attribute.String("auth.method", getAuthMethodFromContext(ctx)),
		}
		spanAttrs := append([]attribute.KeyValue{
			attribute.String("tool.called_as", calledAs),
			attribute.String("client.ip", getClientIPFromContext(ctx)),
			attribute.String("request.id", getRequestIDFromContext(ctx)),
			attribute.String("tool.arguments", truncateForAttribute(string(raw))),
		}, attrs...)

		ctx, span := mcpTracer.Start(ctx, "mcpserver."+name, trace.WithAttributes(spanAttrs...))
		defer span.End()

		start := time.Now()
		body, err := fn(ctx, raw)
		duration := time.Since(start)

		logger := t.logger.With().Str("tool", calledAs).Dur("duration", duration).Logger()

		if err != nil {
			errType := classifyError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, errType)
			span.SetAttributes(attribute.String("error.type", errType))
			recordMCPMetrics(ctx, attrs, duration, errType)

			if errType == errTypeMalformed {
				logger.Warn().Err(err).Msg("Rejected malformed tool arguments")
				return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}

			if errType == errTypeInvalidArgument {
				logger.Info().Err(err).Msg("Tool call rejected")
			} else {
				logger.Error().Err(err).Str("error_type", errType).Msg("Tool call failed")
			}

			result := &mcp.CallToolResult{}
			result.SetError(err)
			return result, nil
		}

		span.SetStatus(codes.Ok, "")
		span.SetAttributes(attribute.Int("response.bytes", len(body)))
		recordMCPMetrics(ctx, attrs, duration, "")
		logger.Debug().Int("bytes", len(body)).Msg("Tool call completed")

		return newJSONResult(body), nil
	}
}

// newJSONResult returns body as text content; JSON objects are also attached
// as structured content.
func newJSONResult(body json.RawMessage) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
	if gjson.ParseBytes(body).IsObject() {
		result.StructuredContent = body
	}
	return result
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, errMalformedArguments):
		return errTypeMalformed
	case yelpapi.IsInvalidArgument(err):
		return errTypeInvalidArgument
	case yelpapi.IsUpstream(err):
		return errTypeUpstream
	default:
		return errTypeToolCall
	}
}
