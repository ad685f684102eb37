// Package aggregator implements get_full_yelp_list: a page range of /search
// calls fanned out concurrently and merged back in page order.
package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/yelpmcp/internal/logging"
	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

const (
	DefaultStartPage = 1
	DefaultEndPage   = 8
	DefaultLimit     = 40

	DefaultMaxConcurrency = 8
	DefaultMaxPages       = 50

	// ResultField is the array each /search page contributes.
	ResultField = "business_search_result"
)

var tracer = otel.Tracer("yelpmcp/aggregator")

// Searcher is the single upstream operation the aggregator needs.
type Searcher interface {
	Search(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error)
}

// Config bounds the fan-out. Zero disables a bound.
type Config struct {
	// MaxConcurrency caps in-flight page requests.
	MaxConcurrency int

	// MaxPages caps end_page - start_page + 1.
	MaxPages int
}

// DefaultConfig returns the default fan-out bounds.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		MaxPages:       DefaultMaxPages,
	}
}

// Request is a get_full_yelp_list call. StartPage and EndPage are both set or
// both nil.
type Request struct {
	Location            string
	SearchTerm          string
	StartPage           *int
	EndPage             *int
	Limit               *int
	BusinessDetailsType *string
}

// Result is the merged business list.
type Result struct {
	AllBusinesses []json.RawMessage `json:"all_businesses"`
}

// Aggregator fans a page range out over a Searcher.
type Aggregator struct {
	searcher Searcher
	config   Config
	logger   zerolog.Logger
}

// New creates an aggregator over searcher.
func New(searcher Searcher, cfg Config) (*Aggregator, error) {
	if searcher == nil {
		return nil, errors.New("searcher cannot be nil")
	}
	if cfg.MaxConcurrency < 0 {
		cfg.MaxConcurrency = 0
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = 0
	}
	return &Aggregator{
		searcher: searcher,
		config:   cfg,
		logger:   logging.NewLogger("aggregator"),
	}, nil
}

// PageOffset returns the /search offset of a 1-based page.
func PageOffset(page, limit int) int {
	return (page - 1) * limit
}

// plan is a validated request.
type plan struct {
	start int
	end   int
	limit int
}

func (p plan) pages() int {
	return p.end - p.start + 1
}

func resolve(req Request, maxPages int) (plan, error) {
	if (req.StartPage == nil) != (req.EndPage == nil) {
		return plan{}, errors.WithHint(
			yelpapi.InvalidArgumentf("start_page and end_page must be provided together or not at all"),
			"set both start_page and end_page, or omit both to fetch pages 1-8",
		)
	}

	p := plan{start: DefaultStartPage, end: DefaultEndPage, limit: DefaultLimit}
	if req.StartPage != nil {
		p.start, p.end = *req.StartPage, *req.EndPage
	}
	if req.Limit != nil {
		p.limit = *req.Limit
	}

	if p.start < 1 || p.end < 1 {
		return plan{}, yelpapi.InvalidArgumentf("start_page and end_page must be >= 1, got %d and %d", p.start, p.end)
	}
	if p.end < p.start {
		return plan{}, yelpapi.InvalidArgumentf("end_page (%d) must not be less than start_page (%d)", p.end, p.start)
	}
	if p.limit < 1 {
		return plan{}, yelpapi.InvalidArgumentf("limit must be >= 1, got %d", p.limit)
	}
	// The last page's offset must fit in an int.
	if p.end-1 > math.MaxInt/p.limit {
		return plan{}, yelpapi.InvalidArgumentf("end_page %d with limit %d is out of range", p.end, p.limit)
	}
	if maxPages > 0 && p.pages() > maxPages {
		return plan{}, errors.WithHint(
			yelpapi.InvalidArgumentf("page range %d-%d spans %d pages, maximum is %d", p.start, p.end, p.pages(), maxPages),
			"split the range into smaller calls",
		)
	}

	return p, nil
}

// FullList validates req, fetches every page concurrently and merges the
// per-page result arrays in ascending page order. Validation failures happen
// before any request is sent. The first failing page cancels the others and
// fails the call; no partial result is returned.
func (a *Aggregator) FullList(ctx context.Context, req Request) (*Result, error) {
	p, err := resolve(req, a.config.MaxPages)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "aggregator.full_list")
	defer span.End()
	span.SetAttributes(
		attribute.Int("yelp.start_page", p.start),
		attribute.Int("yelp.end_page", p.end),
		attribute.Int("yelp.limit", p.limit),
	)

	start := time.Now()
	bodies := make([]json.RawMessage, p.pages())

	g, gctx := errgroup.WithContext(ctx)
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}

	for i := range bodies {
		page := p.start + i
		g.Go(func() error {
			// A sibling already failed; do not start another request.
			if err := gctx.Err(); err != nil {
				pagesTotal.WithLabelValues(outcomeCanceled).Inc()
				return err
			}

			offset := PageOffset(page, p.limit)
			a.logger.Debug().Int("page", page).Int("offset", offset).Msg("fetching page")

			body, err := a.searcher.Search(gctx, yelpapi.SearchRequest{
				Location:            req.Location,
				SearchTerm:          req.SearchTerm,
				Limit:               yelpapi.Int(p.limit),
				Offset:              yelpapi.Int(offset),
				BusinessDetailsType: req.BusinessDetailsType,
			})
			if err != nil {
				if gctx.Err() != nil {
					pagesTotal.WithLabelValues(outcomeCanceled).Inc()
				} else {
					pagesTotal.WithLabelValues(outcomeError).Inc()
				}
				return errors.Wrapf(err, "page %d", page)
			}

			bodies[i] = body
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page_failed")
		a.logger.Error().Err(err).
			Str("location", req.Location).
			Str("search_term", req.SearchTerm).
			Msg("full list aggregation failed")
		return nil, err
	}

	merged := a.merge(bodies, p.start)
	span.SetAttributes(attribute.Int("yelp.businesses", len(merged)))

	a.logger.Info().
		Str("location", req.Location).
		Str("search_term", req.SearchTerm).
		Int("pages", p.pages()).
		Int("businesses", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("full list aggregated")

	return &Result{AllBusinesses: merged}, nil
}

// merge concatenates each page's ResultField array. Pages that are not
// objects or lack an array field contribute nothing. Each fetched page is
// counted exactly once, as ok or empty.
func (a *Aggregator) merge(bodies []json.RawMessage, firstPage int) []json.RawMessage {
	merged := make([]json.RawMessage, 0)
	for i, body := range bodies {
		page := firstPage + i
		doc := gjson.ParseBytes(body)
		field := doc.Get(ResultField)
		if !doc.IsObject() || !field.IsArray() {
			pagesTotal.WithLabelValues(outcomeEmpty).Inc()
			a.logger.Debug().Int("page", page).Msg("page has no " + ResultField + " array")
			continue
		}

		pagesTotal.WithLabelValues(outcomeOK).Inc()
		items := field.Array()
		for _, item := range items {
			merged = append(merged, json.RawMessage(item.Raw))
		}
		a.logger.Info().Int("page", page).Int("items", len(items)).Msg("page merged")
	}
	return merged
}
