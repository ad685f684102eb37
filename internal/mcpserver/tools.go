package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ca-srg/yelpmcp/internal/aggregator"
	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

// Tool names as exposed to MCP clients, before any configured prefix.
const (
	ToolSearch          = "search_yelp"
	ToolBusinessDetails = "business_details"
	ToolReviews         = "reviews"
	ToolMenus           = "get_menus"
	ToolPopularDishes   = "popular_dishes"
	ToolBusinessURLToID = "business_url_to_id"
	ToolUpcheck         = "upcheck"
	ToolFullList        = "get_full_yelp_list"
)

const (
	descLocation     = "Enter exact locations. For example, use Roosevelt, NY not Roosevelt only."
	descSearchTerm   = "Enter any search term you want, just like on Yelp. Ex. Coffee shop, Pizza shop, electrician, or plumber Ex. Black Owned Saloon, Mexican pizza shop"
	descDetailsType  = "Basic: provides basic info's about the businesses. Advanced: provides in-depth information about the businesses (it's like using /search and /each business details endpoints at the same time) Advanced option costs 2 requests per call."
	descBusinessIDs  = "Get business details from business_id found from /search endpoint. Separate each using a comma. You can put up to 39 business ids on each request. Ex. BCUhfgjbVVvjs0ro4ATRsg,wj7ekipyvssV3Ok7p8zxGg,V2_qfjnwAVWqIphf7y866w"
	descEndCursor    = "For first page leave empty. For next pages, if hasNextPage = true, input the end_cursor value found in the response of the previous page. Ex. eyJ2ZXJzaW9uIjoxLCJ0eXBlIjoib2Zmc2V0Iiwib2Zmc2V0Ijo0NH0"
	exampleYelpURL   = "https://www.yelp.com/biz/capital-blossom-day-spa-washington"
	exampleLocation  = "Roosevelt, NY"
	exampleTerm      = "Coffee shop"
	exampleBusinessI = "BCUhfgjbVVvjs0ro4ATRsg"
)

func toRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func float64Ptr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }

func stringProp(title, description string, examples ...any) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       title,
		Description: description,
		Examples:    examples,
	}
}

func integerProp(title, description string, minimum, maximum *float64, def any) *jsonschema.Schema {
	prop := &jsonschema.Schema{
		Type:        "integer",
		Title:       title,
		Description: description,
		Minimum:     minimum,
		Maximum:     maximum,
	}
	if def != nil {
		prop.Default = toRaw(def)
	}
	return prop
}

func enumProp(title, description string, values []string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{
		Type:        "string",
		Title:       title,
		Description: description,
		Enum:        enum,
	}
}

func objectSchema(title string, required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	if required == nil {
		required = []string{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Title:      title,
		Properties: props,
		Required:   required,
	}
}

// readOnlyTool builds a tool that only reads from the remote API.
func readOnlyTool(name, title, description string, schema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Title:       title,
		Description: description,
		InputSchema: schema,
		Annotations: &mcp.ToolAnnotations{
			Title:          title,
			ReadOnlyHint:   true,
			IdempotentHint: true,
			OpenWorldHint:  boolPtr(true),
		},
	}
}

func detailsTypeProp() *jsonschema.Schema {
	return enumProp("Business details type", descDetailsType, yelpapi.BusinessDetailsTypes)
}

// BuildSearchToolDefinition describes search_yelp.
func BuildSearchToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolSearch, "Yelp search", "Use the same search box on yelp.com",
		objectSchema("Search parameters", []string{"location", "search_term"}, map[string]*jsonschema.Schema{
			"location":    stringProp("Location", descLocation, exampleLocation),
			"search_term": stringProp("Search term", descSearchTerm, exampleTerm),
			"limit": integerProp("Limit",
				fmt.Sprintf("Number of results per page. Max: %d Default: %d", yelpapi.MaxSearchLimit, yelpapi.DefaultSearchLimit),
				float64Ptr(1), float64Ptr(yelpapi.MaxSearchLimit), yelpapi.DefaultSearchLimit),
			"offset": integerProp("Offset",
				"If offset is set to 0, it means start from zero. If offset is set to 20, it means to start showing after 20 results. Default: 0",
				float64Ptr(0), nil, 0),
			"business_details_type": detailsTypeProp(),
		}))
}

// BuildBusinessDetailsToolDefinition describes business_details.
func BuildBusinessDetailsToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolBusinessDetails, "Yelp business details",
		`Scrape by Yelp URL (Ex. `+exampleYelpURL+`) or by business ids found from the /search endpoint. You can get these business urls from the "/search" endpoint ('YelpURL').`,
		objectSchema("Business details parameters", nil, map[string]*jsonschema.Schema{
			"business_url": stringProp("Business URL", "Get the business details by Yelp Business URL.", exampleYelpURL),
			"business_ids": stringProp("Business IDs", descBusinessIDs, exampleBusinessI+",wj7ekipyvssV3Ok7p8zxGg"),
		}))
}

// BuildReviewsToolDefinition describes reviews.
func BuildReviewsToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolReviews, "Yelp reviews", "Get business reviews by url or id",
		objectSchema("Reviews parameters", nil, map[string]*jsonschema.Schema{
			"business_url": stringProp("Business URL", "Enter any business url from yelp.com (any subdomain)", exampleYelpURL),
			"business_id":  stringProp("Business ID", "Enter any business ID found from /search endpoint", exampleBusinessI),
			"reviews_per_page": integerProp("Reviews per page",
				fmt.Sprintf("Max value could be: %d Default: 20", yelpapi.MaxReviewsPerPage),
				float64Ptr(1), float64Ptr(yelpapi.MaxReviewsPerPage), 20),
			"end_cursor":    stringProp("End cursor", descEndCursor),
			"sort_by":       enumProp("Sort by", "Review ordering.", yelpapi.ReviewSortOptions),
			"rating_filter": enumProp("Rating filter", "Only return reviews with this rating.", yelpapi.ReviewRatingFilters),
		}))
}

// BuildMenusToolDefinition describes get_menus.
func BuildMenusToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolMenus, "Yelp menus", "Get restaurant menus if present on yelp",
		objectSchema("Menu parameters", []string{"business_id"}, map[string]*jsonschema.Schema{
			"business_id": stringProp("Business ID",
				"Find restaurant menus if present on the Yelp website. Menus on personal websites cannot be collected.", exampleBusinessI),
		}))
}

// BuildPopularDishesToolDefinition describes popular_dishes.
func BuildPopularDishesToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolPopularDishes, "Yelp popular dishes", "Get popular_dish list of a restaurant when available on the website.",
		objectSchema("Popular dish parameters", []string{"business_id"}, map[string]*jsonschema.Schema{
			"business_id": stringProp("Business ID",
				"Get popular dishes from a restaurant when available on the website. Input business_id.", exampleBusinessI),
		}))
}

// BuildBusinessURLToIDToolDefinition describes business_url_to_id.
func BuildBusinessURLToIDToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolBusinessURLToID, "Yelp URL to ID", "Find biz id from url.",
		objectSchema("URL lookup parameters", []string{"business_url"}, map[string]*jsonschema.Schema{
			"business_url": stringProp("Business URL", "Enter url to find the business id.", exampleYelpURL),
		}))
}

// BuildUpcheckToolDefinition describes upcheck.
func BuildUpcheckToolDefinition() *mcp.Tool {
	return readOnlyTool(ToolUpcheck, "API status", "Check if the api status is live!",
		objectSchema("Upcheck parameters", []string{"check"}, map[string]*jsonschema.Schema{
			"check": stringProp("Check", "Any value; echoed to the status endpoint."),
		}))
}

// BuildFullListToolDefinition describes get_full_yelp_list. maxPages is the
// configured page range cap, 0 for none.
func BuildFullListToolDefinition(maxPages int) *mcp.Tool {
	description := fmt.Sprintf(
		"Search and return all results on yelp.com. Fetches pages start_page..end_page (default %d..%d) concurrently with %d results per page by default and returns {\"all_businesses\": [...]} in page order.",
		aggregator.DefaultStartPage, aggregator.DefaultEndPage, aggregator.DefaultLimit,
	)
	if maxPages > 0 {
		description += fmt.Sprintf(" At most %d pages per call.", maxPages)
	}

	schema := objectSchema("Full list parameters", []string{"location", "search_term"}, map[string]*jsonschema.Schema{
		"location":    stringProp("Location", descLocation, exampleLocation),
		"search_term": stringProp("Search term", descSearchTerm, exampleTerm),
		"start_page": integerProp("Start page",
			"Start page number. Provide together with end_page or omit both.",
			float64Ptr(1), nil, aggregator.DefaultStartPage),
		"end_page": integerProp("End page",
			"End page number (inclusive). Provide together with start_page or omit both.",
			float64Ptr(1), nil, aggregator.DefaultEndPage),
		"limit": integerProp("Limit",
			fmt.Sprintf("Number of results per page. Max: %d Default: %d", yelpapi.MaxSearchLimit, aggregator.DefaultLimit),
			float64Ptr(1), float64Ptr(yelpapi.MaxSearchLimit), aggregator.DefaultLimit),
		"business_details_type": detailsTypeProp(),
	})
	schema.Description = "start_page and end_page must be given together; end_page must not be less than start_page."

	return readOnlyTool(ToolFullList, "Yelp full result list", description, schema)
}
