package yelpapi

import (
	"context"
	"encoding/json"
)

// Upstream endpoint paths.
const (
	PathSearch          = "/search"
	PathBusinessDetails = "/each"
	PathReviews         = "/reviews"
	PathMenus           = "/get_menus"
	PathPopularDishes   = "/popular_dish"
	PathBusinessURLToID = "/biz_url2id"
	PathUpcheck         = "/upcheck"
)

// Limits documented by the upstream API.
const (
	MaxSearchLimit     = 40
	MaxReviewsPerPage  = 45
	MaxBusinessIDs     = 39
	DefaultSearchLimit = 10
)

// Accepted enum values.
var (
	BusinessDetailsTypes = []string{"basic", "advanced"}

	ReviewSortOptions = []string{
		"Yelp_sort",
		"Newest_first",
		"Oldest_first",
		"Highest_rated",
		"Lowest_rated",
		"Elites",
	}

	ReviewRatingFilters = []string{
		"All_ratings",
		"5_stars",
		"4_stars",
		"3_stars",
		"2_stars",
		"1_star",
	}
)

// SearchRequest mirrors the /search query. Nil fields are not sent.
type SearchRequest struct {
	Location            string
	SearchTerm          string
	Limit               *int
	Offset              *int
	BusinessDetailsType *string
}

func (r SearchRequest) Query() *Query {
	return NewQuery().
		Set("location", r.Location).
		Set("search_term", r.SearchTerm).
		SetInt("limit", r.Limit).
		SetInt("offset", r.Offset).
		SetString("business_details_type", r.BusinessDetailsType)
}

// BusinessDetailsRequest selects businesses by URL or by a comma-joined id
// list. BusinessIDs is sent verbatim.
type BusinessDetailsRequest struct {
	BusinessURL *string
	BusinessIDs *string
}

func (r BusinessDetailsRequest) Query() *Query {
	return NewQuery().
		SetString("business_url", r.BusinessURL).
		SetString("business_ids", r.BusinessIDs)
}

// ReviewsRequest mirrors the /reviews query.
type ReviewsRequest struct {
	BusinessURL    *string
	BusinessID     *string
	ReviewsPerPage *int
	EndCursor      *string
	SortBy         *string
	RatingFilter   *string
}

func (r ReviewsRequest) Query() *Query {
	return NewQuery().
		SetString("business_url", r.BusinessURL).
		SetString("business_id", r.BusinessID).
		SetInt("reviews_per_page", r.ReviewsPerPage).
		SetString("end_cursor", r.EndCursor).
		SetString("sort_by", r.SortBy).
		SetString("rating_filter", r.RatingFilter)
}

// Search runs the same search as the yelp.com search box.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	return c.Get(ctx, PathSearch, req.Query())
}

// BusinessDetails fetches details by business URL or ids.
func (c *Client) BusinessDetails(ctx context.Context, req BusinessDetailsRequest) (json.RawMessage, error) {
	return c.Get(ctx, PathBusinessDetails, req.Query())
}

// Reviews fetches one page of reviews.
func (c *Client) Reviews(ctx context.Context, req ReviewsRequest) (json.RawMessage, error) {
	return c.Get(ctx, PathReviews, req.Query())
}

func (c *Client) Menus(ctx context.Context, businessID string) (json.RawMessage, error) {
	return c.Get(ctx, PathMenus, NewQuery().Set("business_id", businessID))
}

func (c *Client) PopularDishes(ctx context.Context, businessID string) (json.RawMessage, error) {
	return c.Get(ctx, PathPopularDishes, NewQuery().Set("business_id", businessID))
}

func (c *Client) BusinessURLToID(ctx context.Context, businessURL string) (json.RawMessage, error) {
	return c.Get(ctx, PathBusinessURLToID, NewQuery().Set("business_url", businessURL))
}

// Upcheck asks the API whether it is live.
func (c *Client) Upcheck(ctx context.Context, check string) (json.RawMessage, error) {
	return c.Get(ctx, PathUpcheck, NewQuery().Set("check", check))
}
