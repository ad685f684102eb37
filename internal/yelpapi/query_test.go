package yelpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuerySkipsNil(t *testing.T) {
	q := NewQuery().
		Set("location", "Roosevelt, NY").
		SetString("business_details_type", nil).
		SetInt("limit", nil).
		SetInt("offset", Int(0)).
		SetString("sort_by", String(""))

	assert.Equal(t, 3, q.Len())
	assert.True(t, q.Has("location"))
	assert.True(t, q.Has("offset"))
	assert.True(t, q.Has("sort_by"))
	assert.False(t, q.Has("limit"))
	assert.False(t, q.Has("business_details_type"))
	assert.Equal(t, "0", q.Get("offset"))
	assert.Equal(t, "location=Roosevelt%2C+NY&offset=0&sort_by=", q.Encode())
}

func TestRequestQueries(t *testing.T) {
	search := SearchRequest{Location: "NYC", SearchTerm: "bagels", Limit: Int(40)}.Query()
	assert.Equal(t, "limit=40&location=NYC&search_term=bagels", search.Encode())

	reviews := ReviewsRequest{BusinessURL: String("u"), RatingFilter: String("5_stars")}.Query()
	assert.Equal(t, "business_url=u&rating_filter=5_stars", reviews.Encode())

	details := BusinessDetailsRequest{}.Query()
	assert.Zero(t, details.Len())
}
