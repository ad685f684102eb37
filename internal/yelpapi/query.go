package yelpapi

import (
	"net/url"
	"strconv"
)

// Query collects request parameters. Optional setters skip nil values so an
// unset parameter never reaches the wire.
type Query struct {
	values url.Values
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Set always sets key, even to the empty string.
func (q *Query) Set(key, value string) *Query {
	q.values.Set(key, value)
	return q
}

// SetString sets key when v is non-nil.
func (q *Query) SetString(key string, v *string) *Query {
	if v != nil {
		q.values.Set(key, *v)
	}
	return q
}

// SetInt sets key when v is non-nil.
func (q *Query) SetInt(key string, v *int) *Query {
	if v != nil {
		q.values.Set(key, strconv.Itoa(*v))
	}
	return q
}

func (q *Query) Has(key string) bool {
	_, ok := q.values[key]
	return ok
}

func (q *Query) Get(key string) string {
	return q.values.Get(key)
}

func (q *Query) Len() int {
	return len(q.values)
}

// Encode returns the URL-encoded form, sorted by key.
func (q *Query) Encode() string {
	return q.values.Encode()
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
