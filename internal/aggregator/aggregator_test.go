package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/yelpmcp/internal/yelpapi"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	var body json.RawMessage
	if v := args.Get(0); v != nil {
		body = v.(json.RawMessage)
	}
	return body, args.Error(1)
}

// funcSearcher records every request and delegates to fn.
type funcSearcher struct {
	mu       sync.Mutex
	requests []yelpapi.SearchRequest
	fn       func(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error)
}

func (f *funcSearcher) Search(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *funcSearcher) offsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, *r.Offset)
	}
	return out
}

// pageBody builds a /search body whose items are tagged with the page.
func pageBody(page, items int) json.RawMessage {
	parts := make([]string, items)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"id":"p%d-%d"}`, page, i)
	}
	return json.RawMessage(`{"business_search_result":[` + strings.Join(parts, ",") + `],"total":1000}`)
}

func ids(t *testing.T, result *Result) []string {
	t.Helper()
	out := make([]string, 0, len(result.AllBusinesses))
	for _, raw := range result.AllBusinesses {
		var item struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &item))
		out = append(out, item.ID)
	}
	return out
}

func newTestAggregator(t *testing.T, s Searcher, cfg Config) *Aggregator {
	t.Helper()
	agg, err := New(s, cfg)
	require.NoError(t, err)
	return agg
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{1, 40, 0},
		{2, 40, 40},
		{3, 40, 120},
		{1, 10, 0},
		{2, 10, 10},
		{8, 40, 280},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page%d_limit%d", tt.page, tt.limit), func(t *testing.T) {
			assert.Equal(t, tt.want, PageOffset(tt.page, tt.limit))
		})
	}
}

func TestFullListRejectsUnpairedPages(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"start only", Request{Location: "NYC", SearchTerm: "pizza", StartPage: yelpapi.Int(1)}},
		{"end only", Request{Location: "NYC", SearchTerm: "pizza", EndPage: yelpapi.Int(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(mockSearcher)
			agg := newTestAggregator(t, searcher, DefaultConfig())

			result, err := agg.FullList(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, yelpapi.IsInvalidArgument(err))
			searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestFullListRejectsBadRanges(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		req  Request
	}{
		{"end before start", DefaultConfig(), Request{StartPage: yelpapi.Int(5), EndPage: yelpapi.Int(2)}},
		{"zero start", DefaultConfig(), Request{StartPage: yelpapi.Int(0), EndPage: yelpapi.Int(2)}},
		{"negative end", DefaultConfig(), Request{StartPage: yelpapi.Int(1), EndPage: yelpapi.Int(-1)}},
		{"zero limit", DefaultConfig(), Request{Limit: yelpapi.Int(0)}},
		{"range over cap", Config{MaxPages: 3}, Request{StartPage: yelpapi.Int(1), EndPage: yelpapi.Int(4)}},
		{"default range over cap", Config{MaxPages: 5}, Request{}},
		{"offset overflows", DefaultConfig(), Request{StartPage: yelpapi.Int(math.MaxInt), EndPage: yelpapi.Int(math.MaxInt), Limit: yelpapi.Int(40)}},
		{"last page offset overflows", Config{}, Request{StartPage: yelpapi.Int(math.MaxInt/10 - 1), EndPage: yelpapi.Int(math.MaxInt/10 + 2), Limit: yelpapi.Int(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(mockSearcher)
			agg := newTestAggregator(t, searcher, tt.cfg)

			_, err := agg.FullList(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, yelpapi.IsInvalidArgument(err), "got %v", err)
			searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestFullListDefaults(t *testing.T) {
	searcher := &funcSearcher{fn: func(_ context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
		return pageBody(*req.Offset/40+1, 1), nil
	}}
	agg := newTestAggregator(t, searcher, DefaultConfig())

	result, err := agg.FullList(context.Background(), Request{Location: "Roosevelt, NY", SearchTerm: "Coffee shop"})
	require.NoError(t, err)

	require.Len(t, searcher.requests, 8)
	assert.ElementsMatch(t, []int{0, 40, 80, 120, 160, 200, 240, 280}, searcher.offsets())
	for _, req := range searcher.requests {
		require.NotNil(t, req.Limit)
		assert.Equal(t, 40, *req.Limit)
		assert.Equal(t, "Roosevelt, NY", req.Location)
		assert.Equal(t, "Coffee shop", req.SearchTerm)
		assert.Nil(t, req.BusinessDetailsType)
	}
	assert.Equal(t, []string{"p1-0", "p2-0", "p3-0", "p4-0", "p5-0", "p6-0", "p7-0", "p8-0"}, ids(t, result))
}

func TestFullListPassesDetailsType(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, mock.MatchedBy(func(r yelpapi.SearchRequest) bool {
		return r.BusinessDetailsType != nil && *r.BusinessDetailsType == "advanced" &&
			*r.Offset == 20 && *r.Limit == 20
	})).Return(pageBody(2, 3), nil).Once()

	agg := newTestAggregator(t, searcher, DefaultConfig())
	result, err := agg.FullList(context.Background(), Request{
		Location:            "Austin, TX",
		SearchTerm:          "tacos",
		StartPage:           yelpapi.Int(2),
		EndPage:             yelpapi.Int(2),
		Limit:               yelpapi.Int(20),
		BusinessDetailsType: yelpapi.String("advanced"),
	})
	require.NoError(t, err)
	assert.Len(t, result.AllBusinesses, 3)
	searcher.AssertExpectations(t)
}

func TestFullListKeepsPageOrder(t *testing.T) {
	page2Done := make(chan struct{})
	searcher := &funcSearcher{fn: func(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
		page := *req.Offset/10 + 1
		if page == 1 {
			select {
			case <-page2Done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return pageBody(1, 2), nil
		}
		defer close(page2Done)
		return pageBody(2, 2), nil
	}}
	agg := newTestAggregator(t, searcher, DefaultConfig())

	result, err := agg.FullList(context.Background(), Request{
		StartPage: yelpapi.Int(1),
		EndPage:   yelpapi.Int(2),
		Limit:     yelpapi.Int(10),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-0", "p1-1", "p2-0", "p2-1"}, ids(t, result))
}

func TestFullListSkipsPagesWithoutResults(t *testing.T) {
	searcher := &funcSearcher{fn: func(_ context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
		switch *req.Offset {
		case 0:
			return pageBody(1, 2), nil
		case 10:
			return json.RawMessage(`{"message":"no results"}`), nil
		case 20:
			return json.RawMessage(`[1,2,3]`), nil
		default:
			return json.RawMessage(`{"business_search_result":"oops"}`), nil
		}
	}}
	agg := newTestAggregator(t, searcher, DefaultConfig())

	okBefore := testutil.ToFloat64(pagesTotal.WithLabelValues(outcomeOK))
	emptyBefore := testutil.ToFloat64(pagesTotal.WithLabelValues(outcomeEmpty))

	result, err := agg.FullList(context.Background(), Request{
		StartPage: yelpapi.Int(1),
		EndPage:   yelpapi.Int(4),
		Limit:     yelpapi.Int(10),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-0", "p1-1"}, ids(t, result))

	// Each fetched page lands in exactly one outcome.
	assert.Equal(t, 1.0, testutil.ToFloat64(pagesTotal.WithLabelValues(outcomeOK))-okBefore)
	assert.Equal(t, 3.0, testutil.ToFloat64(pagesTotal.WithLabelValues(outcomeEmpty))-emptyBefore)
}

func TestFullListEmptyResultMarshalsAsArray(t *testing.T) {
	searcher := &funcSearcher{fn: func(context.Context, yelpapi.SearchRequest) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}}
	agg := newTestAggregator(t, searcher, DefaultConfig())

	result, err := agg.FullList(context.Background(), Request{StartPage: yelpapi.Int(1), EndPage: yelpapi.Int(1)})
	require.NoError(t, err)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"all_businesses":[]}`, string(encoded))
}

func TestFullListFailureCancelsSiblings(t *testing.T) {
	var canceled atomic.Int32
	searcher := &funcSearcher{fn: func(ctx context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
		if *req.Offset == 80 { // page 3
			return nil, yelpapi.ErrUpstream
		}
		select {
		case <-ctx.Done():
			canceled.Add(1)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return pageBody(0, 1), nil
		}
	}}
	agg := newTestAggregator(t, searcher, Config{})

	start := time.Now()
	result, err := agg.FullList(context.Background(), Request{StartPage: yelpapi.Int(1), EndPage: yelpapi.Int(5)})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, yelpapi.IsUpstream(err))
	assert.Contains(t, err.Error(), "page 3")
	assert.Less(t, time.Since(start), 4*time.Second, "siblings should be canceled, not awaited")

	searcher.mu.Lock()
	calls := len(searcher.requests)
	searcher.mu.Unlock()
	assert.Equal(t, int32(calls-1), canceled.Load())
}

func TestFullListParentCancel(t *testing.T) {
	searcher := &funcSearcher{fn: func(ctx context.Context, _ yelpapi.SearchRequest) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	agg := newTestAggregator(t, searcher, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := agg.FullList(ctx, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFullListRespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	searcher := &funcSearcher{fn: func(_ context.Context, req yelpapi.SearchRequest) (json.RawMessage, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return pageBody(*req.Offset/40+1, 1), nil
	}}
	agg := newTestAggregator(t, searcher, Config{MaxConcurrency: 2})

	result, err := agg.FullList(context.Background(), Request{StartPage: yelpapi.Int(1), EndPage: yelpapi.Int(6)})
	require.NoError(t, err)
	assert.Len(t, result.AllBusinesses, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, searcher.requests, 6)
}

func TestNewRequiresSearcher(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Error(t, err)
}

// Roosevelt, NY / Coffee shop over pages 1-2 with limit 10, against a fake
// upstream reached through the real client.
func TestFullListThroughClient(t *testing.T) {
	var mu sync.Mutex
	var offsets []string
	var keys []string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		offsets = append(offsets, q.Get("offset"))
		keys = append(keys, r.Header.Get("x-rapidapi-key"))
		mu.Unlock()

		assert.Equal(t, yelpapi.PathSearch, r.URL.Path)
		assert.Equal(t, "Roosevelt, NY", q.Get("location"))
		assert.Equal(t, "Coffee shop", q.Get("search_term"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.False(t, q.Has("business_details_type"))

		offset, _ := strconv.Atoi(q.Get("offset"))
		items := 10
		if offset == 10 {
			items = 7
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(pageBody(offset/10+1, items))
	}))
	defer upstream.Close()

	client, err := yelpapi.New(yelpapi.Config{BaseURL: upstream.URL, APIKey: "k-123"})
	require.NoError(t, err)
	agg := newTestAggregator(t, client, DefaultConfig())

	result, err := agg.FullList(context.Background(), Request{
		Location:   "Roosevelt, NY",
		SearchTerm: "Coffee shop",
		StartPage:  yelpapi.Int(1),
		EndPage:    yelpapi.Int(2),
		Limit:      yelpapi.Int(10),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"0", "10"}, offsets)
	assert.Equal(t, []string{"k-123", "k-123"}, keys)
	require.Len(t, result.AllBusinesses, 17)
	got := ids(t, result)
	assert.Equal(t, "p1-0", got[0])
	assert.Equal(t, "p1-9", got[9])
	assert.Equal(t, "p2-0", got[10])
	assert.Equal(t, "p2-6", got[16])
}
