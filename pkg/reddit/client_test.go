package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingJSON = `{
  "kind": "Listing",
  "data": {
    "after": "t3_b",
    "children": [
      {"kind": "t3", "data": {"id": "a", "title": "Tesla earnings thread", "author": "u1", "subreddit": "wallstreetbets", "permalink": "/r/wallstreetbets/comments/a/tesla/", "score": 1200, "num_comments": 345, "created_utc": 1768867200}},
      {"kind": "t3", "data": {"id": "b", "title": "Daily discussion", "author": "AutoModerator", "subreddit": "wallstreetbets", "permalink": "/r/wallstreetbets/comments/b/daily/", "score": 80, "num_comments": 9000, "stickied": true}}
    ]
  }
}`

func TestListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/wallstreetbets/hot.json", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "oracle-test/0.1", r.Header.Get("User-Agent"))
		assert.Empty(t, r.URL.Query().Get("t"))
		w.Write([]byte(listingJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithUserAgent("oracle-test/0.1"))
	l, err := client.Listing(context.Background(), "wallstreetbets", "hot", 10)
	require.NoError(t, err)

	posts := l.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "Tesla earnings thread", posts[0].Title)
	assert.Equal(t, 1200, posts[0].Score)
	assert.Equal(t, 345, posts[0].NumComments)
	assert.True(t, posts[1].Stickied)
}

func TestListing_TopUsesDayWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/science/top.json", r.URL.Path)
		assert.Equal(t, "day", r.URL.Query().Get("t"))
		w.Write([]byte(`{"kind": "Listing", "data": {"children": []}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	l, err := client.Listing(context.Background(), "science", "top", 5)
	require.NoError(t, err)
	assert.Empty(t, l.Posts())
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/wallstreetbets/search.json", r.URL.Path)
		assert.Equal(t, "Tesla", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("restrict_sr"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(listingJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	l, err := client.Search(context.Background(), "wallstreetbets", "Tesla", 10)
	require.NoError(t, err)
	assert.Len(t, l.Posts(), 2)
}

func TestListing_RedirectIsNotFollowed(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/subreddits/search.json" {
			w.Write([]byte(`{"kind": "Listing", "data": {"children": []}}`)) //nolint:errcheck
			return
		}
		http.Redirect(w, r, "/subreddits/search.json?q=doesnotexist", http.StatusFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Listing(context.Background(), "doesnotexist", "hot", 10)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusFound, se.HTTPStatus())
	assert.Contains(t, se.Location, "/subreddits/search.json")
	assert.Equal(t, 1, hits)
}

func TestListing_StatusErrors(t *testing.T) {
	for _, code := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(code)
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.Listing(context.Background(), "golang", "new", 10)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, code, se.StatusCode)
		})
	}
}

func TestListing_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>blocked</html>`},
		{"wrong kind", `{"kind": "t5", "data": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.Listing(context.Background(), "golang", "hot", 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}
