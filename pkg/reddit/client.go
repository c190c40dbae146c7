// Package reddit reads public subreddit listings through reddit's JSON API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "fact-oracle/1.0"
	defaultTimeout   = 10 * time.Second
)

// ErrMalformedResponse is wrapped by errors for bodies that are not listings.
var ErrMalformedResponse = eris.New("reddit: malformed response")

// Sorts accepted by Listing.
var Sorts = []string{"hot", "new", "top", "rising"}

// Client reads subreddit listings and searches.
type Client interface {
	Listing(ctx context.Context, subreddit, sort string, limit int) (*Listing, error)
	Search(ctx context.Context, subreddit, query string, limit int) (*Listing, error)
}

// StatusError reports a non-200 response, including redirects, which reddit
// uses for banned, private and nonexistent subreddits.
type StatusError struct {
	StatusCode int
	Location   string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("reddit: unexpected status %d (redirect to %s)", e.StatusCode, e.Location)
	}
	return fmt.Sprintf("reddit: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Listing is reddit's paginated envelope.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

// ListingData holds listing children.
type ListingData struct {
	After    string  `json:"after"`
	Children []Thing `json:"children"`
}

// Thing wraps a single post.
type Thing struct {
	Kind string `json:"kind"`
	Data Post   `json:"data"`
}

// Post is the subset of a t3 link used for answers.
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Over18      bool    `json:"over_18"`
	Stickied    bool    `json:"stickied"`
}

// Posts returns the listing's posts in order.
func (l *Listing) Posts() []Post {
	out := make([]Post, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		out = append(out, c.Data)
	}
	return out
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithUserAgent sets the User-Agent header. Reddit throttles generic agents.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient overrides the default http.Client. Redirects are still
// refused.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewClient creates a reddit listing client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: defaultUserAgent,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

func (c *httpClient) Listing(ctx context.Context, subreddit, sort string, limit int) (*Listing, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	if sort == "top" {
		q.Set("t", "day")
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(subreddit), url.PathEscape(sort), q.Encode())
	return c.get(ctx, endpoint)
}

func (c *httpClient) Search(ctx context.Context, subreddit, query string, limit int) (*Listing, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("restrict_sr", "1")
	q.Set("sort", "relevance")
	q.Set("t", "week")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", c.baseURL, url.PathEscape(subreddit), q.Encode())
	return c.get(ctx, endpoint)
}

func (c *httpClient) get(ctx context.Context, endpoint string) (*Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reddit: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "reddit: read response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
			Body:       msg,
		}
	}

	var l Listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "unmarshal response: %v", err)
	}
	if l.Kind != "Listing" {
		return nil, eris.Wrapf(ErrMalformedResponse, "unexpected kind %q", l.Kind)
	}
	return &l, nil
}
