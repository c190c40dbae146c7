// Package espn is a minimal client for ESPN's public site API scoreboards.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://site.api.espn.com"
	defaultTimeout = 10 * time.Second
)

// ErrMalformedResponse is wrapped by errors for bodies that do not decode.
var ErrMalformedResponse = eris.New("espn: malformed response")

// ErrUnknownLeague is returned for leagues without a sport path.
var ErrUnknownLeague = eris.New("espn: unknown league")

// sportPaths maps league codes to the site API path segment.
var sportPaths = map[string]string{
	"nba":  "basketball/nba",
	"wnba": "basketball/wnba",
	"nfl":  "football/nfl",
}

// SupportsLeague reports whether league has a scoreboard.
func SupportsLeague(league string) bool {
	_, ok := sportPaths[league]
	return ok
}

// Client reads scoreboards and single-game summaries.
type Client interface {
	Scoreboard(ctx context.Context, league string, date time.Time) (*Scoreboard, error)
	Summary(ctx context.Context, league, eventID string) (*Event, error)
}

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("espn: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Scoreboard is the response from GET .../scoreboard.
type Scoreboard struct {
	Events []Event `json:"events"`
}

// Event is a single scheduled or completed game.
type Event struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	ShortName    string        `json:"shortName"`
	Date         string        `json:"date"`
	Status       Status        `json:"status"`
	Competitions []Competition `json:"competitions"`
}

// Status describes game progress.
type Status struct {
	Type StatusType `json:"type"`
}

// StatusType carries the completion flag and display text.
type StatusType struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Completed   bool   `json:"completed"`
	Description string `json:"description"`
	Detail      string `json:"detail"`
}

// Competition is the matchup inside an event.
type Competition struct {
	ID          string       `json:"id"`
	Date        string       `json:"date"`
	Status      *Status      `json:"status,omitempty"`
	Competitors []Competitor `json:"competitors"`
}

// Competitor is one side of a competition.
type Competitor struct {
	ID       string `json:"id"`
	HomeAway string `json:"homeAway"`
	Winner   bool   `json:"winner"`
	Score    string `json:"score"`
	Team     Team   `json:"team"`
}

// Team identifies a franchise.
type Team struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ShortDisplayName string `json:"shortDisplayName"`
	Name             string `json:"name"`
	Location         string `json:"location"`
	Abbreviation     string `json:"abbreviation"`
}

// summaryResponse is the subset of GET .../summary that describes the game.
type summaryResponse struct {
	Header struct {
		ID           string        `json:"id"`
		Competitions []Competition `json:"competitions"`
	} `json:"header"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an ESPN site API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Scoreboard(ctx context.Context, league string, date time.Time) (*Scoreboard, error) {
	path, ok := sportPaths[league]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownLeague, "league %q", league)
	}

	q := url.Values{}
	q.Set("dates", date.Format("20060102"))
	endpoint := fmt.Sprintf("%s/apis/site/v2/sports/%s/scoreboard?%s", c.baseURL, path, q.Encode())

	var sb Scoreboard
	if err := c.get(ctx, endpoint, &sb); err != nil {
		return nil, err
	}
	return &sb, nil
}

func (c *httpClient) Summary(ctx context.Context, league, eventID string) (*Event, error) {
	path, ok := sportPaths[league]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownLeague, "league %q", league)
	}

	q := url.Values{}
	q.Set("event", eventID)
	endpoint := fmt.Sprintf("%s/apis/site/v2/sports/%s/summary?%s", c.baseURL, path, q.Encode())

	var resp summaryResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Header.ID == "" || len(resp.Header.Competitions) == 0 {
		return nil, eris.Wrap(ErrMalformedResponse, "summary has no header competition")
	}

	ev := &Event{
		ID:           resp.Header.ID,
		Date:         resp.Header.Competitions[0].Date,
		Competitions: resp.Header.Competitions,
	}
	if st := resp.Header.Competitions[0].Status; st != nil {
		ev.Status = *st
	}
	return ev, nil
}

func (c *httpClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return eris.Wrap(err, "espn: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "espn: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "espn: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(ErrMalformedResponse, "unmarshal response: %v", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
