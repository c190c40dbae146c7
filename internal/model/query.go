package model

import (
	"strings"
)

// Domain identifies a fact domain served by one source adapter.
type Domain string

const (
	DomainSports Domain = "sports"
	DomainReddit Domain = "reddit"
)

// Domains lists every supported domain in display order.
var Domains = []Domain{DomainSports, DomainReddit}

// ParseDomain resolves a URL path segment to a Domain.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Domains {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// StructuredQuery is the parsed, domain-typed form of a free-text question.
// The set of implementations is closed to this package.
type StructuredQuery interface {
	Domain() Domain
	// Validate reports a parse_error when a field the adapter needs is empty.
	Validate() error
	isQuery()
}

// DateLayout is the canonical date form carried in structured queries.
const DateLayout = "2006-01-02"

// SportsQuery asks about the outcome of a single game.
type SportsQuery struct {
	Team     string `json:"team,omitempty"`
	Opponent string `json:"opponent,omitempty"`
	Date     string `json:"date,omitempty"` // YYYY-MM-DD
	League   string `json:"league,omitempty"`
	GameID   string `json:"gameId,omitempty"`
}

func (*SportsQuery) Domain() Domain { return DomainSports }
func (*SportsQuery) isQuery()       {}

func (q *SportsQuery) Validate() error {
	if q.GameID != "" {
		return nil
	}
	var missing []string
	if q.Team == "" {
		missing = append(missing, "team")
	}
	if q.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return Errorf(KindParse, "could not extract %s from question", strings.Join(missing, " and "))
	}
	return nil
}

// RedditIntent is the listing mode requested for a subreddit.
type RedditIntent string

const (
	IntentHot    RedditIntent = "hot"
	IntentNew    RedditIntent = "new"
	IntentTop    RedditIntent = "top"
	IntentRising RedditIntent = "rising"
	IntentSearch RedditIntent = "search"
)

// RedditQuery asks about recent activity in a subreddit.
type RedditQuery struct {
	Subreddit string       `json:"subreddit,omitempty"`
	Intent    RedditIntent `json:"intent,omitempty"`
	Keyword   string       `json:"keyword,omitempty"`
	Limit     int          `json:"limit,omitempty"`
}

func (*RedditQuery) Domain() Domain { return DomainReddit }
func (*RedditQuery) isQuery()       {}

func (q *RedditQuery) Validate() error {
	if q.Subreddit == "" {
		return Errorf(KindParse, "could not extract subreddit from question")
	}
	if q.Intent == IntentSearch && q.Keyword == "" {
		return Errorf(KindParse, "search question has no keyword")
	}
	return nil
}
