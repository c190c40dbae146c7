package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/fact-oracle/internal/model"
)

const (
	defaultRedditLimit = 10
	maxRedditLimit     = 25
)

var (
	subredditRe     = regexp.MustCompile(`(?i)(?:^|[^\w/])/?r/([a-z0-9][a-z0-9_]{1,20})\b`)
	subredditWordRe = regexp.MustCompile(`(?i)\bsubreddit\s+([a-z0-9][a-z0-9_]{1,20})\b`)
	quotedRe        = regexp.MustCompile(`"([^"]+)"`)
	limitRe         = regexp.MustCompile(`(?i)\b(?:top\s+(\d{1,3})|(\d{1,3})\s+(?:posts|threads|results))\b`)
	keywordStopRe   = regexp.MustCompile(`(?i)[?!.,;]|\s(?:on|in|from|at|over|lately|recently|today|this|right now)\b`)
)

type intentRule struct {
	intent   model.RedditIntent
	keywords []*regexp.Regexp
}

// intentRules are scanned in order; the first rule with any matching keyword wins.
var intentRules = []intentRule{
	rule(model.IntentSearch, "search", "search for", "mention", "mentions", "mentioning", "talking about", "discussing", "posts about"),
	rule(model.IntentTop, "top", "best", "most upvoted"),
	rule(model.IntentNew, "new", "newest", "latest", "recent"),
	rule(model.IntentRising, "rising"),
	rule(model.IntentHot, "hot", "trending", "popular"),
}

func rule(intent model.RedditIntent, keywords ...string) intentRule {
	r := intentRule{intent: intent}
	// Longer phrases first so "search for" wins over "search" for keyword extraction.
	for i := len(keywords) - 1; i >= 0; i-- {
		r.keywords = append(r.keywords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(keywords[i])+`\b`))
	}
	return r
}

// ParseReddit extracts a subreddit activity query.
func (p *Parser) ParseReddit(text string) *model.RedditQuery {
	q := &model.RedditQuery{Limit: defaultRedditLimit}
	rest := normalize(text)

	// (a) explicit subreddit marker
	if m := subredditRe.FindStringSubmatchIndex(rest); m != nil {
		q.Subreddit = strings.ToLower(rest[m[2]:m[3]])
		rest = cut(rest, m[0], m[1])
	} else if m := subredditWordRe.FindStringSubmatchIndex(rest); m != nil {
		q.Subreddit = strings.ToLower(rest[m[2]:m[3]])
		rest = cut(rest, m[0], m[1])
	}

	if m := quotedRe.FindStringSubmatchIndex(rest); m != nil {
		q.Keyword = strings.TrimSpace(rest[m[2]:m[3]])
		rest = cut(rest, m[0], m[1])
	}

	if m := limitRe.FindStringSubmatch(rest); m != nil {
		n := m[1]
		if n == "" {
			n = m[2]
		}
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			q.Limit = min(v, maxRedditLimit)
		}
	}

	q.Intent = model.IntentHot
	for _, r := range intentRules {
		if loc := firstMatch(r.keywords, rest); loc != nil {
			q.Intent = r.intent
			if r.intent == model.IntentSearch && q.Keyword == "" {
				q.Keyword = keywordAfter(rest[loc[1]:])
			}
			break
		}
	}
	return q
}

func firstMatch(res []*regexp.Regexp, text string) []int {
	for _, re := range res {
		if loc := re.FindStringIndex(text); loc != nil {
			return loc
		}
	}
	return nil
}

// keywordAfter takes the phrase following a search cue up to the next
// punctuation or trailing preposition.
func keywordAfter(s string) string {
	s = " " + strings.TrimSpace(s)
	if loc := keywordStopRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"for ", "about ", "of "} {
		s = strings.TrimPrefix(s, prefix)
	}
	return strings.Trim(s, `"' `)
}
