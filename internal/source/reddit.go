package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/pkg/reddit"
)

const redditWeb = "https://www.reddit.com"

// Reddit answers subreddit activity queries from reddit listings.
type Reddit struct {
	client reddit.Client
}

// NewReddit creates the reddit adapter.
func NewReddit(client reddit.Client) *Reddit {
	return &Reddit{client: client}
}

func (r *Reddit) Domain() model.Domain { return model.DomainReddit }

func (r *Reddit) Source() string { return "reddit" }

func (r *Reddit) Query(ctx context.Context, sq model.StructuredQuery) (model.Payload, error) {
	q, ok := sq.(*model.RedditQuery)
	if !ok {
		return nil, model.Errorf(model.KindInternal, "reddit adapter got %T", sq)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		l   *reddit.Listing
		err error
	)
	if q.Intent == model.IntentSearch {
		l, err = r.client.Search(ctx, q.Subreddit, q.Keyword, q.Limit)
	} else {
		l, err = r.client.Listing(ctx, q.Subreddit, string(q.Intent), q.Limit)
	}
	if err != nil {
		if code, ok := resilience.StatusCode(err); ok && code == http.StatusForbidden {
			return nil, model.WrapError(model.KindAccessDenied, err, fmt.Sprintf("r/%s is private or banned", q.Subreddit))
		}
		return nil, classify("reddit", err, fmt.Sprintf("r/%s does not exist", q.Subreddit))
	}

	p := &RedditPayload{
		Subreddit: q.Subreddit,
		Intent:    string(q.Intent),
		Keyword:   q.Keyword,
		Posts:     []RedditPost{},
	}
	for _, post := range l.Posts() {
		if post.Stickied && q.Intent != model.IntentSearch {
			continue
		}
		p.Posts = append(p.Posts, RedditPost{
			Title:     post.Title,
			Author:    post.Author,
			Score:     post.Score,
			Comments:  post.NumComments,
			Permalink: redditWeb + post.Permalink,
			URL:       post.URL,
			Created:   time.Unix(int64(post.CreatedUTC), 0).UTC(),
		})
		if len(p.Posts) == q.Limit {
			break
		}
	}
	p.Count = len(p.Posts)
	p.Summary = summarizeListing(p)
	return p, nil
}

func summarizeListing(p *RedditPayload) string {
	what := p.Intent + " posts"
	if p.Intent == string(model.IntentSearch) {
		what = fmt.Sprintf("posts mentioning %q", p.Keyword)
	}
	if p.Count == 0 {
		return fmt.Sprintf("No %s in r/%s", what, p.Subreddit)
	}
	top := p.Posts[0]
	return fmt.Sprintf("%d %s in r/%s; first: %q by u/%s (%d points, %d comments)",
		p.Count, what, p.Subreddit, top.Title, top.Author, top.Score, top.Comments)
}
