// Package scorer derives a bounded confidence value for a provider answer.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/source"
)

// DefaultConfig returns the standard confidence constants.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Floor: 0.5,

		// A single unverified source.
		SportsBase: 0.85,
		// The named opponent matched the other side of the game.
		SportsCorroborated: 0.95,

		RedditBase: 0.90,
		// Free-text search is less direct than a listing.
		RedditSearchDelta: 0.15,
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	values := map[string]float64{
		"floor":               c.Floor,
		"sports_base":         c.SportsBase,
		"sports_corroborated": c.SportsCorroborated,
		"reddit_base":         c.RedditBase,
	}
	for name, v := range values {
		if v < 0 || v > 1 || math.IsNaN(v) {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", name))
		}
	}

	if c.SportsCorroborated < c.SportsBase {
		errs = append(errs, "sports_corroborated must be >= sports_base")
	}
	if c.RedditSearchDelta < 0 || c.RedditSearchDelta > c.RedditBase {
		errs = append(errs, "reddit_search_penalty must be between 0 and reddit_base")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Scorer maps payloads to confidence values.
type Scorer struct {
	cfg config.ScoringConfig
}

// New creates a Scorer. The config must have passed ValidateConfig.
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Floor is the minimum confidence of a successful result.
func (s *Scorer) Floor() float64 { return s.cfg.Floor }

// Score returns the raw confidence in [0,1] for a successful payload. The
// floor is applied when the result is built, not here.
func (s *Scorer) Score(p model.Payload, q model.StructuredQuery) float64 {
	var c float64
	switch v := p.(type) {
	case *source.GamePayload:
		c = s.cfg.SportsBase
		if v.OpponentCorroborated {
			c = s.cfg.SportsCorroborated
		}
	case *source.RedditPayload:
		c = s.cfg.RedditBase
		if rq, ok := q.(*model.RedditQuery); ok && rq.Intent == model.IntentSearch {
			c -= s.cfg.RedditSearchDelta
		}
	default:
		return 0
	}
	return clamp(c)
}

func clamp(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}
