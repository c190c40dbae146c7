// Package safety gates outbound provider traffic per domain with a
// failure-window breaker, a daily quota and a pacing limiter, and owns the
// only write path to the stats store.
package safety

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/internal/stats"
)

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithLocation overrides the timezone used for day boundaries and hour buckets.
func WithLocation(loc *time.Location) Option {
	return func(g *Governor) { g.loc = loc }
}

// Governor holds the safety state of every domain. Each domain's state is
// only read or written under that domain's mutex.
type Governor struct {
	store    stats.Store
	window   int
	quota    int
	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	mu      sync.Mutex
	domains map[model.Domain]*domainState
}

type domainState struct {
	mu       sync.Mutex
	loaded   bool
	doc      *stats.Document
	inflight int
	breaker  *resilience.CircuitBreaker
	limiter  *rate.Limiter
}

// Ticket is a reserved quota slot. It must be finished with Record or Release.
type Ticket struct {
	Domain model.Domain
	state  *domainState
	done   bool
}

// New creates a Governor backed by store.
func New(store stats.Store, cfg config.SafetyConfig, opts ...Option) *Governor {
	g := &Governor{
		store:    store,
		window:   cfg.FailureWindow,
		quota:    cfg.DailyQuota,
		interval: cfg.MinInterval(),
		loc:      cfg.Location(),
		now:      time.Now,
		domains:  make(map[model.Domain]*domainState),
	}
	for _, o := range opts {
		o(g)
	}
	if g.window <= 0 {
		g.window = resilience.DefaultCircuitBreakerConfig().Window
	}
	return g
}

// Location returns the timezone used for day boundaries.
func (g *Governor) Location() *time.Location { return g.loc }

func (g *Governor) state(domain model.Domain) *domainState {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.domains[domain]
	if ok {
		return s
	}

	limit := rate.Inf
	if g.interval > 0 {
		limit = rate.Every(g.interval)
	}
	log := zap.L().With(zap.String("component", "safety"), zap.String("domain", string(domain)))
	s = &domainState{
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Window: g.window,
			OnStateChange: func(from, to resilience.CircuitState) {
				if to == resilience.CircuitTripped {
					log.Warn("breaker tripped", zap.Stringer("from", from), zap.Int("window", g.window))
					return
				}
				log.Info("breaker restored", zap.Stringer("from", from))
			},
		}),
		limiter: rate.NewLimiter(limit, 1),
	}
	g.domains[domain] = s
	return s
}

// load reads the persisted document on first touch. Caller holds s.mu.
func (g *Governor) load(ctx context.Context, domain model.Domain, s *domainState) error {
	if s.loaded {
		return nil
	}
	doc, err := g.store.Load(ctx, domain)
	if err != nil {
		return eris.Wrapf(err, "safety: load %s stats", domain)
	}
	if doc == nil {
		doc = stats.NewDocument(g.now(), g.loc)
	}
	s.doc = doc
	s.breaker.Restore(doc.TrailingFailures(g.window))
	s.loaded = true

	if s.breaker.State() == resilience.CircuitTripped {
		zap.L().Warn("safety: breaker restored tripped from persisted log",
			zap.String("domain", string(domain)),
			zap.Int("window", g.window),
		)
	}
	return nil
}

// Check admits one request for domain or rejects it with a breaker_open or
// quota_exceeded *model.Error. An admitted request holds an inflight slot
// until its ticket is finished.
func (g *Governor) Check(ctx context.Context, domain model.Domain) (*Ticket, error) {
	s := g.state(domain)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := g.load(ctx, domain, s); err != nil {
		return nil, err
	}
	s.doc.RollOver(g.now(), g.loc)

	if err := s.breaker.Allow(); err != nil {
		return nil, model.WrapError(model.KindBreakerOpen, err,
			string(domain)+" source is failing; retry after it recovers")
	}
	// A zero quota disables the limit.
	if g.quota > 0 && s.doc.TodayQueries+s.inflight >= g.quota {
		return nil, model.Errorf(model.KindQuotaExceeded, "daily quota of %d %s queries reached", g.quota, domain)
	}

	s.inflight++
	return &Ticket{Domain: domain, state: s}, nil
}

// Record finishes t by appending result to the domain's log, feeding the
// breaker and writing the document through to the store. Finishing a ticket
// twice is a no-op.
func (g *Governor) Record(ctx context.Context, t *Ticket, result *model.VerificationResult) error {
	s := t.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.done {
		return nil
	}
	t.done = true
	s.inflight--

	s.doc.RollOver(g.now(), g.loc)
	s.doc.Append(stats.EntryFromResult(result), g.loc)
	s.breaker.Record(result.Success)

	if err := g.store.Save(ctx, t.Domain, s.doc); err != nil {
		return eris.Wrapf(err, "safety: save %s stats", t.Domain)
	}
	return nil
}

// Release finishes t without recording an outcome.
func (g *Governor) Release(t *Ticket) {
	s := t.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	s.inflight--
}

// Pace blocks until the domain's minimum interval since the previous
// outbound call has elapsed.
func (g *Governor) Pace(ctx context.Context, domain model.Domain) error {
	if err := g.state(domain).limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "safety: pace %s", domain)
	}
	return nil
}

// UntilReset is the time left until the daily counters roll over.
func (g *Governor) UntilReset() time.Duration {
	now := g.now().In(g.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, g.loc).Sub(now)
}

// Snapshot is a point-in-time copy of one domain's safety state.
type Snapshot struct {
	Domain              model.Domain            `json:"domain"`
	Breaker             resilience.CircuitState `json:"breaker"`
	ConsecutiveFailures int                     `json:"consecutiveFailures"`
	DailyQuota          int                     `json:"dailyQuota"`
	Inflight            int                     `json:"inflight"`
	Stats               *stats.Document         `json:"stats"`
}

// QuotaUsage is today's queries over the daily quota, or 0 when unlimited.
func (s *Snapshot) QuotaUsage() float64 {
	if s.DailyQuota <= 0 {
		return 0
	}
	return float64(s.Stats.TodayQueries) / float64(s.DailyQuota)
}

// Snapshot returns a copy of domain's state, loading it if untouched.
func (g *Governor) Snapshot(ctx context.Context, domain model.Domain) (*Snapshot, error) {
	s := g.state(domain)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := g.load(ctx, domain, s); err != nil {
		return nil, err
	}
	doc := s.doc.Clone()
	doc.RollOver(g.now(), g.loc)

	failures, state := s.breaker.Counters()
	return &Snapshot{
		Domain:              domain,
		Breaker:             state,
		ConsecutiveFailures: failures,
		DailyQuota:          g.quota,
		Inflight:            s.inflight,
		Stats:               doc,
	}, nil
}
