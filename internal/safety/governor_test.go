package safety

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/internal/stats"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func safetyConfig() config.SafetyConfig {
	return config.SafetyConfig{FailureWindow: 5, DailyQuota: 100, Timezone: "UTC"}
}

func newGovernor(t *testing.T, cfg config.SafetyConfig) (*Governor, *stats.FileStore, *fakeClock) {
	t.Helper()
	store := stats.NewFile(t.TempDir())
	clock := &fakeClock{now: time.Date(2026, 1, 20, 14, 30, 0, 0, time.UTC)}
	return New(store, cfg, WithClock(clock.Now)), store, clock
}

func result(domain model.Domain, success bool, now time.Time) *model.VerificationResult {
	if success {
		return model.NewSuccess("ok", domain, "q", nil, nil, 0.9, 0.5, []string{"espn"}, now)
	}
	return model.NewFailure("fail", domain, "q", nil, model.Errorf(model.KindNetwork, "down"), nil, now)
}

// ask runs one guarded call the way the oracle does, counting adapter calls.
func ask(t *testing.T, g *Governor, domain model.Domain, success bool, calls *atomic.Int32) error {
	t.Helper()
	ctx := context.Background()
	ticket, err := g.Check(ctx, domain)
	if err != nil {
		return err
	}
	calls.Add(1)
	require.NoError(t, g.Record(ctx, ticket, result(domain, success, g.now())))
	return nil
}

func TestGovernor_TripsAfterWindowAndRecovers(t *testing.T) {
	g, _, _ := newGovernor(t, safetyConfig())
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		require.NoError(t, ask(t, g, model.DomainSports, false, &calls))
	}
	require.Equal(t, int32(5), calls.Load())

	err := ask(t, g, model.DomainSports, true, &calls)
	require.Error(t, err)
	assert.Equal(t, model.KindBreakerOpen, model.KindOf(err))
	assert.Equal(t, int32(5), calls.Load(), "adapter must not run while tripped")

	// Other domains are unaffected.
	require.NoError(t, ask(t, g, model.DomainReddit, true, &calls))

	snap, err := g.Snapshot(context.Background(), model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, resilience.CircuitTripped, snap.Breaker)
}

func TestGovernor_LateSuccessRestores(t *testing.T) {
	g, _, _ := newGovernor(t, safetyConfig())
	ctx := context.Background()

	// Hold one ticket open while the breaker trips.
	held, err := g.Check(ctx, model.DomainSports)
	require.NoError(t, err)

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, ask(t, g, model.DomainSports, false, &calls))
	}
	_, err = g.Check(ctx, model.DomainSports)
	require.Equal(t, model.KindBreakerOpen, model.KindOf(err))

	require.NoError(t, g.Record(ctx, held, result(model.DomainSports, true, g.now())))

	ticket, err := g.Check(ctx, model.DomainSports)
	require.NoError(t, err, "one success must clear the breaker")
	g.Release(ticket)
}

func TestGovernor_SuccessResetsFailureRun(t *testing.T) {
	g, _, _ := newGovernor(t, safetyConfig())
	var calls atomic.Int32

	for i := 0; i < 4; i++ {
		require.NoError(t, ask(t, g, model.DomainReddit, false, &calls))
	}
	require.NoError(t, ask(t, g, model.DomainReddit, true, &calls))
	for i := 0; i < 4; i++ {
		require.NoError(t, ask(t, g, model.DomainReddit, false, &calls))
	}
	assert.NoError(t, ask(t, g, model.DomainReddit, true, &calls))
}

func TestGovernor_RestoresTrippedBreakerFromStore(t *testing.T) {
	g, store, clock := newGovernor(t, safetyConfig())
	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, ask(t, g, model.DomainSports, false, &calls))
	}

	// A fresh governor over the same store starts tripped.
	g2 := New(store, safetyConfig(), WithClock(clock.Now))
	_, err := g2.Check(context.Background(), model.DomainSports)
	assert.Equal(t, model.KindBreakerOpen, model.KindOf(err))

	snap, err := g2.Snapshot(context.Background(), model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Stats.TotalQueries)
	assert.Equal(t, 5, snap.ConsecutiveFailures)
}

func TestGovernor_Quota(t *testing.T) {
	cfg := safetyConfig()
	cfg.DailyQuota = 3
	g, _, clock := newGovernor(t, cfg)
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		require.NoError(t, ask(t, g, model.DomainReddit, true, &calls))
	}
	err := ask(t, g, model.DomainReddit, true, &calls)
	require.Error(t, err)
	assert.Equal(t, model.KindQuotaExceeded, model.KindOf(err))
	assert.Equal(t, 9*time.Hour+30*time.Minute, g.UntilReset())

	// The quota frees up on the next calendar day.
	clock.Set(time.Date(2026, 1, 21, 0, 0, 1, 0, time.UTC))
	assert.NoError(t, ask(t, g, model.DomainReddit, true, &calls))
}

func TestGovernor_BreakerReportedBeforeQuota(t *testing.T) {
	cfg := safetyConfig()
	cfg.FailureWindow = 2
	cfg.DailyQuota = 2
	g, _, _ := newGovernor(t, cfg)
	var calls atomic.Int32

	require.NoError(t, ask(t, g, model.DomainSports, false, &calls))
	require.NoError(t, ask(t, g, model.DomainSports, false, &calls))

	// Both conditions hold; the breaker is reported first.
	_, err := g.Check(context.Background(), model.DomainSports)
	assert.Equal(t, model.KindBreakerOpen, model.KindOf(err))
}

func TestGovernor_ConcurrentQuotaReservations(t *testing.T) {
	cfg := safetyConfig()
	cfg.DailyQuota = 10
	g, _, _ := newGovernor(t, cfg)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := g.Check(ctx, model.DomainSports)
			if err != nil {
				assert.Equal(t, model.KindQuotaExceeded, model.KindOf(err))
				rejected.Add(1)
				return
			}
			admitted.Add(1)
			assert.NoError(t, g.Record(ctx, ticket, result(model.DomainSports, true, g.now())))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
	assert.Equal(t, int32(40), rejected.Load())

	snap, err := g.Snapshot(ctx, model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Stats.TodayQueries)
	assert.Zero(t, snap.Inflight)
	assert.InDelta(t, 1.0, snap.QuotaUsage(), 1e-9)
}

func TestGovernor_InflightCountsTowardQuota(t *testing.T) {
	cfg := safetyConfig()
	cfg.DailyQuota = 1
	g, _, _ := newGovernor(t, cfg)
	ctx := context.Background()

	ticket, err := g.Check(ctx, model.DomainReddit)
	require.NoError(t, err)

	_, err = g.Check(ctx, model.DomainReddit)
	assert.Equal(t, model.KindQuotaExceeded, model.KindOf(err))

	g.Release(ticket)
	ticket, err = g.Check(ctx, model.DomainReddit)
	require.NoError(t, err, "released slots are not counted")
	g.Release(ticket)
}

func TestGovernor_FinishIsIdempotent(t *testing.T) {
	g, _, _ := newGovernor(t, safetyConfig())
	ctx := context.Background()

	ticket, err := g.Check(ctx, model.DomainSports)
	require.NoError(t, err)
	r := result(model.DomainSports, true, g.now())
	require.NoError(t, g.Record(ctx, ticket, r))
	require.NoError(t, g.Record(ctx, ticket, r))
	g.Release(ticket)

	snap, err := g.Snapshot(ctx, model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.TotalQueries)
	assert.Zero(t, snap.Inflight)
}

func TestGovernor_RecordWritesThrough(t *testing.T) {
	g, store, _ := newGovernor(t, safetyConfig())
	var calls atomic.Int32
	require.NoError(t, ask(t, g, model.DomainReddit, true, &calls))
	require.NoError(t, ask(t, g, model.DomainReddit, false, &calls))

	doc, err := store.Load(context.Background(), model.DomainReddit)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 2, doc.TotalQueries)
	assert.Equal(t, 1, doc.SuccessCount)
	assert.Equal(t, 2, doc.HourlyData[14])
	assert.Equal(t, "2026-01-20", doc.LastReset)
}

func TestGovernor_DayRollover(t *testing.T) {
	g, _, clock := newGovernor(t, safetyConfig())
	var calls atomic.Int32
	require.NoError(t, ask(t, g, model.DomainSports, true, &calls))

	clock.Set(time.Date(2026, 1, 21, 3, 15, 0, 0, time.UTC))
	require.NoError(t, ask(t, g, model.DomainSports, true, &calls))

	snap, err := g.Snapshot(context.Background(), model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.TodayQueries)
	assert.Equal(t, 2, snap.Stats.TotalQueries)
	assert.Equal(t, "2026-01-21", snap.Stats.LastReset)
	assert.Equal(t, 1, snap.Stats.HourlyData[3])
	assert.Zero(t, snap.Stats.HourlyData[14])
}

func TestGovernor_HourBucketUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	g, _, _ := newGovernor(t, safetyConfig())
	g = New(g.store, safetyConfig(), WithClock(g.now), WithLocation(ny))
	var calls atomic.Int32
	require.NoError(t, ask(t, g, model.DomainSports, true, &calls))

	snap, err := g.Snapshot(context.Background(), model.DomainSports)
	require.NoError(t, err)
	// 14:30 UTC is 09:30 in New York in January.
	assert.Equal(t, 1, snap.Stats.HourlyData[9])
}

func TestGovernor_SnapshotIsACopy(t *testing.T) {
	g, _, _ := newGovernor(t, safetyConfig())
	var calls atomic.Int32
	require.NoError(t, ask(t, g, model.DomainReddit, true, &calls))

	snap, err := g.Snapshot(context.Background(), model.DomainReddit)
	require.NoError(t, err)
	snap.Stats.TotalQueries = 999

	again, err := g.Snapshot(context.Background(), model.DomainReddit)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Stats.TotalQueries)
}

func TestGovernor_Pace(t *testing.T) {
	cfg := safetyConfig()
	cfg.MinIntervalMs = 40
	g := New(stats.NewFile(t.TempDir()), cfg)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Pace(ctx, model.DomainReddit))
	}
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "bursts are spaced out")

	// Domains pace independently.
	start = time.Now()
	require.NoError(t, g.Pace(ctx, model.DomainSports))
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestGovernor_PaceHonoursContext(t *testing.T) {
	cfg := safetyConfig()
	cfg.MinIntervalMs = 60_000
	g := New(stats.NewFile(t.TempDir()), cfg)

	require.NoError(t, g.Pace(context.Background(), model.DomainSports))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Pace(ctx, model.DomainSports))
}

type brokenStore struct {
	stats.Store
	loadErr error
	saveErr error
}

func (b *brokenStore) Load(context.Context, model.Domain) (*stats.Document, error) {
	return nil, b.loadErr
}

func (b *brokenStore) Save(context.Context, model.Domain, *stats.Document) error {
	return b.saveErr
}

func TestGovernor_StoreErrors(t *testing.T) {
	ctx := context.Background()

	g := New(&brokenStore{loadErr: errors.New("db down")}, safetyConfig())
	_, err := g.Check(ctx, model.DomainSports)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	g = New(&brokenStore{saveErr: errors.New("disk full")}, safetyConfig())
	ticket, err := g.Check(ctx, model.DomainSports)
	require.NoError(t, err)
	err = g.Record(ctx, ticket, result(model.DomainSports, false, time.Now()))
	require.Error(t, err)

	// The in-memory outcome still counts.
	snap, err := g.Snapshot(ctx, model.DomainSports)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.ErrorCount)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
}
