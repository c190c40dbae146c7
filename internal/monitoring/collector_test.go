package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/internal/safety"
	"github.com/sells-group/fact-oracle/internal/stats"
)

type errSource struct{}

func (errSource) Snapshot(context.Context, model.Domain) (*safety.Snapshot, error) {
	return nil, errors.New("store offline")
}

// seededGovernor records outcomes for sports: true is a success.
func seededGovernor(t *testing.T, quota int, outcomes ...bool) *safety.Governor {
	t.Helper()
	now := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)
	g := safety.New(stats.NewFile(t.TempDir()),
		config.SafetyConfig{FailureWindow: 5, DailyQuota: quota, Timezone: "UTC"},
		safety.WithClock(func() time.Time { return now }))

	ctx := context.Background()
	for i, ok := range outcomes {
		ticket, err := g.Check(ctx, model.DomainSports)
		require.NoError(t, err, "outcome %d", i)
		var r *model.VerificationResult
		if ok {
			r = model.NewSuccess("s", model.DomainSports, "q", nil, nil, 0.9, 0.5, nil, now)
		} else {
			r = model.NewFailure("f", model.DomainSports, "q", nil, model.Errorf(model.KindNetwork, "down"), nil, now)
		}
		require.NoError(t, g.Record(ctx, ticket, r))
	}
	return g
}

func TestCollector_EmptyState(t *testing.T) {
	g := seededGovernor(t, 100)
	snap, err := NewCollector(g, model.Domains).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Domains, 2)
	for _, m := range snap.Domains {
		assert.Equal(t, resilience.CircuitNormal, m.Breaker)
		assert.Zero(t, m.RecentCount)
		assert.Zero(t, m.RecentFailureRate)
	}
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_DomainMetrics(t *testing.T) {
	g := seededGovernor(t, 10, true, true, false, true, false)
	snap, err := NewCollector(g, []model.Domain{model.DomainSports}).Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Domains, 1)
	m := snap.Domains[0]
	assert.Equal(t, model.DomainSports, m.Domain)
	assert.Equal(t, 5, m.TotalQueries)
	assert.Equal(t, 5, m.TodayQueries)
	assert.Equal(t, 10, m.DailyQuota)
	assert.InDelta(t, 0.5, m.QuotaUsage, 1e-9)
	assert.Equal(t, 2, m.RecentFailed)
	assert.InDelta(t, 0.4, m.RecentFailureRate, 1e-9)
	assert.InDelta(t, 0.9, m.AvgConfidence, 1e-9)
	assert.Equal(t, 1, m.ConsecutiveFailures)
}

func TestCollector_TrippedBreaker(t *testing.T) {
	g := seededGovernor(t, 100, false, false, false, false, false)
	snap, err := NewCollector(g, []model.Domain{model.DomainSports}).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, resilience.CircuitTripped, snap.Domains[0].Breaker)
	assert.Equal(t, 5, snap.Domains[0].ConsecutiveFailures)
}

func TestCollector_SourceError(t *testing.T) {
	_, err := NewCollector(errSource{}, model.Domains).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}
