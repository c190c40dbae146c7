// Package monitoring watches per-domain safety state and raises webhook
// alerts for tripped breakers, failure spikes and quota exhaustion.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/resilience"
	"github.com/sells-group/fact-oracle/internal/safety"
)

// DomainMetrics is the health of one domain.
type DomainMetrics struct {
	Domain              model.Domain            `json:"domain"`
	Breaker             resilience.CircuitState `json:"breaker"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`

	TodayQueries int     `json:"today_queries"`
	DailyQuota   int     `json:"daily_quota"`
	QuotaUsage   float64 `json:"quota_usage"`

	TotalQueries      int     `json:"total_queries"`
	AvgConfidence     float64 `json:"avg_confidence"`
	RecentCount       int     `json:"recent_count"`
	RecentFailed      int     `json:"recent_failed"`
	RecentFailureRate float64 `json:"recent_failure_rate"`
}

// MetricsSnapshot holds a point-in-time view of every domain.
type MetricsSnapshot struct {
	Domains     []DomainMetrics `json:"domains"`
	CollectedAt time.Time       `json:"collected_at"`
}

// SnapshotSource abstracts the governor reads the collector needs.
type SnapshotSource interface {
	Snapshot(ctx context.Context, domain model.Domain) (*safety.Snapshot, error)
}

// Collector gathers metrics from the safety governor.
type Collector struct {
	source  SnapshotSource
	domains []model.Domain
}

// NewCollector creates a collector over domains.
func NewCollector(source SnapshotSource, domains []model.Domain) *Collector {
	return &Collector{source: source, domains: domains}
}

// Collect snapshots every domain.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	for _, d := range c.domains {
		s, err := c.source.Snapshot(ctx, d)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: snapshot %s", d)
		}

		m := DomainMetrics{
			Domain:              d,
			Breaker:             s.Breaker,
			ConsecutiveFailures: s.ConsecutiveFailures,
			TodayQueries:        s.Stats.TodayQueries,
			DailyQuota:          s.DailyQuota,
			QuotaUsage:          s.QuotaUsage(),
			TotalQueries:        s.Stats.TotalQueries,
			AvgConfidence:       s.Stats.AverageConfidence(),
			RecentCount:         len(s.Stats.RecentQueries),
		}
		for _, e := range s.Stats.RecentQueries {
			if !e.Success {
				m.RecentFailed++
			}
		}
		if m.RecentCount > 0 {
			m.RecentFailureRate = float64(m.RecentFailed) / float64(m.RecentCount)
		}
		snap.Domains = append(snap.Domains, m)
	}
	return snap, nil
}
