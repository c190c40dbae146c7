package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/config"
	"github.com/sells-group/fact-oracle/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBreakerTripped AlertType = "breaker_tripped"
	AlertFailureRate    AlertType = "failure_rate"
	AlertQuotaUsage     AlertType = "quota_usage"
)

// minRecentForRate is the log size below which failure rates are noise.
const minRecentForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Domain    string         `json:"domain"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// webhookStatusError carries the webhook's response code so retries can
// tell server errors from rejections.
type webhookStatusError struct {
	code int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("monitoring: webhook returned status %d", e.code)
}

func (e *webhookStatusError) HTTPStatus() int { return e.code }

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("monitoring", "send_alert")
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, m := range snap.Domains {
		if m.Breaker == resilience.CircuitTripped {
			alerts = append(alerts, Alert{
				Type:     AlertBreakerTripped,
				Severity: "critical",
				Domain:   string(m.Domain),
				Message: fmt.Sprintf(
					"%s breaker is tripped after %d consecutive failures; requests are rejected until a success is recorded",
					m.Domain, m.ConsecutiveFailures,
				),
				Details: map[string]any{
					"consecutive_failures": m.ConsecutiveFailures,
				},
				Timestamp: now,
			})
		}

		if m.RecentCount >= minRecentForRate && a.cfg.FailureRateThreshold > 0 &&
			m.RecentFailureRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertFailureRate,
				Severity: "high",
				Domain:   string(m.Domain),
				Message: fmt.Sprintf(
					"%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d recent)",
					m.Domain, m.RecentFailureRate*100, a.cfg.FailureRateThreshold*100,
					m.RecentFailed, m.RecentCount,
				),
				Details: map[string]any{
					"failure_rate": m.RecentFailureRate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       m.RecentFailed,
					"recent":       m.RecentCount,
				},
				Timestamp: now,
			})
		}

		if m.DailyQuota > 0 && a.cfg.QuotaUsageThreshold > 0 && m.QuotaUsage >= a.cfg.QuotaUsageThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertQuotaUsage,
				Severity: "warning",
				Domain:   string(m.Domain),
				Message: fmt.Sprintf(
					"%s has used %d of %d daily queries (%.0f%%)",
					m.Domain, m.TodayQueries, m.DailyQuota, m.QuotaUsage*100,
				),
				Details: map[string]any{
					"today_queries": m.TodayQueries,
					"daily_quota":   m.DailyQuota,
					"threshold":     a.cfg.QuotaUsageThreshold,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("domain", alert.Domain),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("domain", alert.Domain),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return &webhookStatusError{code: resp.StatusCode}
	}
	return nil
}
