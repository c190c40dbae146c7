// Package stats holds the per-domain query log document and the stores that
// persist it.
package stats

import (
	"time"

	"github.com/sells-group/fact-oracle/internal/model"
)

// MaxRecent is the number of log entries kept per domain.
const MaxRecent = 50

// Entry is one recorded outcome.
type Entry struct {
	ID         string          `json:"id"`
	Question   string          `json:"question"`
	Success    bool            `json:"success"`
	Confidence float64         `json:"confidence"`
	Error      model.ErrorKind `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// EntryFromResult converts a verification result to a log entry.
func EntryFromResult(r *model.VerificationResult) Entry {
	return Entry{
		ID:         r.ID,
		Question:   r.Question,
		Success:    r.Success,
		Confidence: r.Confidence,
		Error:      r.Error,
		Timestamp:  r.Timestamp,
	}
}

// Document is the persisted state of one domain.
type Document struct {
	TotalQueries  int     `json:"totalQueries"`
	TodayQueries  int     `json:"todayQueries"`
	SuccessCount  int     `json:"successCount"`
	ErrorCount    int     `json:"errorCount"`
	ConfidenceSum float64 `json:"confidenceSum"`
	HourlyData    [24]int `json:"hourlyData"`
	RecentQueries []Entry `json:"recentQueries"`
	LastReset     string  `json:"lastReset"`
}

// NewDocument returns a zero document stamped with today's date in loc.
func NewDocument(now time.Time, loc *time.Location) *Document {
	return &Document{
		RecentQueries: []Entry{},
		LastReset:     now.In(loc).Format(model.DateLayout),
	}
}

// RollOver clears the daily counters when the calendar date in loc differs
// from LastReset. It reports whether a reset happened.
func (d *Document) RollOver(now time.Time, loc *time.Location) bool {
	today := now.In(loc).Format(model.DateLayout)
	if d.LastReset == today {
		return false
	}
	d.TodayQueries = 0
	d.HourlyData = [24]int{}
	d.LastReset = today
	return true
}

// Append records e, bumping counters and the hour bucket of e.Timestamp in
// loc, and trims the log to MaxRecent entries, newest last.
func (d *Document) Append(e Entry, loc *time.Location) {
	d.TotalQueries++
	d.TodayQueries++
	if e.Success {
		d.SuccessCount++
		d.ConfidenceSum += e.Confidence
	} else {
		d.ErrorCount++
	}
	d.HourlyData[e.Timestamp.In(loc).Hour()]++

	d.RecentQueries = append(d.RecentQueries, e)
	if n := len(d.RecentQueries); n > MaxRecent {
		d.RecentQueries = append([]Entry(nil), d.RecentQueries[n-MaxRecent:]...)
	}
}

// TrailingFailures counts failures at the end of the log, stopping at the
// first success or after k entries.
func (d *Document) TrailingFailures(k int) int {
	n := 0
	for i := len(d.RecentQueries) - 1; i >= 0 && n < k; i-- {
		if d.RecentQueries[i].Success {
			break
		}
		n++
	}
	return n
}

// AverageConfidence is the mean confidence of successful queries.
func (d *Document) AverageConfidence() float64 {
	if d.SuccessCount == 0 {
		return 0
	}
	return d.ConfidenceSum / float64(d.SuccessCount)
}

// SuccessRate is successes over all queries.
func (d *Document) SuccessRate() float64 {
	if d.TotalQueries == 0 {
		return 0
	}
	return float64(d.SuccessCount) / float64(d.TotalQueries)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.RecentQueries = append([]Entry{}, d.RecentQueries...)
	return &c
}

// normalize repairs a decoded document so callers can rely on its shape.
func (d *Document) normalize() {
	if d.RecentQueries == nil {
		d.RecentQueries = []Entry{}
	}
	if n := len(d.RecentQueries); n > MaxRecent {
		d.RecentQueries = d.RecentQueries[n-MaxRecent:]
	}
}
