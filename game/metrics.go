package game

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SearchStats describes a single search.
type SearchStats struct {
	Expanded   int           `json:"expanded"`
	Inserted   int           `json:"inserted"`
	PeakOpen   int           `json:"peak_open"`
	PathLength int           `json:"path_length"`
	Cost       float64       `json:"cost"`
	Duration   time.Duration `json:"duration"`
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Searches      int           `json:"searches"`
	Found         int           `json:"found"`
	NotFound      int           `json:"not_found"`
	Invalid       int           `json:"invalid"`
	LimitHits     int           `json:"limit_hits"`
	Cancelled     int           `json:"cancelled"`
	Errors        int           `json:"errors"`
	MaxOpenSet    int           `json:"max_open_set"`
	TotalExpanded int           `json:"total_expanded"`
	TotalDuration time.Duration `json:"total_duration"`
}

// AverageDuration returns the mean wall time per search.
func (s MetricsSnapshot) AverageDuration() time.Duration {
	if s.Searches == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Searches)
}

// Metrics aggregates SearchStats across searches. It is owned by whoever
// runs the searches and is safe for concurrent use.
type Metrics struct {
	snap MetricsSnapshot
	lock sync.Mutex
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record folds the outcome of one search into the totals.
func (m *Metrics) Record(stats SearchStats, err error) {
	if m == nil {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	m.snap.Searches++
	m.snap.TotalExpanded += stats.Expanded
	m.snap.TotalDuration += stats.Duration
	if stats.PeakOpen > m.snap.MaxOpenSet {
		m.snap.MaxOpenSet = stats.PeakOpen
	}

	switch {
	case err == nil:
		m.snap.Found++
	case errors.Is(err, ErrInvalidStartOrGoal):
		m.snap.Invalid++
	case errors.Is(err, ErrSearchLimit):
		m.snap.LimitHits++
	case errors.Is(err, ErrExhaustedOpenSet):
		m.snap.NotFound++
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.snap.Cancelled++
	default:
		m.snap.Errors++
	}
}

// Snapshot returns a copy of the current totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.snap
}
