// File: errormonitor/errormonitor.go
// Package errormonitor implements the sliding-window error-rate
// monitor: a deque of (timestamp, success-or-classified)
// samples, alert-level thresholds, and trend detection. The deque is
// backed by github.com/eapache/queue, matching the breaker package's
// call-record window.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package errormonitor

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/nexuskit/classify"
)

// AlertLevel is the closed alert-level variant.
type AlertLevel int

const (
	Normal AlertLevel = iota
	Warning
	Critical
)

func (a AlertLevel) String() string {
	switch a {
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// Trend is the closed error-rate trend variant.
type Trend int

const (
	Stable Trend = iota
	Increasing
	Decreasing
)

type sample struct {
	timestamp      time.Time
	failed         bool
	classification *classify.Classification
}

// Config fixes monitor thresholds at creation time.
type Config struct {
	WindowDuration    time.Duration
	MinimumSamples    int
	AlertThreshold    float64
	CriticalThreshold float64
}

// AlertFunc is invoked whenever the alert level transitions.
type AlertFunc func(name string, from, to AlertLevel)

// Monitor tracks a sliding window of outcomes for one named subject.
type Monitor struct {
	name    string
	cfg     Config
	onAlert AlertFunc

	mu      sync.Mutex
	samples *queue.Queue
	level   AlertLevel
}

func New(name string, cfg Config, onAlert AlertFunc) *Monitor {
	return &Monitor{name: name, cfg: cfg, onAlert: onAlert, samples: queue.New()}
}

func (m *Monitor) evictLocked(now time.Time) {
	cutoff := now.Add(-m.cfg.WindowDuration)
	for m.samples.Length() > 0 {
		s := m.samples.Peek().(sample)
		if s.timestamp.After(cutoff) {
			break
		}
		m.samples.Remove()
	}
}

func (m *Monitor) appendLocked(failed bool, classification *classify.Classification) {
	now := time.Now()
	m.samples.Add(sample{timestamp: now, failed: failed, classification: classification})
	m.evictLocked(now)
	m.evaluateLocked()
}

func (m *Monitor) evaluateLocked() {
	metrics := m.metricsLocked()
	var newLevel AlertLevel
	switch {
	case metrics.Total < m.cfg.MinimumSamples:
		newLevel = Normal
	case metrics.ErrorRate >= m.cfg.CriticalThreshold:
		newLevel = Critical
	case metrics.ErrorRate >= m.cfg.AlertThreshold:
		newLevel = Warning
	default:
		newLevel = Normal
	}
	if newLevel != m.level {
		old := m.level
		m.level = newLevel
		if m.onAlert != nil {
			m.onAlert(m.name, old, newLevel)
		}
	}
}

// RecordSuccess appends a successful outcome.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(false, nil)
}

// RecordFailure classifies err and appends a failed outcome carrying
// the classification.
func (m *Monitor) RecordFailure(err error) classify.Classification {
	c := classify.Classify(err)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(true, &c)
	return c
}

// Metrics reports the window's current aggregates.
type Metrics struct {
	Total       int
	Failed      int
	ErrorRate   float64
	SuccessRate float64
}

func (m *Monitor) metricsLocked() Metrics {
	n := m.samples.Length()
	if n == 0 {
		return Metrics{}
	}
	var failed int
	for i := 0; i < n; i++ {
		if m.samples.Get(i).(sample).failed {
			failed++
		}
	}
	rate := float64(failed) / float64(n)
	return Metrics{Total: n, Failed: failed, ErrorRate: rate, SuccessRate: 1 - rate}
}

// Metrics returns the current window aggregates.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(time.Now())
	return m.metricsLocked()
}

// AlertLevel returns the current alert level.
func (m *Monitor) AlertLevel() AlertLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Trend splits the window in half by index and compares error rates
// between the two halves; requires at least 20 samples,
// else reports Stable.
func (m *Monitor) Trend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(time.Now())
	n := m.samples.Length()
	if n < 20 {
		return Stable
	}
	mid := n / 2
	var firstFailed, secondFailed int
	for i := 0; i < mid; i++ {
		if m.samples.Get(i).(sample).failed {
			firstFailed++
		}
	}
	for i := mid; i < n; i++ {
		if m.samples.Get(i).(sample).failed {
			secondFailed++
		}
	}
	firstRate := float64(firstFailed) / float64(mid)
	secondRate := float64(secondFailed) / float64(n-mid)
	delta := secondRate - firstRate
	switch {
	case delta > 0.05:
		return Increasing
	case delta < -0.05:
		return Decreasing
	default:
		return Stable
	}
}
