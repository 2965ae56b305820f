// File: heartbeat/heartbeat.go
// Package heartbeat implements the adaptive heartbeat manager: a
// periodic probe loop with loss accounting, a four-state machine, and
// optional interval adaptation based on observed latency.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package heartbeat

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// State is the closed heartbeat state variant.
type State int

const (
	Idle State = iota
	Active
	Warning
	Timeout
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Warning:
		return "warning"
	case Timeout:
		return "timeout"
	default:
		return "idle"
	}
}

// Config fixes the manager's policy.
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	MaxLostCount int
	Adaptive     bool
	MinInterval  time.Duration
	MaxInterval  time.Duration
}

// Statistics is a snapshot of the manager's counters.
type Statistics struct {
	Sent           int
	Received       int
	Lost           int
	LossRate       float64
	AvgLatency     time.Duration
	LastReceivedAt *time.Time
	State          State
}

// ProbeFunc hands probe bytes to the transport; an error is treated as
// a lost heartbeat.
type ProbeFunc func(probe []byte) error

// TimeoutFunc is invoked when the manager transitions into Timeout.
type TimeoutFunc func()

// Manager runs the adaptive heartbeat loop as a single-writer actor:
// every exported method serializes through mu.
type Manager struct {
	cfg       Config
	probe     ProbeFunc
	onTimeout TimeoutFunc

	mu              sync.Mutex
	state           State
	currentInterval time.Duration
	sent            int
	received        int
	totalLost       int
	consecutiveLost int
	lastSentAt      time.Time
	lastReceivedAt  *time.Time
	latencySum      time.Duration
	latencyCount    int

	stop chan struct{}
	done chan struct{}
}

func New(cfg Config, probe ProbeFunc, onTimeout TimeoutFunc) *Manager {
	return &Manager{
		cfg:             cfg,
		probe:           probe,
		onTimeout:       onTimeout,
		state:           Idle,
		currentInterval: cfg.Interval,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Start launches the ticking loop in its own goroutine.
func (m *Manager) Start() {
	go m.loop()
}

// Stop halts the loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Manager) loop() {
	defer close(m.done)
	timer := time.NewTimer(m.currentInterval)
	defer timer.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-timer.C:
			m.tick()
			m.mu.Lock()
			interval := m.currentInterval
			m.mu.Unlock()
			timer.Reset(interval)
		}
	}
}

func buildProbe(now time.Time) []byte {
	buf := make([]byte, 9+8)
	copy(buf, "HEARTBEAT")
	binary.BigEndian.PutUint64(buf[9:], math.Float64bits(float64(now.UnixNano())/1e9))
	return buf
}

// tick runs one loop iteration.
func (m *Manager) tick() {
	m.mu.Lock()
	now := time.Now()
	if m.lastReceivedAt != nil && now.Sub(*m.lastReceivedAt) > m.cfg.Timeout {
		m.consecutiveLost++
		m.totalLost++
		m.evaluateTransitionLocked()
	}
	m.lastSentAt = now
	m.mu.Unlock()

	err := m.probe(buildProbe(now))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.consecutiveLost++
		m.totalLost++
		m.evaluateTransitionLocked()
		return
	}
	m.sent++
}

// evaluateTransitionLocked applies the loss-driven transitions:
// consecutive_lost >= max -> Timeout, else > 0 -> Warning.
func (m *Manager) evaluateTransitionLocked() {
	old := m.state
	if m.consecutiveLost >= m.cfg.MaxLostCount {
		m.state = Timeout
	} else if m.consecutiveLost > 0 {
		m.state = Warning
	}
	if old != Timeout && m.state == Timeout && m.onTimeout != nil {
		// Dispatch outside the loop goroutine: the callback may Stop
		// this manager, which waits for the loop to exit.
		go m.onTimeout()
	}
}

// RecordResponse handles an inbound heartbeat response: computes
// latency relative to lastSentAt, resets consecutive loss, and
// adapts the interval when configured.
func (m *Manager) RecordResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	latency := now.Sub(m.lastSentAt)
	m.latencySum += latency
	m.latencyCount++
	m.received++
	m.consecutiveLost = 0
	m.lastReceivedAt = &now

	if m.state == Warning || m.state == Timeout || m.state == Idle {
		m.state = Active
	}

	if m.cfg.Adaptive {
		avg := m.avgLatencyLocked()
		switch {
		case avg < 100*time.Millisecond:
			m.currentInterval = scaleToward(m.currentInterval, m.cfg.MinInterval, 0.9)
		case avg > 500*time.Millisecond:
			m.currentInterval = scaleToward(m.currentInterval, m.cfg.MaxInterval, 1.1)
		}
	}
}

func scaleToward(current, bound time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if factor < 1 {
		if next < bound {
			return bound
		}
		return next
	}
	if next > bound {
		return bound
	}
	return next
}

func (m *Manager) avgLatencyLocked() time.Duration {
	if m.latencyCount == 0 {
		return 0
	}
	return m.latencySum / time.Duration(m.latencyCount)
}

// Statistics returns a snapshot of current counters.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	lossRate := 0.0
	if m.sent > 0 {
		lossRate = float64(m.totalLost) / float64(m.sent)
	}
	return Statistics{
		Sent:           m.sent,
		Received:       m.received,
		Lost:           m.totalLost,
		LossRate:       lossRate,
		AvgLatency:     m.avgLatencyLocked(),
		LastReceivedAt: m.lastReceivedAt,
		State:          m.state,
	}
}

// State returns the current heartbeat state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
