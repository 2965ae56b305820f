// File: breaker/breaker.go
// Package breaker implements the CircuitBreaker state machine over a
// sliding window of call records bounded by the configured window
// duration. The call-record deque uses github.com/eapache/queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// State is the closed three-value circuit breaker state: Closed
// admits traffic, Open rejects it, HalfOpen admits probe traffic
// only.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CallRecord is one observed outcome.
type CallRecord struct {
	Timestamp time.Time
	Success   bool
	Duration  time.Duration
}

// Config fixes a breaker's policy at creation time.
type Config struct {
	WindowDuration           time.Duration
	MinimumRequests          int
	FailureThreshold         float64
	SlowCallDuration         time.Duration // 0 disables slow-call tripping
	SlowCallRateThreshold    float64
	ResetTimeout             time.Duration
	HalfOpenMaxRequests      int
	HalfOpenSuccessThreshold float64
}

// ErrorKind closes the circuit-breaker error surface.
type ErrorKind int

const (
	ErrCircuitOpen ErrorKind = iota
	ErrHalfOpenLimitExceeded
	ErrRequestTimeout
)

type CircuitBreakerError struct {
	Kind ErrorKind
	Name string
}

func (e *CircuitBreakerError) Error() string {
	switch e.Kind {
	case ErrCircuitOpen:
		return fmt.Sprintf("breaker %q: circuit open", e.Name)
	case ErrHalfOpenLimitExceeded:
		return fmt.Sprintf("breaker %q: half-open probe limit exceeded", e.Name)
	default:
		return fmt.Sprintf("breaker %q: request timeout", e.Name)
	}
}

// StateChangeFunc is invoked on every distinct transition.
type StateChangeFunc func(name string, from, to State)

// CircuitBreaker implements the Closed/Open/HalfOpen machine.
type CircuitBreaker struct {
	name   string
	cfg    Config
	onFlip StateChangeFunc

	mu            sync.Mutex
	state         State
	openedAt      time.Time
	records       *queue.Queue
	halfOpenCount int
}

func New(name string, cfg Config, onFlip StateChangeFunc) *CircuitBreaker {
	return &CircuitBreaker{
		name:    name,
		cfg:     cfg,
		onFlip:  onFlip,
		state:   Closed,
		records: queue.New(),
	}
}

func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) transitionLocked(to State) {
	if to == b.state {
		return
	}
	from := b.state
	b.state = to
	if to == Open {
		b.openedAt = time.Now()
	}
	if to == HalfOpen {
		b.halfOpenCount = 0
	}
	if b.onFlip != nil {
		b.onFlip(b.name, from, to)
	}
}

func (b *CircuitBreaker) evictLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowDuration)
	for b.records.Length() > 0 {
		rec := b.records.Peek().(CallRecord)
		if rec.Timestamp.After(cutoff) {
			break
		}
		b.records.Remove()
	}
}

func (b *CircuitBreaker) metricsLocked() (total int, failureRate, slowRate float64) {
	n := b.records.Length()
	if n == 0 {
		return 0, 0, 0
	}
	var failures, slow int
	for i := 0; i < n; i++ {
		rec := b.records.Get(i).(CallRecord)
		if !rec.Success {
			failures++
		}
		if b.cfg.SlowCallDuration > 0 && rec.Duration > b.cfg.SlowCallDuration {
			slow++
		}
	}
	return n, float64(failures) / float64(n), float64(slow) / float64(n)
}

// allow evaluates transitions and decides whether the upcoming call
// may proceed, returning an error otherwise.
func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.evictLocked(now)

	switch b.state {
	case Open:
		if now.Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.transitionLocked(HalfOpen)
		} else {
			return &CircuitBreakerError{Kind: ErrCircuitOpen, Name: b.name}
		}
	case Closed:
		total, failureRate, slowRate := b.metricsLocked()
		if total >= b.cfg.MinimumRequests {
			tripOnFailure := failureRate > b.cfg.FailureThreshold
			tripOnSlow := b.cfg.SlowCallDuration > 0 && slowRate > b.cfg.SlowCallRateThreshold
			if tripOnFailure || tripOnSlow {
				b.transitionLocked(Open)
				return &CircuitBreakerError{Kind: ErrCircuitOpen, Name: b.name}
			}
		}
	}

	if b.state == HalfOpen {
		if b.halfOpenCount >= b.cfg.HalfOpenMaxRequests {
			return &CircuitBreakerError{Kind: ErrHalfOpenLimitExceeded, Name: b.name}
		}
		b.halfOpenCount++
	}
	return nil
}

func (b *CircuitBreaker) record(success bool, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.records.Add(CallRecord{Timestamp: now, Success: success, Duration: duration})
	b.evictLocked(now)

	switch b.state {
	case HalfOpen:
		if !success {
			b.transitionLocked(Open)
			return
		}
		_, failureRate, _ := b.metricsLocked()
		successRate := 1 - failureRate
		if successRate >= b.cfg.HalfOpenSuccessThreshold {
			b.transitionLocked(Closed)
		}
	case Closed:
		total, failureRate, slowRate := b.metricsLocked()
		if total >= b.cfg.MinimumRequests {
			tripOnFailure := failureRate > b.cfg.FailureThreshold
			tripOnSlow := b.cfg.SlowCallDuration > 0 && slowRate > b.cfg.SlowCallRateThreshold
			if tripOnFailure || tripOnSlow {
				b.transitionLocked(Open)
			}
		}
	}
}

// Execute runs op, gated by the breaker, recording the outcome
// afterward.
func (b *CircuitBreaker) Execute(op func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	start := time.Now()
	err := op()
	b.record(err == nil, time.Since(start))
	return err
}

// ExecuteWithTimeout races op against timeout; on cancellation (ctx
// done) neither success nor failure is recorded.
func (b *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- op(opCtx) }()

	select {
	case err := <-done:
		if ctx.Err() != nil {
			// caller cancellation: no side effect on the window.
			return err
		}
		b.record(err == nil, time.Since(start))
		return err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			// caller cancellation: no side effect on the window.
			return ctx.Err()
		}
		b.record(false, time.Since(start))
		return &CircuitBreakerError{Kind: ErrRequestTimeout, Name: b.name}
	}
}

// Trip forces the breaker Open.
func (b *CircuitBreaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Open)
}

// Reset forces the breaker Closed and clears history.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
	b.records = queue.New()
	b.halfOpenCount = 0
}
