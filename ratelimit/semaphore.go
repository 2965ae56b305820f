// File: ratelimit/semaphore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ratelimit

import (
	"sync"
	"time"
)

type semaphoreWaiter struct {
	cost   float64
	result chan error
}

// ConcurrentSemaphore admits immediately if current+cost <= max;
// otherwise it enqueues a FIFO waiter woken by Release. Acquire races
// the wait against the caller's timeout.
type ConcurrentSemaphore struct {
	mu      sync.Mutex
	max     float64
	current float64
	waiters []*semaphoreWaiter
}

func NewConcurrentSemaphore(maxConcurrent float64) *ConcurrentSemaphore {
	return &ConcurrentSemaphore{max: maxConcurrent}
}

func (s *ConcurrentSemaphore) TryAcquire(cost float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cost > s.max {
		return false
	}
	if s.current+cost <= s.max {
		s.current += cost
		return true
	}
	return false
}

func (s *ConcurrentSemaphore) Acquire(cost float64, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	if cost > s.max {
		s.mu.Unlock()
		return false, &RateLimitError{Kind: ErrCostTooHigh, Cost: cost, Capacity: s.max}
	}
	if s.current+cost <= s.max {
		s.current += cost
		s.mu.Unlock()
		return true, nil
	}
	w := &semaphoreWaiter{cost: cost, result: make(chan error, 1)}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	if timeout <= 0 {
		if s.dropWaiter(w) {
			return false, &RateLimitError{Kind: ErrRateLimitExceeded}
		}
		err := <-w.result
		return err == nil, err
	}

	select {
	case err := <-w.result:
		return err == nil, err
	case <-time.After(timeout):
		if s.dropWaiter(w) {
			return false, &RateLimitError{Kind: ErrAcquireTimeout}
		}
		// Release or Reset already claimed the waiter between the timer
		// firing and us locking; honor its outcome instead of double-counting.
		err := <-w.result
		return err == nil, err
	}
}

// dropWaiter removes w from the queue if still present, returning true
// if it removed it (i.e. Release had not yet granted it).
func (s *ConcurrentSemaphore) dropWaiter(target *semaphoreWaiter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == target {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Release decrements current by cost and wakes FIFO waiters whose cost
// fits in the newly freed capacity.
func (s *ConcurrentSemaphore) Release(cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current -= cost
	if s.current < 0 {
		s.current = 0
	}
	for len(s.waiters) > 0 {
		w := s.waiters[0]
		if s.current+w.cost > s.max {
			break
		}
		s.waiters = s.waiters[1:]
		s.current += w.cost
		w.result <- nil
	}
}

func (s *ConcurrentSemaphore) GetCurrentRate() RateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RateInfo{Available: s.max - s.current, Capacity: s.max}
}

// Reset fails all pending waiters with AcquireTimeout and
// clears current usage.
func (s *ConcurrentSemaphore) Reset() {
	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.current = 0
	s.mu.Unlock()
	for _, w := range waiters {
		w.result <- &RateLimitError{Kind: ErrAcquireTimeout}
	}
}
