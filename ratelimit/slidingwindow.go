// File: ratelimit/slidingwindow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ratelimit

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// SlidingWindow keeps a timestamp sequence; on query it drops
// timestamps older than now-window and admits if
// len(timestamps)+cost <= max, then appends cost timestamps at now.
// The timestamp sequence lives in an eapache/queue ring buffer.
type SlidingWindow struct {
	mu         sync.Mutex
	window     time.Duration
	max        int
	timestamps *queue.Queue
}

func NewSlidingWindow(window time.Duration, max int) *SlidingWindow {
	return &SlidingWindow{window: window, max: max, timestamps: queue.New()}
}

func (s *SlidingWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	for s.timestamps.Length() > 0 {
		oldest := s.timestamps.Peek().(time.Time)
		if oldest.After(cutoff) {
			break
		}
		s.timestamps.Remove()
	}
}

func (s *SlidingWindow) TryAcquire(cost float64) bool {
	n := int(cost)
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.max {
		return false
	}
	now := time.Now()
	s.evictLocked(now)
	if s.timestamps.Length()+n <= s.max {
		for i := 0; i < n; i++ {
			s.timestamps.Add(now)
		}
		return true
	}
	return false
}

func (s *SlidingWindow) Acquire(cost float64, timeout time.Duration) (bool, error) {
	if int(cost) > s.max {
		return false, &RateLimitError{Kind: ErrCostTooHigh, Cost: cost, Capacity: float64(s.max)}
	}
	return acquireByPolling(s, cost, timeout)
}

func (s *SlidingWindow) GetCurrentRate() RateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(time.Now())
	return RateInfo{Available: float64(s.max - s.timestamps.Length()), Capacity: float64(s.max)}
}

func (s *SlidingWindow) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestamps = queue.New()
}
