// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestTokenBucketExampleScenario(t *testing.T) {
	tb := NewTokenBucket(5, 5)
	if !tb.TryAcquire(3) {
		t.Fatal("expected first acquire of 3 to succeed")
	}
	if tb.TryAcquire(3) {
		t.Fatal("expected second acquire of 3 to fail (only 2 left)")
	}
	time.Sleep(400 * time.Millisecond)
	if !tb.TryAcquire(4) {
		t.Fatal("expected acquire of 4 to succeed after refill")
	}
}

func TestTokenBucketCostAboveCapacityAlwaysFails(t *testing.T) {
	tb := NewTokenBucket(5, 1)
	if tb.TryAcquire(10) {
		t.Fatal("cost above capacity must never be admitted")
	}
	_, err := tb.Acquire(10, time.Second)
	rlErr, ok := err.(*RateLimitError)
	if !ok || rlErr.Kind != ErrCostTooHigh {
		t.Fatalf("want ErrCostTooHigh got %v", err)
	}
}

func TestLeakyBucketDrainsOverTime(t *testing.T) {
	lb := NewLeakyBucket(10, 10)
	if !lb.TryAcquire(10) {
		t.Fatal("expected to fill bucket to capacity")
	}
	if lb.TryAcquire(1) {
		t.Fatal("expected bucket to be full")
	}
	time.Sleep(150 * time.Millisecond)
	if !lb.TryAcquire(1) {
		t.Fatal("expected leak to free capacity")
	}
}

func TestFixedWindowResetsAfterElapsed(t *testing.T) {
	fw := NewFixedWindow(100*time.Millisecond, 2)
	if !fw.TryAcquire(1) || !fw.TryAcquire(1) {
		t.Fatal("expected first two acquires to succeed")
	}
	if fw.TryAcquire(1) {
		t.Fatal("expected window to be exhausted")
	}
	time.Sleep(150 * time.Millisecond)
	if !fw.TryAcquire(1) {
		t.Fatal("expected window to have reset")
	}
}

func TestSlidingWindowInvariant(t *testing.T) {
	sw := NewSlidingWindow(100*time.Millisecond, 3)
	for i := 0; i < 3; i++ {
		if !sw.TryAcquire(1) {
			t.Fatalf("expected acquire %d to succeed", i)
		}
	}
	if sw.TryAcquire(1) {
		t.Fatal("expected window to reject beyond max")
	}
	time.Sleep(150 * time.Millisecond)
	if !sw.TryAcquire(1) {
		t.Fatal("expected old timestamps to have expired")
	}
}

func TestConcurrentSemaphoreFIFOWake(t *testing.T) {
	sem := NewConcurrentSemaphore(1)
	if !sem.TryAcquire(1) {
		t.Fatal("expected first acquire to succeed")
	}

	var wg sync.WaitGroup
	order := make(chan int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := sem.Acquire(1, time.Second)
			if err != nil || !ok {
				t.Errorf("waiter %d: ok=%v err=%v", i, ok, err)
				return
			}
			order <- i
		}(i)
		time.Sleep(10 * time.Millisecond) // ensure FIFO enqueue order
	}

	sem.Release(1)
	first := <-order
	sem.Release(1)
	second := <-order
	wg.Wait()

	if first != 0 || second != 1 {
		t.Fatalf("expected FIFO order [0 1], got [%d %d]", first, second)
	}
}

func TestConcurrentSemaphoreAcquireTimesOut(t *testing.T) {
	sem := NewConcurrentSemaphore(1)
	sem.TryAcquire(1)
	_, err := sem.Acquire(1, 20*time.Millisecond)
	rlErr, ok := err.(*RateLimitError)
	if !ok || rlErr.Kind != ErrAcquireTimeout {
		t.Fatalf("want ErrAcquireTimeout got %v", err)
	}
}

func TestConcurrentSemaphoreResetFailsWaiters(t *testing.T) {
	sem := NewConcurrentSemaphore(1)
	sem.TryAcquire(1)

	errc := make(chan error, 1)
	go func() {
		_, err := sem.Acquire(1, time.Second)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sem.Reset()

	err := <-errc
	rlErr, ok := err.(*RateLimitError)
	if !ok || rlErr.Kind != ErrAcquireTimeout {
		t.Fatalf("want ErrAcquireTimeout got %v", err)
	}
}
