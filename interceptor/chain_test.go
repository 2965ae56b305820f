// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package interceptor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/nexuskit/middleware"
)

func TestChainPassthroughIsIdentity(t *testing.T) {
	c := NewChain()
	c.UseRequest(&Logging{})
	ctx := middleware.NewContext("c1", "tcp://x")
	out, err := c.Request([]byte("hello"), ctx)
	if err != nil || string(out) != "hello" {
		t.Fatalf("got %q err %v", out, err)
	}
}

func TestChainValidationRejectsUndersize(t *testing.T) {
	c := NewChain()
	c.UseRequest(&Validation{MinSize: 10})
	ctx := middleware.NewContext("c1", "tcp://x")
	_, err := c.Request([]byte("hi"), ctx)
	var ierr *InterceptorError
	if !errors.As(err, &ierr) || ierr.Kind != ErrRequestRejected {
		t.Fatalf("want ErrRequestRejected got %v", err)
	}
}

func TestChainModifiedWritesMetadata(t *testing.T) {
	c := NewChain()
	c.UseRequest(&RetryMarker{MaxAttempts: 3})
	ctx := middleware.NewContext("c1", "tcp://x")
	if _, err := c.Request([]byte("x"), ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.Metadata["retry.max_attempts"] != "3" {
		t.Fatalf("got metadata %v", ctx.Metadata)
	}
}

func TestChainDelayedSleepsThenContinues(t *testing.T) {
	c := NewChain()
	c.UseRequest(&Throttle{Delay: 10 * time.Millisecond})
	ctx := middleware.NewContext("c1", "tcp://x")
	start := time.Now()
	out, err := c.Request([]byte("x"), ctx)
	if err != nil || string(out) != "x" {
		t.Fatalf("got %q err %v", out, err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("throttle did not delay")
	}
}

func TestSignatureAndVerifyRoundTrip(t *testing.T) {
	sign := func(data []byte) (string, error) { return string(data) + "-sig", nil }
	ctx := middleware.NewContext("c1", "tcp://x")

	sigStep := &Signature{Sign: sign}
	res, err := sigStep.Intercept([]byte("payload"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range res.Metadata() {
		ctx.Metadata[k] = v
	}

	verifyStep := &Verify{Sign: sign}
	res, err = verifyStep.Intercept([]byte("payload"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind() != Passthrough {
		t.Fatalf("expected signature to verify, got %v", res.Kind())
	}

	ctx.Metadata["signature"] = "tampered"
	res, err = verifyStep.Intercept([]byte("payload"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind() != Rejected {
		t.Fatalf("expected tampered signature rejection, got %v", res.Kind())
	}
}

func TestTimeoutCheckRejectsStaleResponse(t *testing.T) {
	fixedNow := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	tc := &TimeoutCheck{Max: 5 * time.Second, Now: func() time.Time { return fixedNow }}
	ctx := middleware.NewContext("c1", "tcp://x")
	ctx.Metadata["request.timestamp"] = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)

	res, err := tc.Intercept([]byte("x"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind() != Rejected {
		t.Fatalf("expected stale response to be rejected, got %v", res.Kind())
	}
}

func TestCacheMissThenHit(t *testing.T) {
	c := NewCache(10, time.Minute)
	ctx := middleware.NewContext("c1", "tcp://x")
	ctx.Metadata["request.id"] = "req-1"

	res, err := c.Intercept([]byte("first"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata()["cache.hit"] != "false" {
		t.Fatalf("expected miss, got %v", res.Metadata())
	}

	res, err = c.Intercept([]byte("second"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata()["cache.hit"] != "true" || string(res.Data()) != "first" {
		t.Fatalf("expected cached value 'first', got %+v", res)
	}
}

func TestConditionalDispatchesToAOrB(t *testing.T) {
	cond := &Conditional{
		Predicate: func(data []byte, ctx *middleware.Context) bool { return len(data) > 3 },
		A:         &Transform{Fn: func(d []byte) []byte { return []byte("long") }},
		B:         &Transform{Fn: func(d []byte) []byte { return []byte("short") }},
	}
	ctx := middleware.NewContext("c1", "tcp://x")

	res, _ := cond.Intercept([]byte("abcdef"), ctx)
	if string(res.Data()) != "long" {
		t.Fatalf("got %q", res.Data())
	}
	res, _ = cond.Intercept([]byte("ab"), ctx)
	if string(res.Data()) != "short" {
		t.Fatalf("got %q", res.Data())
	}
}

func TestCacheFallsBackToContentKey(t *testing.T) {
	c := NewCache(10, time.Minute)
	ctx := middleware.NewContext("c1", "tcp://x")

	res, err := c.Intercept([]byte("payload"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata()["cache.hit"] != "false" {
		t.Fatalf("expected first sight to miss, got %v", res.Metadata())
	}

	// Same bytes, no request id: the content digest must hit.
	res, err = c.Intercept([]byte("payload"), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata()["cache.hit"] != "true" {
		t.Fatalf("expected content-keyed hit, got %v", res.Metadata())
	}
}
