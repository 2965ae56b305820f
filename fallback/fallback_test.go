// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package fallback

import (
	"errors"
	"testing"
	"time"
)

func TestHandlerExecutePassesThroughOnSuccess(t *testing.T) {
	h := New(&DefaultValue{Value: []byte("fallback")})
	data, err := h.Execute("op", func() ([]byte, error) { return []byte("ok"), nil })
	if err != nil || string(data) != "ok" {
		t.Fatalf("got %q err %v", data, err)
	}
}

func TestHandlerExecuteInvokesStrategyOnError(t *testing.T) {
	h := New(&DefaultValue{Value: []byte("fallback")})
	data, err := h.Execute("op", func() ([]byte, error) { return nil, errors.New("boom") })
	if err != nil || string(data) != "fallback" {
		t.Fatalf("got %q err %v", data, err)
	}
}

func TestExecuteWithRetriesRetriesThenFallsBack(t *testing.T) {
	attempts := 0
	h := New(&DefaultValue{Value: []byte("fallback")})
	data, err := h.ExecuteWithRetries("op", 2, time.Millisecond, func() ([]byte, error) {
		attempts++
		return nil, errors.New("boom")
	})
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if err != nil || string(data) != "fallback" {
		t.Fatalf("got %q err %v", data, err)
	}
}

func TestExecuteWithRetriesSucceedsWithoutExhausting(t *testing.T) {
	attempts := 0
	h := New(&DefaultValue{Value: []byte("fallback")})
	data, err := h.ExecuteWithRetries("op", 5, time.Millisecond, func() ([]byte, error) {
		attempts++
		if attempts == 2 {
			return []byte("recovered"), nil
		}
		return nil, errors.New("boom")
	})
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	if err != nil || string(data) != "recovered" {
		t.Fatalf("got %q err %v", data, err)
	}
}

func TestCacheReturnsFreshValueOnly(t *testing.T) {
	c := NewCache(50 * time.Millisecond)
	c.Store("op", []byte("cached"))

	data, err := c.Resolve(errors.New("x"), ExecutionContext{OperationName: "op"})
	if err != nil || string(data) != "cached" {
		t.Fatalf("got %q err %v", data, err)
	}

	time.Sleep(60 * time.Millisecond)
	_, err = c.Resolve(errors.New("x"), ExecutionContext{OperationName: "op"})
	if err == nil {
		t.Fatal("expected stale cache entry to fail")
	}
}

func TestChainTriesInOrderUntilSuccess(t *testing.T) {
	failing := &DegradedService{Fn: func(err error, ctx ExecutionContext) ([]byte, error) {
		return nil, errors.New("still failing")
	}}
	succeeding := &DefaultValue{Value: []byte("recovered")}
	chain := &Chain{Strategies: []Strategy{failing, succeeding}}

	data, err := chain.Resolve(errors.New("original"), ExecutionContext{OperationName: "op"})
	if err != nil || string(data) != "recovered" {
		t.Fatalf("got %q err %v", data, err)
	}
}

func TestConditionalDispatchesOnPredicate(t *testing.T) {
	cond := &Conditional{
		Predicate: func(err error) bool { return err.Error() == "special" },
		Strategy:  &DefaultValue{Value: []byte("special-path")},
		Default:   &DefaultValue{Value: []byte("default-path")},
	}

	data, _ := cond.Resolve(errors.New("special"), ExecutionContext{})
	if string(data) != "special-path" {
		t.Fatalf("got %q", data)
	}
	data, _ = cond.Resolve(errors.New("other"), ExecutionContext{})
	if string(data) != "default-path" {
		t.Fatalf("got %q", data)
	}
}
