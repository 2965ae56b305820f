// File: fallback/strategies.go
// Built-in fallback strategies: default value, cached value, degraded
// service, ordered chain, and conditional dispatch.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fallback

import (
	"sync"
	"time"
)

// DefaultValue always returns a fixed value.
type DefaultValue struct {
	Value []byte
}

func (d *DefaultValue) Resolve(err error, ctx ExecutionContext) ([]byte, error) {
	return d.Value, nil
}

// Cache returns a previously cached value keyed by operation name, if
// it is still fresh relative to MaxAge.
type Cache struct {
	MaxAge time.Duration

	mu     sync.Mutex
	values map[string]cachedValue
}

type cachedValue struct {
	data  []byte
	at    time.Time
}

func NewCache(maxAge time.Duration) *Cache {
	return &Cache{MaxAge: maxAge, values: make(map[string]cachedValue)}
}

// Store records the last-known-good value for operationName, to be
// consulted on a future failure.
func (c *Cache) Store(operationName string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[operationName] = cachedValue{data: data, at: time.Now()}
}

func (c *Cache) Resolve(err error, ctx ExecutionContext) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[ctx.OperationName]
	if !ok || time.Since(v.at) > c.MaxAge {
		return nil, err
	}
	return v.data, nil
}

// DegradedService invokes an alternate provider function.
type DegradedService struct {
	Fn func(err error, ctx ExecutionContext) ([]byte, error)
}

func (d *DegradedService) Resolve(err error, ctx ExecutionContext) ([]byte, error) {
	return d.Fn(err, ctx)
}

// Chain tries strategies in order until one succeeds.
type Chain struct {
	Strategies []Strategy
}

func (c *Chain) Resolve(err error, ctx ExecutionContext) ([]byte, error) {
	var lastErr error = err
	for _, s := range c.Strategies {
		data, serr := s.Resolve(lastErr, ctx)
		if serr == nil {
			return data, nil
		}
		lastErr = serr
	}
	return nil, lastErr
}

// Conditional dispatches to Strategy based on Predicate(err), falling
// back to Default when no predicate matches.
type Conditional struct {
	Predicate func(err error) bool
	Strategy  Strategy
	Default   Strategy
}

func (c *Conditional) Resolve(err error, ctx ExecutionContext) ([]byte, error) {
	if c.Predicate(err) {
		return c.Strategy.Resolve(err, ctx)
	}
	return c.Default.Resolve(err, ctx)
}
