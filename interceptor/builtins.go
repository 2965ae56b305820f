// File: interceptor/builtins.go
// Built-in interceptors: logging, validation, transform, throttle,
// conditional dispatch, retry marking, signing/verification, caching,
// parsing and timeout checks.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package interceptor

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/momentics/nexuskit/middleware"
	"github.com/rs/zerolog"
)

// Logging passes every message through unmodified, emitting a debug
// log line.
type Logging struct {
	Logger zerolog.Logger
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	l.Logger.Debug().Str("connection_id", ctx.ConnectionID).Int("bytes", len(data)).Msg("intercept")
	return NewPassthrough(data), nil
}

// Validation rejects messages outside [MinSize, MaxSize] or failing a
// custom predicate.
type Validation struct {
	MinSize   int
	MaxSize   int
	Predicate func(data []byte) bool
}

func (v *Validation) Name() string { return "validation" }

func (v *Validation) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	if len(data) < v.MinSize {
		return NewRejected("payload smaller than minimum size"), nil
	}
	if v.MaxSize > 0 && len(data) > v.MaxSize {
		return NewRejected("payload larger than maximum size"), nil
	}
	if v.Predicate != nil && !v.Predicate(data) {
		return NewRejected("payload failed custom predicate"), nil
	}
	return NewPassthrough(data), nil
}

// Transform applies a pure function to the payload.
type Transform struct {
	Fn func(data []byte) []byte
}

func (t *Transform) Name() string { return "transform" }

func (t *Transform) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	return NewPassthrough(t.Fn(data)), nil
}

// Throttle delays every message by a fixed duration.
type Throttle struct {
	Delay time.Duration
}

func (t *Throttle) Name() string { return "throttle" }

func (t *Throttle) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	return NewDelayed(t.Delay, data), nil
}

// Conditional dispatches to A when Predicate holds, else B.
type Conditional struct {
	Predicate func(data []byte, ctx *middleware.Context) bool
	A, B      Interceptor
}

func (c *Conditional) Name() string { return "conditional" }

func (c *Conditional) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	if c.Predicate(data, ctx) {
		return c.A.Intercept(data, ctx)
	}
	return c.B.Intercept(data, ctx)
}

// RetryMarker records a retry hint in metadata without altering bytes.
type RetryMarker struct {
	MaxAttempts int
}

func (r *RetryMarker) Name() string { return "retry-marker" }

func (r *RetryMarker) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	md := map[string]string{"retry.max_attempts": strconv.Itoa(r.MaxAttempts)}
	return NewModified(data, md), nil
}

// Signature asynchronously signs the payload and records the signature
// in metadata. Sign is invoked synchronously within Intercept; the
// chain has no parallelism within a single traversal, so "async"
// refers to the signer being pluggable I/O, not a goroutine spawned
// by the chain itself.
type Signature struct {
	Sign func(data []byte) (string, error)
}

func (s *Signature) Name() string { return "signature" }

func (s *Signature) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	sig, err := s.Sign(data)
	if err != nil {
		return Result{}, err
	}
	return NewModified(data, map[string]string{"signature": sig}), nil
}

// Verify rejects the message when its recorded signature metadata
// doesn't match a freshly computed one.
type Verify struct {
	Sign func(data []byte) (string, error)
}

func (v *Verify) Name() string { return "verify" }

func (v *Verify) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	want, err := v.Sign(data)
	if err != nil {
		return Result{}, err
	}
	if ctx.Metadata["signature"] != want {
		return NewRejected("signature mismatch"), nil
	}
	return NewPassthrough(data), nil
}

// Parser hands the payload to a caller-supplied parse function purely
// for validation side effects, passing the original bytes through.
type Parser struct {
	Parse func(data []byte) error
}

func (p *Parser) Name() string { return "parser" }

func (p *Parser) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	if err := p.Parse(data); err != nil {
		return NewRejected(err.Error()), nil
	}
	return NewPassthrough(data), nil
}

// TimeoutCheck rejects a response whose timestamp exceeds Max relative
// to metadata["request.timestamp"] (RFC3339 nano).
type TimeoutCheck struct {
	Max time.Duration
	Now func() time.Time
}

func (t *TimeoutCheck) Name() string { return "timeout-check" }

func (t *TimeoutCheck) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	reqTS, ok := ctx.Metadata["request.timestamp"]
	if !ok {
		return NewPassthrough(data), nil
	}
	sent, err := time.Parse(time.RFC3339Nano, reqTS)
	if err != nil {
		return NewPassthrough(data), nil
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	if now().Sub(sent) > t.Max {
		return NewRejected("response exceeded timeout window"), nil
	}
	return NewPassthrough(data), nil
}

// Cache stores payloads in a bounded LRU+TTL, keyed by the request id
// in metadata when present, else a stable content-addressed SHA-256
// digest of the payload bytes.
type Cache struct {
	store *expirable.LRU[string, []byte]
}

// NewCache builds a Cache with the given capacity and TTL.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{store: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *Cache) Name() string { return "cache" }

func (c *Cache) Intercept(data []byte, ctx *middleware.Context) (Result, error) {
	key, ok := ctx.Metadata["request.id"]
	if !ok {
		sum := sha256.Sum256(data)
		key = hex.EncodeToString(sum[:16])
	}
	if cached, ok := c.store.Get(key); ok {
		return NewModified(cached, map[string]string{"cache.hit": "true"}), nil
	}
	c.store.Add(key, data)
	return NewModified(data, map[string]string{"cache.hit": "false"}), nil
}
