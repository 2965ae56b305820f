// File: middleware/middleware.go
// Package middleware implements the ordered, priority-sorted middleware
// pipeline that sits between a connection's interceptor chain and its
// wire codec: a slice of named, prioritized steps applied in order
// around the transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package middleware

import (
	"fmt"
	"time"
)

// Context carries per-message state through a pipeline traversal: the
// owning connection id, its endpoint description, a timestamp, and a
// mutable string-keyed metadata bag middlewares use to communicate.
type Context struct {
	ConnectionID string
	Endpoint     string
	Timestamp    time.Time
	Metadata     map[string]string
}

// NewContext builds a Context with an initialized metadata bag.
func NewContext(connectionID, endpoint string) *Context {
	return &Context{
		ConnectionID: connectionID,
		Endpoint:     endpoint,
		Timestamp:    time.Now(),
		Metadata:     make(map[string]string),
	}
}

// Middleware is one named, prioritized step in a Pipeline. Lower
// Priority runs earlier on the outgoing path and later on the incoming
// path.
type Middleware interface {
	Name() string
	Priority() int
	HandleOutgoing(data []byte, ctx *Context) ([]byte, error)
	HandleIncoming(data []byte, ctx *Context) ([]byte, error)
}

// ConnectHook, DisconnectHook and ErrorHook are optional lifecycle
// extensions a Middleware may additionally implement.
type ConnectHook interface {
	OnConnect(ctx *Context) error
}

type DisconnectHook interface {
	OnDisconnect(ctx *Context) error
}

type ErrorHook interface {
	OnError(ctx *Context, cause error)
}

// MiddlewareError wraps any middleware failure with provenance: the
// offending middleware's name plus the underlying cause.
type MiddlewareError struct {
	Name  string
	Cause error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware %q: %v", e.Name, e.Cause)
}

func (e *MiddlewareError) Unwrap() error { return e.Cause }
