// File: interceptor/interceptor.go
// Package interceptor implements the request/response interceptor
// chain: an ordered sequence of steps, each returning one of
// Passthrough/Modified/Rejected/Delayed, run sequentially with no
// parallelism within a traversal.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package interceptor

import (
	"fmt"
	"time"

	"github.com/momentics/nexuskit/middleware"
)

// ResultKind tags the closed variant an Interceptor returns.
type ResultKind int

const (
	Passthrough ResultKind = iota
	Modified
	Rejected
	Delayed
)

// Result is the tagged-union outcome of a single interceptor step.
type Result struct {
	kind     ResultKind
	data     []byte
	metadata map[string]string
	reason   string
	delay    time.Duration
}

func NewPassthrough(data []byte) Result {
	return Result{kind: Passthrough, data: data}
}

func NewModified(data []byte, metadata map[string]string) Result {
	return Result{kind: Modified, data: data, metadata: metadata}
}

func NewRejected(reason string) Result {
	return Result{kind: Rejected, reason: reason}
}

func NewDelayed(delay time.Duration, data []byte) Result {
	return Result{kind: Delayed, delay: delay, data: data}
}

func (r Result) Kind() ResultKind            { return r.kind }
func (r Result) Data() []byte                { return r.data }
func (r Result) Metadata() map[string]string { return r.metadata }
func (r Result) Reason() string              { return r.reason }
func (r Result) Delay() time.Duration        { return r.delay }

// Direction identifies whether a chain traversal is on the outgoing
// (request) or incoming (response) side, used only to pick the right
// error variant on rejection.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

// Interceptor is one named step in a Chain.
type Interceptor interface {
	Name() string
	Intercept(data []byte, ctx *middleware.Context) (Result, error)
}

// InterceptorError is the closed error surface an aborted chain
// traversal produces.
type InterceptorError struct {
	Kind ErrorKind
	Name string
	Info string
}

type ErrorKind int

const (
	ErrRequestRejected ErrorKind = iota
	ErrResponseRejected
	ErrTimeout
	ErrInvalid
)

func (e *InterceptorError) Error() string {
	switch e.Kind {
	case ErrRequestRejected:
		return fmt.Sprintf("interceptor %q: request rejected: %s", e.Name, e.Info)
	case ErrResponseRejected:
		return fmt.Sprintf("interceptor %q: response rejected: %s", e.Name, e.Info)
	case ErrTimeout:
		return fmt.Sprintf("interceptor %q: timeout: %s", e.Name, e.Info)
	default:
		return fmt.Sprintf("interceptor %q: invalid: %s", e.Name, e.Info)
	}
}
