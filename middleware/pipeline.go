// File: middleware/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package middleware

import "sort"

// Pipeline holds a set of Middleware instances sorted by ascending
// priority and drives the bidirectional traversal: outgoing applies
// ascending, incoming applies descending (LIFO).
type Pipeline struct {
	items []Middleware
}

// NewPipeline builds an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Use appends middlewares and re-sorts by ascending priority. Stable
// sort preserves registration order among equal priorities.
func (p *Pipeline) Use(mws ...Middleware) {
	p.items = append(p.items, mws...)
	sort.SliceStable(p.items, func(i, j int) bool {
		return p.items[i].Priority() < p.items[j].Priority()
	})
}

// Middlewares returns the current ascending-priority-ordered slice.
func (p *Pipeline) Middlewares() []Middleware {
	out := make([]Middleware, len(p.items))
	copy(out, p.items)
	return out
}

// Outgoing runs data through every middleware in ascending priority
// order. Any error aborts the traversal, invokes the offending
// middleware's OnError hook (if any), and is returned wrapped as a
// *MiddlewareError.
func (p *Pipeline) Outgoing(data []byte, ctx *Context) ([]byte, error) {
	for _, m := range p.items {
		out, err := m.HandleOutgoing(data, ctx)
		if err != nil {
			if hook, ok := m.(ErrorHook); ok {
				hook.OnError(ctx, err)
			}
			return nil, &MiddlewareError{Name: m.Name(), Cause: err}
		}
		data = out
	}
	return data, nil
}

// Incoming runs data through every middleware in descending priority
// order (LIFO relative to Outgoing).
func (p *Pipeline) Incoming(data []byte, ctx *Context) ([]byte, error) {
	for i := len(p.items) - 1; i >= 0; i-- {
		m := p.items[i]
		out, err := m.HandleIncoming(data, ctx)
		if err != nil {
			if hook, ok := m.(ErrorHook); ok {
				hook.OnError(ctx, err)
			}
			return nil, &MiddlewareError{Name: m.Name(), Cause: err}
		}
		data = out
	}
	return data, nil
}

// Connect invokes OnConnect on every middleware implementing
// ConnectHook, in ascending priority order, stopping at the first
// error.
func (p *Pipeline) Connect(ctx *Context) error {
	for _, m := range p.items {
		if hook, ok := m.(ConnectHook); ok {
			if err := hook.OnConnect(ctx); err != nil {
				return &MiddlewareError{Name: m.Name(), Cause: err}
			}
		}
	}
	return nil
}

// Disconnect invokes OnDisconnect on every middleware implementing
// DisconnectHook, in descending priority order, best-effort (errors are
// collected but do not stop the sweep).
func (p *Pipeline) Disconnect(ctx *Context) []error {
	var errs []error
	for i := len(p.items) - 1; i >= 0; i-- {
		m := p.items[i]
		if hook, ok := m.(DisconnectHook); ok {
			if err := hook.OnDisconnect(ctx); err != nil {
				errs = append(errs, &MiddlewareError{Name: m.Name(), Cause: err})
			}
		}
	}
	return errs
}
