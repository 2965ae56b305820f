// File: middleware/func.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package middleware

// HandlerFunc transforms one direction of a message.
type HandlerFunc func(data []byte, ctx *Context) ([]byte, error)

type funcMiddleware struct {
	name     string
	priority int
	outgoing HandlerFunc
	incoming HandlerFunc
}

// NewFunc wraps a pair of handler functions as a Middleware. A nil
// handler is the identity for that direction.
func NewFunc(name string, priority int, outgoing, incoming HandlerFunc) Middleware {
	return &funcMiddleware{name: name, priority: priority, outgoing: outgoing, incoming: incoming}
}

func (m *funcMiddleware) Name() string  { return m.name }
func (m *funcMiddleware) Priority() int { return m.priority }

func (m *funcMiddleware) HandleOutgoing(data []byte, ctx *Context) ([]byte, error) {
	if m.outgoing == nil {
		return data, nil
	}
	return m.outgoing(data, ctx)
}

func (m *funcMiddleware) HandleIncoming(data []byte, ctx *Context) ([]byte, error) {
	if m.incoming == nil {
		return data, nil
	}
	return m.incoming(data, ctx)
}
