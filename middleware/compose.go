// File: middleware/compose.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package middleware

// Predicate decides whether a middleware participates for a given
// message; used by When to short-circuit both directions to identity.
type Predicate func(data []byte, ctx *Context) bool

type whenMiddleware struct {
	inner     Middleware
	predicate Predicate
}

// When wraps m so that both HandleOutgoing and HandleIncoming become
// identity when predicate returns false.
func When(predicate Predicate, m Middleware) Middleware {
	return &whenMiddleware{inner: m, predicate: predicate}
}

func (w *whenMiddleware) Name() string  { return w.inner.Name() }
func (w *whenMiddleware) Priority() int { return w.inner.Priority() }

func (w *whenMiddleware) HandleOutgoing(data []byte, ctx *Context) ([]byte, error) {
	if !w.predicate(data, ctx) {
		return data, nil
	}
	return w.inner.HandleOutgoing(data, ctx)
}

func (w *whenMiddleware) HandleIncoming(data []byte, ctx *Context) ([]byte, error) {
	if !w.predicate(data, ctx) {
		return data, nil
	}
	return w.inner.HandleIncoming(data, ctx)
}

func (w *whenMiddleware) OnConnect(ctx *Context) error {
	if hook, ok := w.inner.(ConnectHook); ok {
		return hook.OnConnect(ctx)
	}
	return nil
}

func (w *whenMiddleware) OnDisconnect(ctx *Context) error {
	if hook, ok := w.inner.(DisconnectHook); ok {
		return hook.OnDisconnect(ctx)
	}
	return nil
}

func (w *whenMiddleware) OnError(ctx *Context, cause error) {
	if hook, ok := w.inner.(ErrorHook); ok {
		hook.OnError(ctx, cause)
	}
}

type composedMiddleware struct {
	a, b Middleware
	name string
}

// Compose yields a single middleware whose outgoing is a∘b (a then b)
// and whose incoming is b∘a (the reverse), with priority min(a, b).
func Compose(a, b Middleware) Middleware {
	return &composedMiddleware{a: a, b: b, name: a.Name() + "+" + b.Name()}
}

func (c *composedMiddleware) Name() string { return c.name }
func (c *composedMiddleware) Priority() int {
	if c.a.Priority() < c.b.Priority() {
		return c.a.Priority()
	}
	return c.b.Priority()
}

func (c *composedMiddleware) HandleOutgoing(data []byte, ctx *Context) ([]byte, error) {
	data, err := c.a.HandleOutgoing(data, ctx)
	if err != nil {
		return nil, err
	}
	return c.b.HandleOutgoing(data, ctx)
}

func (c *composedMiddleware) HandleIncoming(data []byte, ctx *Context) ([]byte, error) {
	data, err := c.b.HandleIncoming(data, ctx)
	if err != nil {
		return nil, err
	}
	return c.a.HandleIncoming(data, ctx)
}

func (c *composedMiddleware) OnConnect(ctx *Context) error {
	if hook, ok := c.a.(ConnectHook); ok {
		if err := hook.OnConnect(ctx); err != nil {
			return err
		}
	}
	if hook, ok := c.b.(ConnectHook); ok {
		return hook.OnConnect(ctx)
	}
	return nil
}

func (c *composedMiddleware) OnDisconnect(ctx *Context) error {
	if hook, ok := c.b.(DisconnectHook); ok {
		if err := hook.OnDisconnect(ctx); err != nil {
			return err
		}
	}
	if hook, ok := c.a.(DisconnectHook); ok {
		return hook.OnDisconnect(ctx)
	}
	return nil
}

func (c *composedMiddleware) OnError(ctx *Context, cause error) {
	if hook, ok := c.a.(ErrorHook); ok {
		hook.OnError(ctx, cause)
	}
	if hook, ok := c.b.(ErrorHook); ok {
		hook.OnError(ctx, cause)
	}
}
