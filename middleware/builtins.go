// File: middleware/builtins.go
// Built-in middlewares: logging, panic recovery and connection/message
// counters, all on the byte-oriented Middleware contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package middleware

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// LoggingMiddleware logs every outgoing/incoming traversal through a
// connection at debug level.
type LoggingMiddleware struct {
	PriorityVal int
	Logger      zerolog.Logger
}

func NewLoggingMiddleware(priority int, logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{PriorityVal: priority, Logger: logger}
}

func (m *LoggingMiddleware) Name() string  { return "logging" }
func (m *LoggingMiddleware) Priority() int { return m.PriorityVal }

func (m *LoggingMiddleware) HandleOutgoing(data []byte, ctx *Context) ([]byte, error) {
	m.Logger.Debug().Str("connection_id", ctx.ConnectionID).Int("bytes", len(data)).Msg("outgoing")
	return data, nil
}

func (m *LoggingMiddleware) HandleIncoming(data []byte, ctx *Context) ([]byte, error) {
	m.Logger.Debug().Str("connection_id", ctx.ConnectionID).Int("bytes", len(data)).Msg("incoming")
	return data, nil
}

func (m *LoggingMiddleware) OnConnect(ctx *Context) error {
	m.Logger.Info().Str("connection_id", ctx.ConnectionID).Str("endpoint", ctx.Endpoint).Msg("connected")
	return nil
}

func (m *LoggingMiddleware) OnDisconnect(ctx *Context) error {
	m.Logger.Info().Str("connection_id", ctx.ConnectionID).Msg("disconnected")
	return nil
}

func (m *LoggingMiddleware) OnError(ctx *Context, cause error) {
	m.Logger.Error().Str("connection_id", ctx.ConnectionID).Err(cause).Msg("middleware error")
}

// RecoveryMiddleware converts a panic raised inside its own
// HandleOutgoing/HandleIncoming call back into an error. The pipeline
// calls each middleware in turn rather than nesting them, so a panic
// raised by any other middleware is not caught here.
type RecoveryMiddleware struct {
	PriorityVal int
	Logger      zerolog.Logger
}

func NewRecoveryMiddleware(priority int, logger zerolog.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{PriorityVal: priority, Logger: logger}
}

func (m *RecoveryMiddleware) Name() string  { return "recovery" }
func (m *RecoveryMiddleware) Priority() int { return m.PriorityVal }

func (m *RecoveryMiddleware) HandleOutgoing(data []byte, ctx *Context) (out []byte, err error) {
	defer m.recover(ctx, &err)
	return data, nil
}

func (m *RecoveryMiddleware) HandleIncoming(data []byte, ctx *Context) (out []byte, err error) {
	defer m.recover(ctx, &err)
	return data, nil
}

func (m *RecoveryMiddleware) recover(ctx *Context, err *error) {
	if r := recover(); r != nil {
		m.Logger.Error().Str("connection_id", ctx.ConnectionID).Interface("panic", r).Msg("recovered")
		*err = &panicError{value: r}
	}
}

type panicError struct{ value any }

func (e *panicError) Error() string { return "middleware panic recovered" }

// MetricsMiddleware tracks the number of currently active connections
// and total messages seen, scoped to the middleware instance.
type MetricsMiddleware struct {
	PriorityVal  int
	activeConns  atomic.Int64
	totalOutMsgs atomic.Int64
	totalInMsgs  atomic.Int64
}

func NewMetricsMiddleware(priority int) *MetricsMiddleware {
	return &MetricsMiddleware{PriorityVal: priority}
}

func (m *MetricsMiddleware) Name() string  { return "metrics" }
func (m *MetricsMiddleware) Priority() int { return m.PriorityVal }

func (m *MetricsMiddleware) HandleOutgoing(data []byte, ctx *Context) ([]byte, error) {
	m.totalOutMsgs.Add(1)
	return data, nil
}

func (m *MetricsMiddleware) HandleIncoming(data []byte, ctx *Context) ([]byte, error) {
	m.totalInMsgs.Add(1)
	return data, nil
}

func (m *MetricsMiddleware) OnConnect(ctx *Context) error {
	m.activeConns.Add(1)
	return nil
}

func (m *MetricsMiddleware) OnDisconnect(ctx *Context) error {
	m.activeConns.Add(-1)
	return nil
}

// Snapshot returns the current counter values.
func (m *MetricsMiddleware) Snapshot() (active, outgoing, incoming int64) {
	return m.activeConns.Load(), m.totalOutMsgs.Load(), m.totalInMsgs.Load()
}
