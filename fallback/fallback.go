// File: fallback/fallback.go
// Package fallback implements the fallback handler and its built-in
// strategies: when an operation fails, a configured strategy supplies
// a substitute result.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fallback

import "time"

// ExecutionContext carries the operation name and attempt count
// passed to a Strategy on failure.
type ExecutionContext struct {
	OperationName string
	AttemptCount  int
}

// Strategy decides what value to return when an operation fails.
type Strategy interface {
	Resolve(err error, ctx ExecutionContext) ([]byte, error)
}

// Handler wraps exactly one FallbackStrategy.
type Handler struct {
	Strategy Strategy
}

func New(strategy Strategy) *Handler {
	return &Handler{Strategy: strategy}
}

// Execute runs op; on error it invokes the configured strategy with
// (error, context{operation_name, attempt_count=1}).
func (h *Handler) Execute(operationName string, op func() ([]byte, error)) ([]byte, error) {
	data, err := op()
	if err == nil {
		return data, nil
	}
	return h.Strategy.Resolve(err, ExecutionContext{OperationName: operationName, AttemptCount: 1})
}

// ExecuteWithRetries retries op up to maxRetries times with a fixed
// delay; on final failure it invokes the strategy.
func (h *Handler) ExecuteWithRetries(operationName string, maxRetries int, delay time.Duration, op func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		data, err := op()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt <= maxRetries {
			time.Sleep(delay)
		}
	}
	return h.Strategy.Resolve(lastErr, ExecutionContext{OperationName: operationName, AttemptCount: maxRetries + 1})
}
