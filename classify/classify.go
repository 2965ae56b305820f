// File: classify/classify.go
// Package classify implements the error classification taxonomy: a
// pure classify(error) function, a default table covering the common
// transport and protocol failures, and a CompositeClassifier that
// consults custom classifiers before falling back to the default.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package classify

import (
	"errors"
	"strings"
	"time"
)

// Recoverability is the closed top-level recovery tier.
type Recoverability int

const (
	Recoverable Recoverability = iota
	Transient
	Permanent
	Fatal
)

// Severity mirrors the log-level taxonomy used across the toolkit.
type Severity int

const (
	Trace Severity = iota
	Debug
	Info
	Warning
	ErrorSeverity
	Critical
)

// Category buckets the error's originating subsystem.
type Category int

const (
	CategoryNetwork Category = iota
	CategoryConnection
	CategoryAuthentication
	CategoryProtocol
	CategoryTimeout
	CategoryResourceLimit
	CategoryConfiguration
	CategoryUnknown
)

// Classification is the result of classifying an error.
type Classification struct {
	Recoverability      Recoverability
	Severity            Severity
	Category            Category
	ShouldRetry         bool
	SuggestedRetryDelay *time.Duration
	ShouldTriggerBreaker bool
	ShouldAlert         bool
	Description         string
}

// Classifier is a pure function from error to Classification.
type Classifier func(err error) Classification

// CancelledError is the distinct cancellation signal every suspending
// operation propagates: classify reports it
// Permanent/Unknown/no-retry.
type CancelledError struct{ Cause error }

func (e *CancelledError) Error() string { return "operation cancelled" }
func (e *CancelledError) Unwrap() error { return e.Cause }

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

// Classify maps an error to its classification using the default
// table.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Recoverability: Permanent, Category: CategoryUnknown, Description: "no error"}
	}

	var cancelled *CancelledError
	if errors.As(err, &cancelled) {
		return Classification{Recoverability: Permanent, Severity: Info, Category: CategoryUnknown, Description: "cancelled"}
	}

	msg := err.Error()

	switch {
	case contains(msg, "network unreachable") || contains(msg, "connection lost"):
		return Classification{Recoverability: Transient, Severity: Warning, Category: CategoryNetwork,
			ShouldRetry: true, Description: msg}

	case contains(msg, "connect timeout") || contains(msg, "connection refused"):
		return Classification{Recoverability: Recoverable, Severity: Warning, Category: CategoryConnection,
			ShouldRetry: true, ShouldTriggerBreaker: true, Description: msg}

	case contains(msg, "request timeout") || contains(msg, "heartbeat timeout"):
		return Classification{Recoverability: Transient, Severity: Warning, Category: CategoryTimeout,
			ShouldRetry: true, ShouldTriggerBreaker: true, Description: msg}

	case contains(msg, "authentication failed") || contains(msg, "invalid credentials"):
		return Classification{Recoverability: Permanent, Severity: ErrorSeverity, Category: CategoryAuthentication,
			ShouldRetry: false, ShouldAlert: true, Description: msg}

	case contains(msg, "protocol error") || contains(msg, "invalid message"):
		return Classification{Recoverability: Permanent, Severity: ErrorSeverity, Category: CategoryProtocol,
			ShouldRetry: false, Description: msg}

	case contains(msg, "buffer overflow"):
		return Classification{Recoverability: Transient, Severity: Warning, Category: CategoryResourceLimit,
			ShouldRetry: true, Description: msg}

	case contains(msg, "tls"):
		return Classification{Recoverability: Permanent, Severity: Critical, Category: CategoryConfiguration,
			ShouldRetry: false, ShouldAlert: true, Description: msg}

	case contains(msg, "dns"):
		return Classification{Recoverability: Recoverable, Severity: Warning, Category: CategoryNetwork,
			ShouldRetry: true, ShouldTriggerBreaker: true, Description: msg}

	case contains(msg, "econnreset") || contains(msg, "epipe"):
		return Classification{Recoverability: Recoverable, Severity: Warning, Category: CategoryConnection,
			ShouldRetry: true, Description: msg}

	default:
		return Classification{Recoverability: Permanent, Severity: ErrorSeverity, Category: CategoryUnknown,
			ShouldRetry: false, Description: msg}
	}
}

// CompositeClassifier consults an ordered list of custom classifiers
// first; the first one to return non-nil wins, else falls back to
// Classify. A custom classifier signals "no opinion" by
// returning a nil *Classification.
type CompositeClassifier struct {
	Custom []func(err error) *Classification
}

func (c *CompositeClassifier) Classify(err error) Classification {
	for _, fn := range c.Custom {
		if result := fn(err); result != nil {
			return *result
		}
	}
	return Classify(err)
}
