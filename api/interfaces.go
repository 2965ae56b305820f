// File: api/interfaces.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport is the capability boundary the rest of the toolkit
// consumes; how bytes actually leave/enter a socket is a concern of
// package transport and of application-supplied implementations.

package api

import "time"

// Transport abstracts a single full-duplex connection's byte I/O and
// lifecycle. Implementations live in package transport.
type Transport interface {
	// Send writes bytes, optionally bounded by a deadline (zero means
	// no deadline). Two concurrent sends on the same connection must
	// be serialized by the caller.
	Send(data []byte, timeout time.Duration) error

	// Receive blocks for the next chunk of bytes, optionally bounded
	// by a deadline.
	Receive(timeout time.Duration) ([]byte, error)

	// State reports the current connection lifecycle state.
	State() ConnectionState

	// Disconnect tears the connection down with a human-readable
	// reason; idempotent.
	Disconnect(reason string) error
}

// Dialer constructs a Transport for an Endpoint. Implementations are
// provided by package transport; applications may supply their own.
type Dialer interface {
	Dial(endpoint Endpoint, timeout time.Duration) (Transport, error)
}
