// File: transport/pipe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory full-duplex Transport pair. Useful for exercising the
// connection shell, middleware and resilience layers without a
// network; tests and protocol adapters dial one end and drive the
// other directly.

package transport

import (
	"sync"
	"time"

	"github.com/momentics/nexuskit/api"
)

// PipeConn is one end of an in-memory transport pair.
type PipeConn struct {
	in        chan []byte
	out       chan []byte
	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe returns two connected transports: bytes sent on one are
// received on the other.
func Pipe() (*PipeConn, *PipeConn) {
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipeConn{in: bToA, out: aToB, done: done, closeOnce: once}
	b := &PipeConn{in: aToB, out: bToA, done: done, closeOnce: once}
	return a, b
}

func (p *PipeConn) Send(data []byte, timeout time.Duration) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case p.out <- cp:
		return nil
	case <-timer:
		return api.ErrOperationTimeout
	case <-p.done:
		return api.ErrTransportClosed
	}
}

func (p *PipeConn) Receive(timeout time.Duration) ([]byte, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case chunk := <-p.in:
		return chunk, nil
	case <-timer:
		return nil, api.ErrOperationTimeout
	case <-p.done:
		return nil, api.ErrTransportClosed
	}
}

func (p *PipeConn) State() api.ConnectionState {
	select {
	case <-p.done:
		return api.StateDisconnected
	default:
		return api.StateConnected
	}
}

// Disconnect closes both ends; idempotent.
func (p *PipeConn) Disconnect(reason string) error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// PipeDialer hands out the client end of a pre-built pipe, regardless
// of endpoint.
type PipeDialer struct {
	Conn *PipeConn
}

func (d *PipeDialer) Dial(endpoint api.Endpoint, timeout time.Duration) (api.Transport, error) {
	return d.Conn, nil
}
