// File: transport/tcp.go
// Package transport provides the default client-side api.Transport
// implementations (plain TCP and TLS) that the rest of the toolkit
// consumes through the Transport capability boundary.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/nexuskit/api"
)

// Conn wraps a net.Conn as an api.Transport. It serializes writes
// and tracks lifecycle state.
type Conn struct {
	conn  net.Conn
	state atomic.Int32

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// NewConn wraps an already-established net.Conn.
func NewConn(c net.Conn) *Conn {
	t := &Conn{conn: c}
	t.state.Store(int32(api.StateConnected))
	return t
}

func (t *Conn) Send(data []byte, timeout time.Duration) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if api.ConnectionState(t.state.Load()) != api.StateConnected {
		return api.ErrTransportClosed
	}
	if timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	_, err := t.conn.Write(data)
	return err
}

func (t *Conn) Receive(timeout time.Duration) ([]byte, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if api.ConnectionState(t.state.Load()) != api.StateConnected {
		return nil, api.ErrTransportClosed
	}
	if timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer t.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 64*1024)
	n, err := t.conn.Read(buf)
	if n > 0 {
		return buf[:n], err
	}
	return nil, err
}

func (t *Conn) State() api.ConnectionState {
	return api.ConnectionState(t.state.Load())
}

func (t *Conn) Disconnect(reason string) error {
	if !t.state.CompareAndSwap(int32(api.StateConnected), int32(api.StateDisconnecting)) {
		if api.ConnectionState(t.state.Load()) == api.StateDisconnected {
			return nil
		}
	}
	err := t.conn.Close()
	t.state.Store(int32(api.StateDisconnected))
	return err
}

// TCPDialer dials plain TCP endpoints.
type TCPDialer struct{}

func (TCPDialer) Dial(endpoint api.Endpoint, timeout time.Duration) (api.Transport, error) {
	if endpoint.Kind() != api.EndpointTCP {
		return nil, fmt.Errorf("transport: TCPDialer cannot dial %s endpoint", endpoint.Kind())
	}
	addr := fmt.Sprintf("%s:%d", endpoint.Host(), endpoint.Port())
	d := net.Dialer{Timeout: timeout}
	c, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewConn(c), nil
}

// TLSDialer dials TLS-wrapped TCP endpoints.
type TLSDialer struct{}

func (TLSDialer) Dial(endpoint api.Endpoint, timeout time.Duration) (api.Transport, error) {
	if endpoint.Kind() != api.EndpointTLS {
		return nil, fmt.Errorf("transport: TLSDialer cannot dial %s endpoint", endpoint.Kind())
	}
	addr := fmt.Sprintf("%s:%d", endpoint.Host(), endpoint.Port())
	cfg := &tls.Config{ServerName: endpoint.Host()}
	if tc := endpoint.TLS(); tc != nil {
		if tc.ServerName != "" {
			cfg.ServerName = tc.ServerName
		}
		cfg.InsecureSkipVerify = tc.InsecureSkipVerify
	}
	d := net.Dialer{Timeout: timeout}
	c, err := tls.DialWithDialer(&d, "tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: tls dial %s: %w", addr, err)
	}
	return NewConn(c), nil
}
