// File: connection/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package connection

import (
	"sync/atomic"

	"github.com/momentics/nexuskit/api"
)

// Handle is a weak reference to a Shell that protocol adapters hold
// instead of owning the connection. After Invalidate, IsConnected
// reports false and Send fails with ErrConnectionClosed; no cyclic
// ownership arises.
type Handle struct {
	shell atomic.Pointer[Shell]
}

// NewHandle returns a live handle onto s.
func (s *Shell) NewHandle() *Handle {
	h := &Handle{}
	h.shell.Store(s)
	return h
}

// Invalidate severs the handle from its shell.
func (h *Handle) Invalidate() {
	h.shell.Store(nil)
}

// IsConnected reports whether the handle is live and its connection
// is currently in the Connected state.
func (h *Handle) IsConnected() bool {
	s := h.shell.Load()
	if s == nil {
		return false
	}
	return s.State() == api.StateConnected
}

// Send forwards to the shell's full outgoing path, or fails with
// ErrConnectionClosed once invalidated.
func (h *Handle) Send(data []byte) error {
	s := h.shell.Load()
	if s == nil {
		return api.ErrConnectionClosed
	}
	return s.Send(data)
}

// ID returns the underlying connection id, or "" once invalidated.
func (h *Handle) ID() string {
	s := h.shell.Load()
	if s == nil {
		return ""
	}
	return s.ID()
}
