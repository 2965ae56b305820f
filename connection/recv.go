// File: connection/recv.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The per-connection receive loop: raw transport chunks are buffered,
// decoded into frames (WebSocket endpoints), assembled into messages
// and pushed through the incoming pipeline and response interceptors.

package connection

import (
	"errors"

	"github.com/momentics/nexuskit/api"
	"github.com/momentics/nexuskit/classify"
	"github.com/momentics/nexuskit/middleware"
	"github.com/momentics/nexuskit/protocol"
)

// recvLoop continuously receives transport chunks until the close
// channel fires or the transport fails. leftover carries bytes read
// past the handshake response.
func (s *Shell) recvLoop(t api.Transport, closeCh chan struct{}, leftover []byte) {
	var buf []byte
	if len(leftover) > 0 {
		buf = append(buf, leftover...)
		if s.endpoint.Kind() == api.EndpointWebSocket {
			var ok bool
			buf, ok = s.drainFrames(buf)
			if !ok {
				return
			}
		}
	}
	for {
		select {
		case <-closeCh:
			return
		default:
		}
		chunk, err := t.Receive(0)
		if err != nil {
			select {
			case <-closeCh:
				// Teardown already in progress; the transport error is
				// just the read unblocking.
				return
			default:
			}
			s.handleReadError(err)
			return
		}
		if s.endpoint.Kind() != api.EndpointWebSocket {
			s.deliver(chunk, protocol.MessageBinary)
			continue
		}
		buf = append(buf, chunk...)
		var ok bool
		buf, ok = s.drainFrames(buf)
		if !ok {
			return
		}
	}
}

// drainFrames decodes as many complete frames as buf holds and
// returns the undecoded tail. ok is false when the connection was
// torn down by a frame-level failure.
func (s *Shell) drainFrames(buf []byte) ([]byte, bool) {
	for len(buf) > 0 {
		frame, consumed, err := protocol.Decode(buf)
		if errors.Is(err, protocol.ErrIncompleteFrame) {
			return buf, true
		}
		if err != nil {
			cls := s.reportError(err)
			s.closeWithCode(closeCodeFor(err, cls), "invalid frame")
			return nil, false
		}
		buf = buf[consumed:]
		if !s.handleFrame(frame) {
			return nil, false
		}
	}
	return buf, true
}

// handleFrame routes one decoded frame. Returns false when the
// connection was closed as a result.
func (s *Shell) handleFrame(f *protocol.Frame) bool {
	switch f.Opcode {
	case protocol.OpcodePing:
		// Echo the payload back per RFC 6455 §5.5.3.
		if err := s.sendControl(protocol.OpcodePong, f.Payload); err != nil {
			s.log.Warn().Err(err).Str("connection_id", s.id).Msg("pong send failed")
		}
		return true
	case protocol.OpcodePong:
		s.mu.Lock()
		hb := s.hb
		s.mu.Unlock()
		if hb != nil {
			hb.RecordResponse()
		}
		return true
	case protocol.OpcodeClose:
		code, reason, err := protocol.DecodeClosePayload(f.Payload)
		if err != nil {
			code, reason = protocol.CloseProtocolError, "malformed close payload"
		}
		s.log.Info().Uint16("code", uint16(code)).Str("reason", reason).
			Str("connection_id", s.id).Msg("close frame received")
		_ = s.disconnect(code, reason, true)
		return false
	}

	s.mu.Lock()
	asm := s.assembler
	s.mu.Unlock()
	if asm == nil {
		return false
	}
	msg, _, err := asm.ProcessFrame(f)
	if err != nil {
		cls := s.reportError(err)
		s.closeWithCode(closeCodeFor(err, cls), "message assembly failed")
		return false
	}
	if msg != nil {
		s.deliver(msg.Data, msg.Type)
	}
	return true
}

// deliver pushes a complete inbound message through the incoming
// pipeline (descending priority) and the response interceptors, then
// hands it to the application.
func (s *Shell) deliver(data []byte, msgType protocol.MessageType) {
	ctx := middleware.NewContext(s.id, s.endpoint.String())
	out, err := s.pipeline.Incoming(data, ctx)
	if err != nil {
		s.reportError(err)
		return
	}
	out, err = s.chain.Response(out, ctx)
	if err != nil {
		s.reportError(err)
		return
	}
	if s.hooks.OnMessage != nil {
		s.hooks.OnMessage(&protocol.Message{Type: msgType, Data: out})
	}
}

// handleReadError reacts to a transport receive failure: classify,
// surface, and either reconnect or tear down.
func (s *Shell) handleReadError(err error) {
	if errors.Is(err, api.ErrTransportClosed) {
		_ = s.disconnect(protocol.CloseAbnormalClosure, "transport closed", false)
		return
	}
	cls := s.reportError(err)
	if s.monitor != nil {
		_ = s.monitor.RecordFailure(err)
	}
	if cls.Recoverability == classify.Fatal {
		s.closeWithCode(closeCodeFor(err, cls), "fatal transport error")
		return
	}
	_ = s.disconnect(protocol.CloseAbnormalClosure, "transport error", false)
	if cls.ShouldRetry && s.reconnectEnabled() {
		go s.reconnect()
	}
}
