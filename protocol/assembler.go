// File: protocol/assembler.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// MessageAssembler combines fragmented frames into complete text/binary
// messages, applying the control-frame interleaving rules of RFC 6455.

package protocol

import (
	"errors"
	"unicode/utf8"
)

// MessageType tags an assembled WebSocketMessage.
type MessageType int

const (
	MessageText MessageType = iota
	MessageBinary
)

// Message is a complete, assembled application message.
type Message struct {
	Type       MessageType
	Data       []byte
	Compressed bool
}

// ControlMessage is emitted for Close/Ping/Pong frames that pass
// through the assembler without disturbing an in-progress fragmented
// data message.
type ControlMessage struct {
	Opcode  Opcode
	Payload []byte
}

var (
	ErrUnexpectedDataFrame       = errors.New("websocket: data frame received mid-fragmented-message")
	ErrUnexpectedContinuationFrame = errors.New("websocket: continuation frame received with no message in progress")
)

// Assembler holds the in-progress fragmented message state for a
// single connection. Zero value is ready to use.
type Assembler struct {
	currentType MessageType
	inProgress  bool
	fragments   [][]byte
	size        int
	compressed  bool
}

// NewAssembler constructs a fresh Assembler. A connection creates one
// on entering Connected and resets it on Disconnected.
func NewAssembler() *Assembler { return &Assembler{} }

// ProcessFrame feeds a single decoded frame through the assembler
// state machine. It returns at most one of (message,
// control); both are nil when the frame is an intermediate fragment.
func (a *Assembler) ProcessFrame(f *Frame) (*Message, *ControlMessage, error) {
	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, nil, ErrFragmentedControlFrame
		}
		switch f.Opcode {
		case OpcodeClose:
			return nil, &ControlMessage{Opcode: OpcodeClose, Payload: f.Payload}, nil
		case OpcodePing, OpcodePong:
			return nil, &ControlMessage{Opcode: f.Opcode, Payload: f.Payload}, nil
		}
		return nil, nil, nil
	}

	switch f.Opcode {
	case OpcodeText, OpcodeBinary:
		if a.inProgress {
			return nil, nil, ErrUnexpectedDataFrame
		}
		a.currentType = MessageType(0)
		if f.Opcode == OpcodeBinary {
			a.currentType = MessageBinary
		}
		a.compressed = f.Rsv1
		if f.Fin {
			msg, err := a.complete(f.Payload)
			return msg, nil, err
		}
		a.inProgress = true
		a.appendFragment(f.Payload)
		return nil, nil, nil

	case OpcodeContinuation:
		if !a.inProgress {
			return nil, nil, ErrUnexpectedContinuationFrame
		}
		if f.Fin {
			a.appendFragment(f.Payload)
			msg, err := a.finish()
			return msg, nil, err
		}
		a.appendFragment(f.Payload)
		return nil, nil, nil

	default:
		return nil, nil, ErrInvalidOpcode
	}
}

func (a *Assembler) appendFragment(p []byte) {
	if len(p) == 0 {
		return
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	a.fragments = append(a.fragments, buf)
	a.size += len(buf)
}

// complete handles a single-frame (fin=true on the first frame) message.
func (a *Assembler) complete(payload []byte) (*Message, error) {
	data := make([]byte, len(payload))
	copy(data, payload)
	msg, err := a.buildMessage(data)
	a.Reset()
	return msg, err
}

// finish concatenates accumulated fragments into the final message.
func (a *Assembler) finish() (*Message, error) {
	data := make([]byte, 0, a.size)
	for _, frag := range a.fragments {
		data = append(data, frag...)
	}
	msg, err := a.buildMessage(data)
	a.Reset()
	return msg, err
}

func (a *Assembler) buildMessage(data []byte) (*Message, error) {
	if a.currentType == MessageText && !utf8.Valid(data) {
		return nil, ErrInvalidUTF8Text
	}
	return &Message{Type: a.currentType, Data: data, Compressed: a.compressed}, nil
}

// Reset clears in-progress fragmentation state.
func (a *Assembler) Reset() {
	a.inProgress = false
	a.fragments = nil
	a.size = 0
	a.compressed = false
}
