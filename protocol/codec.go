// File: protocol/codec.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bit-exact RFC 6455 frame encode/decode. Masked client-to-server
// frames always draw their mask key from crypto/rand;
// EncodeWithMaskKey exists for deterministic tests only.

package protocol

import (
	"crypto/rand"
	"encoding/binary"
)

// Decode parses a single WebSocket frame out of raw. It returns the
// decoded frame and the number of bytes consumed from raw. If raw
// does not yet contain a complete frame, it returns
// (nil, 0, ErrIncompleteFrame) and the caller must read more bytes and
// retry from the start of raw — no partial consumption is implied.
func Decode(raw []byte) (*Frame, int, error) {
	if len(raw) < 2 {
		return nil, 0, ErrIncompleteFrame
	}

	b0, b1 := raw[0], raw[1]
	f := &Frame{
		Fin:    b0&0x80 != 0,
		Rsv1:   b0&0x40 != 0,
		Rsv2:   b0&0x20 != 0,
		Rsv3:   b0&0x10 != 0,
		Opcode: Opcode(b0 & 0x0F),
		Masked: b1&0x80 != 0,
	}
	if !f.Opcode.valid() {
		return nil, 0, ErrInvalidOpcode
	}

	length := int64(b1 & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, ErrIncompleteFrame
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, ErrIncompleteFrame
		}
		length = int64(binary.BigEndian.Uint64(raw[offset:]))
		offset += 8
	}

	if length > MaxFramePayload {
		return nil, 0, ErrFrameTooLarge
	}
	if f.Opcode.IsControl() && (!f.Fin || length > MaxControlPayload) {
		if !f.Fin {
			return nil, 0, ErrFragmentedControlFrame
		}
		return nil, 0, ErrControlFrameTooLarge
	}

	if f.Masked {
		if len(raw) < offset+4 {
			return nil, 0, ErrIncompleteFrame
		}
		copy(f.MaskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return nil, 0, ErrIncompleteFrame
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	if f.Masked {
		unmask(payload, f.MaskKey)
	}
	f.Payload = payload

	return f, total, nil
}

// Encode serializes f to a freshly allocated byte slice per RFC 6455
// §5.2. If f.Masked, a fresh cryptographically random mask key is
// generated and f.MaskKey is updated to record it.
func Encode(f *Frame) ([]byte, error) {
	if err := validateFrame(f); err != nil {
		return nil, err
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}

	if f.Masked {
		if _, err := rand.Read(f.MaskKey[:]); err != nil {
			return nil, err
		}
	}
	return encodeWithKey(f, f.MaskKey), nil
}

// EncodeWithMaskKey serializes f using a caller-supplied mask key,
// useful for deterministic tests.
func EncodeWithMaskKey(f *Frame, key [4]byte) ([]byte, error) {
	if err := validateFrame(f); err != nil {
		return nil, err
	}
	if len(f.Payload) > MaxFramePayload {
		return nil, ErrFrameTooLarge
	}
	return encodeWithKey(f, key), nil
}

func encodeWithKey(f *Frame, key [4]byte) []byte {
	plen := len(f.Payload)

	var b0 byte
	if f.Fin {
		b0 |= 0x80
	}
	if f.Rsv1 {
		b0 |= 0x40
	}
	if f.Rsv2 {
		b0 |= 0x20
	}
	if f.Rsv3 {
		b0 |= 0x10
	}
	b0 |= byte(f.Opcode) & 0x0F

	var maskBit byte
	if f.Masked {
		maskBit = 0x80
	}

	var hdr [10]byte
	var header []byte
	switch {
	case plen <= 125:
		header = hdr[:2]
		header[0] = b0
		header[1] = byte(plen) | maskBit
	case plen <= 0xFFFF:
		header = hdr[:4]
		header[0] = b0
		header[1] = 126 | maskBit
		binary.BigEndian.PutUint16(header[2:], uint16(plen))
	default:
		header = hdr[:10]
		header[0] = b0
		header[1] = 127 | maskBit
		binary.BigEndian.PutUint64(header[2:], uint64(plen))
	}

	out := make([]byte, 0, len(header)+4+plen)
	out = append(out, header...)
	if f.Masked {
		out = append(out, key[:]...)
		start := len(out)
		out = append(out, f.Payload...)
		unmask(out[start:], key)
	} else {
		out = append(out, f.Payload...)
	}
	return out
}

func unmask(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i%4]
	}
}
