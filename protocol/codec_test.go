// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestEncodeSingleByteUnmasked(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpcodeText, Payload: []byte{0x41}}
	out, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x81, 0x01, 0x41}
	if !bytes.Equal(out, want) {
		t.Fatalf("got % x want % x", out, want)
	}

	decoded, n, err := Decode(out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != 3 {
		t.Fatalf("consumed %d want 3", n)
	}
	if decoded.Opcode != OpcodeText || !decoded.Fin || !bytes.Equal(decoded.Payload, f.Payload) {
		t.Fatalf("roundtrip mismatch: %+v", decoded)
	}
}

func TestEncodeMaskedHello(t *testing.T) {
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	f := &Frame{Fin: true, Opcode: OpcodeText, Masked: true, Payload: []byte("Hello")}
	out, err := EncodeWithMaskKey(f, key)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wantHeader := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d}
	if !bytes.Equal(out[:6], wantHeader) {
		t.Fatalf("header got % x want % x", out[:6], wantHeader)
	}
	wantPayload := []byte{0x7f, 0x9f, 0x4d, 0x51, 0x58}
	if !bytes.Equal(out[6:], wantPayload) {
		t.Fatalf("masked payload got % x want % x", out[6:], wantPayload)
	}
}

func TestDecodeIncompleteFrame(t *testing.T) {
	_, _, err := Decode([]byte{0x81})
	if err != ErrIncompleteFrame {
		t.Fatalf("want ErrIncompleteFrame got %v", err)
	}
}

func TestDecodeInvalidOpcode(t *testing.T) {
	_, _, err := Decode([]byte{0x83, 0x00})
	if err != ErrInvalidOpcode {
		t.Fatalf("want ErrInvalidOpcode got %v", err)
	}
}

func TestDecodeControlFrameTooLarge(t *testing.T) {
	payload := make([]byte, 126)
	f := &Frame{Fin: true, Opcode: OpcodePing, Payload: payload}
	// Build header manually: control frame with 126-length marker is
	// itself invalid (>125), exercised via raw bytes rather than Encode
	// (which would reject it first).
	raw := make([]byte, 2+2+len(payload))
	raw[0] = 0x80 | byte(f.Opcode)
	raw[1] = 126
	raw[2] = 0
	raw[3] = 126
	copy(raw[4:], payload)
	_, _, err := Decode(raw)
	if err != ErrControlFrameTooLarge {
		t.Fatalf("want ErrControlFrameTooLarge got %v", err)
	}
}

func TestDecodeFragmentedControlFrame(t *testing.T) {
	raw := []byte{0x09, 0x00} // fin=0, opcode=ping, no payload
	_, _, err := Decode(raw)
	if err != ErrFragmentedControlFrame {
		t.Fatalf("want ErrFragmentedControlFrame got %v", err)
	}
}

func TestRoundTripRandomFrames(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	opcodes := []Opcode{OpcodeText, OpcodeBinary, OpcodeContinuation}
	for i := 0; i < 200; i++ {
		n := r.Intn(70000)
		payload := make([]byte, n)
		r.Read(payload)
		f := &Frame{
			Fin:     r.Intn(2) == 0,
			Opcode:  opcodes[r.Intn(len(opcodes))],
			Masked:  r.Intn(2) == 0,
			Payload: payload,
		}
		var key [4]byte
		r.Read(key[:])
		out, err := EncodeWithMaskKey(f, key)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, consumed, err := Decode(out)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if consumed != len(out) {
			t.Fatalf("consumed %d want %d", consumed, len(out))
		}
		if decoded.Fin != f.Fin || decoded.Opcode != f.Opcode || decoded.Masked != f.Masked {
			t.Fatalf("header mismatch: %+v vs %+v", decoded, f)
		}
		if !bytes.Equal(decoded.Payload, f.Payload) {
			t.Fatalf("payload mismatch on iter %d", i)
		}
	}
}
