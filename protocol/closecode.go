// File: protocol/closecode.go
// Package protocol
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "encoding/binary"

// CloseCode enumerates the RFC 6455 §7.4 status codes this toolkit
// recognizes.
type CloseCode uint16

const (
	CloseNormal              CloseCode = 1000
	CloseGoingAway           CloseCode = 1001
	CloseProtocolError       CloseCode = 1002
	CloseUnsupportedData     CloseCode = 1003
	CloseNoStatusReceived    CloseCode = 1005
	CloseAbnormalClosure     CloseCode = 1006
	CloseInvalidFramePayload CloseCode = 1007
	ClosePolicyViolation     CloseCode = 1008
	CloseMessageTooBig       CloseCode = 1009
	CloseMandatoryExtension  CloseCode = 1010
	CloseInternalServerError CloseCode = 1011
	CloseTLSHandshake        CloseCode = 1015
)

// EncodeClosePayload builds a Close frame payload: 2-byte big-endian
// code followed by an optional UTF-8 reason.
func EncodeClosePayload(code CloseCode, reason string) []byte {
	buf := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(buf, uint16(code))
	copy(buf[2:], reason)
	return buf
}

// DecodeClosePayload parses a Close frame payload. An empty payload
// yields (CloseNoStatusReceived, "", nil).
func DecodeClosePayload(payload []byte) (CloseCode, string, error) {
	if len(payload) == 0 {
		return CloseNoStatusReceived, "", nil
	}
	if len(payload) < 2 {
		return 0, "", ErrInvalidCloseCode
	}
	code := CloseCode(binary.BigEndian.Uint16(payload))
	return code, string(payload[2:]), nil
}
