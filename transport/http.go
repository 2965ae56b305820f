// File: transport/http.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal HTTP/1.1 request-line/header emission and chunked-body
// parsing, scoped exactly to what the WebSocket handshake needs
// — the full HTTP/1.1 codec is out of scope.

package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const DefaultUserAgent = "NexusKit/1.0"

// WriteRequest serializes an HTTP/1.1 request line and headers to w,
// using lower-cased canonical header keys internally and a stable
// emission order. Host and User-Agent are set automatically if not
// already present in headers; Content-Length is always set from the
// body length when body is non-empty, replacing any supplied value.
func WriteRequest(w io.Writer, method, path, host string, headers map[string]string, body []byte) error {
	hdr := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		hdr[strings.ToLower(k)] = v
	}
	if _, ok := hdr["host"]; !ok {
		hdr["host"] = host
	}
	if _, ok := hdr["user-agent"]; !ok {
		hdr["user-agent"] = DefaultUserAgent
	}
	if len(body) > 0 {
		hdr["content-length"] = strconv.Itoa(len(body))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", method, path)

	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, hdr[k])
	}
	buf.WriteString("\r\n")
	if len(body) > 0 {
		buf.Write(body)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadChunkedBody reads an HTTP/1.1 chunked transfer-encoded body from
// r: a sequence of (hex chunk size, CRLF, chunk bytes, CRLF), ending at
// a zero-size chunk followed by CRLF.
func ReadChunkedBody(r *bufio.Reader) ([]byte, error) {
	var out bytes.Buffer
	for {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("transport: read chunk size: %w", err)
		}
		sizeLine = strings.TrimRight(sizeLine, "\r\n")
		if semi := strings.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid chunk size %q: %w", sizeLine, err)
		}
		if size == 0 {
			// consume trailing CRLF after the terminating chunk.
			if _, err := r.ReadString('\n'); err != nil && err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, fmt.Errorf("transport: read chunk body: %w", err)
		}
		out.Write(chunk)
		// consume the CRLF following each chunk.
		if _, err := io.ReadFull(r, make([]byte, 2)); err != nil {
			return nil, fmt.Errorf("transport: read chunk trailer: %w", err)
		}
	}
}
