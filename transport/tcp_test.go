// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package transport

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/momentics/nexuskit/api"
)

func TestConnSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	c := NewConn(client)
	if c.State() != api.StateConnected {
		t.Fatalf("want StateConnected got %v", c.State())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		server.Read(buf)
		if string(buf) != "hello" {
			t.Errorf("server got %q", buf)
		}
		server.Write([]byte("world"))
	}()

	if err := c.Send([]byte("hello"), time.Second); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := c.Receive(time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("got %q want world", got)
	}
	<-done
}

func TestConnDisconnectIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := NewConn(client)

	if err := c.Disconnect("done"); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := c.Disconnect("done again"); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if c.State() != api.StateDisconnected {
		t.Fatalf("want StateDisconnected got %v", c.State())
	}
}

func TestConnSendAfterDisconnectFails(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := NewConn(client)
	c.Disconnect("bye")

	if err := c.Send([]byte("x"), time.Second); err != api.ErrTransportClosed {
		t.Fatalf("want ErrTransportClosed got %v", err)
	}
	if _, err := c.Receive(time.Second); err != api.ErrTransportClosed {
		t.Fatalf("want ErrTransportClosed got %v", err)
	}
}

func TestTCPDialerRejectsWrongEndpointKind(t *testing.T) {
	ep := api.NewWebSocketEndpoint("wss://example.com/ws")
	var d TCPDialer
	if _, err := d.Dial(ep, time.Second); err == nil {
		t.Fatalf("expected error dialing non-TCP endpoint")
	}
}

func TestWriteRequestEmitsCanonicalHeaders(t *testing.T) {
	var buf strings.Builder
	err := WriteRequest(&buf, "GET", "/chat", "example.com", map[string]string{
		"Upgrade": "websocket",
	}, nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "GET /chat HTTP/1.1\r\n") {
		t.Fatalf("bad request line: %q", out)
	}
	if !strings.Contains(out, "host: example.com\r\n") {
		t.Fatalf("missing host header: %q", out)
	}
	if !strings.Contains(out, "user-agent: "+DefaultUserAgent+"\r\n") {
		t.Fatalf("missing default user-agent: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\n") {
		t.Fatalf("missing terminating blank line: %q", out)
	}
}

func TestReadChunkedBodyReassemblesChunks(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	got, err := ReadChunkedBody(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "Wikipedia" {
		t.Fatalf("got %q want Wikipedia", got)
	}
}
