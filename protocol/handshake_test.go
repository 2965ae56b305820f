// Copyright momentics <momentics@gmail.com>
// Licensed under the Apache License, Version 2.0.

package protocol

import "testing"

func TestAcceptKeyRFC6455Example(t *testing.T) {
	got := AcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBuildClientRequestSetsHeaders(t *testing.T) {
	cr, err := BuildClientRequest("ws://example.com/chat", []string{"chat"}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cr.Request.Header.Get(headerUpgrade) != "websocket" {
		t.Fatalf("missing Upgrade header")
	}
	if cr.Request.Header.Get(headerSecWebSocketVer) != "13" {
		t.Fatalf("missing version header")
	}
	if cr.ExpectedAccept != AcceptKey(cr.Key) {
		t.Fatalf("expected accept mismatch")
	}
}
