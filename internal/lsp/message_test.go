package lsp

import (
	"strings"
	"testing"
)

func TestEncodeMessage(t *testing.T) {
	msg := EncodeMessage(map[string]string{"hello": "world"})
	want := "Content-Length: 17\r\n\r\n{\"hello\":\"world\"}"
	if msg != want {
		t.Errorf("expected %q, got %q", want, msg)
	}
}

func TestDecodeMessage(t *testing.T) {
	framed := EncodeMessage(Notification{RPC: RPC_VERSION, Method: "textDocument/didOpen"})
	method, contents, err := DecodeMessage([]byte(framed))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if method != "textDocument/didOpen" {
		t.Errorf("expected method, got %q", method)
	}
	if !strings.Contains(string(contents), `"jsonrpc":"2.0"`) {
		t.Errorf("contents lost: %s", contents)
	}
}

func TestDecodeMessageMissingSeparator(t *testing.T) {
	if _, _, err := DecodeMessage([]byte("Content-Length: 5")); err == nil {
		t.Error("expected an error without the header separator")
	}
}

func TestSplitWaitsForFullMessage(t *testing.T) {
	full := EncodeMessage(Notification{RPC: RPC_VERSION, Method: "exit"})

	advance, token, err := Split([]byte(full[:10]), false)
	if err != nil || advance != 0 || token != nil {
		t.Errorf("incomplete header must yield nothing")
	}

	advance, token, err = Split([]byte(full), false)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if advance != len(full) || string(token) != full {
		t.Errorf("expected the whole frame, got %d bytes", advance)
	}

	// two frames back to back: only the first is returned
	double := full + full
	advance, token, err = Split([]byte(double), false)
	if err != nil || advance != len(full) || string(token) != full {
		t.Errorf("expected exactly one frame")
	}
}
