// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"strings"
	"testing"
)

func TestMessageAddHeaderCombinesRepeats(t *testing.T) {
	m := NewMessage(KindRequest)
	m.AddHeader("X-Forwarded-For", "10.0.0.1")
	m.AddHeader("x-forwarded-for", "10.0.0.2")
	if got := m.HeaderValue("X-Forwarded-For", ""); got != "10.0.0.1, 10.0.0.2" {
		t.Errorf("combined header = %q, want %q", got, "10.0.0.1, 10.0.0.2")
	}
}

func TestMessageAddHeaderMirrorsContentFields(t *testing.T) {
	m := NewMessage(KindResponse)
	m.AddHeader("Content-Type", "text/html; charset=utf-8")
	m.AddHeader("Content-Length", "42")

	if m.ContentType() != "text/html; charset=utf-8" {
		t.Errorf("ContentType() = %q", m.ContentType())
	}
	length, ok := m.ContentLength()
	if !ok || length != 42 {
		t.Errorf("ContentLength() = (%d, %v), want (42, true)", length, ok)
	}
}

func TestMessageHeaderUint64Default(t *testing.T) {
	m := NewMessage(KindRequest)
	if got := m.HeaderUint64("X-Retry-After", 7); got != 7 {
		t.Errorf("HeaderUint64 on a missing header = %d, want 7", got)
	}
	m.AddHeader("X-Retry-After", "not-a-number")
	if got := m.HeaderUint64("X-Retry-After", 7); got != 7 {
		t.Errorf("HeaderUint64 on a malformed header = %d, want 7", got)
	}
}

func TestOutgoingResponseSerialize(t *testing.T) {
	r := NewOutgoingResponse()
	r.AddHeader("Content-Type", "text/plain")
	r.AddHeader("Content-Length", "0")
	got := r.Serialize(StatusOK, "OK")
	want := "HTTP/1.1 200 OK\r\ncontent-length: 0\r\ncontent-type: text/plain\r\n\r\n"
	if got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestSerializeSimpleResponse(t *testing.T) {
	got := SerializeSimpleResponse(StatusNotFound, "Not Found", "text/plain", []byte("nope"))
	want := "HTTP/1.1 404 Not Found\r\nContent-Length: 4\r\nContent-Type: text/plain\r\n\r\nnope"
	if got != want {
		t.Errorf("SerializeSimpleResponse() = %q, want %q", got, want)
	}
}

func TestSerializeSimpleResponseNoContentType(t *testing.T) {
	got := SerializeSimpleResponse(StatusOK, "OK", "", []byte("hi"))
	if strings.Contains(got, "Content-Type") {
		t.Errorf("SerializeSimpleResponse() = %q, did not expect a Content-Type header", got)
	}
	if !strings.HasSuffix(got, "hi") {
		t.Errorf("SerializeSimpleResponse() = %q, want it to end with the body", got)
	}
}

func TestSerializeResponseWithHeadersIsSortedAndDeterministic(t *testing.T) {
	headers := map[string]string{
		"X-B-Header": "2",
		"X-A-Header": "1",
		"X-C-Header": "3",
	}
	first := SerializeResponseWithHeaders(StatusOK, "OK", headers, nil)
	second := SerializeResponseWithHeaders(StatusOK, "OK", headers, nil)
	if first != second {
		t.Fatalf("serialization is not deterministic:\n%q\n%q", first, second)
	}
	wantOrder := "HTTP/1.1 200 OK\r\nX-A-Header: 1\r\nX-B-Header: 2\r\nX-C-Header: 3\r\n\r\n"
	if first != wantOrder {
		t.Errorf("got %q, want %q", first, wantOrder)
	}
}

func TestIncomingRequestBasicAuth(t *testing.T) {
	req := NewIncomingRequest("GET", "/secret")
	req.AddHeader("Authorization", "Basic dXNlcjpwYXNz") // user:pass
	if !req.HasAuth() {
		t.Fatal("expected HasAuth to be true")
	}
	if req.AuthUsername() != "user" || req.AuthPassword() != "pass" {
		t.Errorf("got user=%q pass=%q, want user=%q pass=%q",
			req.AuthUsername(), req.AuthPassword(), "user", "pass")
	}
}

func TestIncomingRequestBasicAuthLowercaseHeader(t *testing.T) {
	req := NewIncomingRequest("GET", "/secret")
	req.AddHeader("authorization", "basic dXNlcjpwYXNz") // user:pass
	if !req.HasAuth() {
		t.Fatal("expected HasAuth to be true for a lowercase header name and scheme")
	}
	if req.AuthUsername() != "user" || req.AuthPassword() != "pass" {
		t.Errorf("got user=%q pass=%q, want user=%q pass=%q",
			req.AuthUsername(), req.AuthPassword(), "user", "pass")
	}
}

func TestIncomingRequestKeepAlive(t *testing.T) {
	req := NewIncomingRequest("GET", "/")
	if req.AllowsKeepAlive() {
		t.Fatal("expected no keep-alive by default")
	}
	req.AddHeader("Connection", "Keep-Alive")
	if !req.AllowsKeepAlive() {
		t.Fatal("expected keep-alive to be recognized case-insensitively")
	}
}

func TestIncomingRequestKeepAliveLowercaseHeaderName(t *testing.T) {
	req := NewIncomingRequest("GET", "/")
	req.AddHeader("connection", "keep-alive")
	if !req.AllowsKeepAlive() {
		t.Fatal("expected keep-alive to be recognized with a lowercase header name")
	}
}

func TestIncomingRequestURLPath(t *testing.T) {
	req := NewIncomingRequest("GET", "/search?q=golang&lang=en")
	if got := req.URLPath(); got != "/search" {
		t.Errorf("URLPath() = %q, want %q", got, "/search")
	}
	req2 := NewIncomingRequest("GET", "/search")
	if got := req2.URLPath(); got != "/search" {
		t.Errorf("URLPath() = %q, want %q", got, "/search")
	}
}
