// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HTTP status constants for the handful of statuses this package's
// serializers need by name; callers are free to pass any other code as a
// plain int.
const (
	StatusOK         = 200
	StatusBadRequest = 400
	StatusNotFound   = 404
)

// MessageKind distinguishes a request from a response.
type MessageKind uint8

const (
	KindRequest MessageKind = iota
	KindResponse
)

// Message is the base storage for an HTTP request or response's headers.
// Header keys are stored lowercased; adding the same key twice concatenates
// the values with ", " per RFC 2616 §4.2, rather than overwriting.
type Message struct {
	kind             MessageKind
	headers          map[string]string
	contentType      string
	contentLength    uint64
	hasContentLength bool
}

// NewMessage creates an empty message of the given kind.
func NewMessage(kind MessageKind) *Message {
	return &Message{kind: kind, headers: make(map[string]string)}
}

// Kind reports whether this is a request or a response.
func (m *Message) Kind() MessageKind {
	return m.kind
}

// AddHeader adds a header, lowercasing its key and combining it with any
// existing value for the same key. Content-Type and Content-Length are
// additionally mirrored into dedicated fields.
func (m *Message) AddHeader(key, value string) {
	lower := string(ToLower([]byte(key)))
	if existing, ok := m.headers[lower]; ok {
		m.headers[lower] = existing + ", " + value
	} else {
		m.headers[lower] = value
	}

	switch lower {
	case "content-type":
		m.contentType = m.headers[lower]
	case "content-length":
		v, ok := ParseUint64([]byte(m.headers[lower]))
		if !ok {
			v = 0
		}
		m.contentLength = v
		m.hasContentLength = true
	}
}

// Headers returns the full header map, with lowercased keys.
func (m *Message) Headers() map[string]string {
	return m.headers
}

// HeaderValue returns the value of the (case-insensitively matched) header
// key, or def if it is absent.
func (m *Message) HeaderValue(key, def string) string {
	if v, ok := m.headers[string(ToLower([]byte(key)))]; ok {
		return v
	}
	return def
}

// HeaderUint64 parses the named header as an unsigned decimal integer,
// returning def if the header is absent or does not parse.
func (m *Message) HeaderUint64(key string, def uint64) uint64 {
	v := m.HeaderValue(key, "")
	if v == "" {
		return def
	}
	n, ok := ParseUint64([]byte(v))
	if !ok {
		return def
	}
	return n
}

// SetContentType sets both the Content-Type header and the dedicated field.
func (m *Message) SetContentType(contentType string) {
	m.headers["content-type"] = contentType
	m.contentType = contentType
}

// SetContentLength sets both the Content-Length header and the dedicated field.
func (m *Message) SetContentLength(contentLength uint64) {
	m.headers["content-length"] = strconv.FormatUint(contentLength, 10)
	m.contentLength = contentLength
	m.hasContentLength = true
}

// ContentType returns the message's Content-Type, if any header set one.
func (m *Message) ContentType() string {
	return m.contentType
}

// ContentLength returns the message's Content-Length and whether one has
// been set, either by a header or by SetContentLength.
func (m *Message) ContentLength() (uint64, bool) {
	return m.contentLength, m.hasContentLength
}

// sortedHeaderKeys returns the message's header keys in sorted order, so
// serialized output is deterministic (Go map iteration order is not).
func sortedHeaderKeys(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

////////////////////////////////////////////////////////////////////////////
// OutgoingResponse

// OutgoingResponse stores outgoing response headers and serializes them to
// an HTTP data stream; the caller is responsible for streaming the body
// itself afterwards.
type OutgoingResponse struct {
	*Message
}

// NewOutgoingResponse creates an empty outgoing response.
func NewOutgoingResponse() *OutgoingResponse {
	return &OutgoingResponse{Message: NewMessage(KindResponse)}
}

// Serialize returns the status line and all headers, terminated by the
// blank line that ends an HTTP message's headers.
func (r *OutgoingResponse) Serialize(statusCode int, statusText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", statusCode, statusText)
	for _, k := range sortedHeaderKeys(r.headers) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, r.headers[k])
	}
	b.WriteString("\r\n")
	return b.String()
}

////////////////////////////////////////////////////////////////////////////
// SimpleOutgoingResponse

// SerializeSimpleResponse builds a complete response (status line, headers,
// body) for a short, fully-buffered body. If contentType is empty, no
// Content-Type header is added — only Content-Length.
func SerializeSimpleResponse(statusCode int, statusText, contentType string, body []byte) string {
	headers := make(map[string]string, 2)
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	headers["Content-Length"] = strconv.Itoa(len(body))
	return SerializeResponseWithHeaders(statusCode, statusText, headers, body)
}

// SerializeResponseWithHeaders builds a complete response from an explicit
// header set and body.
func SerializeResponseWithHeaders(statusCode int, statusText string, headers map[string]string, body []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", statusCode, statusText)
	for _, k := range sortedHeaderKeys(headers) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.Write(body)
	return b.String()
}

////////////////////////////////////////////////////////////////////////////
// IncomingRequest

// IncomingRequest stores an incoming HTTP request's method, URL, headers
// and the auth/keep-alive information AddHeader extracts from them.
//
// Go has no virtual dispatch: callers building an IncomingRequest must call
// its AddHeader directly (not through the embedded *Message) to get the
// auth/keep-alive extraction below.
type IncomingRequest struct {
	*Message
	method         string
	url            string
	hasAuth        bool
	authUsername   string
	authPassword   string
	allowKeepAlive bool
	userData       interface{}
}

// NewIncomingRequest creates a request with the given method and URL, and
// no headers yet.
func NewIncomingRequest(method, url string) *IncomingRequest {
	return &IncomingRequest{Message: NewMessage(KindRequest), method: method, url: url}
}

// Method returns the request's method (GET, POST, ...).
func (r *IncomingRequest) Method() string {
	return r.method
}

// URL returns the full request URL, including anything after '?'.
func (r *IncomingRequest) URL() string {
	return r.url
}

// URLPath returns the URL with any '?'-delimited query string removed.
func (r *IncomingRequest) URLPath() string {
	if idx := strings.IndexByte(r.url, '?'); idx >= 0 {
		return r.url[:idx]
	}
	return r.url
}

// HasAuth reports whether a decodable Basic auth header was present.
func (r *IncomingRequest) HasAuth() bool {
	return r.hasAuth
}

// AuthUsername returns the username presented via Basic auth. Only
// meaningful if HasAuth is true.
func (r *IncomingRequest) AuthUsername() string {
	return r.authUsername
}

// AuthPassword returns the password presented via Basic auth. Only
// meaningful if HasAuth is true.
func (r *IncomingRequest) AuthPassword() string {
	return r.authPassword
}

// AllowsKeepAlive reports whether the request asked for a keep-alive connection.
func (r *IncomingRequest) AllowsKeepAlive() bool {
	return r.allowKeepAlive
}

// SetUserData attaches arbitrary caller data to the request.
func (r *IncomingRequest) SetUserData(v interface{}) {
	r.userData = v
}

// UserData returns whatever was attached via SetUserData.
func (r *IncomingRequest) UserData() interface{} {
	return r.userData
}

// AddHeader adds a header, additionally recognizing Authorization: Basic
// and Connection: keep-alive before delegating to Message.AddHeader.
func (r *IncomingRequest) AddHeader(key, value string) {
	if EqualFold([]byte(key), []byte("authorization")) && HasPrefixFold([]byte(value), []byte("basic ")) {
		decoded := Base64Decode([]byte(value[len("Basic "):]))
		if idx := bytes.IndexByte(decoded, ':'); idx >= 0 {
			r.authUsername = string(decoded[:idx])
			r.authPassword = string(decoded[idx+1:])
			r.hasAuth = true
		}
	}
	if EqualFold([]byte(key), []byte("connection")) && EqualFold([]byte(value), []byte("keep-alive")) {
		r.allowKeepAlive = true
	}
	r.Message.AddHeader(key, value)
}
