// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"bytes"
	"strings"
)

// MultipartCallbacks receives events from a MultipartParser as it parses a
// multipart/* MIME body, one part at a time.
type MultipartCallbacks interface {
	// OnPartStart is called when a new part begins.
	OnPartStart()
	// OnPartHeader is called for each header line of the current part.
	OnPartHeader(key, value string)
	// OnPartData is called with a chunk of the current part's body.
	OnPartData(data []byte)
	// OnPartEnd is called when the current part ends.
	OnPartEnd()
}

// MultipartParser is a SAX-like parser for multipart/* MIME bodies: it
// extracts the boundary from the Content-Type header passed to its
// constructor, then splits the incoming byte stream into parts, each with
// its own header envelope and body, reported through MultipartCallbacks.
//
// It retains only the boundary.size()+8 most recent unmatched bytes plus
// whatever precedes the next recognized boundary line, so it never needs
// the whole body in memory.
type MultipartParser struct {
	callbacks      MultipartCallbacks
	isValid        bool
	envelopeParser *EnvelopeParser
	buf            []byte
	boundary       []byte
}

// NewMultipartParser creates a parser for a body whose boundary is found in
// contentType (a full "multipart/...; boundary=...; ..." Content-Type
// header value). If contentType is not a well-formed multipart content
// type with a boundary parameter, the returned parser discards all input.
func NewMultipartParser(contentType string, cb MultipartCallbacks) *MultipartParser {
	p := &MultipartParser{callbacks: cb, isValid: true}
	p.envelopeParser = NewEnvelopeParser(p)

	if !strings.HasPrefix(contentType, "multipart/") {
		p.isValid = false
		return p
	}
	idxSC := strings.IndexByte(contentType[10:], ';')
	if idxSC < 0 {
		p.isValid = false
		return p
	}
	idxSC += 10
	params := NewNameValueParser()
	params.Parse([]byte(contentType[idxSC+1:]))
	params.Finish()
	if !params.IsValid() {
		p.isValid = false
		return p
	}
	boundary := params.Values()["boundary"]
	if boundary == "" {
		p.isValid = false
		return p
	}
	p.boundary = []byte(boundary)

	// The body is parsed as if it were a part's envelope+data stream from
	// the start, so feed it through the same machinery: pretend we are
	// already past the (nonexistent) top-level headers, and prime the
	// buffer with a CRLF so a body that starts right at the boundary is
	// still recognized as "\r\n--boundary".
	p.envelopeParser.SetInHeaders(false)
	p.buf = append(p.buf, '\r', '\n')
	return p
}

// IsValid reports whether the content type and the data parsed so far are
// well-formed. Once it turns false, no further callbacks are made.
func (p *MultipartParser) IsValid() bool {
	return p.isValid
}

// Parse feeds more data into the parser.
func (p *MultipartParser) Parse(data []byte) {
	if !p.isValid {
		return
	}
	p.buf = append(p.buf, data...)

	for {
		if p.envelopeParser.InHeaders() {
			consumed, err := p.envelopeParser.Parse(p.buf)
			if err != ErrNone {
				p.isValid = false
				return
			}
			p.buf = append(p.buf[:0], p.buf[consumed:]...)
			if p.envelopeParser.InHeaders() {
				return
			}
		}

		idxBoundary := bytes.Index(p.buf, []byte("\r\n--"))
		if idxBoundary < 0 {
			p.flushNonBoundaryPrefix()
			return
		}
		if idxBoundary > 0 {
			p.callbacks.OnPartData(p.buf[:idxBoundary])
			p.buf = append(p.buf[:0], p.buf[idxBoundary:]...)
		}

		const start = 4 // past the leading "\r\n--"
		lineEnd := indexCRLF(p.buf, start)
		if lineEnd < 0 {
			p.flushNonBoundaryPrefix()
			return
		}

		lineLen := lineEnd - start
		isCandidate := lineLen == len(p.boundary) || lineLen == len(p.boundary)+2
		if isCandidate && bytes.Equal(p.buf[start:start+len(p.boundary)], p.boundary) {
			p.callbacks.OnPartEnd()
			idxSlash := start + len(p.boundary)
			if p.buf[idxSlash] == '-' && p.buf[idxSlash+1] == '-' {
				// The closing delimiter: whatever follows is epilogue, not
				// part of any part, but still reported so no bytes vanish.
				p.callbacks.OnPartData(p.buf[idxSlash+4:])
				p.buf = p.buf[:0]
				return
			}
			p.callbacks.OnPartStart()
			p.buf = append(p.buf[:0], p.buf[lineEnd+2:]...)
			p.envelopeParser.Reset()
			continue
		}

		// A line, but not a boundary; a boundary can never span multiple
		// lines, so the whole line is safe to report as data.
		p.callbacks.OnPartData(p.buf[:lineEnd])
		p.buf = append(p.buf[:0], p.buf[lineEnd:]...)
	}
}

// flushNonBoundaryPrefix reports and discards as much of the buffer as
// cannot possibly be the start of a boundary line, keeping only the margin
// (boundary length plus 8) that might still turn out to be one once more
// data arrives.
func (p *MultipartParser) flushNonBoundaryPrefix() {
	margin := len(p.boundary) + 8
	if len(p.buf) > margin {
		toReport := len(p.buf) - margin
		p.callbacks.OnPartData(p.buf[:toReport])
		p.buf = append(p.buf[:0], p.buf[toReport:]...)
	}
}

// OnHeaderLine implements EnvelopeCallbacks, forwarding a part's header
// lines to the multipart callbacks.
func (p *MultipartParser) OnHeaderLine(key, value string) {
	p.callbacks.OnPartHeader(key, value)
}
