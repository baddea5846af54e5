// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import "bytes"

// EnvelopeCallbacks receives events from an EnvelopeParser.
type EnvelopeCallbacks interface {
	// OnHeaderLine is called once a full "Key: Value" header has been
	// parsed, with any folded continuation lines already joined in.
	OnHeaderLine(key, value string)
}

// EnvelopeParser parses an RFC 822 envelope: zero or more "Key: Value"
// lines terminated by CRLF, followed by a blank CRLF line that ends the
// envelope. It is used both for top-level HTTP message headers and for
// MIME part headers inside a multipart body.
//
// The parser keeps only the bytes needed to recognize the next CRLF; it
// never buffers a whole message.
type EnvelopeParser struct {
	callbacks EnvelopeCallbacks
	inHeaders bool
	buf       []byte
	lastKey   string
	lastValue string
}

// NewEnvelopeParser creates a parser that reports completed header lines to cb.
func NewEnvelopeParser(cb EnvelopeCallbacks) *EnvelopeParser {
	return &EnvelopeParser{callbacks: cb, inHeaders: true}
}

// Reset makes the parser forget everything parsed so far, so it can be
// reused for another envelope.
func (p *EnvelopeParser) Reset() {
	p.inHeaders = true
	p.buf = p.buf[:0]
	p.lastKey = ""
	p.lastValue = ""
}

// InHeaders reports whether the parser is still expecting header bytes.
func (p *EnvelopeParser) InHeaders() bool {
	return p.inHeaders
}

// SetInHeaders overrides the InHeaders flag; used by MultipartParser to
// seed a part's EnvelopeParser into a known state.
func (p *EnvelopeParser) SetInHeaders(v bool) {
	p.inHeaders = v
}

// Parse feeds data into the parser, firing OnHeaderLine for each complete
// header line it recognizes. It returns the number of leading bytes of
// data that belong to the envelope; once the blank line ending the
// envelope is seen, InHeaders becomes false and any bytes past the
// returned count belong to whatever follows (the message body, or the
// next MIME part).
func (p *EnvelopeParser) Parse(data []byte) (int, Error) {
	if !p.inHeaders {
		return 0, ErrNone
	}

	searchStart := len(p.buf)
	if searchStart > 1 {
		searchStart--
	} else {
		searchStart = 0
	}
	p.buf = append(p.buf, data...)

	idx := indexCRLF(p.buf, searchStart)
	if idx < 0 {
		return len(data), ErrNone
	}

	last := 0
	for {
		if idx == last {
			p.notifyLast()
			p.inHeaders = false
			consumed := len(data) - (len(p.buf) - idx) + 2
			p.buf = p.buf[:0]
			return consumed, ErrNone
		}
		if err := p.parseLine(p.buf[last:idx]); err != ErrNone {
			p.inHeaders = false
			return 0, err
		}
		last = idx + 2
		idx = indexCRLF(p.buf, last)
		if idx < 0 {
			break
		}
	}
	p.buf = append(p.buf[:0], p.buf[last:]...)
	return len(data), ErrNone
}

// notifyLast flushes the cached key/value pair to the callback, if any key
// has been seen since the last flush.
func (p *EnvelopeParser) notifyLast() {
	if p.lastKey != "" {
		p.callbacks.OnHeaderLine(p.lastKey, p.lastValue)
		p.lastKey = ""
	}
	p.lastValue = ""
}

// parseLine parses a single header line, with no trailing CRLF.
func (p *EnvelopeParser) parseLine(line []byte) Error {
	if line[0] <= ' ' {
		// Continuation of the previous line's value (RFC 822 folding).
		if p.lastKey == "" {
			return ErrContinuationNoKey
		}
		p.lastValue += string(line)
		return ErrNone
	}

	p.notifyLast()
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return ErrNoColon
	}
	p.lastKey = string(line[:idx])
	if len(line) > idx+1 {
		p.lastValue = string(line[idx+2:])
	} else {
		p.lastValue = ""
	}
	return ErrNone
}

// indexCRLF finds the first "\r\n" in buf at or after start, returning -1
// if none is present.
func indexCRLF(buf []byte, start int) int {
	if start > len(buf) {
		return -1
	}
	idx := bytes.Index(buf[start:], []byte("\r\n"))
	if idx < 0 {
		return -1
	}
	return start + idx
}
