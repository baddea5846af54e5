// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import "fmt"

// MessageCallbacks receives events from a MessageParser as it parses one
// HTTP request or response.
type MessageCallbacks interface {
	// OnError is called when parsing fails.
	OnError(description string)
	// OnFirstLine is called once the request/status line has been fully
	// parsed. Its validity is not checked here, only its boundaries.
	OnFirstLine(line string)
	// OnHeaderLine is called for each parsed header line.
	OnHeaderLine(key, value string)
	// OnHeadersFinished is called once all headers have been parsed.
	OnHeadersFinished()
	// OnBodyData is called for each chunk of decoded body data.
	OnBodyData(data []byte)
	// OnBodyFinished is called once the entire body has been reported.
	OnBodyFinished()
}

// MessageParser parses a single HTTP/1.1 message (request or response):
// its first line, its headers, and its body, dispatching transfer-encoding
// decoding to a TransferEncodingParser selected from the parsed headers.
type MessageParser struct {
	callbacks MessageCallbacks

	hasHadError bool
	isFinished  bool

	firstLine string
	buf       []byte

	envelopeParser   *EnvelopeParser
	teParser         TransferEncodingParser
	transferEncoding string
	contentLength    uint64
}

// NewMessageParser creates a parser reporting to cb.
func NewMessageParser(cb MessageCallbacks) *MessageParser {
	p := &MessageParser{callbacks: cb}
	p.envelopeParser = NewEnvelopeParser(p)
	p.Reset()
	return p
}

// Reset returns the parser to its initial state, so it can parse a new message.
func (p *MessageParser) Reset() {
	p.hasHadError = false
	p.isFinished = false
	p.firstLine = ""
	p.buf = p.buf[:0]
	p.envelopeParser.Reset()
	p.teParser = nil
	p.transferEncoding = ""
	p.contentLength = 0
}

// IsFinished reports whether the entire message has been parsed.
func (p *MessageParser) IsFinished() bool {
	return p.isFinished
}

// Finish signals that the underlying stream has ended (e.g. the connection
// was closed). It delegates to the transfer-encoding parser's Finish, which
// reports an identity body shorter than its Content-Length or a chunked body
// that never reached its final chunk. A message with neither Content-Length
// nor Transfer-Encoding is treated as having an empty body; a
// close-delimited body is not read.
func (p *MessageParser) Finish() Error {
	if p.isFinished || p.hasHadError {
		return ErrNone
	}
	if p.teParser == nil {
		p.onError("stream ended before the message's headers were fully received")
		return ErrTruncated
	}
	err := p.teParser.Finish()
	if err != ErrNone {
		p.hasHadError = true
	}
	return err
}

// Parse feeds more data into the parser. It returns the number of bytes
// consumed; any trailing bytes belong to whatever follows (a pipelined
// next message, in the HTTP case).
func (p *MessageParser) Parse(data []byte) (int, Error) {
	if p.isFinished || p.hasHadError {
		return 0, ErrNone
	}

	if p.firstLine == "" {
		inBufferSoFar := len(p.buf)
		p.buf = append(p.buf, data...)
		consumedFirstLine, _ := p.parseFirstLine()
		if p.firstLine == "" {
			// All of data went into the buffer, still no complete first line.
			return len(data), ErrNone
		}
		if p.hasHadError {
			return 0, ErrInvalid
		}

		consumedEnvelope, err := p.envelopeParser.Parse(p.buf)
		if err != ErrNone {
			p.hasHadError = true
			p.callbacks.OnError("failed to parse the envelope")
			return 0, err
		}
		p.buf = append(p.buf[:0], p.buf[consumedEnvelope:]...)
		if !p.envelopeParser.InHeaders() {
			p.headersFinished()
			consumedBody, berr := p.parseBody(p.buf)
			if berr != ErrNone {
				return 0, berr
			}
			return consumedBody + consumedEnvelope + consumedFirstLine - inBufferSoFar, ErrNone
		}
		return len(data), ErrNone
	}

	if p.envelopeParser.InHeaders() {
		consumed, err := p.envelopeParser.Parse(data)
		if err != ErrNone {
			p.hasHadError = true
			p.callbacks.OnError("failed to parse the envelope")
			return 0, err
		}
		if !p.envelopeParser.InHeaders() {
			p.headersFinished()
			consumedBody, berr := p.parseBody(data[consumed:])
			if berr != ErrNone {
				return 0, berr
			}
			return consumed + consumedBody, ErrNone
		}
		return len(data), ErrNone
	}

	return p.parseBody(data)
}

// parseFirstLine looks for the CRLF-terminated first line at the start of
// p.buf, reporting it and trimming it out of the buffer if found.
func (p *MessageParser) parseFirstLine() (int, Error) {
	idx := indexCRLF(p.buf, 0)
	if idx < 0 {
		return len(p.buf), ErrNone
	}
	p.firstLine = string(p.buf[:idx])
	p.buf = append(p.buf[:0], p.buf[idx+2:]...)
	p.callbacks.OnFirstLine(p.firstLine)
	return idx + 2, ErrNone
}

// parseBody hands data to the transfer-encoding parser, translating its
// "bytes left over" return value into "bytes consumed".
func (p *MessageParser) parseBody(data []byte) (int, Error) {
	if p.teParser == nil {
		p.onError("no transfer encoding parser")
		return 0, ErrInvalid
	}
	leftover, err := p.teParser.Parse(data)
	if err != ErrNone {
		return 0, err
	}
	return len(data) - leftover, ErrNone
}

// headersFinished is called once the envelope parser leaves the headers
// state, to select the body's transfer encoding.
func (p *MessageParser) headersFinished() {
	p.callbacks.OnHeadersFinished()
	if p.transferEncoding == "" {
		p.transferEncoding = "identity"
	}
	p.teParser = NewTransferEncodingParser(p, []byte(p.transferEncoding), p.contentLength)
	if p.teParser == nil {
		p.onError(fmt.Sprintf("unknown transfer encoding: %s", p.transferEncoding))
	}
}

// OnHeaderLine implements EnvelopeCallbacks.
func (p *MessageParser) OnHeaderLine(key, value string) {
	p.callbacks.OnHeaderLine(key, value)
	switch string(ToLower([]byte(key))) {
	case "content-length":
		v, ok := ParseUint64([]byte(value))
		if !ok {
			p.onError(fmt.Sprintf("invalid content length header value: %q", value))
			return
		}
		p.contentLength = v
	case "transfer-encoding":
		p.transferEncoding = value
	}
}

// OnError implements TransferEncodingCallbacks.
func (p *MessageParser) OnError(description string) {
	p.onError(description)
}

// OnBodyData implements TransferEncodingCallbacks.
func (p *MessageParser) OnBodyData(data []byte) {
	p.callbacks.OnBodyData(data)
}

// OnBodyFinished implements TransferEncodingCallbacks.
func (p *MessageParser) OnBodyFinished() {
	p.isFinished = true
	p.callbacks.OnBodyFinished()
}

func (p *MessageParser) onError(description string) {
	p.hasHadError = true
	p.callbacks.OnError(description)
}
