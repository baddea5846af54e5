// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import "fmt"

// TransferEncodingCallbacks receives decoded body data from a
// TransferEncodingParser.
type TransferEncodingCallbacks interface {
	// OnError is called when parsing fails.
	OnError(description string)
	// OnBodyData is called for each chunk of decoded body data.
	OnBodyData(data []byte)
	// OnBodyFinished is called once the entire body has been reported.
	OnBodyFinished()
}

// TransferEncodingParser turns a raw incoming byte stream into a sequence of
// OnBodyData calls, according to the message's Transfer-Encoding (or its
// Content-Length, for the identity encoding).
type TransferEncodingParser interface {
	// Parse consumes as much of data as belongs to this encoding's body.
	// It returns the number of trailing bytes of data that are NOT part of
	// the body (e.g. the start of whatever follows this message), 0 if all
	// of data was consumed. On error it returns the error and the byte
	// count is meaningless.
	Parse(data []byte) (int, Error)
	// Finish is called when the underlying stream has been terminated by
	// its source (e.g. the connection closed), to flush any pending state.
	Finish() Error
}

// NewTransferEncodingParser creates the parser matching transferEncoding
// (compared case-insensitively), or nil if the encoding is not recognized.
// contentLength is used only by the identity encoding.
func NewTransferEncodingParser(cb TransferEncodingCallbacks, transferEncoding []byte, contentLength uint64) TransferEncodingParser {
	switch {
	case EqualFold(transferEncoding, []byte("chunked")):
		return newChunkedTEParser(cb)
	case EqualFold(transferEncoding, []byte("identity")):
		return newIdentityTEParser(cb, contentLength)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////
// identityTEParser

// identityTEParser relays exactly contentLength bytes of body, unmodified.
type identityTEParser struct {
	callbacks TransferEncodingCallbacks
	bytesLeft uint64
}

func newIdentityTEParser(cb TransferEncodingCallbacks, contentLength uint64) *identityTEParser {
	return &identityTEParser{callbacks: cb, bytesLeft: contentLength}
}

func (p *identityTEParser) Parse(data []byte) (int, Error) {
	sz := uint64(len(data))
	if sz > p.bytesLeft {
		sz = p.bytesLeft
	}
	if sz > 0 {
		p.callbacks.OnBodyData(data[:sz])
	}
	p.bytesLeft -= sz
	if p.bytesLeft == 0 {
		p.callbacks.OnBodyFinished()
	}
	return len(data) - int(sz), ErrNone
}

func (p *identityTEParser) Finish() Error {
	if p.bytesLeft > 0 {
		p.callbacks.OnError("identity transfer encoding: body was truncated")
		return ErrTruncated
	}
	return ErrNone
}

////////////////////////////////////////////////////////////////////////////
// chunkedTEParser

type chunkState uint8

const (
	chunkLength        chunkState = iota // parsing the chunk length hex number
	chunkLengthTrailer                   // chunk extension after the length
	chunkLengthLF                        // the LF after the length's CR
	chunkData                            // relaying chunk data
	chunkDataCR                          // the CR after chunk data
	chunkDataLF                          // the LF after chunk data
	chunkTrailer                         // parsing the trailer envelope after the last (empty) chunk
	chunkFinished                        // parsing has finished, successfully or not
)

// chunkedTEParser decodes an HTTP/1.1 "chunked" Transfer-Encoding body. It
// implements EnvelopeCallbacks itself, ignoring trailer header lines, so it
// can reuse EnvelopeParser to parse the trailer that follows the final
// zero-length chunk.
type chunkedTEParser struct {
	callbacks           TransferEncodingCallbacks
	state               chunkState
	chunkDataLengthLeft uint64
	trailerParser       *EnvelopeParser
}

func newChunkedTEParser(cb TransferEncodingCallbacks) *chunkedTEParser {
	p := &chunkedTEParser{callbacks: cb, state: chunkLength}
	p.trailerParser = NewEnvelopeParser(p)
	return p
}

// OnHeaderLine implements EnvelopeCallbacks; trailer headers are discarded.
func (p *chunkedTEParser) OnHeaderLine(key, value string) {
}

func (p *chunkedTEParser) fail(err Error, format string, args ...interface{}) (int, Error) {
	p.state = chunkFinished
	p.callbacks.OnError(fmt.Sprintf(format, args...))
	return 0, err
}

func (p *chunkedTEParser) parseChunkLength(data []byte) (int, Error) {
	for i, c := range data {
		switch {
		case c >= '0' && c <= '9':
			p.chunkDataLengthLeft = p.chunkDataLengthLeft*16 + uint64(c-'0')
		case c >= 'a' && c <= 'f':
			p.chunkDataLengthLeft = p.chunkDataLengthLeft*16 + uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			p.chunkDataLengthLeft = p.chunkDataLengthLeft*16 + uint64(c-'A') + 10
		case c == '\r':
			p.state = chunkLengthLF
			return i + 1, ErrNone
		case c == ';':
			p.state = chunkLengthTrailer
			return i + 1, ErrNone
		default:
			return p.fail(ErrBadChar, "invalid character in chunk length line: 0x%x", c)
		}
	}
	return len(data), ErrNone
}

func (p *chunkedTEParser) parseChunkLengthTrailer(data []byte) (int, Error) {
	for i, c := range data {
		if c == '\r' {
			p.state = chunkLengthLF
			return i + 1, ErrNone
		}
		if c < 32 {
			return p.fail(ErrBadChar, "invalid character in chunk length trailer: 0x%x", c)
		}
	}
	return len(data), ErrNone
}

func (p *chunkedTEParser) parseChunkLengthLF(data []byte) (int, Error) {
	if len(data) == 0 {
		return 0, ErrNone
	}
	if data[0] == '\n' {
		if p.chunkDataLengthLeft == 0 {
			p.state = chunkTrailer
		} else {
			p.state = chunkData
		}
		return 1, ErrNone
	}
	return p.fail(ErrBadChar, "invalid character past chunk length's CR: 0x%x", data[0])
}

func (p *chunkedTEParser) parseChunkData(data []byte) (int, Error) {
	n := uint64(len(data))
	if n > p.chunkDataLengthLeft {
		n = p.chunkDataLengthLeft
	}
	p.chunkDataLengthLeft -= n
	p.callbacks.OnBodyData(data[:n])
	if p.chunkDataLengthLeft == 0 {
		p.state = chunkDataCR
	}
	return int(n), ErrNone
}

func (p *chunkedTEParser) parseChunkDataCR(data []byte) (int, Error) {
	if len(data) == 0 {
		return 0, ErrNone
	}
	if data[0] == '\r' {
		p.state = chunkDataLF
		return 1, ErrNone
	}
	return p.fail(ErrBadChar, "invalid character past chunk data: 0x%x", data[0])
}

func (p *chunkedTEParser) parseChunkDataLF(data []byte) (int, Error) {
	if len(data) == 0 {
		return 0, ErrNone
	}
	if data[0] == '\n' {
		p.state = chunkLength
		return 1, ErrNone
	}
	return p.fail(ErrBadChar, "invalid character past chunk data's CR: 0x%x", data[0])
}

func (p *chunkedTEParser) parseTrailer(data []byte) (int, Error) {
	consumed, err := p.trailerParser.Parse(data)
	if err != ErrNone {
		p.state = chunkFinished
		p.callbacks.OnError("error while parsing the chunked trailer")
		return 0, err
	}
	if consumed < len(data) || !p.trailerParser.InHeaders() {
		p.callbacks.OnBodyFinished()
		p.state = chunkFinished
	}
	return consumed, ErrNone
}

// Parse implements TransferEncodingParser.
func (p *chunkedTEParser) Parse(data []byte) (int, Error) {
	for len(data) > 0 && p.state != chunkFinished {
		var consumed int
		var err Error
		switch p.state {
		case chunkLength:
			consumed, err = p.parseChunkLength(data)
		case chunkLengthTrailer:
			consumed, err = p.parseChunkLengthTrailer(data)
		case chunkLengthLF:
			consumed, err = p.parseChunkLengthLF(data)
		case chunkData:
			consumed, err = p.parseChunkData(data)
		case chunkDataCR:
			consumed, err = p.parseChunkDataCR(data)
		case chunkDataLF:
			consumed, err = p.parseChunkDataLF(data)
		case chunkTrailer:
			consumed, err = p.parseTrailer(data)
		}
		if err != ErrNone {
			return 0, err
		}
		data = data[consumed:]
	}
	return len(data), ErrNone
}

// Finish implements TransferEncodingParser.
func (p *chunkedTEParser) Finish() Error {
	if p.state != chunkFinished {
		p.callbacks.OnError(fmt.Sprintf("chunked transfer encoding: finish received before the data stream ended (state %d)", p.state))
		p.state = chunkFinished
		return ErrTruncated
	}
	return ErrNone
}
