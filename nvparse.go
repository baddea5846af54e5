// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

// nvState is the internal state of a NameValueParser.
type nvState uint8

const (
	nvKeySpace       nvState = iota // skipping whitespace before the next key
	nvKey                           // reading a key
	nvEqualSpace                    // whitespace between a key and its '='
	nvEqual                         // just consumed '=', deciding the value's quoting
	nvValueInSQuotes               // reading a '...'-quoted value
	nvValueInDQuotes                // reading a "..."-quoted value
	nvValueRaw                      // reading an unquoted value
	nvAfterValue                    // between a closing quote and the next ';'
	nvInvalid                       // parse failed; no further input is accepted
	nvFinished                      // Finish() was already called
)

// NameValueParser parses a "name=value; name2=value2" parameter list — the
// format used by HTTP header parameters such as Content-Disposition's
// filename=... and form-data field names. Values may be unquoted, or
// quoted with single or double quotes. It is pushed data incrementally and
// keeps internal state across calls, same as the other parsers in this
// package, but exposes its result as a plain map rather than callbacks.
type NameValueParser struct {
	values        map[string]string
	state         nvState
	allowsKeyOnly bool
	currentKey    string
	currentValue  string
}

// NewNameValueParser creates an empty parser that accepts a bare key (with
// no '=value') as a key with an empty value, matching the default used
// throughout this package's parameter parsing (multipart Content-Disposition
// parameters included).
func NewNameValueParser() *NameValueParser {
	return NewNameValueParserWithOptions(true)
}

// NewNameValueParserStrict creates an empty parser that rejects a bare key
// with no '=value' as invalid input.
func NewNameValueParserStrict() *NameValueParser {
	return NewNameValueParserWithOptions(false)
}

// NewNameValueParserWithOptions creates an empty parser with explicit
// key-only handling.
func NewNameValueParserWithOptions(allowsKeyOnly bool) *NameValueParser {
	return &NameValueParser{
		values:        make(map[string]string),
		state:         nvKeySpace,
		allowsKeyOnly: allowsKeyOnly,
	}
}

// Values returns the name/value pairs parsed so far.
func (p *NameValueParser) Values() map[string]string {
	return p.values
}

// IsValid reports whether the data parsed so far was valid.
func (p *NameValueParser) IsValid() bool {
	return p.state != nvInvalid
}

// IsFinished reports whether the parser expects no more data.
func (p *NameValueParser) IsFinished() bool {
	return p.state == nvInvalid || p.state == nvFinished
}

// Parse feeds more data into the parser. It must not be called after
// Finish().
func (p *NameValueParser) Parse(data []byte) Error {
	last := 0
	i := 0
	n := len(data)
	for i < n {
		switch p.state {
		case nvInvalid, nvFinished:
			return ErrNone

		case nvKeySpace:
			for i < n && data[i] <= ' ' {
				i++
			}
			if i < n && data[i] > ' ' {
				p.state = nvKey
				last = i
			}

		case nvKey:
			matched := false
			for i < n {
				switch {
				case data[i] == '=':
					p.currentKey += string(data[last:i])
					i++
					last = i
					p.state = nvEqual
					matched = true
				case data[i] <= ' ':
					p.currentKey += string(data[last:i])
					i++
					last = i
					p.state = nvEqualSpace
					matched = true
				case data[i] == ';':
					if !p.allowsKeyOnly {
						p.state = nvInvalid
						return ErrBadChar
					}
					p.currentKey += string(data[last:i])
					i++
					last = i
					p.values[p.currentKey] = ""
					p.currentKey = ""
					p.state = nvKeySpace
					matched = true
				case data[i] == '"' || data[i] == '\'':
					p.state = nvInvalid
					return ErrBadChar
				default:
					i++
					continue
				}
				break
			}
			if !matched && i == n {
				p.currentKey += string(data[last:n])
				return ErrNone
			}

		case nvEqualSpace:
			for i < n {
				switch {
				case data[i] == '=':
					p.state = nvEqual
					i++
					last = i
				case data[i] == ';':
					if !p.allowsKeyOnly {
						p.state = nvInvalid
						return ErrBadChar
					}
					i++
					last = i
					p.values[p.currentKey] = ""
					p.currentKey = ""
					p.state = nvKeySpace
				case data[i] > ' ':
					p.state = nvInvalid
					return ErrBadChar
				default:
					i++
					continue
				}
				break
			}

		case nvEqual:
			for i < n {
				switch {
				case data[i] == ';':
					if !p.allowsKeyOnly {
						p.state = nvInvalid
						return ErrBadChar
					}
					i++
					last = i
					p.values[p.currentKey] = ""
					p.currentKey = ""
					p.state = nvKeySpace
				case data[i] == '"':
					i++
					last = i
					p.state = nvValueInDQuotes
				case data[i] == '\'':
					i++
					last = i
					p.state = nvValueInSQuotes
				default:
					p.currentValue += string(data[i])
					i++
					last = i
					p.state = nvValueRaw
				}
				break
			}

		case nvValueInDQuotes:
			closed := false
			for i < n {
				if data[i] == '"' {
					p.currentValue += string(data[last:i])
					p.values[p.currentKey] = p.currentValue
					p.currentKey = ""
					p.currentValue = ""
					p.state = nvAfterValue
					i++
					last = i
					closed = true
					break
				}
				i++
			}
			if !closed && i == n {
				p.currentValue += string(data[last:n])
			}

		case nvValueInSQuotes:
			closed := false
			for i < n {
				if data[i] == '\'' {
					p.currentValue += string(data[last:i])
					p.values[p.currentKey] = p.currentValue
					p.currentKey = ""
					p.currentValue = ""
					p.state = nvAfterValue
					i++
					last = i
					closed = true
					break
				}
				i++
			}
			if !closed && i == n {
				p.currentValue += string(data[last:n])
			}

		case nvValueRaw:
			closed := false
			for i < n {
				if data[i] == ';' {
					p.currentValue += string(data[last:i])
					p.values[p.currentKey] = p.currentValue
					p.currentKey = ""
					p.currentValue = ""
					p.state = nvKeySpace
					i++
					last = i
					closed = true
					break
				}
				i++
			}
			if !closed && i == n {
				p.currentValue += string(data[last:n])
			}

		case nvAfterValue:
			for i < n {
				if data[i] == ';' {
					p.state = nvKeySpace
					i++
					last = i
					break
				} else if data[i] < ' ' {
					i++
					continue
				}
				p.state = nvInvalid
				return ErrBadChar
			}
		}
	}
	return ErrNone
}

// Finish notifies the parser that no more data is coming. It returns
// ErrNone if the parser ends in a valid state (flushing any pending
// key-only or raw value into the result map). Otherwise it returns
// ErrUnterminatedQuote for an unclosed quoted value, ErrEmptyKey or
// ErrInvalid for a trailing key that is not accepted, and ErrInvalid if an
// earlier Parse call already failed.
func (p *NameValueParser) Finish() Error {
	switch p.state {
	case nvInvalid:
		return ErrInvalid
	case nvFinished:
		return ErrNone
	case nvKey, nvEqualSpace, nvEqual:
		if p.allowsKeyOnly && p.currentKey != "" {
			p.values[p.currentKey] = ""
			p.state = nvFinished
			return ErrNone
		}
		p.state = nvInvalid
		if p.currentKey == "" {
			return ErrEmptyKey
		}
		return ErrInvalid
	case nvValueRaw:
		p.values[p.currentKey] = p.currentValue
		p.state = nvFinished
		return ErrNone
	case nvValueInDQuotes, nvValueInSQuotes:
		p.state = nvInvalid
		return ErrUnterminatedQuote
	case nvKeySpace, nvAfterValue:
		p.state = nvFinished
		return ErrNone
	}
	return ErrBug
}
