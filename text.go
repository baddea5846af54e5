// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"github.com/intuitivelabs/bytescase"
)

// EqualFold reports whether a and b are equal, ignoring ASCII case. It is a
// thin wrapper over bytescase.CmpEq, kept so call sites read in terms of the
// domain ("is this header named X") rather than the underlying library.
func EqualFold(a, b []byte) bool {
	return bytescase.CmpEq(a, b)
}

// ToLower returns a newly allocated, lower-cased copy of b.
func ToLower(b []byte) []byte {
	res := make([]byte, len(b))
	for i, c := range b {
		res[i] = bytescase.ByteToLower(c)
	}
	return res
}

// HasPrefixFold reports whether b starts with prefix, ignoring ASCII case.
func HasPrefixFold(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	return EqualFold(b[:len(prefix)], prefix)
}

// SplitByte splits data on every occurrence of sep, the way
// Http::Utils::stringSplit splits on a separator character. Empty fields
// between two separators are kept, but unlike strings.Split no empty field
// is appended after a separator that is the very last byte, and empty input
// yields no fields (mirrors the C++: it only appends a "prev < len" tail).
func SplitByte(data []byte, sep byte) [][]byte {
	var out [][]byte
	prev := 0
	for i := 0; i < len(data); i++ {
		if data[i] == sep {
			out = append(out, data[prev:i])
			prev = i + 1
		}
	}
	if prev < len(data) {
		out = append(out, data[prev:])
	}
	return out
}

// ParseUint64 parses an unsigned decimal integer from b, checking for
// overflow one digit at a time (ported from Utils::stringToInteger<T>).
// Returns false if b is empty, contains a non-digit, or the value would
// overflow a uint64.
func ParseUint64(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var result uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		digit := uint64(c - '0')
		if result > (^uint64(0))/10 {
			return 0, false
		}
		result *= 10
		if result > (^uint64(0))-digit {
			return 0, false
		}
		result += digit
	}
	return result, true
}

// unhex returns the value of a single hex digit, and false if c is not one.
func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// unbase64 converts a single Base64 alphabet character into its 6-bit value.
// It returns -1 for the padding character '=' and -2 for anything else that
// is not part of the alphabet (ported from Utils.cpp's UnBase64).
func unbase64(c byte) int {
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 26
	case c >= '0' && c <= '9':
		return int(c-'0') + 52
	case c == '+':
		return 62
	case c == '/':
		return 63
	case c == '=':
		return -1
	}
	return -2
}

// Base64Decode decodes a Base64 string into raw bytes. Bytes outside the
// Base64 alphabet are silently skipped rather than rejected; decoding stops
// early (returning the best-effort decoded prefix) at the first '=' padding
// character, matching Http::Utils::base64Decode.
func Base64Decode(s []byte) []byte {
	res := make([]byte, 0, (len(s)*3)/4+1)
	var o uint
	var cur byte
	for _, ch := range s {
		c := unbase64(ch)
		if c == -1 {
			// Padding: stop, return what we have so far.
			return res
		}
		if c < 0 {
			continue
		}
		v := byte(c)
		switch o % 8 {
		case 0:
			cur = v << 2
		case 2:
			res = append(res, cur|v)
			cur = 0
		case 4:
			res = append(res, cur|(v>>2))
			cur = v << 6
		case 6:
			res = append(res, cur|(v>>4))
			cur = v << 4
		}
		o += 6
	}
	return res
}

// unicodeToUTF8 encodes a Unicode code point as UTF-8, appending it to dst.
// It rejects the UTF-16 surrogate range and values past the Unicode range,
// mirroring UnicodeCharToUtf8 in Utils.cpp.
func unicodeToUTF8(dst []byte, r uint32) ([]byte, bool) {
	switch {
	case r < 0x80:
		return append(dst, byte(r)), true
	case r < 0x800:
		return append(dst,
			byte(0xC0+r/64),
			byte(0x80+r%64),
		), true
	case r >= 0xD800 && r < 0xE000:
		return dst, false
	case r < 0x10000:
		return append(dst,
			byte(0xE0+r/4096),
			byte(0x80+(r/64)%64),
			byte(0x80+r%64),
		), true
	case r < 0x110000:
		return append(dst,
			byte(0xF0+r/262144),
			byte(0x80+(r/4096)%64),
			byte(0x80+(r/64)%64),
			byte(0x80+r%64),
		), true
	}
	return dst, false
}

// URLDecode decodes a query-string-style percent/plus-encoded byte slice.
// It accepts '+' as space, "%XX" as a raw byte, and "%u0XXX"/"%U0XXX" as a
// Unicode code point re-encoded as UTF-8 (surrogate halves and code points
// past 0x10FFFF are rejected). On any malformed escape it returns ok=false
// together with whatever was decoded before the failure, matching
// Http::Utils::urlDecode's out-of-band error signalling.
func URLDecode(s []byte) ([]byte, bool) {
	res := make([]byte, 0, len(s))
	n := len(s)
	for i := 0; i < n; i++ {
		switch s[i] {
		case '+':
			res = append(res, ' ')
		case '%':
			if i+1 >= n {
				return res, false
			}
			if s[i+1] == 'u' || s[i+1] == 'U' {
				if i+5 >= n {
					return res, false
				}
				if s[i+2] != '0' {
					return res, false
				}
				v1, ok1 := unhex(s[i+3])
				v2, ok2 := unhex(s[i+4])
				v3, ok3 := unhex(s[i+5])
				if !ok1 || !ok2 || !ok3 {
					return res, false
				}
				cp := uint32(v1)<<8 | uint32(v2)<<4 | uint32(v3)
				var ok bool
				res, ok = unicodeToUTF8(res, cp)
				if !ok {
					return res, false
				}
				i += 5
			} else {
				if i+2 >= n {
					return res, false
				}
				v1, ok1 := unhex(s[i+1])
				v2, ok2 := unhex(s[i+2])
				if !ok1 || !ok2 {
					return res, false
				}
				res = append(res, v1<<4|v2)
				i += 2
			}
		default:
			res = append(res, s[i])
		}
	}
	return res, true
}
