// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"math/rand"
	"sort"
	"testing"
)

type envHdr struct {
	key, value string
}

type envCollector struct {
	hdrs []envHdr
}

func (c *envCollector) OnHeaderLine(key, value string) {
	c.hdrs = append(c.hdrs, envHdr{key, value})
}

type envTestCase struct {
	in    string
	want  []envHdr
	valid bool
}

var envelopeTests = [...]envTestCase{
	{
		in:    "Host: example.com\r\nContent-Length: 5\r\n\r\n",
		want:  []envHdr{{"Host", "example.com"}, {"Content-Length", "5"}},
		valid: true,
	},
	{
		in:    "\r\n",
		want:  nil,
		valid: true,
	},
	{
		in: "X-Multi: one\r\n two\r\n\r\n",
		want: []envHdr{
			{"X-Multi", "one two"},
		},
		valid: true,
	},
	{
		in:    "NoColonHere\r\n\r\n",
		want:  nil,
		valid: false,
	},
	{
		in:    " leading continuation\r\n\r\n",
		want:  nil,
		valid: false,
	},
}

func TestEnvelopeParser(t *testing.T) {
	for i, tc := range envelopeTests {
		c := &envCollector{}
		p := NewEnvelopeParser(c)
		consumed, err := p.Parse([]byte(tc.in))
		if tc.valid {
			if err != ErrNone {
				t.Errorf("case %d: Parse(%q) = (%d, %v), want no error", i, tc.in, consumed, err)
				continue
			}
			if p.InHeaders() {
				t.Errorf("case %d: Parse(%q) still InHeaders after a complete envelope", i, tc.in)
			}
			if consumed != len(tc.in) {
				t.Errorf("case %d: Parse(%q) consumed %d, want %d", i, tc.in, consumed, len(tc.in))
			}
			checkHeaders(t, i, c.hdrs, tc.want)
		} else if err == ErrNone {
			t.Errorf("case %d: Parse(%q) succeeded, want an error", i, tc.in)
		}
	}
}

func checkHeaders(t *testing.T, caseNo int, got, want []envHdr) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("case %d: got %d headers %v, want %d: %v", caseNo, len(got), got, len(want), want)
	}
	for j, h := range got {
		if h != want[j] {
			t.Errorf("case %d header %d: got %+v, want %+v", caseNo, j, h, want[j])
		}
	}
}

// randomSplitPoints returns a sorted, deduplicated set of cut points in
// (0, n], used to feed a parser's input in arbitrary byte-level pieces
// (testable property: chunk-splitting invariance).
func randomSplitPoints(n, count int) []int {
	if n == 0 || count <= 0 {
		return nil
	}
	points := make([]int, count)
	for i := range points {
		points[i] = rand.Intn(n) + 1
	}
	sort.Ints(points)
	out := points[:0]
	last := -1
	for _, v := range points {
		if v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}

func TestEnvelopeParserPieces(t *testing.T) {
	for i, tc := range envelopeTests {
		if !tc.valid {
			continue
		}
		c := &envCollector{}
		p := NewEnvelopeParser(c)
		data := []byte(tc.in)

		pos := 0
		for _, end := range randomSplitPoints(len(data), rand.Intn(5)) {
			if !p.InHeaders() {
				break
			}
			consumed, err := p.Parse(data[pos:end])
			if err != ErrNone {
				t.Fatalf("case %d: unexpected error %v feeding %q", i, err, data[pos:end])
			}
			if p.InHeaders() && consumed != end-pos {
				t.Fatalf("case %d: partial parse consumed %d of %d bytes while still InHeaders",
					i, consumed, end-pos)
			}
			pos += consumed
		}
		if p.InHeaders() {
			consumed, err := p.Parse(data[pos:])
			if err != ErrNone {
				t.Fatalf("case %d: unexpected error %v feeding the remainder", i, err)
			}
			pos += consumed
		}
		if p.InHeaders() {
			t.Fatalf("case %d: still InHeaders after feeding the whole envelope", i)
		}
		checkHeaders(t, i, c.hdrs, tc.want)
	}
}
