// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package httpparser

import (
	"math/rand"
	"testing"
)

type nvTestCase struct {
	in      string
	strict  bool
	want    map[string]string
	wantErr bool
}

var nvTests = [...]nvTestCase{
	{
		in:   `name=value; filename="my file.txt"`,
		want: map[string]string{"name": "value", "filename": "my file.txt"},
	},
	{
		in:   "a=1;b=2;c=3",
		want: map[string]string{"a": "1", "b": "2", "c": "3"},
	},
	{
		in:   "keyonly",
		want: map[string]string{"keyonly": ""},
	},
	{
		in:   "a='single quoted'; b=raw",
		want: map[string]string{"a": "single quoted", "b": "raw"},
	},
	{
		in:      "keyonly",
		strict:  true,
		wantErr: true,
	},
	{
		in:      `a="unterminated`,
		wantErr: true,
	},
	{
		in:      `a="has"extra`,
		wantErr: true,
	},
}

func TestNameValueParser(t *testing.T) {
	for i, tc := range nvTests {
		var p *NameValueParser
		if tc.strict {
			p = NewNameValueParserStrict()
		} else {
			p = NewNameValueParser()
		}
		p.Parse([]byte(tc.in))
		err := p.Finish()
		if tc.wantErr {
			if err == ErrNone || p.IsValid() {
				t.Errorf("case %d: Parse(%q) succeeded, want an error", i, tc.in)
			}
			continue
		}
		if err != ErrNone {
			t.Errorf("case %d: Parse(%q) failed with %v", i, tc.in, err)
			continue
		}
		got := p.Values()
		if len(got) != len(tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Errorf("case %d: got[%q] = %q, want %q", i, k, got[k], v)
			}
		}
	}
}

func TestNameValueParserPieces(t *testing.T) {
	for i, tc := range nvTests {
		if tc.wantErr {
			continue
		}
		var p *NameValueParser
		if tc.strict {
			p = NewNameValueParserStrict()
		} else {
			p = NewNameValueParser()
		}
		data := []byte(tc.in)
		pos := 0
		for _, end := range randomSplitPoints(len(data), rand.Intn(5)) {
			if err := p.Parse(data[pos:end]); err != ErrNone {
				t.Fatalf("case %d: unexpected error %v", i, err)
			}
			pos = end
		}
		if err := p.Parse(data[pos:]); err != ErrNone {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if err := p.Finish(); err != ErrNone {
			t.Fatalf("case %d: Finish() failed with %v", i, err)
		}
		got := p.Values()
		if len(got) != len(tc.want) {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Errorf("case %d: got[%q] = %q, want %q", i, k, got[k], v)
			}
		}
	}
}
