// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"unicode/utf8"

	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// glyphCode is one character code of a shown string. start and end delimit
// its bytes inside the string; text is what the code extracts as.
type glyphCode struct {
	start, end int
	text       string
}

// fontDecoder splits shown strings into character codes and maps each code
// onto text the way a text extractor does
type fontDecoder struct {
	// width is the number of bytes per character code
	width int

	// enc is the font's text encoding; nil reads bytes as Windows-1252
	enc lpdf.TextEncoding

	// blank is the code painted in place of a redacted glyph
	blank []byte
}

// winAnsiDecoder serves strings shown in fonts that cannot be resolved
var winAnsiDecoder = &fontDecoder{width: 1, blank: []byte{' '}}

// fontLookup resolves a font resource name to its decoder
type fontLookup func(name string) *fontDecoder

// spaceCandidates are the two byte codes tried, in order, as the blank of a
// composite font. Fonts embedded by office suites usually put the space
// glyph at 3.
var spaceCandidates = [][]byte{{0x00, 0x03}, {0x00, 0x20}, {0x00, 0x01}}

// newFontDecoder builds the decoder for a font dictionary. Composite (Type0)
// fonts use two byte codes; their blank is a code mapping to a space, or the
// .notdef code 0 when the font maps none.
func newFontDecoder(font lpdf.Font) (dec *fontDecoder) {
	if font.V.IsNull() {
		return winAnsiDecoder
	}
	// the CMap reader panics on malformed ToUnicode streams
	defer func() {
		if r := recover(); r != nil {
			dec = winAnsiDecoder
		}
	}()
	d := &fontDecoder{width: 1, enc: font.Encoder(), blank: []byte{' '}}
	if font.V.Key("Subtype").Name() == "Type0" {
		d.width = 2
		d.blank = []byte{0x00, 0x00}
		for _, code := range spaceCandidates {
			if d.enc.Decode(string(code)) == " " {
				d.blank = code
				break
			}
		}
	}
	return d
}

// codes splits a shown string into character codes. A trailing partial code
// is kept as its own short code.
func (d *fontDecoder) codes(b []byte) []glyphCode {
	out := make([]glyphCode, 0, len(b)/d.width+1)
	for i := 0; i < len(b); i += d.width {
		end := min(i+d.width, len(b))
		out = append(out, glyphCode{start: i, end: end, text: d.decode(b[i:end])})
	}
	return out
}

func (d *fontDecoder) decode(code []byte) string {
	if d.enc != nil {
		s := d.enc.Decode(string(code))
		if d.width > 1 || utf8.ValidString(s) {
			return s
		}
	}
	if len(code) == 1 {
		return string(charmap.Windows1252.DecodeByte(code[0]))
	}
	return string(utf8.RuneError)
}

// blankInto overwrites dst, one character code, with the blank code
func (d *fontDecoder) blankInto(dst []byte) {
	if len(dst) == len(d.blank) {
		copy(dst, d.blank)
		return
	}
	for i := range dst {
		dst[i] = ' '
	}
}

// resourceFonts resolves font names against a resource dictionary read by the
// text extractor. Decoders are cached per name.
func resourceFonts(resources lpdf.Value) fontLookup {
	cache := make(map[string]*fontDecoder)
	return func(name string) *fontDecoder {
		if d, ok := cache[name]; ok {
			return d
		}
		d := newFontDecoder(lpdf.Font{V: resources.Key("Font").Key(name)})
		cache[name] = d
		return d
	}
}
