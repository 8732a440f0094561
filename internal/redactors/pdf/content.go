// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"docredact/internal/redactors"
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokHex
	tokArrayOpen
	tokArrayClose
	tokDictOpen
	tokDictClose
	tokName
	tokNumber
	tokKeyword
	tokInlineImage
)

// token is one lexical element of a content stream. start and end delimit the
// raw bytes; for strings value holds the decoded bytes.
type token struct {
	kind       tokenKind
	start, end int
	value      []byte
	num        float64
}

// kerningGap is the TJ adjustment, in thousandths of an em, treated as a word break
const kerningGap = -200

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// lexContent splits a decoded page content stream into tokens. Inline image
// data is kept as a single opaque token.
func lexContent(data []byte) ([]token, error) {
	var toks []token
	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case isWhite(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			end, value, err := scanLiteral(data, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokLiteral, start: i, end: end, value: value})
			i = end
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			toks = append(toks, token{kind: tokDictOpen, start: i, end: i + 2})
			i += 2
		case c == '>' && i+1 < len(data) && data[i+1] == '>':
			toks = append(toks, token{kind: tokDictClose, start: i, end: i + 2})
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated hex string at offset %d", i)
			}
			end += i + 1
			value, err := decodeHex(data[i+1 : end-1])
			if err != nil {
				return nil, fmt.Errorf("bad hex string at offset %d: %w", i, err)
			}
			toks = append(toks, token{kind: tokHex, start: i, end: end, value: value})
			i = end
		case c == '[':
			toks = append(toks, token{kind: tokArrayOpen, start: i, end: i + 1})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokArrayClose, start: i, end: i + 1})
			i++
		case c == '{' || c == '}' || c == ')' || c == '>':
			toks = append(toks, token{kind: tokKeyword, start: i, end: i + 1, value: data[i : i+1]})
			i++
		case c == '/':
			j := i + 1
			for j < len(data) && !isWhite(data[j]) && !isDelim(data[j]) {
				j++
			}
			toks = append(toks, token{kind: tokName, start: i, end: j, value: data[i+1 : j]})
			i = j
		default:
			j := i
			for j < len(data) && !isWhite(data[j]) && !isDelim(data[j]) {
				j++
			}
			word := string(data[i:j])
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				toks = append(toks, token{kind: tokNumber, start: i, end: j, num: n})
				i = j
				continue
			}
			toks = append(toks, token{kind: tokKeyword, start: i, end: j, value: data[i:j]})
			i = j
			if word == "ID" {
				end := skipInlineImage(data, j)
				toks = append(toks, token{kind: tokInlineImage, start: j, end: end})
				i = end
			}
		}
	}
	return toks, nil
}

// scanLiteral reads a balanced (...) string starting at data[start]
func scanLiteral(data []byte, start int) (int, []byte, error) {
	var out []byte
	depth := 0
	for i := start; i < len(data); i++ {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				return 0, nil, fmt.Errorf("dangling escape at offset %d", i)
			}
			i++
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return 0, nil, fmt.Errorf("unterminated string at offset %d", start)
}

func decodeHex(raw []byte) ([]byte, error) {
	digits := make([]byte, 0, len(raw)+1)
	for _, c := range raw {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	_, err := hex.Decode(out, digits)
	return out, err
}

// skipInlineImage returns the offset just past the EI operator that ends the
// inline image whose data starts after the ID operator at pos
func skipInlineImage(data []byte, pos int) int {
	i := pos + 1
	for i+1 < len(data) {
		if data[i] == 'E' && data[i+1] == 'I' && isWhite(data[i-1]) &&
			(i+2 == len(data) || isWhite(data[i+2]) || isDelim(data[i+2])) {
			return i + 2
		}
		i++
	}
	return len(data)
}

func encodeLiteral(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, '(')
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			out = append(out, '\\', c)
		case c == '\n':
			out = append(out, '\\', 'n')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c < 0x20 || c > 0x7e:
			out = append(out, fmt.Sprintf("\\%03o", c)...)
		default:
			out = append(out, c)
		}
	}
	return append(out, ')')
}

func encodeHex(b []byte) []byte {
	return []byte("<" + hex.EncodeToString(b) + ">")
}

// shownString is a string operand painted by a text showing operator
type shownString struct {
	tok    int
	gapped bool
	font   *fontDecoder
	codes  []glyphCode
}

func (s shownString) text() string {
	var b strings.Builder
	for _, c := range s.codes {
		b.WriteString(c.text)
	}
	return b.String()
}

// shownStrings finds every string operand of Tj, TJ, ' and ". gapped marks a
// string preceded by a line move or a word sized TJ adjustment. Each string is
// split into character codes of the font selected by the last Tf, honouring
// q/Q nesting.
func shownStrings(toks []token, fonts fontLookup) []shownString {
	var (
		shown     []shownString
		pending   []shownString
		gap       bool
		inArray   bool
		lastName  string
		font      = winAnsiDecoder
		fontStack []*fontDecoder
	)
	for i, t := range toks {
		switch t.kind {
		case tokLiteral, tokHex:
			pending = append(pending, shownString{tok: i, gapped: gap, font: font, codes: font.codes(t.value)})
			gap = false
		case tokArrayOpen:
			inArray = true
		case tokArrayClose:
			inArray = false
		case tokName:
			lastName = string(t.value)
		case tokNumber:
			if inArray && t.num <= kerningGap {
				gap = true
			}
		case tokKeyword:
			op := string(t.value)
			switch op {
			case "Tj", "TJ", "'", "\"":
				if (op == "'" || op == "\"") && len(pending) > 0 {
					pending[0].gapped = true
				}
				shown = append(shown, pending...)
			case "Td", "TD", "Tm", "T*", "BT", "ET":
				gap = true
			case "Tf":
				font = winAnsiDecoder
				if fonts != nil {
					if d := fonts(lastName); d != nil {
						font = d
					}
				}
			case "q":
				fontStack = append(fontStack, font)
			case "Q":
				if n := len(fontStack); n > 0 {
					font = fontStack[n-1]
					fontStack = fontStack[:n-1]
				}
			}
			pending = pending[:0]
		}
	}
	return shown
}

// scrubContent blanks every entity span painted by the content stream. Spans
// are matched over the concatenation of all shown strings on the page, so a
// name split over several Tj operators is still found. Each matched byte
// becomes a space, which keeps glyph counts and most of the layout intact.
func scrubContent(data []byte, fonts fontLookup, entities redactors.EntityMap) ([]byte, int, error) {
	toks, err := lexContent(data)
	if err != nil {
		return nil, 0, err
	}
	shown := shownStrings(toks, fonts)
	if len(shown) == 0 {
		return data, 0, nil
	}

	segs := make([]redactors.Segment, 0, len(shown)*2)
	owners := make([]int, 0, len(shown)*2)
	for i, s := range shown {
		if s.gapped && i > 0 {
			segs = append(segs, redactors.Segment{Text: " ", Fixed: true})
			owners = append(owners, -1)
		}
		segs = append(segs, redactors.Segment{Text: s.text()})
		owners = append(owners, i)
	}

	blanked, n := redactors.BlankSegments(segs, entities)
	if n == 0 {
		return data, 0, nil
	}

	type edit struct {
		start, end int
		raw        []byte
	}
	var edits []edit
	for k, seg := range blanked {
		if owners[k] < 0 || seg.Text == segs[k].Text {
			continue
		}
		s := shown[owners[k]]
		t := toks[s.tok]
		value := append([]byte(nil), t.value...)
		before, after := []rune(segs[k].Text), []rune(seg.Text)
		r := 0
		for _, c := range s.codes {
			n := utf8.RuneCountInString(c.text)
			blank := false
			for j := r; j < r+n && j < len(after); j++ {
				if after[j] == ' ' && before[j] != ' ' {
					blank = true
				}
			}
			r += n
			if blank {
				s.font.blankInto(value[c.start:c.end])
			}
		}
		raw := encodeLiteral(value)
		if t.kind == tokHex {
			raw = encodeHex(value)
		}
		edits = append(edits, edit{start: t.start, end: t.end, raw: raw})
	}

	var out bytes.Buffer
	out.Grow(len(data))
	pos := 0
	for _, e := range edits {
		out.Write(data[pos:e.start])
		out.Write(e.raw)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes(), n, nil
}
