// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SpanPattern compiles a case-insensitive literal matcher for span
func SpanPattern(span string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(span))
}

// ReplaceText substitutes every case-insensitive occurrence of each entity span
// in text with its label and returns the new text and the number of
// replacements made. Entries are applied one after another in Spans order.
func ReplaceText(text string, entities EntityMap) (string, int) {
	total := 0
	for _, span := range entities.Spans() {
		re := SpanPattern(span)
		n := len(re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		text = re.ReplaceAllLiteralString(text, entities[span])
		total += n
	}
	return text, total
}

// Segment is one run of text inside a larger logical string, such as a text
// run inside a paragraph or a string operand inside a page content stream.
// Fixed segments take part in matching but are never rewritten.
type Segment struct {
	Text  string
	Fixed bool
}

// JoinSegments concatenates the text of every segment
func JoinSegments(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

// ReplaceSegments matches entity spans over the concatenation of segs, so a
// span split across runs is still found. The label of each match is written
// into the first editable segment the match touches; the rest of the matched
// text is removed from the segments it covers.
func ReplaceSegments(segs []Segment, entities EntityMap) ([]Segment, int) {
	total := 0
	for _, span := range entities.Spans() {
		label := entities[span]
		var n int
		segs, n = spliceSegments(segs, SpanPattern(span), func(owner bool, matched string) string {
			if owner {
				return label
			}
			return ""
		})
		total += n
	}
	return segs, total
}

// BlankSegments works like ReplaceSegments but overwrites each matched
// character with a space, keeping the character count of every segment.
func BlankSegments(segs []Segment, entities EntityMap) ([]Segment, int) {
	total := 0
	for _, span := range entities.Spans() {
		var n int
		segs, n = spliceSegments(segs, SpanPattern(span), func(_ bool, matched string) string {
			return strings.Repeat(" ", utf8.RuneCountInString(matched))
		})
		total += n
	}
	return segs, total
}

// spliceSegments rewrites the parts of segs covered by matches of re. repl is
// called once per (match, editable segment) pair with the matched slice of
// that segment; owner is true for the first editable segment of the match.
func spliceSegments(segs []Segment, re *regexp.Regexp, repl func(owner bool, matched string) string) ([]Segment, int) {
	starts := make([]int, len(segs))
	var joined strings.Builder
	for i, s := range segs {
		starts[i] = joined.Len()
		joined.WriteString(s.Text)
	}
	text := joined.String()

	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return segs, 0
	}

	owners := make([]int, len(matches))
	count := 0
	for mi, m := range matches {
		owners[mi] = -1
		for i, s := range segs {
			if s.Fixed {
				continue
			}
			end := starts[i] + len(s.Text)
			if m[0] < end && m[1] > starts[i] {
				owners[mi] = i
				count++
				break
			}
		}
	}
	if count == 0 {
		return segs, 0
	}

	out := make([]Segment, len(segs))
	for i, s := range segs {
		if s.Fixed {
			out[i] = s
			continue
		}
		segStart, segEnd := starts[i], starts[i]+len(s.Text)
		var b strings.Builder
		pos := segStart
		for mi, m := range matches {
			if owners[mi] < 0 || m[1] <= segStart || m[0] >= segEnd {
				continue
			}
			ms, me := max(m[0], segStart), min(m[1], segEnd)
			b.WriteString(text[pos:ms])
			b.WriteString(repl(owners[mi] == i, text[ms:me]))
			pos = me
		}
		b.WriteString(text[pos:segEnd])
		out[i] = Segment{Text: b.String()}
	}
	return out, count
}
