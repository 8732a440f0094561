// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"docredact/internal/redactors"
)

// rect is an axis aligned box in default user space
type rect struct {
	llx, lly, urx, ury float64
}

func (r rect) width() float64  { return r.urx - r.llx }
func (r rect) height() float64 { return r.ury - r.lly }

// mark is one redaction box and the label drawn inside it
type mark struct {
	box   rect
	label string
}

// glyphText joins the glyphs of a page into one string. Word gaps wider than
// a fifth of the font size become a space and line changes become sep.
// owners maps every byte of the result onto its glyph index, -1 for inserted
// separators.
func glyphText(glyphs []lpdf.Text, sep string) (string, []int) {
	var b strings.Builder
	var owners []int
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			fontSize := prev.FontSize
			if fontSize <= 0 {
				fontSize = 12
			}
			switch {
			case math.Abs(g.Y-prev.Y) > fontSize*0.5:
				b.WriteString(sep)
				for range len(sep) {
					owners = append(owners, -1)
				}
			case g.X-(prev.X+glyphWidth(prev)) > fontSize*0.2 && g.S != " " && prev.S != " ":
				b.WriteString(" ")
				owners = append(owners, -1)
			}
		}
		b.WriteString(g.S)
		for range len(g.S) {
			owners = append(owners, i)
		}
	}
	return b.String(), owners
}

// glyphWidth falls back to half an em when the font carries no widths
func glyphWidth(g lpdf.Text) float64 {
	if g.W > 0 {
		return g.W
	}
	fontSize := g.FontSize
	if fontSize <= 0 {
		fontSize = 12
	}
	return fontSize * 0.5 * float64(max(1, len([]rune(g.S))))
}

// pageGlyphs returns the glyphs of one page in content order. The reader
// panics on some malformed content streams; that is reported as an error.
func pageGlyphs(p lpdf.Page) (glyphs []lpdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page content unreadable: %v", r)
		}
	}()
	return p.Content().Text, nil
}

func openReader(data []byte) (*lpdf.Reader, error) {
	return lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// locateMarks searches every page for each entity span, case-insensitively,
// and returns the boxes to paint keyed by 1-based page number. A match that
// wraps onto another line yields one box per line.
func locateMarks(data []byte, entities redactors.EntityMap) (map[int][]mark, error) {
	r, err := openReader(data)
	if err != nil {
		return nil, err
	}

	spans := entities.Spans()
	out := make(map[int][]mark)
	for pageNr := 1; pageNr <= r.NumPage(); pageNr++ {
		p := r.Page(pageNr)
		if p.V.IsNull() {
			continue
		}
		glyphs, err := pageGlyphs(p)
		if err != nil || len(glyphs) == 0 {
			continue
		}
		text, owners := glyphText(glyphs, " ")

		for _, span := range spans {
			for _, m := range redactors.SpanPattern(span).FindAllStringIndex(text, -1) {
				for _, box := range matchBoxes(glyphs, owners[m[0]:m[1]]) {
					out[pageNr] = append(out[pageNr], mark{box: box, label: entities[span]})
				}
			}
		}
	}
	return out, nil
}

// matchBoxes covers the glyphs of one match, one box per text line
func matchBoxes(glyphs []lpdf.Text, owners []int) []rect {
	var boxes []rect
	last := -1
	var cur *rect
	var curY float64
	for _, idx := range owners {
		if idx < 0 || idx == last {
			continue
		}
		last = idx
		g := glyphs[idx]
		fontSize := g.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		box := rect{
			llx: g.X,
			lly: g.Y - fontSize*0.25,
			urx: g.X + glyphWidth(g),
			ury: g.Y + fontSize*0.9,
		}
		if cur != nil && math.Abs(g.Y-curY) <= fontSize*0.5 {
			cur.llx = math.Min(cur.llx, box.llx)
			cur.lly = math.Min(cur.lly, box.lly)
			cur.urx = math.Max(cur.urx, box.urx)
			cur.ury = math.Max(cur.ury, box.ury)
			continue
		}
		boxes = append(boxes, box)
		cur = &boxes[len(boxes)-1]
		curY = g.Y
	}
	return boxes
}
