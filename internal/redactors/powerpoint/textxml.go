// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package powerpoint

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"docredact/internal/redactors"
)

// textRun is the content of one <a:t> element and its byte range in the part
type textRun struct {
	start, end  int
	text        string
	selfClosing bool
}

type paragraph struct {
	runs []textRun
}

func (p paragraph) text() string {
	var b strings.Builder
	for _, r := range p.runs {
		b.WriteString(r.text)
	}
	return b.String()
}

// shape is one text-bearing shape: a p:sp or a p:graphicFrame holding a table
type shape struct {
	placeholder string
	paragraphs  []paragraph
}

func (s shape) text() string {
	lines := make([]string, 0, len(s.paragraphs))
	for _, p := range s.paragraphs {
		lines = append(lines, p.text())
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// scanPart walks a slide or notes part and records every shape, paragraph and
// text run in document order together with the byte offsets of the run text.
func scanPart(data []byte) ([]shape, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	var (
		shapes     []shape
		current    *shape
		shapeDepth int
		para       *paragraph
		run        *textRun
		depth      int
	)

	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed part XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "sp", "graphicFrame":
				if current == nil {
					current = &shape{}
					shapeDepth = depth
				}
			case "ph":
				if current != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "type" {
							current.placeholder = a.Value
						}
					}
				}
			case "p":
				if t.Name.Space != "p" {
					para = &paragraph{}
				}
			case "t":
				if para != nil {
					off := int(d.InputOffset())
					run = &textRun{
						start:       off,
						end:         off,
						selfClosing: bytes.HasSuffix(data[:off], []byte("/>")),
					}
				}
			}

		case xml.CharData:
			if run != nil {
				run.text += string(t)
				run.end = int(d.InputOffset())
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if run != nil && para != nil {
					para.runs = append(para.runs, *run)
				}
				run = nil
			case "p":
				if para != nil && t.Name.Space != "p" {
					if current == nil {
						shapes = append(shapes, shape{paragraphs: []paragraph{*para}})
					} else {
						current.paragraphs = append(current.paragraphs, *para)
					}
					para = nil
				}
			case "sp", "graphicFrame":
				if current != nil && depth == shapeDepth {
					shapes = append(shapes, *current)
					current = nil
				}
			}
			depth--
		}
	}
	return shapes, nil
}

// rewritePart substitutes entity spans paragraph by paragraph and splices the
// new run text back into the original bytes. Runs that do not change keep
// their exact original bytes.
func rewritePart(data []byte, shapes []shape, entities redactors.EntityMap) ([]byte, int, error) {
	type edit struct {
		start, end int
		text       string
	}
	var edits []edit
	total := 0

	for _, s := range shapes {
		for _, p := range s.paragraphs {
			segs := make([]redactors.Segment, len(p.runs))
			for i, r := range p.runs {
				segs[i] = redactors.Segment{Text: r.text, Fixed: r.selfClosing}
			}
			replaced, n := redactors.ReplaceSegments(segs, entities)
			if n == 0 {
				continue
			}
			total += n
			for i, r := range p.runs {
				if replaced[i].Text == r.text {
					continue
				}
				var esc bytes.Buffer
				if err := xml.EscapeText(&esc, []byte(replaced[i].Text)); err != nil {
					return nil, 0, err
				}
				edits = append(edits, edit{start: r.start, end: r.end, text: esc.String()})
			}
		}
	}
	if len(edits) == 0 {
		return data, total, nil
	}

	var out bytes.Buffer
	out.Grow(len(data))
	pos := 0
	for _, e := range edits {
		out.Write(data[pos:e.start])
		out.WriteString(e.text)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes(), total, nil
}
