// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"context"
	"strings"
)

// LocalParser reads the text layer of a PDF without any remote service.
// Scanned pages without a text layer come back empty.
type LocalParser struct{}

// NewLocalParser creates a LocalParser
func NewLocalParser() *LocalParser {
	return &LocalParser{}
}

// Parse implements ai.DocumentParser
func (lp *LocalParser) Parse(ctx context.Context, data []byte) ([]string, error) {
	r, err := openReader(data)
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, r.NumPage())
	for pageNr := 1; pageNr <= r.NumPage(); pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(pageNr)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		glyphs, err := pageGlyphs(p)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		text, _ := glyphText(glyphs, "\n")
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
