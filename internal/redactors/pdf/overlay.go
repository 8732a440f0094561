// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

const (
	// labelFontBase is the standard font used for labels; every glyph is 600 units wide
	labelFontBase    = "Courier"
	labelGlyphWidth  = 0.6
	labelFontPrefix  = "RDX"
	minLabelFontSize = 4.0
	maxLabelFontSize = 11.0
)

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// encodeLabel maps label text onto WinAnsi bytes, replacing what the
// encoding cannot represent with '?'
func encodeLabel(label string) []byte {
	out := make([]byte, 0, len(label))
	for _, r := range label {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// overlayOps paints every mark with a white box and draws its label in black
// inside it, sized to fit the box width
func overlayOps(marks []mark, fontName string) []byte {
	var b bytes.Buffer
	b.WriteString("q\n1 1 1 rg\n")
	for _, m := range marks {
		fmt.Fprintf(&b, "%s %s %s %s re\nf\n", num(m.box.llx), num(m.box.lly), num(m.box.width()), num(m.box.height()))
	}
	b.WriteString("0 0 0 rg\n")
	for _, m := range marks {
		if m.label == "" {
			continue
		}
		label := encodeLabel(m.label)
		size := m.box.height() * 0.8
		if fit := m.box.width() / (labelGlyphWidth * float64(len(label))); fit < size {
			size = fit
		}
		size = min(max(size, minLabelFontSize), maxLabelFontSize)
		baseline := m.box.lly + (m.box.height()-size)/2 + size*0.2
		fmt.Fprintf(&b, "BT\n/%s %s Tf\n%s %s Td\n%s Tj\nET\n", fontName, num(size), num(m.box.llx), num(baseline), encodeLiteral(label))
	}
	b.WriteString("Q\n")
	return b.Bytes()
}

// labelFont adds the label font object to the document once and returns its reference
func labelFont(ctx *model.Context) (*types.IndirectRef, error) {
	widths := make(types.Array, 0, 224)
	for c := 32; c <= 255; c++ {
		widths = append(widths, types.Integer(600))
	}
	d := types.Dict{
		"Type":      types.Name("Font"),
		"Subtype":   types.Name("Type1"),
		"BaseFont":  types.Name(labelFontBase),
		"Encoding":  types.Name("WinAnsiEncoding"),
		"FirstChar": types.Integer(32),
		"LastChar":  types.Integer(255),
		"Widths":    widths,
	}
	return ctx.IndRefForNewObject(d)
}

// inheritedResources returns the resource dictionary in effect for a page,
// its own or the nearest ancestor's, without changing the page tree
func inheritedResources(ctx *model.Context, page types.Dict) (types.Dict, error) {
	for node := page; node != nil; {
		if obj, found := node.Find("Resources"); found {
			res, err := ctx.DereferenceDict(obj)
			if err != nil || res != nil {
				return res, err
			}
		}
		parent, found := node.Find("Parent")
		if !found {
			break
		}
		pd, err := ctx.DereferenceDict(parent)
		if err != nil {
			return nil, err
		}
		node = pd
	}
	return nil, nil
}

// pageResources returns the resource dictionary of a page, giving the page its
// own copy of inherited resources when it has none
func pageResources(ctx *model.Context, page types.Dict) (types.Dict, error) {
	if obj, found := page.Find("Resources"); found {
		res, err := ctx.DereferenceDict(obj)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	inherited, err := inheritedResources(ctx, page)
	if err != nil {
		return nil, err
	}
	res := types.Dict{}
	for k, v := range inherited {
		res[k] = v
	}
	page["Resources"] = res
	return res, nil
}

// attachFont registers fontRef in the page font resources under a name not yet
// used by the page and returns that name
func attachFont(ctx *model.Context, page types.Dict, fontRef types.IndirectRef) (string, error) {
	res, err := pageResources(ctx, page)
	if err != nil {
		return "", err
	}

	var fonts types.Dict
	if obj, found := res.Find("Font"); found {
		if fonts, err = ctx.DereferenceDict(obj); err != nil {
			return "", err
		}
	}
	if fonts == nil {
		fonts = types.Dict{}
		res["Font"] = fonts
	}

	name := labelFontPrefix
	for i := 1; ; i++ {
		if _, taken := fonts[name]; !taken {
			break
		}
		name = labelFontPrefix + strconv.Itoa(i)
	}
	fonts[name] = fontRef
	return name, nil
}

// replaceContent stores content as the only content of the page. Existing
// content streams are rewritten in place so the original text does not
// survive as an unreferenced object.
func replaceContent(ctx *model.Context, page types.Dict, content []byte) error {
	var refs []types.IndirectRef
	if obj, found := page.Find("Contents"); found {
		switch v := obj.(type) {
		case types.IndirectRef:
			target, err := ctx.Dereference(v)
			if err != nil {
				return err
			}
			if arr, ok := target.(types.Array); ok {
				refs = indirectRefs(arr)
			} else {
				refs = []types.IndirectRef{v}
			}
		case types.Array:
			refs = indirectRefs(v)
		}
	}

	if len(refs) == 0 {
		sd, err := ctx.NewStreamDictForBuf(content)
		if err != nil {
			return err
		}
		if err := sd.Encode(); err != nil {
			return err
		}
		ir, err := ctx.IndRefForNewObject(*sd)
		if err != nil {
			return err
		}
		page["Contents"] = *ir
		return nil
	}

	for i, ir := range refs {
		entry, found := ctx.FindTableEntryForIndRef(&ir)
		if !found || entry == nil {
			return fmt.Errorf("content stream %s missing", ir)
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			return fmt.Errorf("content object %s is not a stream", ir)
		}
		body := []byte{}
		if i == 0 {
			body = content
		}
		if err := encodeStream(&sd, body); err != nil {
			return err
		}
		entry.Object = sd
	}
	return nil
}

func indirectRefs(arr types.Array) []types.IndirectRef {
	var refs []types.IndirectRef
	for _, o := range arr {
		if ir, ok := o.(types.IndirectRef); ok {
			refs = append(refs, ir)
		}
	}
	return refs
}
