// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"fmt"
	"sort"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"docredact/internal/redactors"
)

// formScrubber blanks entity spans painted inside form XObjects. Forms are
// shared between pages, so each stream is visited once per document.
type formScrubber struct {
	ctx      *model.Context
	entities redactors.EntityMap
	seen     map[int]bool
}

func newFormScrubber(ctx *model.Context, entities redactors.EntityMap) *formScrubber {
	return &formScrubber{ctx: ctx, entities: entities, seen: make(map[int]bool)}
}

// scrub walks the form XObjects of a resource dictionary, descending into
// forms nested in forms. res is the writer's view of the resources and lres
// the extractor's view of the same dictionary, used to resolve fonts.
func (fs *formScrubber) scrub(res types.Dict, lres lpdf.Value) (int, error) {
	if res == nil {
		return 0, nil
	}
	obj, found := res.Find("XObject")
	if !found {
		return 0, nil
	}
	xobjects, err := fs.ctx.DereferenceDict(obj)
	if err != nil || xobjects == nil {
		return 0, err
	}

	names := make([]string, 0, len(xobjects))
	for name := range xobjects {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		ir, ok := xobjects[name].(types.IndirectRef)
		if !ok || fs.seen[ir.ObjectNumber.Value()] {
			continue
		}
		fs.seen[ir.ObjectNumber.Value()] = true

		n, err := fs.scrubForm(ir, res, lres.Key("XObject").Key(name), lres)
		if err != nil {
			return total, fmt.Errorf("form %s: %w", name, err)
		}
		total += n
	}
	return total, nil
}

func (fs *formScrubber) scrubForm(ir types.IndirectRef, parentRes types.Dict, lform, parentLres lpdf.Value) (int, error) {
	entry, found := fs.ctx.FindTableEntryForIndRef(&ir)
	if !found || entry == nil {
		return 0, nil
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return 0, nil
	}
	if st := sd.Dict.Subtype(); st == nil || *st != "Form" {
		return 0, nil
	}
	if err := sd.Decode(); err != nil {
		return 0, err
	}

	// a form without resources uses those of the page painting it
	res, lres := parentRes, parentLres
	if obj, found := sd.Dict.Find("Resources"); found {
		own, err := fs.ctx.DereferenceDict(obj)
		if err != nil {
			return 0, err
		}
		if own != nil {
			res, lres = own, lform.Key("Resources")
		}
	}

	scrubbed, n, err := scrubContent(sd.Content, resourceFonts(lres), fs.entities)
	if err != nil {
		return 0, err
	}
	nested, err := fs.scrub(res, lres)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return nested, nil
	}

	if err := encodeStream(&sd, scrubbed); err != nil {
		return 0, err
	}
	entry.Object = sd
	return n + nested, nil
}

// encodeStream replaces the content of sd, compressed with Flate
func encodeStream(sd *types.StreamDict, content []byte) error {
	sd.Content = content
	sd.FilterPipeline = []types.PDFFilter{{Name: "FlateDecode"}}
	sd.Dict["Filter"] = types.Name("FlateDecode")
	delete(sd.Dict, "DecodeParms")
	return sd.Encode()
}
