// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"docredact/internal/ai"
	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
)

// PageSeparator joins parsed pages in extracted text
const PageSeparator = "\n\n"

// PDFRedactor extracts text through a DocumentParser and redacts by blanking
// matched text in the page content and painting a labelled box over it
type PDFRedactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver

	// parser turns PDF bytes into per-page text
	parser ai.DocumentParser
}

// NewPDFRedactor creates a new PDFRedactor. A nil parser falls back to the
// local text layer parser.
func NewPDFRedactor(parser ai.DocumentParser, observer *observability.StandardObserver) *PDFRedactor {
	if parser == nil {
		parser = NewLocalParser()
	}
	return &PDFRedactor{
		observer: observer,
		parser:   parser,
	}
}

// newConfig returns a fresh pdfcpu configuration. Output is written with a
// classic xref table and no object streams for the widest reader support.
func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// Format returns the format tag this handler serves
func (pr *PDFRedactor) Format() format.Tag {
	return format.PDF
}

// GetComponentName returns the component name for observability
func (pr *PDFRedactor) GetComponentName() string {
	return "pdf_redactor"
}

// Extract delegates to the document parser and joins pages in order
func (pr *PDFRedactor) Extract(ctx context.Context, data []byte) (string, error) {
	pages, err := pr.parser.Parse(ctx, data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", redactors.ExtractionError(pr.GetComponentName(), err)
	}
	return strings.Join(pages, PageSeparator), nil
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

// open reads the document, rejecting encrypted files
func (pr *PDFRedactor) open(data []byte) (*model.Context, error) {
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), newConfig())
	if err != nil {
		if isPasswordError(err) {
			return nil, redactors.EncryptedError(pr.GetComponentName(), err)
		}
		return nil, redactors.ExtractionError(pr.GetComponentName(), err)
	}
	if pdfCtx.Encrypt != nil || pdfCtx.E != nil {
		return nil, redactors.EncryptedError(pr.GetComponentName(), nil)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, redactors.ExtractionError(pr.GetComponentName(), err)
	}
	return pdfCtx, nil
}

// Redact walks the pages in order. On each page every case-insensitive match
// of an entity span is blanked in the content stream and in the form XObjects
// the page uses, and covered by a white box carrying the entity label. All
// marks of a page are applied together. A document without matches is written
// back unchanged apart from normalisation by the writer.
func (pr *PDFRedactor) Redact(ctx context.Context, data []byte, entities redactors.EntityMap) ([]byte, error) {
	finishTiming := pr.observer.StartTiming(pr.GetComponentName(), "redact", "")

	pdfCtx, err := pr.open(data)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	marks, err := locateMarks(data, entities)
	if err != nil {
		// content scrubbing still runs, only the label boxes are lost
		pr.logEvent("locate_failed", false, map[string]interface{}{"error": err.Error()})
	}
	// the extractor's view of the document resolves fonts for decoding
	reader, err := openReader(data)
	if err != nil {
		pr.logEvent("font_reader_failed", false, map[string]interface{}{"error": err.Error()})
	}
	forms := newFormScrubber(pdfCtx, entities)

	var fontRef *types.IndirectRef
	pagesChanged, blanked, formBlanked, boxes := 0, 0, 0, 0
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			finishTiming(false, map[string]interface{}{"error": err.Error()})
			return nil, err
		}

		pageDict, _, _, err := pdfCtx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			pr.logEvent("page_unreadable", false, map[string]interface{}{"page": pageNr})
			continue
		}
		lres := extractorResources(reader, pageNr)

		res, err := inheritedResources(pdfCtx, pageDict)
		if err == nil {
			var n int
			n, err = forms.scrub(res, lres)
			formBlanked += n
		}
		if err != nil {
			pr.logEvent("form_scrub_failed", false, map[string]interface{}{
				"page":  pageNr,
				"error": err.Error(),
			})
		}

		// a page whose content cannot be read is left as it is
		content, err := pageContent(pdfCtx, pageNr)
		if err != nil {
			pr.logEvent("page_content_unreadable", false, map[string]interface{}{
				"page":  pageNr,
				"error": err.Error(),
			})
			continue
		}

		scrubbed, n, err := scrubContent(content, resourceFonts(lres), entities)
		if err != nil {
			pr.logEvent("page_scrub_failed", false, map[string]interface{}{
				"page":  pageNr,
				"error": err.Error(),
			})
			scrubbed, n = content, 0
		}

		pageMarks := marks[pageNr]
		if n == 0 && len(pageMarks) == 0 {
			continue
		}

		var buf bytes.Buffer
		buf.WriteString("q\n")
		buf.Write(scrubbed)
		buf.WriteString("\nQ\n")

		if len(pageMarks) > 0 {
			if fontRef == nil {
				if fontRef, err = labelFont(pdfCtx); err != nil {
					return nil, pr.processingError("failed to add label font", err, finishTiming)
				}
			}
			fontName, err := attachFont(pdfCtx, pageDict, *fontRef)
			if err != nil {
				return nil, pr.processingError("failed to attach label font", err, finishTiming)
			}
			buf.Write(overlayOps(pageMarks, fontName))
		}

		if err := replaceContent(pdfCtx, pageDict, buf.Bytes()); err != nil {
			return nil, pr.processingError("failed to write page content", err, finishTiming)
		}
		pagesChanged++
		blanked += n
		boxes += len(pageMarks)
	}

	var out bytes.Buffer
	if err := api.WriteContext(pdfCtx, &out); err != nil {
		return nil, pr.processingError("failed to serialize document", err, finishTiming)
	}

	finishTiming(true, map[string]interface{}{
		"pages":         pdfCtx.PageCount,
		"pages_changed": pagesChanged,
		"spans_blanked": blanked,
		"forms_blanked": formBlanked,
		"boxes":         boxes,
	})
	return out.Bytes(), nil
}

func (pr *PDFRedactor) processingError(msg string, err error, finishTiming func(bool, map[string]interface{})) error {
	finishTiming(false, map[string]interface{}{"error": err.Error()})
	return redactors.NewRedactionError(redactors.ErrorDocumentProcessing, msg, "", pr.GetComponentName(), err)
}

// extractorResources returns the page resources as the text extractor reads
// them, or a null value when the extractor cannot open the page
func extractorResources(r *lpdf.Reader, pageNr int) (res lpdf.Value) {
	if r == nil || pageNr > r.NumPage() {
		return lpdf.Value{}
	}
	defer func() {
		if recover() != nil {
			res = lpdf.Value{}
		}
	}()
	return r.Page(pageNr).Resources()
}

func pageContent(pdfCtx *model.Context, pageNr int) ([]byte, error) {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(r)
}

// Validate checks that data opens and passes relaxed validation
func (pr *PDFRedactor) Validate(data []byte) error {
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), newConfig())
	if err != nil {
		return err
	}
	return api.ValidateContext(pdfCtx)
}

// OutputPath returns redacted_<name> next to path
func (pr *PDFRedactor) OutputPath(path string) string {
	return redactors.PrefixedPath(path)
}

// logEvent logs an event if observer is available
func (pr *PDFRedactor) logEvent(operation string, success bool, metadata map[string]interface{}) {
	if pr.observer != nil {
		pr.observer.StartTiming(pr.GetComponentName(), operation, "")(success, metadata)
	}
}
