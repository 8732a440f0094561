// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package powerpoint

import (
	"context"
	"fmt"
	"strings"

	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
)

// SlideHeading prefixes the 1-based slide number in extracted text
const SlideHeading = "## Slide "

// NotesPrefix marks speaker notes lines in extracted text
const NotesPrefix = "Notes: "

// PowerPointRedactor extracts and redacts presentations using the ZIP/XML
// structure of the package directly
type PowerPointRedactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// NewPowerPointRedactor creates a new PowerPointRedactor
func NewPowerPointRedactor(observer *observability.StandardObserver) *PowerPointRedactor {
	return &PowerPointRedactor{observer: observer}
}

// Format returns the format tag this handler serves
func (pr *PowerPointRedactor) Format() format.Tag {
	return format.PowerPoint
}

// GetComponentName returns the component name for observability
func (pr *PowerPointRedactor) GetComponentName() string {
	return "powerpoint_redactor"
}

// Extract renders slides in presentation order, each under a heading line
// carrying its number, with the text of every shape in shape order followed
// by the speaker notes.
func (pr *PowerPointRedactor) Extract(_ context.Context, data []byte) (string, error) {
	if err := redactors.CheckOpenXML(pr.GetComponentName(), data); err != nil {
		return "", err
	}
	pkg, err := openPackage(data)
	if err != nil {
		return "", redactors.ExtractionError(pr.GetComponentName(), err)
	}
	slides, err := pkg.slides()
	if err != nil {
		return "", redactors.ExtractionError(pr.GetComponentName(), err)
	}

	var b strings.Builder
	for i, sp := range slides {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s%d\n", SlideHeading, i+1)

		shapes, err := pr.scan(pkg, sp.Slide)
		if err != nil {
			return "", err
		}
		for _, s := range shapes {
			if text := s.text(); strings.TrimSpace(text) != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}

		if sp.Notes == "" {
			continue
		}
		notes, err := pr.scan(pkg, sp.Notes)
		if err != nil {
			pr.logEvent("notes_extraction_failed", false, map[string]interface{}{
				"part":  sp.Notes,
				"error": err.Error(),
			})
			continue
		}
		for _, s := range notes {
			if s.placeholder == "sldNum" || s.placeholder == "dt" || s.placeholder == "hdr" || s.placeholder == "ftr" {
				continue
			}
			if text := s.text(); strings.TrimSpace(text) != "" {
				b.WriteString(NotesPrefix + text + "\n")
			}
		}
	}
	return b.String(), nil
}

func (pr *PowerPointRedactor) scan(pkg *presentationPackage, part string) ([]shape, error) {
	data, err := pkg.read(part)
	if err != nil {
		return nil, redactors.ExtractionError(pr.GetComponentName(), err)
	}
	shapes, err := scanPart(data)
	if err != nil {
		return nil, redactors.ExtractionError(pr.GetComponentName(), fmt.Errorf("%s: %w", part, err))
	}
	return shapes, nil
}

// Redact substitutes entity spans in the text of every shape on every slide
// and notes page
func (pr *PowerPointRedactor) Redact(_ context.Context, data []byte, entities redactors.EntityMap) ([]byte, error) {
	finishTiming := pr.observer.StartTiming(pr.GetComponentName(), "redact", "")

	if err := redactors.CheckOpenXML(pr.GetComponentName(), data); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	pkg, err := openPackage(data)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, redactors.ExtractionError(pr.GetComponentName(), err)
	}
	slides, err := pkg.slides()
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, redactors.ExtractionError(pr.GetComponentName(), err)
	}

	replaced := make(map[string][]byte)
	total := 0
	for _, sp := range slides {
		for _, part := range []string{sp.Slide, sp.Notes} {
			if part == "" {
				continue
			}
			partData, err := pkg.read(part)
			if err != nil {
				finishTiming(false, map[string]interface{}{"error": err.Error()})
				return nil, redactors.ExtractionError(pr.GetComponentName(), err)
			}
			shapes, err := scanPart(partData)
			if err != nil {
				finishTiming(false, map[string]interface{}{"error": err.Error()})
				return nil, redactors.ExtractionError(pr.GetComponentName(), fmt.Errorf("%s: %w", part, err))
			}
			rewritten, n, err := rewritePart(partData, shapes, entities)
			if err != nil {
				finishTiming(false, map[string]interface{}{"error": err.Error()})
				return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "failed to rewrite part", "", pr.GetComponentName(), err)
			}
			if n > 0 {
				replaced[part] = rewritten
				total += n
			}
		}
	}

	out, err := pkg.repackage(replaced)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, redactors.NewRedactionError(redactors.ErrorDocumentProcessing, "failed to repackage presentation", "", pr.GetComponentName(), err)
	}

	finishTiming(true, map[string]interface{}{
		"slide_count":   len(slides),
		"parts_changed": len(replaced),
		"replacements":  total,
	})
	return out, nil
}

// Validate checks that data opens as a presentation package with well-formed slides
func (pr *PowerPointRedactor) Validate(data []byte) error {
	pkg, err := openPackage(data)
	if err != nil {
		return err
	}
	slides, err := pkg.slides()
	if err != nil {
		return err
	}
	for _, sp := range slides {
		partData, err := pkg.read(sp.Slide)
		if err != nil {
			return err
		}
		if _, err := scanPart(partData); err != nil {
			return fmt.Errorf("%s: %w", sp.Slide, err)
		}
	}
	return nil
}

// OutputPath returns the _redacted sibling of path
func (pr *PowerPointRedactor) OutputPath(path string) string {
	return redactors.SuffixedPath(path)
}

// logEvent logs an event if observer is available
func (pr *PowerPointRedactor) logEvent(operation string, success bool, metadata map[string]interface{}) {
	if pr.observer != nil {
		pr.observer.StartTiming(pr.GetComponentName(), operation, "")(success, metadata)
	}
}
