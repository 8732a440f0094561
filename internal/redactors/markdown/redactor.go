// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package markdown

import (
	"context"
	"errors"
	"unicode/utf8"

	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
)

// MarkdownRedactor extracts and redacts Markdown documents as UTF-8 text
type MarkdownRedactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// NewMarkdownRedactor creates a new MarkdownRedactor
func NewMarkdownRedactor(observer *observability.StandardObserver) *MarkdownRedactor {
	return &MarkdownRedactor{observer: observer}
}

// Format returns the format tag this handler serves
func (mr *MarkdownRedactor) Format() format.Tag {
	return format.Markdown
}

// GetComponentName returns the component name for observability
func (mr *MarkdownRedactor) GetComponentName() string {
	return "markdown_redactor"
}

// Extract returns the document bytes verbatim
func (mr *MarkdownRedactor) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", redactors.ExtractionError(mr.GetComponentName(), errors.New("content is not valid UTF-8"))
	}
	return string(data), nil
}

// Redact substitutes every entity span across the whole text
func (mr *MarkdownRedactor) Redact(ctx context.Context, data []byte, entities redactors.EntityMap) ([]byte, error) {
	finishTiming := mr.observer.StartTiming(mr.GetComponentName(), "redact", "")

	text, err := mr.Extract(ctx, data)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	redacted, replacements := redactors.ReplaceText(text, entities)
	finishTiming(true, map[string]interface{}{
		"entity_count": len(entities),
		"replacements": replacements,
	})
	return []byte(redacted), nil
}

// Validate checks that data is UTF-8 text
func (mr *MarkdownRedactor) Validate(data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("markdown output is not valid UTF-8")
	}
	return nil
}

// OutputPath returns the _redacted sibling of path
func (mr *MarkdownRedactor) OutputPath(path string) string {
	return redactors.SuffixedPath(path)
}
