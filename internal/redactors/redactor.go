// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docredact/internal/format"
)

// EntityMap maps sensitive spans, matched case-insensitively, onto the
// placeholder label that replaces them
type EntityMap map[string]string

// Spans returns the non-blank spans in lexical order. Handlers apply entries in
// this order so the same input always yields the same output.
func (m EntityMap) Spans() []string {
	spans := make([]string, 0, len(m))
	for span := range m {
		if strings.TrimSpace(span) == "" {
			continue
		}
		spans = append(spans, span)
	}
	sort.Strings(spans)
	return spans
}

// Empty reports whether the map has nothing to redact
func (m EntityMap) Empty() bool {
	return len(m.Spans()) == 0
}

// Handler extracts and redacts one document format. Implementations work on
// in-memory bytes; fetching and storing is done by RedactStored.
type Handler interface {
	// Format returns the format tag this handler serves
	Format() format.Tag

	// Extract returns the plain text of the document
	Extract(ctx context.Context, data []byte) (string, error)

	// Redact returns a copy of the document with every entity span replaced
	Redact(ctx context.Context, data []byte, entities EntityMap) ([]byte, error)

	// Validate checks that data opens as a document of this format
	Validate(data []byte) error

	// OutputPath returns where the redacted copy of path is written
	OutputPath(path string) string

	// GetComponentName returns the component name for observability
	GetComponentName() string
}

// Registry maps format tags onto handlers. It is built once at startup and is
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	handlers map[format.Tag]Handler
	order    []format.Tag
}

// NewRegistry builds a registry from handlers. Registering two handlers for the
// same format is an error.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[format.Tag]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		tag := h.Format()
		if tag == format.Unknown {
			return nil, fmt.Errorf("handler %s cannot serve the unknown format", h.GetComponentName())
		}
		if _, dup := r.handlers[tag]; dup {
			return nil, fmt.Errorf("duplicate handler for format %s", tag)
		}
		r.handlers[tag] = h
		r.order = append(r.order, tag)
	}
	return r, nil
}

// Lookup returns the handler for tag
func (r *Registry) Lookup(tag format.Tag) (Handler, error) {
	if h, ok := r.handlers[tag]; ok {
		return h, nil
	}
	return nil, NewRedactionError(ErrorUnsupportedFormat, fmt.Sprintf("no handler for format %q", tag), "", "registry", ErrUnsupportedFormat)
}

// ForPath detects the format of path and returns its handler
func (r *Registry) ForPath(path string) (Handler, format.Tag, error) {
	tag := format.Detect(path)
	h, err := r.Lookup(tag)
	if err != nil {
		return nil, tag, WithPath(err, path)
	}
	return h, tag, nil
}

// Formats lists the registered formats in registration order
func (r *Registry) Formats() []format.Tag {
	out := make([]format.Tag, len(r.order))
	copy(out, r.order)
	return out
}
