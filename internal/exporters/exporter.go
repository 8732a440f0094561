// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package exporters renders consolidated document text into downloadable
// Markdown, Excel and PowerPoint files.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTitle is used when the caller does not name the export
const DefaultTitle = "Consolidated Document Export"

// Metadata describes where the exported text came from
type Metadata struct {
	Title       string
	SourcePaths []string
	GeneratedAt time.Time
}

// TitleOrDefault returns the title, falling back to DefaultTitle
func (m Metadata) TitleOrDefault() string {
	if strings.TrimSpace(m.Title) == "" {
		return DefaultTitle
	}
	return m.Title
}

// Timestamp returns the generation time, defaulting to now
func (m Metadata) Timestamp() time.Time {
	if m.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return m.GeneratedAt
}

// Exporter interface defines methods that all exporters must implement
type Exporter interface {
	// Export renders text into a complete file
	Export(ctx context.Context, text string, meta Metadata) ([]byte, error)

	// Name returns the name of the exporter (e.g., "markdown", "excel")
	Name() string

	// Description returns a brief description of what this exporter produces
	Description() string

	// FileExtension returns the file extension for this format (e.g., ".md")
	FileExtension() string

	// MimeType returns the content type of the produced file
	MimeType() string
}

// ErrUnsupportedFormat is returned by Get for names no exporter answers to
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Registry holds the available exporters
type Registry struct {
	exporters map[string]Exporter
	aliases   map[string]string
}

// NewRegistry creates a registry from exporters. File extensions without the
// leading dot are accepted as aliases of the exporter name.
func NewRegistry(exporters ...Exporter) *Registry {
	r := &Registry{
		exporters: make(map[string]Exporter),
		aliases:   make(map[string]string),
	}
	for _, e := range exporters {
		r.exporters[e.Name()] = e
		r.aliases[strings.TrimPrefix(e.FileExtension(), ".")] = e.Name()
	}
	return r
}

// Get retrieves an exporter by name or extension
func (r *Registry) Get(name string) (Exporter, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if e, ok := r.exporters[key]; ok {
		return e, nil
	}
	if alias, ok := r.aliases[strings.TrimPrefix(key, ".")]; ok {
		return r.exporters[alias], nil
	}
	return nil, fmt.Errorf("%w '%s'. Available formats: %s", ErrUnsupportedFormat, name, strings.Join(r.List(), ", "))
}

// List returns all registered exporter names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatInfo provides metadata about an exporter for API responses
type FormatInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Extension   string `json:"extension"`
	MimeType    string `json:"mime_type"`
}

// GetSupportedFormats returns information about all available exporters
func (r *Registry) GetSupportedFormats() []FormatInfo {
	var formats []FormatInfo
	for _, name := range r.List() {
		e := r.exporters[name]
		formats = append(formats, FormatInfo{
			Name:        e.Name(),
			Description: e.Description(),
			Extension:   e.FileExtension(),
			MimeType:    e.MimeType(),
		})
	}
	return formats
}

// FileName builds export_<timestamp>_<id><ext>. The id keeps two exports in
// the same second apart.
func FileName(at time.Time, id, ext string) string {
	name := "export_" + at.UTC().Format("20060102_150405")
	if id != "" {
		name += "_" + id
	}
	return name + ext
}
