// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"strings"

	"docredact/internal/ai"
	"docredact/internal/exporters"
	excelexport "docredact/internal/exporters/excel"
	mdexport "docredact/internal/exporters/markdown"
	pptexport "docredact/internal/exporters/powerpoint"
	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
	"docredact/internal/redactors/excel"
	"docredact/internal/redactors/markdown"
	"docredact/internal/redactors/pdf"
	"docredact/internal/redactors/powerpoint"
)

// AllFormats lists the formats with a compiled-in handler
func AllFormats() []format.Tag {
	return []format.Tag{format.PDF, format.Markdown, format.Excel, format.PowerPoint}
}

// ParseFormats maps format names or extensions onto format tags. An empty
// list or "all" enables every format; unknown names are ignored.
func ParseFormats(names []string) map[format.Tag]bool {
	enabled := make(map[format.Tag]bool)

	if len(names) == 0 || (len(names) == 1 && strings.EqualFold(strings.TrimSpace(names[0]), "all")) {
		for _, tag := range AllFormats() {
			enabled[tag] = true
		}
		return enabled
	}

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if tag := format.Tag(name); tag != format.Unknown && isKnown(tag) {
			enabled[tag] = true
			continue
		}
		if !strings.HasPrefix(name, ".") {
			name = "." + name
		}
		if tag := format.Detect("file" + name); tag != format.Unknown {
			enabled[tag] = true
		}
	}
	return enabled
}

func isKnown(tag format.Tag) bool {
	for _, t := range AllFormats() {
		if t == tag {
			return true
		}
	}
	return false
}

// BuildHandlerRegistry constructs the registry of compiled-in handlers,
// filtered by the enabled formats. Pass nil for enabled to register all of
// them. A nil parser makes PDF extraction read the local text layer.
func BuildHandlerRegistry(enabled map[format.Tag]bool, parser ai.DocumentParser, observer *observability.StandardObserver) (*redactors.Registry, error) {
	if enabled == nil {
		enabled = ParseFormats(nil)
	}

	var handlers []redactors.Handler
	if enabled[format.PDF] {
		handlers = append(handlers, pdf.NewPDFRedactor(parser, observer))
	}
	if enabled[format.Markdown] {
		handlers = append(handlers, markdown.NewMarkdownRedactor(observer))
	}
	if enabled[format.Excel] {
		handlers = append(handlers, excel.NewExcelRedactor(observer))
	}
	if enabled[format.PowerPoint] {
		handlers = append(handlers, powerpoint.NewPowerPointRedactor(observer))
	}
	return redactors.NewRegistry(handlers...)
}

// BuildExporterRegistry constructs the registry of export formats
func BuildExporterRegistry() *exporters.Registry {
	return exporters.NewRegistry(
		mdexport.NewExporter(),
		excelexport.NewExporter(),
		pptexport.NewExporter(),
	)
}
