// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package format maps stored document paths onto the document formats the
// redaction pipeline understands. Detection is extension based only.
package format

import (
	"path"
	"sort"
	"strings"
)

// Tag identifies a document format
type Tag string

const (
	Markdown   Tag = "markdown"
	Excel      Tag = "excel"
	PowerPoint Tag = "powerpoint"
	PDF        Tag = "pdf"
	Unknown    Tag = "unknown"
)

var extensions = map[string]Tag{
	".md":       Markdown,
	".markdown": Markdown,
	".xlsx":     Excel,
	".xls":      Excel,
	".pptx":     PowerPoint,
	".ppt":      PowerPoint,
	".pdf":      PDF,
}

// Detect returns the format tag for a path based on its lowercased extension.
// Paths may use either slash style.
func Detect(p string) Tag {
	p = strings.ReplaceAll(p, "\\", "/")
	ext := strings.ToLower(path.Ext(p))
	if tag, ok := extensions[ext]; ok {
		return tag
	}
	return Unknown
}

// SupportedExtensions lists every recognised extension, sorted
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ExtensionsFor lists the extensions that map onto tag, sorted
func ExtensionsFor(tag Tag) []string {
	var exts []string
	for ext, t := range extensions {
		if t == tag {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// MimeType returns the content type used when serving a document of the given format
func MimeType(tag Tag, p string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))
	switch tag {
	case Markdown:
		return "text/markdown; charset=utf-8"
	case Excel:
		if ext == ".xls" {
			return "application/vnd.ms-excel"
		}
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case PowerPoint:
		if ext == ".ppt" {
			return "application/vnd.ms-powerpoint"
		}
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case PDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
