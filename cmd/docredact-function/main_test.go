// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"docredact/internal/config"
)

func TestUploadPath(t *testing.T) {
	settings := config.Settings{VolumePath: "/Volumes/docs/uploads/"}
	tests := []struct {
		name string
		obj  storageObject
		want string
		ok   bool
	}{
		{"upload in default bucket", storageObject{Bucket: "docs", Name: "Volumes/docs/uploads/report.pdf"}, "/Volumes/docs/uploads/report.pdf", true},
		{"other bucket", storageObject{Bucket: "other", Name: "Volumes/docs/uploads/a.md"}, "gs://other/Volumes/docs/uploads/a.md", true},
		{"outside volume", storageObject{Bucket: "docs", Name: "Volumes/docs/exports/export.md"}, "", false},
		{"redacted pdf", storageObject{Bucket: "docs", Name: "Volumes/docs/uploads/redacted_report.pdf"}, "", false},
		{"redacted markdown", storageObject{Bucket: "docs", Name: "Volumes/docs/uploads/notes_redacted.md"}, "", false},
		{"unsupported", storageObject{Bucket: "docs", Name: "Volumes/docs/uploads/data.csv"}, "", false},
		{"folder marker", storageObject{Bucket: "docs", Name: "Volumes/docs/uploads/"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := uploadPath(tt.obj, "docs", settings)
			if ok != tt.ok || got != tt.want {
				t.Errorf("uploadPath() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
