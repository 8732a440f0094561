// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"context"
	"fmt"
	"path"
	"strings"

	"docredact/internal/storage"
)

const (
	// RedactedSuffix is inserted before the extension of redacted office and markdown files
	RedactedSuffix = "_redacted"

	// RedactedPrefix is prepended to the file name of redacted PDFs
	RedactedPrefix = "redacted_"
)

// SuffixedPath returns dir/stem_redacted.ext for p
func SuffixedPath(p string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	return dir + stem + RedactedSuffix + ext
}

// PrefixedPath returns dir/redacted_name for p
func PrefixedPath(p string) string {
	dir, file := path.Split(p)
	return dir + RedactedPrefix + file
}

// RedactStored fetches the document at p, redacts it with h and stores the
// result at h.OutputPath(p), overwriting any earlier redaction. An entity map
// with nothing to redact is a no-op that returns p without touching storage.
func RedactStored(ctx context.Context, blobs storage.BlobStore, h Handler, p string, entities EntityMap) (string, error) {
	if entities.Empty() {
		return p, nil
	}

	data, err := blobs.Get(ctx, p)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}

	out, err := h.Redact(ctx, data, entities)
	if err != nil {
		return "", WithPath(err, p)
	}
	if len(out) == 0 {
		return "", NewRedactionError(ErrorValidation, "redaction produced an empty document", p, h.GetComponentName(), nil)
	}
	if err := h.Validate(out); err != nil {
		return "", NewRedactionError(ErrorValidation, "redacted document does not re-open", p, h.GetComponentName(), err)
	}

	newPath := h.OutputPath(p)
	if err := blobs.Put(ctx, newPath, out, true); err != nil {
		return "", NewRedactionError(ErrorStorage, "failed to store redacted document", newPath, h.GetComponentName(), err)
	}
	return newPath, nil
}
