// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package gcs stores blobs as Cloud Storage objects.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"docredact/internal/format"
	docstorage "docredact/internal/storage"
)

// BlobStore reads and writes objects. Paths are either gs://bucket/object
// URIs or object names inside the default bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// NewBlobStore creates a store using client with bucket as the default bucket
func NewBlobStore(client *storage.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket}
}

// Open creates a client from ambient credentials
func Open(ctx context.Context, bucket string) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return NewBlobStore(client, bucket), nil
}

// Close releases the underlying client
func (s *BlobStore) Close() error {
	return s.client.Close()
}

// ParseURI splits p into bucket and object name
func ParseURI(p, defaultBucket string) (bucket, object string, err error) {
	if rest, ok := strings.CutPrefix(p, "gs://"); ok {
		bucket, object, _ = strings.Cut(rest, "/")
	} else {
		bucket, object = defaultBucket, strings.TrimLeft(p, "/")
	}
	if bucket == "" {
		return "", "", fmt.Errorf("no bucket for path %q", p)
	}
	if object == "" {
		return "", "", fmt.Errorf("no object name in path %q", p)
	}
	return bucket, object, nil
}

func (s *BlobStore) object(p string) (*storage.ObjectHandle, error) {
	bucket, name, err := ParseURI(p, s.bucket)
	if err != nil {
		return nil, err
	}
	return s.client.Bucket(bucket).Object(name), nil
}

// Get implements storage.BlobStore
func (s *BlobStore) Get(ctx context.Context, p string) ([]byte, error) {
	obj, err := s.object(p)
	if err != nil {
		return nil, err
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", p, docstorage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Put implements storage.BlobStore. Without overwrite the write is
// conditional on the object not existing, so concurrent writers cannot
// clobber each other.
func (s *BlobStore) Put(ctx context.Context, p string, data []byte, overwrite bool) error {
	obj, err := s.object(p)
	if err != nil {
		return err
	}
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = format.MimeType(format.Detect(p), p)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return s.writeError(p, err)
	}
	if err := w.Close(); err != nil {
		return s.writeError(p, err)
	}
	return nil
}

func (s *BlobStore) writeError(p string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("%s: %w", p, docstorage.ErrAlreadyExists)
	}
	return fmt.Errorf("failed to write %s: %w", p, err)
}
