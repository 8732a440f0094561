// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package retrying

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"docredact/internal/resilience"
	"docredact/internal/storage"
	"docredact/internal/storage/memory"
)

type flakyBlobs struct {
	*memory.BlobStore
	failures int
	calls    int
}

func (f *flakyBlobs) Get(ctx context.Context, path string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &googleapi.Error{Code: 503, Message: "backend unavailable"}
	}
	return f.BlobStore.Get(ctx, path)
}

func fastConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestBlobStoreRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	inner := &flakyBlobs{BlobStore: memory.NewBlobStore(), failures: 2}
	require.NoError(t, inner.Put(ctx, "a.md", []byte("hello"), false))

	var logs bytes.Buffer
	s := NewBlobStore(inner, fastConfig(), slog.New(slog.NewJSONHandler(&logs, nil)))
	got, err := s.Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, 3, inner.calls)
	assert.Contains(t, logs.String(), `"error_type":"ServiceUnavailable"`)
}

func TestBlobStoreDoesNotRetryMissingOrConflicting(t *testing.T) {
	ctx := context.Background()
	inner := &flakyBlobs{BlobStore: memory.NewBlobStore()}
	s := NewBlobStore(inner, fastConfig(), nil)

	_, err := s.Get(ctx, "missing.md")
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1, inner.calls)

	require.NoError(t, s.Put(ctx, "x.md", []byte("1"), false))
	err = s.Put(ctx, "x.md", []byte("2"), false)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestTabularStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	s := NewTabularStore(memory.NewTabularStore(), fastConfig(), nil)
	require.NoError(t, s.UpsertAll(ctx, "docs", []storage.Row{{Path: "a.md", Content: "alpha"}}))

	rows, err := s.QueryByPaths(ctx, "docs", []string{"a.md"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []storage.Row{{Path: "a.md", Content: "alpha"}}, rows)
}
