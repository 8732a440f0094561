// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package retrying wraps remote stores so throttling and transient network
// failures are retried with backoff.
package retrying

import (
	"context"
	"log/slog"

	"docredact/internal/resilience"
	"docredact/internal/storage"
)

// BlobStore retries a wrapped storage.BlobStore
type BlobStore struct {
	inner  storage.BlobStore
	config resilience.RetryConfig
}

// NewBlobStore wraps inner. A nil logger disables retry logging.
func NewBlobStore(inner storage.BlobStore, config resilience.RetryConfig, logger *slog.Logger) *BlobStore {
	return &BlobStore{inner: inner, config: withLogging(config, logger, "blob")}
}

// Get implements storage.BlobStore
func (s *BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	return resilience.RetryWithResult(ctx, s.config, func(ctx context.Context) ([]byte, error) {
		return s.inner.Get(ctx, path)
	})
}

// Put implements storage.BlobStore. A conflicting write is not retried.
func (s *BlobStore) Put(ctx context.Context, path string, data []byte, overwrite bool) error {
	return resilience.RetryWithBackoff(ctx, s.config, func(ctx context.Context) error {
		return s.inner.Put(ctx, path, data, overwrite)
	})
}

// TabularStore retries a wrapped storage.TabularStore
type TabularStore struct {
	inner  storage.TabularStore
	config resilience.RetryConfig
}

// NewTabularStore wraps inner. A nil logger disables retry logging.
func NewTabularStore(inner storage.TabularStore, config resilience.RetryConfig, logger *slog.Logger) *TabularStore {
	return &TabularStore{inner: inner, config: withLogging(config, logger, "table")}
}

// UpsertAll implements storage.TabularStore. The replace is idempotent, so a
// retried call converges on the same contents.
func (s *TabularStore) UpsertAll(ctx context.Context, table string, rows []storage.Row) error {
	return resilience.RetryWithBackoff(ctx, s.config, func(ctx context.Context) error {
		return s.inner.UpsertAll(ctx, table, rows)
	})
}

// QueryByPaths implements storage.TabularStore
func (s *TabularStore) QueryByPaths(ctx context.Context, table string, paths []string, limit int) ([]storage.Row, error) {
	return resilience.RetryWithResult(ctx, s.config, func(ctx context.Context) ([]storage.Row, error) {
		return s.inner.QueryByPaths(ctx, table, paths, limit)
	})
}

func withLogging(config resilience.RetryConfig, logger *slog.Logger, store string) resilience.RetryConfig {
	if logger == nil {
		return config
	}
	prev := config.OnRetry
	config.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying storage call",
			"store", store,
			"attempt", attempt,
			"error_type", resilience.ClassifyError(err).Type.String(),
			"error", err)
		if prev != nil {
			prev(attempt, err)
		}
	}
	return config
}
