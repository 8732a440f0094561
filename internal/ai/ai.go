// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ai defines the remote model collaborators used by the pipeline.
package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by stand-in clients when no model backend is set up
var ErrNotConfigured = errors.New("ai backend not configured")

// Completion sends a single prompt to a language model and returns the raw
// response text. Callers bound the call with a context deadline.
type Completion interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// DocumentParser turns the bytes of a PDF into per-page text, in page order
type DocumentParser interface {
	Parse(ctx context.Context, data []byte) ([]string, error)
}

// CompletionFunc adapts a function to the Completion interface
type CompletionFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completion
func (f CompletionFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ParserFunc adapts a function to the DocumentParser interface
type ParserFunc func(ctx context.Context, data []byte) ([]string, error)

// Parse implements DocumentParser
func (f ParserFunc) Parse(ctx context.Context, data []byte) ([]string, error) {
	return f(ctx, data)
}

// Unconfigured is a Completion that always fails with ErrNotConfigured
type Unconfigured struct{}

// Complete implements Completion
func (Unconfigured) Complete(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
