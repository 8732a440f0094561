// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ai

import (
	"context"

	"docredact/internal/resilience"
)

// Guarded sends completions through a circuit breaker so a batch stops
// waiting on a model endpoint that keeps timing out.
type Guarded struct {
	inner   Completion
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps inner with breaker
func NewGuarded(inner Completion, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

// Complete implements Completion
func (g *Guarded) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Complete(ctx, prompt)
		return err
	})
	return out, err
}

// Stats reports the breaker state
func (g *Guarded) Stats() resilience.CircuitBreakerStats {
	return g.breaker.GetStats()
}
