// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package entities

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/ai"
	"docredact/internal/redactors"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("INSTRUCTIONS", "Body text")
	assert.True(t, strings.HasPrefix(prompt, "INSTRUCTIONS\n\n## DOCUMENT TO ANALYZE\n\nBody text\n\n"))
	assert.Contains(t, prompt, "return ONLY a JSON dictionary")
}

func TestDefaultInstructionsEmbedded(t *testing.T) {
	assert.Contains(t, defaultInstructions, "[PERSON]")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     redactors.EntityMap
		wantErr  bool
	}{
		{
			name:     "plain object",
			response: `{"John Doe": "[PERSON]"}`,
			want:     redactors.EntityMap{"John Doe": "[PERSON]"},
		},
		{
			name:     "wrapped in prose and fences",
			response: "Here you go:\n```json\n{\"Acme\": \"[ORGANIZATION]\", \"a@b.io\": \"[EMAIL]\"}\n```\nLet me know.",
			want:     redactors.EntityMap{"Acme": "[ORGANIZATION]", "a@b.io": "[EMAIL]"},
		},
		{
			name:     "first balanced object wins",
			response: `{"A": "[X]"} and later {"B": "[Y]"}`,
			want:     redactors.EntityMap{"A": "[X]"},
		},
		{
			name:     "braces inside strings",
			response: `{"code {42}": "[ID_NUMBER]"}`,
			want:     redactors.EntityMap{"code {42}": "[ID_NUMBER]"},
		},
		{
			name:     "blank spans dropped",
			response: `{"": "[X]", "  ": "[Y]", "Jane": "[PERSON]"}`,
			want:     redactors.EntityMap{"Jane": "[PERSON]"},
		},
		{
			name:     "empty object",
			response: `{}`,
			want:     redactors.EntityMap{},
		},
		{
			name:     "no object",
			response: "I could not find anything.",
			want:     redactors.EntityMap{},
			wantErr:  true,
		},
		{
			name:     "nested values are not flat",
			response: `{"John": {"label": "[PERSON]"}}`,
			want:     redactors.EntityMap{},
			wantErr:  true,
		},
		{
			name:     "unbalanced",
			response: `{"John": "[PERSON]"`,
			want:     redactors.EntityMap{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.response)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIdentificationParse)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifySingleCall(t *testing.T) {
	var calls int32
	var prompt string
	completion := ai.CompletionFunc(func(_ context.Context, p string) (string, error) {
		atomic.AddInt32(&calls, 1)
		prompt = p
		return `{"John Doe": "[PERSON]"}`, nil
	})

	id := NewIdentifier(completion, WithInstructions("Find names."))
	got, err := id.Identify(context.Background(), "John Doe wrote this")
	require.NoError(t, err)
	assert.Equal(t, redactors.EntityMap{"John Doe": "[PERSON]"}, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, strings.HasPrefix(prompt, "Find names."))
	assert.Contains(t, prompt, "John Doe wrote this")
}

func TestIdentifyTimeout(t *testing.T) {
	var calls int32
	completion := ai.CompletionFunc(func(ctx context.Context, _ string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	id := NewIdentifier(completion, WithTimeout(20*time.Millisecond))
	got, err := id.Identify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrIdentificationTimeout)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retries")
}

func TestIdentifyUnparseable(t *testing.T) {
	completion := ai.CompletionFunc(func(context.Context, string) (string, error) {
		return "no entities", nil
	})
	got, err := NewIdentifier(completion).Identify(context.Background(), "text")
	assert.ErrorIs(t, err, ErrIdentificationParse)
	assert.Empty(t, got)
}

func TestIdentifyBackendError(t *testing.T) {
	boom := errors.New("quota exceeded")
	completion := ai.CompletionFunc(func(context.Context, string) (string, error) {
		return "", boom
	})
	got, err := NewIdentifier(completion).Identify(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}
