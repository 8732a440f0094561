// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package entities asks a language model which spans of a document are
// sensitive and turns its answer into an entity map.
package entities

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docredact/internal/ai"
	"docredact/internal/observability"
	"docredact/internal/redactors"
)

//go:embed ner_prompt.md
var defaultInstructions string

// DefaultTimeout bounds a single completion call
const DefaultTimeout = 50 * time.Second

var (
	// ErrIdentificationTimeout is returned when the completion does not answer in time
	ErrIdentificationTimeout = errors.New("entity identification timed out")

	// ErrIdentificationParse is returned when the answer holds no usable entity object
	ErrIdentificationParse = errors.New("entity identification response could not be parsed")
)

// Identifier builds the NER prompt, performs one completion call and parses
// the answer. It never retries.
type Identifier struct {
	completion   ai.Completion
	instructions string
	timeout      time.Duration
	observer     *observability.StandardObserver
}

// Option configures an Identifier
type Option func(*Identifier)

// WithInstructions replaces the embedded instruction template
func WithInstructions(instructions string) Option {
	return func(id *Identifier) {
		if instructions != "" {
			id.instructions = instructions
		}
	}
}

// WithTimeout sets the completion timeout
func WithTimeout(d time.Duration) Option {
	return func(id *Identifier) {
		if d > 0 {
			id.timeout = d
		}
	}
}

// WithObserver attaches an observer
func WithObserver(o *observability.StandardObserver) Option {
	return func(id *Identifier) { id.observer = o }
}

// NewIdentifier creates an Identifier around completion
func NewIdentifier(completion ai.Completion, opts ...Option) *Identifier {
	id := &Identifier{
		completion:   completion,
		instructions: defaultInstructions,
		timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// BuildPrompt joins the instruction template and the document text
func BuildPrompt(instructions, text string) string {
	return fmt.Sprintf("%s\n\n## DOCUMENT TO ANALYZE\n\n%s\n\n"+
		"Please analyze the above document content and return ONLY a JSON dictionary of entities "+
		"that need redaction, following the format specified in the prompt.", instructions, text)
}

// Identify returns the sensitive spans of text. The returned map is never
// nil: on timeout or an unusable answer it is empty and the error says why,
// callers treat both as "no entities found".
func (id *Identifier) Identify(ctx context.Context, text string) (redactors.EntityMap, error) {
	finishTiming := id.observer.StartTiming("entity_identifier", "identify", "")

	callCtx, cancel := context.WithTimeout(ctx, id.timeout)
	defer cancel()

	response, err := id.completion.Complete(callCtx, BuildPrompt(id.instructions, text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrIdentificationTimeout, id.timeout)
		}
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return redactors.EntityMap{}, err
	}

	entities, err := ParseResponse(response)
	if err != nil {
		finishTiming(false, map[string]interface{}{
			"error":           err.Error(),
			"response_length": len(response),
		})
		return redactors.EntityMap{}, err
	}

	finishTiming(true, map[string]interface{}{"entity_count": len(entities)})
	return entities, nil
}

// ParseResponse decodes the first balanced {...} object in response as a flat
// string to string map. Blank spans are dropped.
func ParseResponse(response string) (redactors.EntityMap, error) {
	obj, ok := firstObject(response)
	if !ok {
		return redactors.EntityMap{}, fmt.Errorf("%w: no JSON object in response", ErrIdentificationParse)
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return redactors.EntityMap{}, fmt.Errorf("%w: %v", ErrIdentificationParse, err)
	}

	out := make(redactors.EntityMap, len(raw))
	for span, label := range raw {
		if strings.TrimSpace(span) == "" {
			continue
		}
		out[span] = label
	}
	return out, nil
}

// firstObject returns the first balanced brace delimited substring of s.
// Braces inside JSON string literals do not count.
func firstObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
