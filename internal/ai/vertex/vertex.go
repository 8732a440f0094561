// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package vertex talks to Gemini models on Vertex AI. One client serves both
// plain completions and PDF page transcription.
package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultModel is used when the configuration names none
const DefaultModel = "gemini-1.5-pro"

const parserSystemPrompt = "You are a document parser. Transcribe the text of every page of the attached PDF exactly as written, without summarising, translating or correcting it."

const parserUserPrompt = `Return a JSON array of strings with exactly one element per page, in page order.
Each element holds the full text of that page. Use an empty string for pages without text.
Do not include any text before or after the JSON array.`

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("model returned no text")

// Config selects the project, region and model
type Config struct {
	ProjectID string
	Location  string
	Model     string
}

// Client implements ai.Completion and ai.DocumentParser
type Client struct {
	base       *genai.Client
	completion *genai.GenerativeModel
	parser     *genai.GenerativeModel
}

// NewClient creates a client holding the completion and parser models
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("vertex: project and location must be set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	completion := base.GenerativeModel(cfg.Model)
	completion.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	parser := base.GenerativeModel(cfg.Model)
	parser.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(parserSystemPrompt)},
	}
	parser.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &Client{base: base, completion: completion, parser: parser}, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Complete implements ai.Completion
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.completion.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return ResponseText(resp)
}

// Parse implements ai.DocumentParser
func (c *Client) Parse(ctx context.Context, data []byte) ([]string, error) {
	pdf := genai.Blob{MIMEType: "application/pdf", Data: data}
	resp, err := c.parser.GenerateContent(ctx, pdf, genai.Text(parserUserPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document with gemini: %w", err)
	}
	text, err := ResponseText(resp)
	if err != nil {
		return nil, err
	}
	return DecodePages(text)
}

// ResponseText concatenates the text parts of the first candidate
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// DecodePages reads the page array, tolerating a fenced code block around it
func DecodePages(raw string) ([]string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	var pages []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &pages); err != nil {
		return nil, fmt.Errorf("failed to decode page array: %w", err)
	}
	return pages, nil
}
