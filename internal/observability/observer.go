// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// StandardObserver implements observability for all components
type StandardObserver struct {
	level         ObservabilityLevel
	logger        *slog.Logger
	DebugObserver *DebugObserver // Reference to debug observer when in debug mode
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// ParseLevel maps a configuration string onto an observability level.
// Unknown values fall back to metrics.
func ParseLevel(s string) ObservabilityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "quiet":
		return ObservabilityOff
	case "debug":
		return ObservabilityDebug
	default:
		return ObservabilityMetrics
	}
}

// NewStandardObserver creates observability component writing JSON records to writer
func NewStandardObserver(level ObservabilityLevel, writer io.Writer) *StandardObserver {
	slogLevel := slog.LevelInfo
	if level == ObservabilityDebug {
		slogLevel = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slogLevel})
	return NewStandardObserverWithLogger(level, slog.New(handler))
}

// NewStandardObserverWithLogger creates observability component on top of an existing logger
func NewStandardObserverWithLogger(level ObservabilityLevel, logger *slog.Logger) *StandardObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandardObserver{
		level:  level,
		logger: logger,
	}
}

// Logger returns the structured logger behind the observer. A nil observer
// yields a logger that discards everything.
func (o *StandardObserver) Logger() *slog.Logger {
	if o == nil || o.level == ObservabilityOff {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// Level returns the configured observability level
func (o *StandardObserver) Level() ObservabilityLevel {
	if o == nil {
		return ObservabilityOff
	}
	return o.level
}

// StartTiming returns a function to complete timing
func (o *StandardObserver) StartTiming(component, operation, filePath string) func(success bool, metadata map[string]interface{}) {
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		if o == nil {
			return
		}
		duration := time.Since(start)

		data := StandardObservabilityData{
			Component:  component,
			Operation:  operation,
			FilePath:   filePath,
			DurationMs: duration.Milliseconds(),
			Success:    success,
			Metadata:   metadata,
		}
		if errMsg, ok := metadata["error"].(string); ok {
			data.Error = errMsg
		}

		o.LogOperation(data)
	}
}

// LogOperation logs operation data
func (o *StandardObserver) LogOperation(data StandardObservabilityData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	data.RequestID = "req-" + time.Now().Format("20060102-150405")

	attrs := []slog.Attr{
		slog.String("component", data.Component),
		slog.String("operation", data.Operation),
		slog.String("request_id", data.RequestID),
		slog.Bool("success", data.Success),
	}
	if data.FilePath != "" {
		attrs = append(attrs, slog.String("file_path", data.FilePath))
	}
	if data.DurationMs > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", data.DurationMs))
	}
	if data.Error != "" {
		attrs = append(attrs, slog.String("error", data.Error))
	}
	if data.ContentLength > 0 {
		attrs = append(attrs, slog.Int("content_length", data.ContentLength))
	}
	if data.MatchCount > 0 {
		attrs = append(attrs, slog.Int("match_count", data.MatchCount))
	}
	if len(data.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", data.Metadata))
	}

	// Failures are always reported, successes only in debug mode
	switch {
	case !data.Success:
		o.logger.LogAttrs(context.Background(), slog.LevelWarn, "operation failed", attrs...)
	case o.level == ObservabilityDebug:
		o.logger.LogAttrs(context.Background(), slog.LevelDebug, "operation completed", attrs...)
	}
}

// StandardObservabilityData for all components
type StandardObservabilityData struct {
	Component     string                 `json:"component"`
	Operation     string                 `json:"operation"`
	RequestID     string                 `json:"request_id"`
	FilePath      string                 `json:"file_path,omitempty"`
	DurationMs    int64                  `json:"duration_ms,omitempty"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	ContentLength int                    `json:"content_length,omitempty"`
	MatchCount    int                    `json:"match_count,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}
