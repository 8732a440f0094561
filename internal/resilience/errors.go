// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"

	"docredact/internal/storage"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown            ErrorType = iota
	ErrorTypeTransient                    // Temporary network issues
	ErrorTypePermanent                    // Invalid credentials, permissions, conflicts
	ErrorTypeTimeout                      // Request timeouts
	ErrorTypeRateLimit                    // API rate limiting
	ErrorTypeServiceUnavailable           // Backend 5xx
	ErrorTypeInvalidInput                 // Bad input data
	ErrorTypeResourceNotFound             // Missing blobs or rows
	ErrorTypeCanceled                     // Caller gave up
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "Unknown"
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeRateLimit:
		return "RateLimit"
	case ErrorTypeServiceUnavailable:
		return "ServiceUnavailable"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	case ErrorTypeResourceNotFound:
		return "ResourceNotFound"
	case ErrorTypeCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(et))
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

func classified(err error, t ErrorType, retryable bool) *ClassifiedError {
	return &ClassifiedError{Original: err, Type: t, Retryable: retryable}
}

// ClassifyError categorizes a storage or model backend error
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var already *ClassifiedError
	if errors.As(err, &already) {
		return already
	}

	switch {
	case errors.Is(err, context.Canceled):
		return classified(err, ErrorTypeCanceled, false)
	case errors.Is(err, storage.ErrNotFound):
		return classified(err, ErrorTypeResourceNotFound, false)
	case errors.Is(err, storage.ErrAlreadyExists):
		return classified(err, ErrorTypePermanent, false)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(err, apiErr.Code)
	}

	if isNetworkError(err) {
		return classified(err, ErrorTypeTransient, true)
	}
	if isTimeoutError(err) {
		return classified(err, ErrorTypeTimeout, true)
	}

	// gRPC backends surface their status only in the message
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "resourceexhausted") || strings.Contains(errStr, "resource exhausted") ||
		strings.Contains(errStr, "rate limit"):
		return classified(err, ErrorTypeRateLimit, true)
	case strings.Contains(errStr, "code = unavailable") || strings.Contains(errStr, "service unavailable"):
		return classified(err, ErrorTypeServiceUnavailable, true)
	case strings.Contains(errStr, "permissiondenied") || strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "unauthenticated"):
		return classified(err, ErrorTypePermanent, false)
	case strings.Contains(errStr, "invalidargument") || strings.Contains(errStr, "malformed"):
		return classified(err, ErrorTypeInvalidInput, false)
	}

	return classified(err, ErrorTypeUnknown, false)
}

func classifyStatus(err error, code int) *ClassifiedError {
	switch {
	case code == http.StatusTooManyRequests:
		return classified(err, ErrorTypeRateLimit, true)
	case code == http.StatusRequestTimeout:
		return classified(err, ErrorTypeTimeout, true)
	case code >= 500:
		return classified(err, ErrorTypeServiceUnavailable, true)
	case code == http.StatusNotFound:
		return classified(err, ErrorTypeResourceNotFound, false)
	case code == http.StatusBadRequest:
		return classified(err, ErrorTypeInvalidInput, false)
	default:
		return classified(err, ErrorTypePermanent, false)
	}
}

// isNetworkError checks if an error is network-related
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// isTimeoutError checks if an error is timeout-related
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable reports whether an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).IsRetryable()
}
