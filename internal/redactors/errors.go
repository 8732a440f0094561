// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redactors

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExtraction marks bytes that could not be parsed as their declared format
	ErrExtraction = errors.New("document could not be parsed")

	// ErrEncryptedDocument marks documents that need a password to open
	ErrEncryptedDocument = errors.New("document is encrypted")

	// ErrUnsupportedFormat marks paths no registered handler accepts
	ErrUnsupportedFormat = errors.New("format not supported")

	// ErrCompoundFile marks OLE compound files handed to an Open XML reader:
	// legacy binary .xls and .ppt documents, and password protected packages
	ErrCompoundFile = errors.New("legacy binary or password protected Office file, only .xlsx and .pptx packages can be read")
)

// compoundFileSignature starts every OLE compound file
var compoundFileSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// RedactionErrorType defines the type of redaction error
type RedactionErrorType int

const (
	// ErrorExtraction indicates the source bytes could not be parsed
	ErrorExtraction RedactionErrorType = iota

	// ErrorEncrypted indicates a password protected document
	ErrorEncrypted

	// ErrorUnsupportedFormat indicates no handler exists for the format
	ErrorUnsupportedFormat

	// ErrorDocumentProcessing indicates a failure while rewriting a document
	ErrorDocumentProcessing

	// ErrorValidation indicates the rewritten document failed to re-open
	ErrorValidation

	// ErrorStorage indicates a blob store read or write failure
	ErrorStorage
)

// String returns the string representation of the error type
func (ret RedactionErrorType) String() string {
	switch ret {
	case ErrorExtraction:
		return "extraction"
	case ErrorEncrypted:
		return "encrypted_document"
	case ErrorUnsupportedFormat:
		return "unsupported_format"
	case ErrorDocumentProcessing:
		return "document_processing"
	case ErrorValidation:
		return "validation"
	case ErrorStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// RedactionError represents an error that occurred during extraction or redaction
type RedactionError struct {
	// Type is the type of error
	Type RedactionErrorType

	// Message is the error message
	Message string

	// FilePath is the path to the file being processed when the error occurred
	FilePath string

	// Component is the component that generated the error
	Component string

	// Recoverable indicates whether the batch can carry on with other files
	Recoverable bool

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface
func (re *RedactionError) Error() string {
	msg := fmt.Sprintf("[%s] %s (component: %s)", re.Type.String(), re.Message, re.Component)
	if re.FilePath != "" {
		msg = fmt.Sprintf("[%s] %s (file: %s, component: %s)", re.Type.String(), re.Message, re.FilePath, re.Component)
	}
	if re.Cause != nil {
		msg += ": " + re.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping
func (re *RedactionError) Unwrap() error {
	return re.Cause
}

// Is lets errors.Is match the package sentinels by error type
func (re *RedactionError) Is(target error) bool {
	switch target {
	case ErrExtraction:
		return re.Type == ErrorExtraction
	case ErrEncryptedDocument:
		return re.Type == ErrorEncrypted
	case ErrUnsupportedFormat:
		return re.Type == ErrorUnsupportedFormat
	}
	return false
}

// NewRedactionError creates a new RedactionError
func NewRedactionError(errorType RedactionErrorType, message, filePath, component string, cause error) *RedactionError {
	return &RedactionError{
		Type:        errorType,
		Message:     message,
		FilePath:    filePath,
		Component:   component,
		Recoverable: true,
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// ExtractionError wraps a parse failure raised by component
func ExtractionError(component string, cause error) error {
	return NewRedactionError(ErrorExtraction, "failed to parse document", "", component, cause)
}

// CheckOpenXML rejects OLE compound files before they reach a zip based
// reader, so the outcome names the real problem instead of a zip error
func CheckOpenXML(component string, data []byte) error {
	if bytes.HasPrefix(data, compoundFileSignature) {
		return ExtractionError(component, ErrCompoundFile)
	}
	return nil
}

// EncryptedError reports a password protected document
func EncryptedError(component string, cause error) error {
	return NewRedactionError(ErrorEncrypted, "document requires a password", "", component, cause)
}

// WithPath returns err annotated with the file path when it is a RedactionError
// that does not carry one yet
func WithPath(err error, filePath string) error {
	var re *RedactionError
	if errors.As(err, &re) && re.FilePath == "" {
		cp := *re
		cp.FilePath = filePath
		return &cp
	}
	return err
}
