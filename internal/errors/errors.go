// Package errors defines the structured error taxonomy of the mark engine.
//
// Registration failures, template version mismatches and page processing failures
// carry an ErrorCode so callers can branch on the kind of failure without string
// matching. Field-level decode failures are only ever logged.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Image analysis errors
	ErrorRegistrationFailed ErrorCode = "REGISTRATION_FAILED"
	ErrorImageDisposed      ErrorCode = "IMAGE_DISPOSED"
	ErrorUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"

	// Template errors
	ErrorTemplateVersion ErrorCode = "TEMPLATE_VERSION"

	// Recognition errors
	ErrorFieldDecode    ErrorCode = "FIELD_DECODE_FAILED"
	ErrorPageProcessing ErrorCode = "PAGE_PROCESSING_FAILED"

	// Persistence errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// OMRError represents a structured engine error
type OMRError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *OMRError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OMRError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewRegistrationError(marksFound int) *OMRError {
	return &OMRError{
		Code:      ErrorRegistrationFailed,
		Message:   fmt.Sprintf("form doesn't have sufficient control information: found %d registration marks, need 4", marksFound),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"marks_found": marksFound,
		},
	}
}

func NewImageDisposedError() *OMRError {
	return &OMRError{
		Code:      ErrorImageDisposed,
		Message:   "scanned image has been closed",
		Timestamp: time.Now(),
	}
}

func NewUnsupportedFormatError(mimeType string, cause error) *OMRError {
	return &OMRError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported image format: %s", mimeType),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
		Cause: cause,
	}
}

func NewTemplateVersionError(version, maxVersion string) *OMRError {
	return &OMRError{
		Code:      ErrorTemplateVersion,
		Message:   fmt.Sprintf("template version %s is newer than the supported version %s", version, maxVersion),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"version":     version,
			"max_version": maxVersion,
		},
	}
}

func NewFieldDecodeError(fieldID string, cause error) *OMRError {
	return &OMRError{
		Code:      ErrorFieldDecode,
		Message:   fmt.Sprintf("field %s could not be decoded", fieldID),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"field_id": fieldID,
		},
		Cause: cause,
	}
}

func NewPageProcessingError(pageID string, cause error) *OMRError {
	return &OMRError{
		Code:      ErrorPageProcessing,
		Message:   fmt.Sprintf("page %s could not be processed", pageID),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"page_id": pageID,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(key string, cause error) *OMRError {
	return &OMRError{
		Code:      ErrorStorageFailed,
		Message:   fmt.Sprintf("failed to store %s", key),
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// HasCode reports whether err, or any error it wraps, is an OMRError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var oe *OMRError
	if stderrors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// ToMap converts error to map for logging and tool responses
func (e *OMRError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
