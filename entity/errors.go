package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller is not authenticated.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden means the caller is authenticated but not allowed.
	ErrForbidden = errors.New("not allowed")
	// ErrIllegalTransition is returned when a job status would move backwards.
	ErrIllegalTransition = errors.New("illegal job status transition")
)

// ValidationError is a client fault. Message is safe to show to users.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError -.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TranscodeErrorKind distinguishes transcoder failures.
type TranscodeErrorKind string

const (
	InvalidInputFormat TranscodeErrorKind = "invalid_input_format"
	EngineUnavailable  TranscodeErrorKind = "engine_unavailable"
	EncodingFailed     TranscodeErrorKind = "encoding_failed"
)

// ParseTranscodeErrorKind falls back to EncodingFailed for unknown values.
func ParseTranscodeErrorKind(s string) TranscodeErrorKind {
	switch k := TranscodeErrorKind(s); k {
	case InvalidInputFormat, EngineUnavailable, EncodingFailed:
		return k
	default:
		return EncodingFailed
	}
}

// TranscodeError carries the raw engine diagnostic in Reason.
type TranscodeError struct {
	Kind   TranscodeErrorKind
	Reason string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode: %s: %s", e.Kind, e.Reason)
}

// StorageError wraps a failure of the artifact store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
