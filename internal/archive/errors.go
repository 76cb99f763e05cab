package archive

import (
	"errors"
	"fmt"
)

// ArchiveError represents a failure detected while processing an
// action.
//
// Archive errors include:
//   - Admission: document count or file size limit exceeded
//   - Sandbox: target path outside the configured prefix
//   - IO: open/create/read/write failure (wraps the OS error text)
//   - Invalid index: stale or out-of-range document reference
//   - Protocol misuse: save requested with nothing selected
//
// Admission, sandbox, and I/O errors are recovered locally and reach
// the caller through the error notification. Invalid-index errors are
// logged and the action is dropped. Protocol misuse is a programming
// contract violation by the collaborator and is fatal.
type ArchiveError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path identifies the affected file, when known.
	Path string

	// Index identifies the affected registry slot (admission/index errors).
	Index int
}

// ErrorCode categorizes archive errors.
type ErrorCode string

const (
	// ErrCodeAdmission indicates a capacity or size limit was exceeded.
	ErrCodeAdmission ErrorCode = "ADMISSION_LIMIT"

	// ErrCodeSandbox indicates a path outside the configured prefix.
	ErrCodeSandbox ErrorCode = "SANDBOX_VIOLATION"

	// ErrCodeIO indicates a filesystem operation failed.
	ErrCodeIO ErrorCode = "IO_FAILURE"

	// ErrCodeInvalidIndex indicates a stale or out-of-range document reference.
	ErrCodeInvalidIndex ErrorCode = "INVALID_INDEX"

	// ErrCodeProtocol indicates the request API was used out of contract.
	ErrCodeProtocol ErrorCode = "PROTOCOL_MISUSE"
)

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsAdmissionError reports whether err is an admission-limit error.
// Uses errors.As to handle wrapped errors.
func IsAdmissionError(err error) bool {
	var ae *ArchiveError
	return errors.As(err, &ae) && ae.Code == ErrCodeAdmission
}

// IsSandboxError reports whether err is a sandbox violation.
func IsSandboxError(err error) bool {
	var ae *ArchiveError
	return errors.As(err, &ae) && ae.Code == ErrCodeSandbox
}

// IsIOError reports whether err is a filesystem failure.
func IsIOError(err error) bool {
	var ae *ArchiveError
	return errors.As(err, &ae) && ae.Code == ErrCodeIO
}

func newAdmissionError(msg string) *ArchiveError {
	return &ArchiveError{Code: ErrCodeAdmission, Message: msg}
}

func newSandboxError(msg, path string) *ArchiveError {
	return &ArchiveError{Code: ErrCodeSandbox, Message: msg, Path: path}
}

func newIOError(msg, path string) *ArchiveError {
	return &ArchiveError{Code: ErrCodeIO, Message: msg, Path: path}
}
