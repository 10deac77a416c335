package model

import "fmt"

// ErrNotFound is returned when an operation names a band/album that doesn't
// exist. Mirrors the teacher's model.ErrNotFound sentinel.
var ErrNotFound = fmt.Errorf("not found")

// ErrorCode is the machine-readable code surfaced on the transport's error
// envelope (§6.1/§7). Names follow the error taxonomy of spec §4.11.
type ErrorCode string

const (
	CodeParseError      ErrorCode = "PARSE_ERROR"
	CodeScanError       ErrorCode = "SCAN_ERROR"
	CodeLockError       ErrorCode = "LOCK_ERROR"
	CodeWriteError      ErrorCode = "WRITE_ERROR"
	CodeCorruptError    ErrorCode = "CORRUPT_ERROR"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeMigrationError  ErrorCode = "MIGRATION_ERROR"
	CodeNotFoundError   ErrorCode = "NOT_FOUND_ERROR"
)

// CoreError is the common shape of every error this core can surface to a
// caller. It carries a stable Code plus optional structured Details so a
// transport layer never needs to string-match messages.
type CoreError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	cause   error
}

func (e *CoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CoreError) Unwrap() error { return e.cause }

func newError(code ErrorCode, msg string, cause error, details map[string]any) *CoreError {
	return &CoreError{Code: code, Message: msg, cause: cause, Details: details}
}

func NewParseError(msg string, cause error) *CoreError {
	return newError(CodeParseError, msg, cause, nil)
}

func NewScanError(msg string, cause error) *CoreError {
	return newError(CodeScanError, msg, cause, nil)
}

func NewLockError(bandPath string, cause error) *CoreError {
	return newError(CodeLockError, "timed out acquiring band lock", cause, map[string]any{"band_path": bandPath})
}

func NewWriteError(path string, cause error) *CoreError {
	return newError(CodeWriteError, "failed writing metadata file", cause, map[string]any{"path": path})
}

func NewCorruptError(path string, cause error) *CoreError {
	return newError(CodeCorruptError, "metadata file and backup are both unreadable", cause, map[string]any{"path": path})
}

func NewValidationError(msg string, issues []string) *CoreError {
	return newError(CodeValidationError, msg, nil, map[string]any{"issues": issues})
}

func NewMigrationError(msg string, cause error) *CoreError {
	return newError(CodeMigrationError, msg, cause, nil)
}

func NewNotFoundError(kind, name string) *CoreError {
	return newError(CodeNotFoundError, fmt.Sprintf("%s %q not found", kind, name), ErrNotFound, map[string]any{"kind": kind, "name": name})
}
