package usecase

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures of the orchestration subsystem.
type ErrorCode string

const (
	CodeInvalidSnapshot ErrorCode = "InvalidSnapshot" // missing method/url at creation
	CodeAlreadyRunning  ErrorCode = "AlreadyRunning"  // exclusivity conflict, run rejected
	CodeEngineError     ErrorCode = "EngineError"     // engine failed or produced garbage
	CodeTimeout         ErrorCode = "Timeout"         // engine exceeded the run deadline
	CodeCancelled       ErrorCode = "Cancelled"       // caller stopped a running test
	CodeNotFound        ErrorCode = "NotFound"
	CodeNotRunning      ErrorCode = "NotRunning" // cancel requested while idle
)

// Error carries a taxonomy code alongside the underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels for the synchronous, never-persisted failure modes.
var (
	ErrNotFound        = &Error{Code: CodeNotFound, Message: "load test not found"}
	ErrAlreadyRunning  = &Error{Code: CodeAlreadyRunning, Message: "an execution is already in flight"}
	ErrNotRunning      = &Error{Code: CodeNotRunning, Message: "no execution in flight"}
	ErrStatusConflict  = errors.New("status compare-and-set conflict")
	ErrInvalidSnapshot = &Error{Code: CodeInvalidSnapshot, Message: "snapshot is missing method or url"}
)

// CodeOf extracts the taxonomy code from err, or "" when it carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
