package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the orchestration layer.
type ErrorCode string

// Scheduler error codes
const (
	ErrWorkerNotFound     ErrorCode = "WORKER_NOT_FOUND"
	ErrTaskNotFound       ErrorCode = "TASK_NOT_FOUND"
	ErrTaskMismatch       ErrorCode = "TASK_MISMATCH"
	ErrInvalidDescriptor  ErrorCode = "INVALID_DESCRIPTOR"
	ErrInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrWorkerUnavailable  ErrorCode = "WORKER_UNAVAILABLE"
	ErrWorkerExecution    ErrorCode = "WORKER_EXECUTION"
	ErrExecutorNotBound   ErrorCode = "EXECUTOR_NOT_BOUND"
	ErrSchedulerClosed    ErrorCode = "SCHEDULER_CLOSED"
	ErrDispatchQueueFull  ErrorCode = "DISPATCH_QUEUE_FULL"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Workflow error codes
const (
	ErrValidation        ErrorCode = "VALIDATION"
	ErrRecoveryExhausted ErrorCode = "RECOVERY_EXHAUSTED"
	ErrNoBackup          ErrorCode = "NO_BACKUP"
	ErrIllegalStep       ErrorCode = "ILLEGAL_STEP"
	ErrFinalization      ErrorCode = "FINALIZATION"
)

// Messaging error codes
const (
	ErrMessageExpired ErrorCode = "MESSAGE_EXPIRED"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrUnknownAgent   ErrorCode = "UNKNOWN_AGENT"
	ErrMailboxFull    ErrorCode = "MAILBOX_FULL"
	ErrMessageUnknown ErrorCode = "MESSAGE_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	WorkerID  string    `json:"worker_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so sentinel
// values built with NewError can be matched with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithWorker sets the worker the error originated from.
func (e *Error) WithWorker(workerID string) *Error {
	e.WorkerID = workerID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// WrapError 将任意错误包装为带错误码的 Error，已是 *Error 的保持原样
func WrapError(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(code, message).WithCause(err)
}
