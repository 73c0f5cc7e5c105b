// Package errors provides a structured error system for SpoolFS with error codes, categories, and context.
package errors

import (
	"fmt"
	"strings"
	"syscall"
	"time"
)

// ErrorCode represents a structured error code for SpoolFS operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Namespace errors
	ErrCodeNoSuchEntry   ErrorCode = "NO_SUCH_ENTRY"
	ErrCodeNotAFile      ErrorCode = "NOT_A_FILE"
	ErrCodeNotADirectory ErrorCode = "NOT_A_DIRECTORY"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Strategy state errors
	ErrCodeAlreadyOpen ErrorCode = "ALREADY_OPEN"
	ErrCodeNotOpen     ErrorCode = "NOT_OPEN"

	// I/O errors
	ErrCodeOutOfRange    ErrorCode = "OUT_OF_RANGE"
	ErrCodeUnexpectedEof ErrorCode = "UNEXPECTED_EOF"
	ErrCodeIo            ErrorCode = "IO"

	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Mount lifecycle errors
	ErrCodeMountFailed   ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed ErrorCode = "UNMOUNT_FAILED"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryNamespace     ErrorCategory = "namespace"
	CategoryStrategy      ErrorCategory = "strategy"
	CategoryIO            ErrorCategory = "io"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMount         ErrorCategory = "mount"
	CategoryInternal      ErrorCategory = "internal"
)

// SpoolFSError represents a structured error with context and metadata.
type SpoolFSError struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *SpoolFSError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *SpoolFSError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *SpoolFSError) Is(target error) bool {
	if spoolFSErr, ok := target.(*SpoolFSError); ok {
		return e.Code == spoolFSErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *SpoolFSError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	for k, v := range e.Context {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("SpoolFSError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new SpoolFS error with default values.
func NewError(code ErrorCode, message string) *SpoolFSError {
	return &SpoolFSError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeNoSuchEntry, ErrCodeNotAFile, ErrCodeNotADirectory, ErrCodeAlreadyExists:
		return CategoryNamespace
	case ErrCodeAlreadyOpen, ErrCodeNotOpen:
		return CategoryStrategy
	case ErrCodeOutOfRange, ErrCodeUnexpectedEof, ErrCodeIo:
		return CategoryIO
	case ErrCodeInvalidConfig, ErrCodeConfigValidation:
		return CategoryConfiguration
	case ErrCodeMountFailed, ErrCodeUnmountFailed:
		return CategoryMount
	default:
		return CategoryInternal
	}
}

// Errno maps an error to the errno reported through the kernel protocol.
// Foreign (non-SpoolFS) errors map to EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	spoolFSErr, ok := err.(*SpoolFSError)
	if !ok {
		return syscall.EIO
	}

	switch spoolFSErr.Code {
	case ErrCodeNoSuchEntry:
		return syscall.ENOENT
	case ErrCodeNotAFile:
		return syscall.EISDIR
	case ErrCodeNotADirectory:
		return syscall.ENOTDIR
	case ErrCodeAlreadyExists:
		return syscall.EEXIST
	case ErrCodeAlreadyOpen, ErrCodeNotOpen:
		return syscall.EBADF
	case ErrCodeOutOfRange:
		return syscall.ERANGE
	case ErrCodeUnexpectedEof, ErrCodeIo:
		return syscall.EIO
	case ErrCodeInvalidConfig, ErrCodeConfigValidation:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// Code extracts the error code from an error, or ErrCodeInternalError for
// foreign errors.
func Code(err error) ErrorCode {
	if spoolFSErr, ok := err.(*SpoolFSError); ok {
		return spoolFSErr.Code
	}
	return ErrCodeInternalError
}

// WithContext adds contextual information to an error
func (e *SpoolFSError) WithContext(key, value string) *SpoolFSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *SpoolFSError) WithComponent(component string) *SpoolFSError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *SpoolFSError) WithOperation(operation string) *SpoolFSError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *SpoolFSError) WithCause(cause error) *SpoolFSError {
	e.Cause = cause
	return e
}
