package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(ErrCodeNoSuchEntry, "inode 42 not registered")

	if err.Code != ErrCodeNoSuchEntry {
		t.Errorf("expected code %s, got %s", ErrCodeNoSuchEntry, err.Code)
	}
	if err.Category != CategoryNamespace {
		t.Errorf("expected category %s, got %s", CategoryNamespace, err.Category)
	}
	if err.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *SpoolFSError
		expected string
	}{
		{
			name:     "bare error",
			err:      NewError(ErrCodeNotOpen, "strategy is closed"),
			expected: "NOT_OPEN: strategy is closed",
		},
		{
			name:     "with component",
			err:      NewError(ErrCodeIo, "short write").WithComponent("disk"),
			expected: "[disk] IO: short write",
		},
		{
			name:     "with component and operation",
			err:      NewError(ErrCodeIo, "short write").WithComponent("disk").WithOperation("write"),
			expected: "[disk:write] IO: short write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		category ErrorCategory
	}{
		{ErrCodeNoSuchEntry, CategoryNamespace},
		{ErrCodeNotAFile, CategoryNamespace},
		{ErrCodeAlreadyExists, CategoryNamespace},
		{ErrCodeAlreadyOpen, CategoryStrategy},
		{ErrCodeNotOpen, CategoryStrategy},
		{ErrCodeOutOfRange, CategoryIO},
		{ErrCodeUnexpectedEof, CategoryIO},
		{ErrCodeIo, CategoryIO},
		{ErrCodeInvalidConfig, CategoryConfiguration},
		{ErrCodeMountFailed, CategoryMount},
		{ErrCodeInternalError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := GetCategory(tt.code); got != tt.category {
				t.Errorf("GetCategory(%s) = %s, expected %s", tt.code, got, tt.category)
			}
		})
	}
}

func TestErrno(t *testing.T) {
	tests := []struct {
		code  ErrorCode
		errno syscall.Errno
	}{
		{ErrCodeNoSuchEntry, syscall.ENOENT},
		{ErrCodeNotAFile, syscall.EISDIR},
		{ErrCodeNotADirectory, syscall.ENOTDIR},
		{ErrCodeAlreadyExists, syscall.EEXIST},
		{ErrCodeAlreadyOpen, syscall.EBADF},
		{ErrCodeNotOpen, syscall.EBADF},
		{ErrCodeOutOfRange, syscall.ERANGE},
		{ErrCodeUnexpectedEof, syscall.EIO},
		{ErrCodeIo, syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := Errno(NewError(tt.code, "x")); got != tt.errno {
				t.Errorf("Errno(%s) = %d, expected %d", tt.code, got, tt.errno)
			}
		})
	}

	if got := Errno(nil); got != 0 {
		t.Errorf("Errno(nil) = %d, expected 0", got)
	}
	if got := Errno(fmt.Errorf("foreign")); got != syscall.EIO {
		t.Errorf("Errno(foreign) = %d, expected EIO", got)
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewError(ErrCodeIo, "write failed").WithCause(cause)

	if !stderrors.Is(err, NewError(ErrCodeIo, "any message")) {
		t.Error("errors.Is should match on error code")
	}
	if stderrors.Is(err, NewError(ErrCodeNotOpen, "any message")) {
		t.Error("errors.Is should not match different codes")
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestStringContainsContext(t *testing.T) {
	err := NewError(ErrCodeNoSuchEntry, "missing").
		WithComponent("namespace").
		WithContext("ino", "7")

	s := err.String()
	for _, want := range []string{"NO_SUCH_ENTRY", "namespace", "ino=7"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
