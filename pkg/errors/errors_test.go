package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeShapeMismatch, "shape mismatch"),
			expected: "[SHAPE_MISMATCH] shape mismatch",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeIOFailure, "copy failed", errors.New("disk full")),
			expected: "[IO_FAILURE] copy failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeIOFailure, "read failed", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeShapeMismatch, "error 1")
	err2 := New(CodeShapeMismatch, "error 2")
	err3 := New(CodeIOFailure, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsMissingUniversalMetadata(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "missing metadata error",
			err:      ErrMissingUniversalMetadata,
			expected: true,
		},
		{
			name:     "wrapped missing metadata error",
			err:      Wrap(CodeMissingUniversalMetadata, "no universal checkpoint info", errors.New("key absent")),
			expected: true,
		},
		{
			name:     "other error",
			err:      ErrShapeMismatch,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMissingUniversalMetadata(tt.err))
		})
	}
}

func TestIsShapeMismatch(t *testing.T) {
	assert.True(t, IsShapeMismatch(ErrShapeMismatch))
	assert.False(t, IsShapeMismatch(ErrIOFailure))
}

func TestIsReplicationViolation(t *testing.T) {
	assert.True(t, IsReplicationViolation(ErrReplicationViolation))
	assert.False(t, IsReplicationViolation(ErrIOFailure))
}

func TestIsIOFailure(t *testing.T) {
	assert.True(t, IsIOFailure(ErrIOFailure))
	assert.False(t, IsIOFailure(ErrShapeMismatch))
}

func TestIsClassifierAmbiguity(t *testing.T) {
	assert.True(t, IsClassifierAmbiguity(ErrClassifierAmbiguity))
	assert.False(t, IsClassifierAmbiguity(ErrShapeMismatch))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeShapeMismatch, "shape mismatch"),
			expected: CodeShapeMismatch,
		},
		{
			name:     "wrapped app error",
			err:      Wrap(CodeIOFailure, "copy", errors.New("inner")),
			expected: CodeIOFailure,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      New(CodeShapeMismatch, "shape mismatch detected"),
			expected: "shape mismatch detected",
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: "standard error",
		},
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorMessage(tt.err))
		})
	}
}
