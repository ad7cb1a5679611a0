package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiftError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk went away")

	// When: wrapping with SiftError
	siftErr := New(ErrCodeStoreWrite, "failed to write docs row", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, siftErr)
	assert.Equal(t, originalErr, errors.Unwrap(siftErr))
	assert.True(t, errors.Is(siftErr, originalErr))
}

func TestSiftError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigInvalid,
			message:  "index path is required",
			expected: "[ERR_101_CONFIG_INVALID] index path is required",
		},
		{
			name:     "ingest error",
			code:     ErrCodeContentTooLarge,
			message:  "posts/big.md exceeds 1048576 bytes",
			expected: "[ERR_201_CONTENT_TOO_LARGE] posts/big.md exceeds 1048576 bytes",
		},
		{
			name:     "storage error",
			code:     ErrCodeStoreQuery,
			message:  "search failed",
			expected: "[ERR_303_STORE_QUERY] search failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSiftError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeNoSourceFiles, "no markdown files under /a", nil)
	err2 := New(ErrCodeNoSourceFiles, "no markdown files under /b", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestSiftError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeNoSourceFiles, "no files", nil)
	err2 := New(ErrCodeNoPublishableDocs, "all drafts", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestSiftError_CategoryDerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeContentTooLarge, CategoryIngest},
		{ErrCodeStoreOpen, CategoryStorage},
		{ErrCodeUnauthorized, CategoryProtocol},
		{ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "x", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestSiftError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeContentTooLarge, "file too large", nil).
		WithDetail("path", "posts/huge.md").
		WithDetail("limit", "1048576")

	assert.Equal(t, "posts/huge.md", err.Details["path"])
	assert.Equal(t, "1048576", err.Details["limit"])
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeNoSourceFiles, "none", nil)))
	assert.False(t, IsFatal(New(ErrCodeContentTooLarge, "big", nil)))
	assert.False(t, IsFatal(errors.New("plain error")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeBadRequest, GetCode(New(ErrCodeBadRequest, "bad", nil)))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}
