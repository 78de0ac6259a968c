package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(ErrNotFound))
	assert.Equal(t, http.StatusConflict, StatusOf(ErrInvalidState))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("creating report: %w", ErrInvalidSite)
	assert.Equal(t, http.StatusBadRequest, StatusOf(wrapped))
}

func TestSentinelMatchingThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("photo %q: %w", "a.jpg", ErrImageDecode)
	assert.True(t, stderrors.Is(wrapped, ErrImageDecode))
	assert.False(t, stderrors.Is(wrapped, ErrNotFound))
}

func TestErrorString(t *testing.T) {
	err := New("boom", http.StatusTeapot)
	assert.Equal(t, "418: boom", err.Error())
}
