package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCustomErrorMatchesByCode(t *testing.T) {
	wrapped := Wrap(ErrRetryExhausted, errors.New("503 three times"))
	require.True(t, errors.Is(wrapped, ErrRetryExhausted))
	require.False(t, errors.Is(wrapped, ErrRateLimited))

	outer := fmt.Errorf("extract: %w", wrapped)
	require.True(t, errors.Is(outer, ErrRetryExhausted))
	require.Equal(t, http.StatusServiceUnavailable, StatusOf(outer))
	require.Equal(t, "RETRY_EXHAUSTED", CodeOf(outer))
}

func TestStatusOfPlainError(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	require.Equal(t, ErrCodeInternalError, CodeOf(errors.New("boom")))
}
