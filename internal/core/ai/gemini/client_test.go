package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestUnavailableWithoutKeyOrForFiles(t *testing.T) {
	c := NewClient(config.GeminiConfig{Model: "gemini-2.0-flash"})
	_, err := c.GenerateText(context.Background(), &provider.TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, provider.ErrUnavailable)

	c = NewClient(config.GeminiConfig{APIKey: "key", Model: "gemini-2.0-flash"})
	_, err = c.GenerateText(context.Background(), &provider.TextRequest{Prompt: "x", FileURL: "https://files.local/a.pdf"})
	require.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestTranslateError(t *testing.T) {
	err := translateError(genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"})
	var httpErr *common.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode())

	plain := errors.New("boom")
	require.Same(t, plain, translateError(plain))
}
