package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recipe-ingest/internal/core/ai/provider"
	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OpenRouterConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Model:      "test-model",
		ImageModel: "test-image-model",
		MaxTokens:  512,
		Timeout:    5 * time.Second,
	})
}

func TestGenerateTextSendsSchema(t *testing.T) {
	var got Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"title\":\"Tomatensuppe\"} "}}]}`))
	})

	out, err := c.GenerateText(context.Background(), &provider.TextRequest{
		Prompt:     "extract",
		JSONSchema: map[string]any{"type": "object"},
		FileURL:    "https://files.local/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, `{"title":"Tomatensuppe"}`, out)
	require.Equal(t, "test-model", got.Model)
	require.Equal(t, 512, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	require.Equal(t, "json_schema", got.ResponseFormat.Type)
	parts, ok := got.Messages[0].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
}

func TestGenerateTextReturnsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := c.GenerateText(context.Background(), &provider.TextRequest{Prompt: "x"})
	var httpErr *common.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode())
}

func TestGenerateImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-image-model", req.Model)
		require.Equal(t, []string{"image", "text"}, req.Modalities)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","images":[{"image_url":{"url":"data:image/png;base64,AAAA"}}]}}]}`))
	})

	url, err := c.GenerateImage(context.Background(), "a tomato")
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,AAAA", url)
}

func TestMissingKeyIsUnavailable(t *testing.T) {
	c := NewClient(config.OpenRouterConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.GenerateText(context.Background(), &provider.TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, provider.ErrUnavailable)
}
