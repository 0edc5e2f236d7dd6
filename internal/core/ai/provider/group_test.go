package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

func TestGroupFallsBack(t *testing.T) {
	failing := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", errors.New("down") })
	unavailable := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", ErrUnavailable })
	ok := TextFunc(func(context.Context, *TextRequest) (string, error) { return "ok", nil })

	out, err := NewGroup(failing, nil, unavailable, ok).GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestGroupReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	failing := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", boom })

	_, err := NewGroup(failing).GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, boom)

	_, err = NewGroup().GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestGroupKeepsStatusErrorOverUnavailable(t *testing.T) {
	overloaded := &common.HTTPError{Status: http.StatusServiceUnavailable}
	primary := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", overloaded })
	plain := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", errors.New("quota") })
	unavailable := TextFunc(func(context.Context, *TextRequest) (string, error) { return "", ErrUnavailable })

	_, err := NewGroup(primary, unavailable).GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, overloaded)
	require.NotErrorIs(t, err, ErrUnavailable)

	_, err = NewGroup(primary, plain).GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, overloaded)

	_, err = NewGroup(unavailable, unavailable).GenerateText(context.Background(), &TextRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrUnavailable)
}
