package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recipe-ingest/internal/infrastructure/config"
	"recipe-ingest/internal/pkg/common"

	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T, max int64) *Local {
	t.Helper()
	l, err := NewLocal(config.UploadConfig{Dir: t.TempDir(), PublicBaseURL: "http://localhost:8080/uploads/", MaxSizeBytes: max})
	require.NoError(t, err)
	return l
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestUploadWritesFile(t *testing.T) {
	l := newTestLocal(t, 0)
	data := tinyPNG(t)

	url, err := l.Upload(context.Background(), "Mein Rezept (Scan).png", "image/png", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/mein-rezept-scan-"))
	require.True(t, strings.HasSuffix(url, ".png"))

	stored, err := os.ReadFile(filepath.Join(l.Dir(), filepath.Base(url)))
	require.NoError(t, err)
	require.Equal(t, data, stored)
}

func TestUploadRejectsLargeFile(t *testing.T) {
	l := newTestLocal(t, 4)
	_, err := l.Upload(context.Background(), "a.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.ErrorIs(t, err, common.ErrSourceTooLarge)
}

func TestStoreImage(t *testing.T) {
	l := newTestLocal(t, 0)
	ctx := context.Background()

	remote, err := l.StoreImage(ctx, "https://cdn.example.com/tomate.png", "tomate")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/tomate.png", remote)

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG(t))
	local, err := l.StoreImage(ctx, dataURL, "tomate")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(local, "http://localhost:8080/uploads/tomate-"))
	require.True(t, strings.HasSuffix(local, ".png"))

	_, err = l.StoreImage(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("not an image")), "x")
	require.ErrorIs(t, err, common.ErrUnsupportedType)

	_, err = l.StoreImage(ctx, "ftp://nope", "x")
	require.Error(t, err)
}
