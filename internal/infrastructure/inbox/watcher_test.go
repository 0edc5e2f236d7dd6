package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recipe-ingest/internal/core/source"

	"github.com/stretchr/testify/require"
)

func TestWatcherStartsIngestionForNewFiles(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	got := map[string]*source.RawSource{}
	w, err := NewWatcher(dir, []string{".txt", ".pdf"}, func(_ context.Context, sessionID string, src *source.RawSource) error {
		mu.Lock()
		got[sessionID] = src
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	w.settle = 20 * time.Millisecond
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "suppe.txt"), []byte("Tomatensuppe mit Zwiebeln"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notiz.md"), []byte("ignoriert"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got["inbox:suppe.txt"] != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	require.Equal(t, source.KindText, got["inbox:suppe.txt"].Kind)
	require.Equal(t, "Tomatensuppe mit Zwiebeln", got["inbox:suppe.txt"].Text())
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "Rezept.PDF")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0644))

	src, err := ReadSource(pdf)
	require.NoError(t, err)
	require.Equal(t, source.KindFile, src.Kind)
	require.Equal(t, "Rezept.PDF", src.FileName)
	require.Equal(t, "inbox:Rezept.PDF", SessionID(pdf))

	_, err = ReadSource(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}
