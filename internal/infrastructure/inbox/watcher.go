// Package inbox 監看資料夾，新檔案自動開始匯入
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"recipe-ingest/internal/core/source"
	"recipe-ingest/internal/pkg/common"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler 處理一個已寫入完成的檔案
type Handler func(ctx context.Context, sessionID string, src *source.RawSource) error

// Watcher 以 fsnotify 監看資料夾
type Watcher struct {
	watcher    *fsnotify.Watcher
	dir        string
	extensions map[string]bool
	handler    Handler
	settle     time.Duration

	mu      sync.Mutex
	pending map[string]*pendingFile
	wg      sync.WaitGroup
}

type pendingFile struct {
	timer *time.Timer
}

// NewWatcher 創建資料夾監看器
func NewWatcher(dir string, extensions []string, handler Handler) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create inbox directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".jpg", ".jpeg", ".png", ".webp", ".txt"}
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Watcher{
		watcher:    w,
		dir:        dir,
		extensions: exts,
		handler:    handler,
		settle:     500 * time.Millisecond,
		pending:    make(map[string]*pendingFile),
	}, nil
}

// Run 監看到 ctx 結束為止；同一檔案連續寫入時只在停止變動後處理一次
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}
	common.LogInfo("開始監看匯入資料夾", zap.String("dir", w.dir))
	defer w.wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			common.LogWarn("監看資料夾錯誤", zap.Error(err))
		}
	}
}

// Close 停止監看
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.settle)
		return
	}
	p := &pendingFile{}
	w.pending[path] = p
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, path)
	})
}

func (w *Watcher) wait() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) process(ctx context.Context, path string) {
	src, err := ReadSource(path)
	if err != nil {
		common.LogWarn("讀取匯入檔案失敗", zap.String("file", path), zap.Error(err))
		return
	}
	sessionID := SessionID(path)
	if err := w.handler(ctx, sessionID, src); err != nil {
		common.LogWarn("匯入檔案失敗", zap.String("file", path), zap.String("session", sessionID), zap.Error(err))
		return
	}
	common.LogInfo("匯入檔案已開始處理", zap.String("file", path), zap.String("session", sessionID))
}

func (w *Watcher) isWatchedExtension(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// ReadSource .txt 視為文字來源，其餘為檔案來源
func ReadSource(path string) (*source.RawSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return source.FromText(string(data)), nil
	}
	return source.FromFile(filepath.Base(path), data), nil
}

// SessionID 以檔名作為 session
func SessionID(path string) string {
	return "inbox:" + filepath.Base(path)
}
