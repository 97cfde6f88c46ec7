package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/foodnews/internal/news"
)

// FileHistory keeps the history in a JSON file.
type FileHistory struct {
	filePath string
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu    sync.RWMutex
	items map[string]PublishedItem
}

func NewFileHistory(filePath string, ttl time.Duration, logger *slog.Logger) *FileHistory {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileHistory{
		filePath: filePath,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		items:    make(map[string]PublishedItem),
	}
}

// Load reads the history file, dropping expired entries. A missing or empty
// file is an empty history. A corrupt file is moved to <file>.corrupt and the
// history starts empty.
func (h *FileHistory) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []PublishedItem
	if err := json.Unmarshal(data, &items); err != nil {
		h.logger.Warn("corrupt history file discarded", "file", h.filePath, "error", err)
		if err := os.Rename(h.filePath, h.filePath+".corrupt"); err != nil {
			return fmt.Errorf("discard corrupt history: %w", err)
		}
		return nil
	}

	cutoff := h.cutoff()
	for _, item := range items {
		if item.PublishedAt.After(cutoff) {
			h.items[item.Fingerprint] = item
		}
	}
	return nil
}

func (h *FileHistory) cutoff() time.Time {
	return h.now().Add(-h.ttl)
}

func (h *FileHistory) Seen(_ context.Context, fingerprint string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	item, ok := h.items[fingerprint]
	return ok && item.PublishedAt.After(h.cutoff()), nil
}

// Record marks the articles as published now and rewrites the file.
func (h *FileHistory) Record(_ context.Context, articles []*news.Article) error {
	if len(articles) == 0 {
		return nil
	}

	h.mu.Lock()
	now := h.now()
	for _, a := range articles {
		item := itemFor(a, now)
		h.items[item.Fingerprint] = item
	}
	h.purge()
	h.mu.Unlock()

	return h.save()
}

// purge drops expired entries. Callers hold the write lock.
func (h *FileHistory) purge() {
	cutoff := h.cutoff()
	for fp, item := range h.items {
		if !item.PublishedAt.After(cutoff) {
			delete(h.items, fp)
		}
	}
}

func (h *FileHistory) save() error {
	h.mu.RLock()
	items := make([]PublishedItem, 0, len(h.items))
	for _, item := range h.items {
		items = append(items, item)
	}
	h.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].Fingerprint < items[j].Fingerprint
	})

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if dir := filepath.Dir(h.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp := h.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, h.filePath); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

// Len returns the number of live entries.
func (h *FileHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *FileHistory) Close() error { return nil }
