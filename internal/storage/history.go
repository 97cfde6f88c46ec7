// Package storage keeps the history of articles already published in a
// bulletin so a later run does not publish them again.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/news"
)

// History backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// History records published articles by content fingerprint. Entries older
// than the history TTL are ignored and eventually purged.
type History interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, articles []*news.Article) error
	Close() error
}

// PublishedItem is one entry of the history.
type PublishedItem struct {
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Category    string    `json:"category"`
	PublishedAt time.Time `json:"published_at"`
}

func itemFor(a *news.Article, at time.Time) PublishedItem {
	fp := a.ContentFingerprint
	if fp == "" {
		fp = news.Fingerprint(a.Title, a.URL)
	}
	category := ""
	if a.Analysis != nil {
		category = a.Analysis.Category
	}
	return PublishedItem{
		Fingerprint: fp,
		Title:       a.Title,
		URL:         a.URL,
		Source:      a.Source,
		Category:    category,
		PublishedAt: at,
	}
}

// Open returns the history backend selected by cfg. The "none" backend returns
// a nil History, which the pipeline treats as disabled. An unreachable
// database falls back to the history file.
func Open(ctx context.Context, cfg config.HistoryConfig, logger *slog.Logger) (History, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendPostgres:
		h, err := NewPostgresHistory(ctx, cfg.DatabaseURL, cfg.TTL, logger)
		if err == nil {
			return h, nil
		}
		logger.Warn("postgres history unavailable, using file history", "file", cfg.FilePath, "error", err)
		return openFile(cfg, logger)
	case BackendFile, "":
		return openFile(cfg, logger)
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
}

func openFile(cfg config.HistoryConfig, logger *slog.Logger) (History, error) {
	h := NewFileHistory(cfg.FilePath, cfg.TTL, logger)
	if err := h.Load(); err != nil {
		return nil, fmt.Errorf("open file history: %w", err)
	}
	logger.Debug("history loaded", "file", cfg.FilePath, "items", h.Len())
	return h, nil
}
