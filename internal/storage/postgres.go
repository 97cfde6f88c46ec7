package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/foodnews/internal/news"
)

const schema = `
CREATE TABLE IF NOT EXISTS published_news (
	id SERIAL PRIMARY KEY,
	fingerprint VARCHAR(64) UNIQUE NOT NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	source VARCHAR(100),
	category VARCHAR(50),
	published_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_published_news_published_at ON published_news(published_at);
`

// PostgresHistory keeps the history in the published_news table.
type PostgresHistory struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

func NewPostgresHistory(ctx context.Context, dsn string, ttl time.Duration, logger *slog.Logger) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("PostgreSQL history connected")
	return &PostgresHistory{db: db, ttl: ttl, logger: logger}, nil
}

func (h *PostgresHistory) Seen(ctx context.Context, fingerprint string) (bool, error) {
	var seen bool
	err := h.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM published_news WHERE fingerprint = $1 AND published_at > $2)`,
		fingerprint, time.Now().Add(-h.ttl),
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check published: %w", err)
	}
	return seen, nil
}

// Record upserts the articles in one transaction, then purges expired rows.
func (h *PostgresHistory) Record(ctx context.Context, articles []*news.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO published_news (fingerprint, title, url, source, category, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO UPDATE SET published_at = EXCLUDED.published_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range articles {
		item := itemFor(a, now)
		if _, err := stmt.ExecContext(ctx, item.Fingerprint, item.Title, item.URL, item.Source, item.Category, item.PublishedAt); err != nil {
			return fmt.Errorf("record %s: %w", item.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	res, err := h.db.ExecContext(ctx, `DELETE FROM published_news WHERE published_at < $1`, now.Add(-h.ttl))
	if err != nil {
		h.logger.Warn("history cleanup failed", "error", err)
		return nil
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		h.logger.Debug("history cleanup", "removed", rows)
	}
	return nil
}

// Recent returns the most recently published entries.
func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]PublishedItem, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT fingerprint, title, url, COALESCE(source, ''), COALESCE(category, ''), published_at
		FROM published_news
		ORDER BY published_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var items []PublishedItem
	for rows.Next() {
		var item PublishedItem
		if err := rows.Scan(&item.Fingerprint, &item.Title, &item.URL, &item.Source, &item.Category, &item.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (h *PostgresHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
