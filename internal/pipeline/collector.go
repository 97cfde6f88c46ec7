package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/sources"
)

// CollectorConfig bounds the collection stage.
type CollectorConfig struct {
	Concurrency   int
	SourceTimeout time.Duration
	Timeout       time.Duration
	DaysToScrape  int
}

// Collector fetches every enabled source concurrently.
type Collector struct {
	registry sources.Registry
	cfg      CollectorConfig
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewCollector(registry sources.Registry, cfg CollectorConfig, logger *slog.Logger, m *metrics.Metrics) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{registry: registry, cfg: cfg, now: time.Now, logger: logger, metrics: m}
}

// Collect returns the basic records of all sources merged in source name
// order. A failing or slow source contributes nothing. Map keys name the
// sources.
func (c *Collector) Collect(ctx context.Context, srcs map[string]news.Source) []*news.Article {
	var enabled []news.Source
	for _, name := range sources.Names(srcs) {
		src := srcs[name]
		src.Name = name
		if src.IsEnabled() {
			enabled = append(enabled, src)
		}
	}
	if len(enabled) == 0 {
		c.logger.Warn("no enabled sources")
		return nil
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	days := c.cfg.DaysToScrape
	if days < 1 {
		days = 7
	}
	cutoff := c.now().AddDate(0, 0, -days)

	results := fanOut(ctx, len(enabled), c.cfg.Concurrency, c.cfg.SourceTimeout,
		func(ctx context.Context, i int) []*news.Article {
			return c.fetch(ctx, enabled[i], cutoff)
		},
		func(i int) []*news.Article {
			c.logger.Warn("source abandoned at collection timeout", "source", enabled[i].Name)
			c.metrics.RecordSource(false)
			return nil
		})

	var out []*news.Article
	for _, items := range results {
		out = append(out, items...)
	}
	c.metrics.AddCollected(len(out))
	c.logger.Info("collection finished", "sources", len(enabled), "articles", len(out))
	return out
}

func (c *Collector) fetch(ctx context.Context, src news.Source, cutoff time.Time) []*news.Article {
	fetcher, ok := c.registry[src.Type]
	if !ok {
		c.logger.Warn("unknown source type", "source", src.Name, "type", src.Type)
		c.metrics.RecordSource(false)
		return nil
	}

	start := time.Now()
	items, err := fetcher.Fetch(ctx, src, cutoff)
	if err != nil {
		c.logger.Warn("source failed", "source", src.Name, "error", err)
		c.metrics.RecordSource(false)
		return nil
	}
	c.metrics.RecordSource(true)
	c.logger.Debug("source collected", "source", src.Name, "articles", len(items), "duration", time.Since(start))
	return items
}
