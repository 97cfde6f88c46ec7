package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/scoring"
	"github.com/deusflow/foodnews/internal/scraper"
)

// ContentExtractor fetches the full text of an article page.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (*scraper.ArticleContent, error)
}

// EnricherConfig bounds the enrichment stage.
type EnricherConfig struct {
	Concurrency   int
	ItemTimeout   time.Duration
	Timeout       time.Duration
	MinTextLength int
}

// Enricher adds full text and images to the pre-filtered articles.
type Enricher struct {
	extractor ContentExtractor
	scorer    *scoring.Scorer
	cfg       EnricherConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewEnricher(extractor ContentExtractor, scorer *scoring.Scorer, cfg EnricherConfig, logger *slog.Logger, m *metrics.Metrics) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{extractor: extractor, scorer: scorer, cfg: cfg, logger: logger, metrics: m}
}

// extraction is what a worker hands back to the coordinator.
type extraction struct {
	content *scraper.ArticleContent
	err     error
}

// Enrich returns the same articles in the same order. Articles whose content
// could not be fetched in time keep their summary as full text and are
// rescored in summary-only mode.
func (e *Enricher) Enrich(ctx context.Context, articles []*news.Article) []*news.Article {
	if len(articles) == 0 {
		return articles
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// workers only read the URL, the coordinator applies the results
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
	}

	results := fanOut(ctx, len(urls), e.cfg.Concurrency, e.cfg.ItemTimeout,
		func(ctx context.Context, i int) extraction {
			content, err := e.extractor.Extract(ctx, urls[i])
			return extraction{content: content, err: err}
		},
		func(i int) extraction {
			return extraction{err: fmt.Errorf("abandoned at enrichment timeout")}
		})

	full := 0
	for i, a := range articles {
		if e.apply(a, results[i]) {
			full++
		}
	}
	e.logger.Info("enrichment finished", "articles", len(articles), "full_text", full, "fallback", len(articles)-full)
	return articles
}

func (e *Enricher) apply(a *news.Article, r extraction) bool {
	ok := r.err == nil && r.content != nil &&
		utf8.RuneCountInString(strings.TrimSpace(r.content.Text)) >= e.cfg.MinTextLength
	e.metrics.RecordEnrichment(ok)

	if !ok {
		if r.err != nil {
			e.logger.Debug("content extraction failed, using summary", "url", a.URL, "error", r.err)
		}
		a.FullText = a.Summary
		e.scorer.Score(a, false)
		return false
	}

	a.FullText = r.content.Text
	if a.ImageURL == "" {
		a.ImageURL = r.content.ImageURL
	}
	e.scorer.Score(a, true)
	return true
}
