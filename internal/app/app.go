// Package app wires every component from the configuration and runs one
// bulletin.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/deusflow/foodnews/internal/analyzer"
	"github.com/deusflow/foodnews/internal/bulletin"
	"github.com/deusflow/foodnews/internal/cache"
	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/logger"
	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/pipeline"
	"github.com/deusflow/foodnews/internal/ratelimit"
	"github.com/deusflow/foodnews/internal/scoring"
	"github.com/deusflow/foodnews/internal/scraper"
	"github.com/deusflow/foodnews/internal/sources"
	"github.com/deusflow/foodnews/internal/storage"
	"github.com/deusflow/foodnews/internal/translate"
)

// App holds the components of one configured run.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	sources  map[string]news.Source
	pipeline *pipeline.Pipeline
	history  storage.History
	analyzer analyzer.Analyzer
	renderer *bulletin.Renderer

	budget     *ratelimit.Budget
	budgetPath string
}

// Report describes the outcome of a run. Path is empty when there was no
// bulletin today.
type Report struct {
	RunID string
	Path  string
	Stats pipeline.Stats
}

// New builds every component described by cfg.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*App, error) {
	srcs, err := sources.LoadSources(cfg.SourcesConfigPath)
	if err != nil {
		return nil, err
	}
	table, err := scoring.LoadTable(cfg.KeywordsConfigPath)
	if err != nil {
		return nil, err
	}
	renderer, err := bulletin.New()
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	scorer := scoring.New(table, srcs)
	p := cfg.Pipeline
	b := cfg.Bulletin

	stages := pipeline.Stages{
		Collector: pipeline.NewCollector(sources.NewRegistry(client, cfg.UserAgent), pipeline.CollectorConfig{
			Concurrency:   p.CollectConcurrency,
			SourceTimeout: p.SourceTimeout,
			Timeout:       p.CollectTimeout,
			DaysToScrape:  b.DaysToScrape,
		}, log, m),
		PreFilter: pipeline.NewPreFilter(scorer, pipeline.PreFilterConfig{
			MaxArticles:  b.MaxArticles,
			KeepFraction: p.KeepFraction,
			MinKeep:      p.MinKeep,
			BufferMin:    p.BufferMin,
			BufferMax:    p.BufferMax,
		}, log, m),
		Enricher: pipeline.NewEnricher(scraper.NewExtractor(client, cfg.UserAgent), scorer, pipeline.EnricherConfig{
			Concurrency:   p.EnrichConcurrency,
			ItemTimeout:   p.ItemTimeout,
			Timeout:       p.EnrichTimeout,
			MinTextLength: p.MinTextLength,
		}, log, m),
		Selector: pipeline.NewSelector(scorer, pipeline.SelectorConfig{
			MaxArticles:    b.MaxArticles,
			MaxPerSource:   b.MaxPerSource,
			MaxPerCategory: b.MaxPerCategory,
			Percentile:     b.Percentile,
			MinThreshold:   b.MinThreshold,
		}),
		Scorer: scorer,
	}

	a := &App{cfg: cfg, logger: log, metrics: m, sources: srcs, renderer: renderer}

	a.history, err = storage.Open(ctx, cfg.History, log)
	if err != nil {
		log.Warn("publication history disabled", "error", err)
		a.history = nil
	}
	if a.history != nil {
		stages.History = a.history
	}

	if cfg.Analysis.Tier != config.TierNone {
		store, err := cache.New(filepath.Join(cfg.CacheDir, "analysis"), cfg.Analysis.CacheTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("analysis cache: %w", err)
		}
		pruneCache(store, "analysis", log)
		a.budget = ratelimit.NewBudget(map[string]int{
			config.TierLocal: cfg.Analysis.MaxLocalArticles,
			config.TierCloud: cfg.Analysis.MaxCloudArticles,
		}, 24*time.Hour, log)
		a.budgetPath = filepath.Join(cfg.CacheDir, "budget.json")
		if err := a.budget.Load(a.budgetPath); err != nil {
			log.Warn("analysis budget state ignored", "file", a.budgetPath, "error", err)
		}
		a.analyzer = analyzer.New(ctx, cfg.Analysis, log)
		stages.LLM = pipeline.NewLLMStage(a.analyzer, store, a.budget, llmConfig(cfg.Analysis), log, m)
	}

	if cfg.Translation.Enabled {
		store, err := cache.New(filepath.Join(cfg.CacheDir, "translations"), cfg.Translation.CacheTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("translation cache: %w", err)
		}
		pruneCache(store, "translations", log)
		stages.Translator = translate.New(translate.Config{
			Target:       cfg.Translation.Target,
			GoogleURL:    cfg.Translation.GoogleURL,
			OpenAIAPIKey: cfg.Translation.OpenAIAPIKey,
			OpenAIModel:  cfg.Translation.OpenAIModel,
			Timeout:      cfg.RequestTimeout,
		}, srcs, store, log, m)
	}

	a.pipeline = pipeline.New(stages, log, m)
	return a, nil
}

func pruneCache(store *cache.Store, name string, log *slog.Logger) {
	n, err := store.Prune()
	if err != nil {
		log.Warn("cache prune failed", "cache", name, "error", err)
		return
	}
	if n > 0 {
		log.Debug("expired cache entries removed", "cache", name, "removed", n)
	}
}

// llmConfig caps analysis at the active tier's budget. Without the base
// scorer every article is eligible regardless of its keyword score.
func llmConfig(cfg config.AnalysisConfig) pipeline.LLMConfig {
	c := pipeline.LLMConfig{MinScore: cfg.MinScore, MaxAnalyze: cfg.MaxLocalArticles}
	if cfg.Tier == config.TierCloud {
		c.MaxAnalyze = cfg.MaxCloudArticles
	}
	if !cfg.EnableBaseScorer {
		c.MinScore = 0
	}
	return c
}

// Run executes the pipeline once, writes the bulletin and records what was
// published.
func (a *App) Run(ctx context.Context) (*Report, error) {
	a.logger.Info("starting bulletin run", "sources", len(a.sources), "max_articles", a.cfg.Bulletin.MaxArticles)

	res := a.pipeline.Run(ctx, a.sources)
	report := &Report{RunID: res.RunID, Stats: res.Stats}
	if a.budget != nil {
		if err := a.budget.Save(a.budgetPath); err != nil {
			a.logger.Warn("failed to save analysis budget", "error", err)
		}
	}

	if res.Empty() {
		a.logger.Info("no bulletin today", "run_id", res.RunID, "collected", res.Stats.Collected)
		a.metrics.SetLastRun(res.RunID)
		return report, nil
	}

	path, err := a.renderer.WriteFile(a.cfg.Bulletin.OutputDir, res.Articles, res.Featured)
	if err != nil {
		a.metrics.SetError(err.Error())
		return report, err
	}
	report.Path = path
	a.metrics.IncrementBulletinsWritten()

	if a.history != nil {
		if err := a.history.Record(ctx, res.Articles); err != nil {
			a.logger.Warn("failed to record published articles", "error", err)
		}
	}

	a.metrics.SetLastRun(res.RunID)
	a.logger.Info("bulletin written",
		"run_id", res.RunID,
		"path", path,
		"articles", len(res.Articles),
		"featured", res.Featured.Title,
		"duration", res.Stats.Duration.Round(time.Millisecond))
	return report, nil
}

// Close releases the history and analyzer connections.
func (a *App) Close() error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.analyzer != nil {
		errs = append(errs, a.analyzer.Close())
	}
	return errors.Join(errs...)
}

// Run loads the configuration and performs one bulletin run. Failures are
// logged through the configured logger before being returned.
func Run(ctx context.Context, m *metrics.Metrics) error {
	cfg, err := config.Load()
	if err != nil {
		err = fmt.Errorf("load config: %w", err)
		slog.Error("bulletin run failed", "error", err)
		return err
	}

	log, err := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Debug:   cfg.Debug,
		File:    cfg.LogFile,
		Service: "foodnews",
	})
	if err != nil {
		err = fmt.Errorf("init logger: %w", err)
		slog.Error("bulletin run failed", "error", err)
		return err
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := run(ctx, cfg, log, m); err != nil {
		log.Error("bulletin run failed", "error", err)
		return err
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) error {
	a, err := New(ctx, cfg, log, m)
	if err != nil {
		m.SetError(err.Error())
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}()

	_, err = a.Run(ctx)
	return err
}
