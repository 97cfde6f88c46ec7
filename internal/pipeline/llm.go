package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/deusflow/foodnews/internal/analyzer"
	"github.com/deusflow/foodnews/internal/cache"
	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/ratelimit"
	"github.com/deusflow/foodnews/internal/retry"
)

// Combination weights of the LLM and base scores.
const (
	llmWeight  = 0.6
	baseWeight = 0.4
)

// LLMConfig bounds the analysis stage.
type LLMConfig struct {
	MinScore   float64 // normalized base score needed to be analyzed
	MaxAnalyze int
}

// LLMStage combines analyzer judgments with the base relevance score.
type LLMStage struct {
	analyzer analyzer.Analyzer
	cache    *cache.Store
	budget   *ratelimit.Budget
	policy   retry.Policy
	cfg      LLMConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewLLMStage(a analyzer.Analyzer, store *cache.Store, budget *ratelimit.Budget, cfg LLMConfig, logger *slog.Logger, m *metrics.Metrics) *LLMStage {
	if logger == nil {
		logger = slog.Default()
	}
	if a == nil {
		a = analyzer.NoOp{}
	}
	return &LLMStage{
		analyzer: a,
		cache:    store,
		budget:   budget,
		policy:   retry.LLMPolicy,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Active reports whether an analyzer tier is enabled.
func (s *LLMStage) Active() bool {
	return s != nil && s.analyzer.Tier() != config.TierNone
}

// Apply rescores the articles on a 0-1 scale and returns the factor that
// brought base scores onto it. When no tier is active the scores are left
// untouched and the factor is 1.
func (s *LLMStage) Apply(ctx context.Context, articles []*news.Article) float64 {
	if !s.Active() || len(articles) == 0 {
		return 1
	}

	maxBase := 0.0
	for _, a := range articles {
		if a.RelevanceScore > maxBase {
			maxBase = a.RelevanceScore
		}
	}
	if maxBase <= 0 {
		return 1
	}

	order := make([]int, len(articles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return articles[order[i]].RelevanceScore > articles[order[j]].RelevanceScore
	})

	analyzed := 0
	for _, i := range order {
		a := articles[i]
		base := a.RelevanceScore / maxBase

		var analysis *news.Analysis
		if analyzed < s.cfg.MaxAnalyze && base >= s.cfg.MinScore && ctx.Err() == nil {
			analysis = s.analyze(ctx, a)
			analyzed++
		}

		if analysis == nil {
			a.RelevanceScore = base
			a.Analysis = &news.Analysis{Score: base, Method: news.MethodBasic}
			s.metrics.RecordAnalysis(false)
			continue
		}
		a.RelevanceScore = llmWeight*analysis.Score + baseWeight*base
		a.Analysis = analysis
		s.metrics.RecordAnalysis(true)
	}

	if s.budget != nil {
		s.budget.LogStats()
	}
	return 1 / maxBase
}

// analyze returns the cached or fresh analysis of one article, or nil.
func (s *LLMStage) analyze(ctx context.Context, a *news.Article) *news.Analysis {
	key := cache.Key(a.Title, a.URL)

	if s.cache != nil {
		var cached news.Analysis
		if s.cache.GetJSON(key, &cached) {
			if s.budget != nil {
				s.budget.RecordCacheHit()
			}
			return &cached
		}
	}

	tier := s.analyzer.Tier()
	if s.budget != nil {
		if err := s.budget.Use(tier); err != nil {
			s.logger.Debug("analysis skipped", "url", a.URL, "error", err)
			return nil
		}
	}

	var analysis *news.Analysis
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		var err error
		analysis, err = s.analyzer.Analyze(ctx, a)
		return err
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, analyzer.ErrMalformedResponse) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "analysis failed, using base score", "url", a.URL, "tier", tier, "error", err)
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(key, analysis); err != nil {
			s.logger.Warn("failed to cache analysis", "error", err)
		}
	}
	return analysis
}
