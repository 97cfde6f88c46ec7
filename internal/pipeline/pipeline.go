// Package pipeline turns the configured sources into the few articles of a
// bulletin: collect, pre-filter, enrich, deduplicate, analyze, select and
// translate.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/scoring"
)

// PublishedChecker reports articles already sent in an earlier bulletin.
type PublishedChecker interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
}

// ArticleTranslator translates the text fields of a final article in place.
type ArticleTranslator interface {
	TranslateArticle(ctx context.Context, a *news.Article) bool
}

// Stages are the components of one pipeline. History, LLM and Translator are
// optional.
type Stages struct {
	Collector  *Collector
	PreFilter  *PreFilter
	Enricher   *Enricher
	History    PublishedChecker
	LLM        *LLMStage
	Selector   *Selector
	Translator ArticleTranslator
	Scorer     *scoring.Scorer
}

// Stats counts the articles that left each stage.
type Stats struct {
	Collected        int
	PreFiltered      int
	Enriched         int
	Unique           int
	AlreadyPublished int
	Analyzed         int
	Selected         int
	Translated       int
	Duration         time.Duration
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Articles []*news.Article
	Featured *news.Article
	Stats    Stats
}

// Empty reports that there is nothing to publish today.
func (r *Result) Empty() bool {
	return r == nil || len(r.Articles) == 0
}

type Pipeline struct {
	stages  Stages
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(stages Stages, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{stages: stages, logger: logger, metrics: m}
}

// Run executes every stage once. It never fails: an empty Result is the
// signal that no article qualified.
func (p *Pipeline) Run(ctx context.Context, srcs map[string]news.Source) *Result {
	start := time.Now()
	res := &Result{RunID: uuid.New().String()}
	log := p.logger.With("run_id", res.RunID)
	log.Info("pipeline started", "sources", len(srcs))

	defer func() {
		res.Stats.Duration = time.Since(start)
		p.metrics.RecordProcessingTime(res.Stats.Duration)
		log.Info("pipeline finished", "selected", len(res.Articles), "duration", res.Stats.Duration)
	}()

	articles := timed(p, "collect", func() []*news.Article { return p.stages.Collector.Collect(ctx, srcs) })
	res.Stats.Collected = len(articles)
	if len(articles) == 0 {
		return res
	}
	order := collectionOrder(articles)

	articles = timed(p, "prefilter", func() []*news.Article { return p.stages.PreFilter.Apply(articles) })
	res.Stats.PreFiltered = len(articles)
	if len(articles) == 0 {
		return res
	}

	articles = timed(p, "enrich", func() []*news.Article { return p.stages.Enricher.Enrich(ctx, articles) })
	res.Stats.Enriched = len(articles)

	before := len(articles)
	articles = news.Deduplicate(inCollectionOrder(articles, order))
	res.Stats.Unique = len(articles)
	p.metrics.AddDuplicatesFiltered(before - len(articles))

	articles = p.unpublished(ctx, log, articles)
	res.Stats.AlreadyPublished = res.Stats.Unique - len(articles)
	if len(articles) == 0 {
		return res
	}

	scale := 1.0
	if p.stages.LLM.Active() {
		scale = timedValue(p, "analyze", func() float64 { return p.stages.LLM.Apply(ctx, articles) })
		for _, a := range articles {
			if a.Analysis != nil && a.Analysis.Method != news.MethodBasic {
				res.Stats.Analyzed++
			}
		}
	}

	sel := p.stages.Selector.Select(articles, scale)
	res.Articles, res.Featured = sel.Articles, sel.Featured
	res.Stats.Selected = len(sel.Articles)
	p.metrics.AddSelected(len(sel.Articles))
	log.Debug("selection", "threshold", sel.Threshold, "considered", len(sel.Considered))

	for _, a := range res.Articles {
		if !a.ScoredWithFullText && p.stages.Scorer != nil {
			p.stages.Scorer.Describe(a)
		}
	}

	if p.stages.Translator != nil {
		for _, a := range res.Articles {
			if p.stages.Translator.TranslateArticle(ctx, a) {
				res.Stats.Translated++
			}
		}
	}
	return res
}

// unpublished drops articles recorded in the publication history. A failing
// history lookup keeps the article.
func (p *Pipeline) unpublished(ctx context.Context, log *slog.Logger, articles []*news.Article) []*news.Article {
	if p.stages.History == nil {
		return articles
	}
	out := articles[:0:0]
	for _, a := range articles {
		seen, err := p.stages.History.Seen(ctx, a.ContentFingerprint)
		if err != nil {
			log.Warn("history lookup failed", "error", err)
		}
		if seen {
			continue
		}
		out = append(out, a)
	}
	p.metrics.AddAlreadyPublished(len(articles) - len(out))
	return out
}

// collectionOrder records the position of every article in the collected list.
func collectionOrder(articles []*news.Article) map[*news.Article]int {
	order := make(map[*news.Article]int, len(articles))
	for i, a := range articles {
		order[a] = i
	}
	return order
}

// inCollectionOrder returns a copy of articles sorted back into collection
// order, so the first collected copy of a duplicate is the one kept.
func inCollectionOrder(articles []*news.Article, order map[*news.Article]int) []*news.Article {
	out := make([]*news.Article, len(articles))
	copy(out, articles)
	sort.SliceStable(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

func timed(p *Pipeline, stage string, fn func() []*news.Article) []*news.Article {
	return timedValue(p, stage, fn)
}

func timedValue[T any](p *Pipeline, stage string, fn func() T) T {
	start := time.Now()
	v := fn()
	p.metrics.RecordStage(stage, time.Since(start))
	return v
}
