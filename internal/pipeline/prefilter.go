package pipeline

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/scoring"
)

// PreFilterConfig sizes the three steps of the cascade.
type PreFilterConfig struct {
	MaxArticles  int
	KeepFraction float64
	MinKeep      int
	BufferMin    int
	BufferMax    int
}

// categoryWeights rank source categories for the priority step. Unknown
// categories weigh as little as the lowest one.
var categoryWeights = map[string]float64{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}

// freshnessBonus is indexed by age in days.
var freshnessBonus = []float64{3, 2, 1}

// Prioritized is an article ranked by source category and freshness.
type Prioritized struct {
	Article  *news.Article
	Priority float64
}

// PreFilter shrinks the collected set before content extraction.
type PreFilter struct {
	scorer  *scoring.Scorer
	cfg     PreFilterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPreFilter(scorer *scoring.Scorer, cfg PreFilterConfig, logger *slog.Logger, m *metrics.Metrics) *PreFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreFilter{scorer: scorer, cfg: cfg, logger: logger, metrics: m}
}

// Apply runs the keyword, priority and lightweight scoring steps in turn.
func (p *PreFilter) Apply(articles []*news.Article) []*news.Article {
	if len(articles) == 0 {
		return nil
	}

	admitted := p.rapid(articles)
	prioritized := p.prioritize(admitted)
	out := p.score(prioritized)

	p.logger.Info("pre-filter finished",
		"in", len(articles), "keywords", len(admitted), "priority", len(prioritized), "out", len(out))
	p.metrics.AddPreFiltered(len(out))
	return out
}

// rapid admits articles whose title or summary holds a critical term.
func (p *PreFilter) rapid(articles []*news.Article) []*news.Article {
	critical := p.scorer.Table().Critical
	var out []*news.Article
	for _, a := range articles {
		if scoring.ContainsAny(strings.ToLower(a.Title+" "+a.Summary), critical) {
			out = append(out, a)
		}
	}
	return out
}

// prioritize keeps the best ranked share of the articles.
func (p *PreFilter) prioritize(articles []*news.Article) []*news.Article {
	if len(articles) == 0 {
		return nil
	}

	ranked := make([]Prioritized, len(articles))
	for i, a := range articles {
		ranked[i] = Prioritized{Article: a, Priority: p.priority(a)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority > ranked[j].Priority })

	keep := int(math.Ceil(float64(len(ranked)) * p.cfg.KeepFraction))
	if keep < p.cfg.MinKeep {
		keep = p.cfg.MinKeep
	}
	if keep > len(ranked) {
		keep = len(ranked)
	}

	out := make([]*news.Article, keep)
	for i := range out {
		out[i] = ranked[i].Article
	}
	return out
}

func (p *PreFilter) priority(a *news.Article) float64 {
	weight := 1.0
	if src, ok := p.scorer.Source(a.Source); ok {
		if w, ok := categoryWeights[strings.ToUpper(src.Category)]; ok {
			weight = w
		}
	}
	return weight + p.freshness(a)
}

func (p *PreFilter) freshness(a *news.Article) float64 {
	days, ok := a.AgeDays(p.scorer.Now())
	if !ok || days >= len(freshnessBonus) {
		return 0
	}
	return freshnessBonus[days]
}

// score keeps the best summary-only scored articles plus a buffer sized to
// the number of survivors.
func (p *PreFilter) score(articles []*news.Article) []*news.Article {
	var scored []*news.Article
	for _, a := range articles {
		if p.scorer.Score(a, false) > 0 {
			scored = append(scored, a)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].RelevanceScore > scored[j].RelevanceScore })

	keep := p.cfg.MaxArticles + bufferSize(len(scored), p.cfg.BufferMin, p.cfg.BufferMax)
	if keep < len(scored) {
		scored = scored[:keep]
	}
	return scored
}

func bufferSize(survivors, lo, hi int) int {
	b := survivors / 4
	if b < lo {
		b = lo
	}
	if hi > 0 && b > hi {
		b = hi
	}
	return b
}
