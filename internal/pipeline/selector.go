package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/scoring"
)

// SelectorConfig holds the bulletin shape and the threshold settings.
type SelectorConfig struct {
	MaxArticles    int
	MaxPerSource   int
	MaxPerCategory int
	Percentile     float64
	MinThreshold   float64
}

// Featured score bonuses.
var sourceCategoryBonus = map[string]float64{"A": 1.3, "B": 1.15}

const (
	impactStep     = 0.1
	maxImpactBonus = 1.5
	localBonus     = 1.25
)

// Candidate is an article admitted to the final selection round.
type Candidate struct {
	Article       *news.Article
	FeaturedScore float64
}

// Selection is the ordered bulletin content. The featured article is last.
type Selection struct {
	Articles   []*news.Article
	Featured   *news.Article
	Considered []Candidate
	Threshold  float64
}

// Selector picks a diverse final set and its featured article.
type Selector struct {
	scorer *scoring.Scorer
	cfg    SelectorConfig
}

func NewSelector(scorer *scoring.Scorer, cfg SelectorConfig) *Selector {
	return &Selector{scorer: scorer, cfg: cfg}
}

// Select returns at most MaxArticles articles, regulars by score followed by
// the featured one. scale converts MinThreshold to the scores' scale.
func (s *Selector) Select(articles []*news.Article, scale float64) Selection {
	if len(articles) == 0 || s.cfg.MaxArticles < 1 {
		return Selection{}
	}
	if scale <= 0 {
		scale = 1
	}

	sorted := make([]*news.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RelevanceScore != sorted[j].RelevanceScore {
			return sorted[i].RelevanceScore > sorted[j].RelevanceScore
		}
		return sorted[i].URL < sorted[j].URL
	})

	scores := make([]float64, len(sorted))
	for i, a := range sorted {
		scores[i] = a.RelevanceScore
	}
	threshold := math.Max(percentile(scores, s.cfg.Percentile), s.cfg.MinThreshold*scale)

	var pool []*news.Article
	for _, a := range sorted {
		if a.RelevanceScore >= threshold {
			pool = append(pool, a)
		}
	}
	if len(pool) < s.cfg.MaxArticles {
		pool = sorted[:min(s.cfg.MaxArticles, len(sorted))]
	}

	considered := make([]Candidate, len(pool))
	featured := 0
	for i, a := range pool {
		considered[i] = Candidate{Article: a, FeaturedScore: s.featuredScore(a)}
		if considered[i].FeaturedScore > considered[featured].FeaturedScore {
			featured = i
		}
	}
	feat := pool[featured]

	perSource := map[string]int{feat.Source: 1}
	perCategory := map[string]int{s.category(feat): 1}

	var regulars []*news.Article
	for i, a := range pool {
		if len(regulars) >= s.cfg.MaxArticles-1 {
			break
		}
		if i == featured {
			continue
		}
		cat := s.category(a)
		if s.cfg.MaxPerSource > 0 && perSource[a.Source] >= s.cfg.MaxPerSource {
			continue
		}
		if s.cfg.MaxPerCategory > 0 && perCategory[cat] >= s.cfg.MaxPerCategory {
			continue
		}
		perSource[a.Source]++
		perCategory[cat]++
		regulars = append(regulars, a)
	}

	return Selection{
		Articles:   append(regulars, feat),
		Featured:   feat,
		Considered: considered,
		Threshold:  threshold,
	}
}

// FeaturedScore rates an article as the bulletin headline.
func (s *Selector) featuredScore(a *news.Article) float64 {
	score := a.RelevanceScore

	if bonus, ok := sourceCategoryBonus[s.category(a)]; ok {
		score *= bonus
	}

	text := strings.ToLower(a.Text(true))
	table := s.scorer.Table()

	impact := 1.0
	for _, term := range table.Impact {
		if scoring.ContainsTerm(text, term) {
			impact += impactStep
		}
	}
	score *= math.Min(impact, maxImpactBonus)

	if scoring.ContainsAny(text, table.Local) {
		score *= localBonus
	}
	return score
}

func (s *Selector) category(a *news.Article) string {
	if src, ok := s.scorer.Source(a.Source); ok {
		return strings.ToUpper(src.Category)
	}
	return ""
}

// percentile interpolates linearly between the closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := make([]float64, len(values))
	copy(v, values)
	sort.Float64s(v)

	rank := p / 100 * float64(len(v)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(v) {
		hi = len(v) - 1
	}
	return v[lo] + (v[hi]-v[lo])*(rank-float64(lo))
}
