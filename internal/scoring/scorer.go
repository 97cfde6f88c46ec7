package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/foodnews/internal/news"
)

// FreshnessStep multiplies the score of articles at most MaxDays old.
type FreshnessStep struct {
	MaxDays int
	Factor  float64
}

// Params are the tunable constants of the unified relevance score.
type Params struct {
	TitleBonus         float64
	ProximityBonus     float64
	LeadBonus          float64
	LeadWords          int
	DampingFactor      float64
	NegativePenalty    float64
	MaxNegativePenalty float64
	LocalBonus         float64
	ProvinceBonus      float64
	Freshness          []FreshnessStep
	StaleFactor        float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		TitleBonus:         1.5,
		ProximityBonus:     1.2,
		LeadBonus:          1.1,
		LeadWords:          5,
		DampingFactor:      0.3,
		NegativePenalty:    0.1,
		MaxNegativePenalty: 0.5,
		LocalBonus:         8,
		ProvinceBonus:      3,
		Freshness: []FreshnessStep{
			{MaxDays: 0, Factor: 1.5},
			{MaxDays: 2, Factor: 1.2},
			{MaxDays: 4, Factor: 1.0},
		},
		StaleFactor: 0.8,
	}
}

// Scorer computes the unified relevance score.
type Scorer struct {
	table   Table
	params  Params
	sources map[string]news.Source
	now     func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithParams overrides the default constants.
func WithParams(p Params) Option {
	return func(s *Scorer) { s.params = p }
}

// WithClock sets the clock used for freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// New creates a scorer over a keyword table and the source registry.
func New(table Table, sources map[string]news.Source, opts ...Option) *Scorer {
	s := &Scorer{
		table:   table.normalized(),
		params:  DefaultParams(),
		sources: sources,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sources == nil {
		s.sources = map[string]news.Source{}
	}
	return s
}

// Table returns the keyword table in use.
func (s *Scorer) Table() Table { return s.table }

// Source returns the descriptor of a named source.
func (s *Scorer) Source(name string) (news.Source, bool) {
	src, ok := s.sources[name]
	return src, ok
}

// Now returns the scorer clock reading.
func (s *Scorer) Now() time.Time { return s.now() }

// Score computes the relevance of an article and writes it back into
// RelevanceScore. With includeFullText the full text is part of the matched
// text and a positive score also records tags and an explanation.
func (s *Scorer) Score(a *news.Article, includeFullText bool) float64 {
	score, matched := s.compute(a, includeFullText)

	a.RelevanceScore = score
	a.ScoredWithFullText = includeFullText
	if includeFullText && score > 0 {
		a.Tags = matched
		a.RelevanceExplanation = s.explain(a, matched)
	}
	return score
}

// Describe records tags and an explanation from the article's current content
// without touching its score.
func (s *Scorer) Describe(a *news.Article) {
	text := strings.ToLower(a.Text(true))
	matched := s.matchedTerms(text)
	a.Tags = matched
	a.RelevanceExplanation = s.explain(a, matched)
}

func (s *Scorer) compute(a *news.Article, includeFullText bool) (float64, []string) {
	text := strings.ToLower(a.Text(includeFullText))
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	title := strings.ToLower(a.Title)
	titleWords := wordSet(title)
	sents := sentences(text)
	p := s.params

	var (
		total        float64
		matched      []string
		keywordSents = make(map[int]bool)
	)

	for _, kw := range s.table.Keywords {
		occurrences := CountTerm(text, kw.Term)
		if occurrences == 0 {
			continue
		}
		matched = append(matched, kw.Term)

		contrib := kw.Weight
		if inTitle(kw.Term, title, titleWords) {
			contrib *= p.TitleBonus
		}

		for i, sent := range sents {
			if !ContainsTerm(sent, kw.Term) {
				continue
			}
			keywordSents[i] = true

			w := kw.Weight
			if s.hasProximity(sent, kw.Term) {
				w *= p.ProximityBonus
			}
			if ContainsTerm(leadingWords(sent, p.LeadWords), kw.Term) {
				w *= p.LeadBonus
			}
			contrib += w
		}

		contrib *= 1 + math.Log(float64(occurrences))*p.DampingFactor
		total += contrib
	}

	if len(matched) == 0 {
		return 0, nil
	}

	// negative context
	penalty := 0.0
	for i := range sents {
		if keywordSents[i] && ContainsAny(sents[i], s.table.Negative) {
			penalty += p.NegativePenalty
		}
	}
	if penalty > p.MaxNegativePenalty {
		penalty = p.MaxNegativePenalty
	}
	total *= 1 - penalty

	if src, ok := s.sources[a.Source]; ok {
		total *= src.Multiplier()
	}

	for _, term := range s.table.Local {
		total += float64(CountTerm(text, term)) * p.LocalBonus
	}
	for _, term := range s.table.Province {
		total += float64(CountTerm(text, term)) * p.ProvinceBonus
	}

	if days, ok := a.AgeDays(s.now()); ok {
		total *= s.freshness(days)
	}

	sort.Strings(matched)
	return total, matched
}

func (s *Scorer) freshness(days int) float64 {
	for _, step := range s.params.Freshness {
		if days <= step.MaxDays {
			return step.Factor
		}
	}
	return s.params.StaleFactor
}

func (s *Scorer) hasProximity(sentence, term string) bool {
	for _, p := range s.table.Proximity {
		if p == term || strings.Contains(term, p) {
			continue
		}
		if ContainsTerm(sentence, p) {
			return true
		}
	}
	return false
}

func (s *Scorer) matchedTerms(text string) []string {
	var matched []string
	for _, kw := range s.table.Keywords {
		if ContainsTerm(text, kw.Term) {
			matched = append(matched, kw.Term)
		}
	}
	return matched
}

func inTitle(term, title string, words map[string]struct{}) bool {
	if strings.ContainsAny(term, " -'") {
		return ContainsTerm(title, term)
	}
	_, ok := words[term]
	return ok
}
