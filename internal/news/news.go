package news

import (
	"time"
)

// Article is a single candidate news item. It is created by the collector with
// only the basic fields set and then mutated in place by each pipeline stage.
type Article struct {
	Title       string
	URL         string
	Source      string
	PublishedAt *time.Time

	Summary  string
	FullText string
	ImageURL string

	// RelevanceScore is overwritten by every scoring stage. ScoredWithFullText
	// records which scorer mode produced it, scores from the two modes are
	// not comparable.
	RelevanceScore     float64
	ScoredWithFullText bool

	Tags                 []string
	RelevanceExplanation string
	ContentFingerprint   string
	IsTranslated         bool

	// Analysis is nil until the LLM stage has run.
	Analysis *Analysis
}

// Analysis methods
const (
	MethodLocal = "local"
	MethodCloud = "cloud"
	MethodBasic = "basic"
)

// Analysis is the structured judgment attached by the LLM stage.
type Analysis struct {
	Score              float64  `json:"relevance_score"`
	Category           string   `json:"category"`
	BusinessImpact     string   `json:"business_impact"`
	StrategicInsights  string   `json:"strategic_insights"`
	RecommendedActions []string `json:"recommended_actions"`
	Confidence         float64  `json:"confidence_level"`
	Method             string   `json:"method"`
}

// Source types
const (
	SourceRSS     = "rss"
	SourceWebsite = "website"
)

// Source describes one configured news source.
type Source struct {
	Name               string  `yaml:"-"`
	Type               string  `yaml:"type"`
	URL                string  `yaml:"url"`
	ArticleSelector    string  `yaml:"article_selector"`
	TitleSelector      string  `yaml:"title_selector"`
	BaseURL            string  `yaml:"base_url"`
	Category           string  `yaml:"category"`
	PriorityMultiplier float64 `yaml:"priority_multiplier"`
	Language           string  `yaml:"language"`
	Enabled            *bool   `yaml:"enabled"`
}

// IsEnabled reports whether the source should be collected. Sources are
// enabled unless explicitly switched off.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Multiplier returns the configured priority multiplier, defaulting to 1.
func (s Source) Multiplier() float64 {
	if s.PriorityMultiplier <= 0 {
		return 1
	}
	return s.PriorityMultiplier
}

// AgeDays returns the whole number of days since publication and false when the
// article has no publish date.
func (a *Article) AgeDays(now time.Time) (int, bool) {
	if a.PublishedAt == nil {
		return 0, false
	}
	d := now.Sub(*a.PublishedAt)
	if d < 0 {
		return 0, true
	}
	return int(d.Hours() / 24), true
}

// Text joins the fields used for keyword matching.
func (a *Article) Text(includeFullText bool) string {
	text := a.Title + " " + a.Summary
	if includeFullText && a.FullText != "" {
		text += " " + a.FullText
	}
	return text
}
