// Package analyzer judges article relevance with a language model.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/news"
)

var (
	// ErrUnavailable is returned when the model endpoint cannot be reached.
	ErrUnavailable = errors.New("analyzer unavailable")
	// ErrMalformedResponse is returned when the model answer holds no usable JSON.
	ErrMalformedResponse = errors.New("malformed analyzer response")
)

// Analyzer produces a structured analysis of one article.
type Analyzer interface {
	// Tier is the config tier served: none, local or cloud.
	Tier() string
	Analyze(ctx context.Context, a *news.Article) (*news.Analysis, error)
	Close() error
}

// NoOp is the analyzer used when LLM analysis is disabled.
type NoOp struct{}

func (NoOp) Tier() string { return config.TierNone }

func (NoOp) Analyze(context.Context, *news.Article) (*news.Analysis, error) {
	return nil, ErrUnavailable
}

func (NoOp) Close() error { return nil }

// New builds the analyzer for the configured tier. Config.Validate has already
// downgraded tiers with missing credentials, so a construction failure here
// also falls back to NoOp with a warning.
func New(ctx context.Context, cfg config.AnalysisConfig, logger *slog.Logger) Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		a   Analyzer
		err error
	)
	switch cfg.Tier {
	case config.TierLocal:
		a = NewLocal(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Timeout)
	case config.TierCloud:
		switch cfg.CloudProvider {
		case config.ProviderGemini:
			a, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		default:
			a = NewOpenRouter(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.Timeout)
		}
	default:
		return NoOp{}
	}
	if err != nil {
		logger.Warn("LLM analysis disabled", "tier", cfg.Tier, "error", err)
		return NoOp{}
	}

	logger.Info("LLM analysis enabled", "tier", a.Tier(), "provider", cfg.CloudProvider)
	return a
}

// maxPromptRunes bounds the article text sent to the model.
const maxPromptRunes = 1500

var analysisCategories = map[string]bool{
	"supply_chain": true,
	"local":        true,
	"trends":       true,
	"regulatory":   true,
	"competitor":   true,
	"other":        true,
}

func buildPrompt(a *news.Article) string {
	text := a.Summary
	if a.FullText != "" {
		text = a.FullText
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxPromptRunes {
		text = string([]rune(text)[:maxPromptRunes])
	}

	return fmt.Sprintf(`Analyser cet article pour FLB Solutions, un distributeur alimentaire B2B de Québec.

ARTICLE:
Titre: %s
Source: %s
Texte: %s

Répondre UNIQUEMENT avec un objet JSON valide de cette structure exacte:
{
  "relevance_score": 0-100,
  "category": "supply_chain|local|trends|regulatory|competitor|other",
  "business_impact": "Description courte de l'impact sur FLB",
  "strategic_insights": "Opportunités ou risques identifiés",
  "recommended_actions": ["action1", "action2"],
  "confidence_level": 0-1
}`, a.Title, a.Source, text)
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type rawAnalysis struct {
	Score              any             `json:"relevance_score"`
	Category           string          `json:"category"`
	BusinessImpact     string          `json:"business_impact"`
	StrategicInsights  string          `json:"strategic_insights"`
	RecommendedActions json.RawMessage `json:"recommended_actions"`
	Confidence         any             `json:"confidence_level"`
}

// parseResponse extracts the first JSON object of a model answer and
// normalizes it. Scores given on a 0-100 scale are brought to 0-1.
func parseResponse(text, method string) (*news.Analysis, error) {
	match := jsonObject.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	score, ok := toFloat(raw.Score)
	if !ok {
		return nil, fmt.Errorf("%w: missing relevance_score", ErrMalformedResponse)
	}
	confidence, ok := toFloat(raw.Confidence)
	if !ok {
		confidence = 0.5
	}

	category := strings.ToLower(strings.TrimSpace(raw.Category))
	if !analysisCategories[category] {
		category = "other"
	}

	return &news.Analysis{
		Score:              unit(score),
		Category:           category,
		BusinessImpact:     strings.TrimSpace(raw.BusinessImpact),
		StrategicInsights:  strings.TrimSpace(raw.StrategicInsights),
		RecommendedActions: actions(raw.RecommendedActions),
		Confidence:         unit(confidence),
		Method:             method,
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// unit maps a 0-1 or 0-100 value onto 0-1.
func unit(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// actions accepts a list or a single string.
func actions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{strings.TrimSpace(single)}
	}
	return nil
}
