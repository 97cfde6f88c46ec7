package analyzer

import (
	"context"
	"fmt"

	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/gemini"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/retry"
)

// generator is the part of the Gemini client the analyzer needs.
type generator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	Close() error
}

// GeminiAnalyzer is the cloud tier backed by Google Gemini.
type GeminiAnalyzer struct {
	gen generator
}

// NewGemini creates a Gemini backed cloud analyzer.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiAnalyzer, error) {
	client, err := gemini.NewClient(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return &GeminiAnalyzer{gen: client}, nil
}

func (g *GeminiAnalyzer) Tier() string { return config.TierCloud }

func (g *GeminiAnalyzer) Close() error { return g.gen.Close() }

func (g *GeminiAnalyzer) Analyze(ctx context.Context, a *news.Article) (*news.Analysis, error) {
	text, err := g.gen.GenerateJSON(ctx, buildPrompt(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	analysis, err := parseResponse(text, news.MethodCloud)
	if err != nil {
		return nil, retry.Stop(err)
	}
	return analysis, nil
}
