package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/foodnews/internal/analyzer"
	"github.com/deusflow/foodnews/internal/cache"
	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/logger"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/ratelimit"
	"github.com/deusflow/foodnews/internal/retry"
)

type fakeAnalyzer struct {
	calls  atomic.Int32
	scores map[string]float64 // by URL, missing means failure
}

func (f *fakeAnalyzer) Tier() string { return config.TierLocal }
func (f *fakeAnalyzer) Close() error { return nil }

func (f *fakeAnalyzer) Analyze(_ context.Context, a *news.Article) (*news.Analysis, error) {
	f.calls.Add(1)
	s, ok := f.scores[a.URL]
	if !ok {
		return nil, analyzer.ErrUnavailable
	}
	return &news.Analysis{Score: s, Category: "local", Method: news.MethodLocal}, nil
}

func newTestLLMStage(t *testing.T, a analyzer.Analyzer, store *cache.Store, budget *ratelimit.Budget) *LLMStage {
	t.Helper()
	s := NewLLMStage(a, store, budget, LLMConfig{MinScore: 0.3, MaxAnalyze: 5}, logger.Discard(), nil)
	s.policy = retry.Policy{MaxAttempts: 1}
	return s
}

func llmArticles() []*news.Article {
	return []*news.Article{
		article("B", "https://b.com", "le_soleil", 10),
		article("A", "https://a.com", "le_soleil", 20),
		article("C", "https://c.com", "le_soleil", 2),
	}
}

func TestLLMStage_CombinesAndFallsBack(t *testing.T) {
	t.Parallel()

	fa := &fakeAnalyzer{scores: map[string]float64{"https://a.com": 0.5}}
	s := newTestLLMStage(t, fa, nil, nil)

	in := llmArticles()
	scale := s.Apply(context.Background(), in)

	assert.InDelta(t, 0.05, scale, 1e-12)
	// A: 0.6 x 0.5 + 0.4 x 1
	assert.InDelta(t, 0.7, in[1].RelevanceScore, 1e-12)
	assert.Equal(t, news.MethodLocal, in[1].Analysis.Method)
	// B failed, C is under the minimum: both keep the normalized base score
	assert.InDelta(t, 0.5, in[0].RelevanceScore, 1e-12)
	assert.Equal(t, news.MethodBasic, in[0].Analysis.Method)
	assert.InDelta(t, 0.1, in[2].RelevanceScore, 1e-12)
	assert.Equal(t, news.MethodBasic, in[2].Analysis.Method)
	assert.EqualValues(t, 2, fa.calls.Load())
}

func TestLLMStage_CacheShortCircuits(t *testing.T) {
	t.Parallel()

	store, err := cache.New(t.TempDir(), time.Hour)
	require.NoError(t, err)

	fa := &fakeAnalyzer{scores: map[string]float64{"https://a.com": 0.8, "https://b.com": 0.4}}
	budget := ratelimit.NewBudget(nil, time.Hour, logger.Discard())

	newTestLLMStage(t, fa, store, budget).Apply(context.Background(), llmArticles())
	require.EqualValues(t, 2, fa.calls.Load())

	again := llmArticles()
	newTestLLMStage(t, fa, store, budget).Apply(context.Background(), again)
	assert.EqualValues(t, 2, fa.calls.Load())
	assert.InDelta(t, 0.6*0.8+0.4, again[1].RelevanceScore, 1e-12)
}

func TestLLMStage_BudgetLimitsCalls(t *testing.T) {
	t.Parallel()

	fa := &fakeAnalyzer{scores: map[string]float64{"https://a.com": 0.8, "https://b.com": 0.4}}
	budget := ratelimit.NewBudget(map[string]int{config.TierLocal: 1}, time.Hour, logger.Discard())

	in := llmArticles()
	newTestLLMStage(t, fa, nil, budget).Apply(context.Background(), in)

	assert.EqualValues(t, 1, fa.calls.Load())
	assert.Equal(t, news.MethodLocal, in[1].Analysis.Method)
	assert.Equal(t, news.MethodBasic, in[0].Analysis.Method)
}

func TestLLMStage_InactiveLeavesScores(t *testing.T) {
	t.Parallel()

	s := NewLLMStage(analyzer.NoOp{}, nil, nil, LLMConfig{MaxAnalyze: 5}, logger.Discard(), nil)
	in := llmArticles()
	assert.False(t, s.Active())
	assert.Equal(t, 1.0, s.Apply(context.Background(), in))
	assert.Equal(t, 20.0, in[1].RelevanceScore)
	assert.Nil(t, in[1].Analysis)

	var nilStage *LLMStage
	assert.False(t, nilStage.Active())
}
