package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/foodnews/internal/logger"
	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
)

func newTestEnricher(ex ContentExtractor, cfg EnricherConfig, m *metrics.Metrics) *Enricher {
	return NewEnricher(ex, newTestScorer(testSources()), cfg, logger.Discard(), m)
}

func TestEnricher_AppliesContentAndFallsBack(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{release: make(chan struct{})}
	defer close(ex.release)
	m := metrics.New()
	e := newTestEnricher(ex, EnricherConfig{Concurrency: 4, ItemTimeout: 50 * time.Millisecond, Timeout: time.Second, MinTextLength: 200}, m)

	in := []*news.Article{
		{Title: "Grossiste à Lévis", URL: "https://a.com/ok", Summary: "Résumé A.", Source: "le_soleil"},
		{Title: "Importation en hausse", URL: "https://b.com/short", Summary: "Résumé B importation.", Source: "le_soleil"},
		{Title: "Pénurie de laitue", URL: "https://c.com/slow", Summary: "Résumé C pénurie.", Source: "le_soleil", ImageURL: "https://img.example.com/keep.jpg"},
		{Title: "Sysco rachète", URL: "https://d.com/broken", Summary: "Résumé D.", Source: "le_soleil"},
	}
	got := e.Enrich(context.Background(), in)

	require.Len(t, got, len(in))
	for i := range in {
		assert.Same(t, in[i], got[i])
	}

	assert.Equal(t, longText, got[0].FullText)
	assert.Equal(t, "https://img.example.com/a.jpg", got[0].ImageURL)
	assert.True(t, got[0].ScoredWithFullText)
	assert.NotEmpty(t, got[0].RelevanceExplanation)

	for _, a := range got[1:] {
		assert.Equal(t, a.Summary, a.FullText, a.URL)
		assert.False(t, a.ScoredWithFullText, a.URL)
	}
	assert.Equal(t, "https://img.example.com/keep.jpg", got[2].ImageURL)
	assert.EqualValues(t, 1, m.EnrichedFullText)
	assert.EqualValues(t, 3, m.EnrichFallbacks)
}

func TestEnricher_GlobalTimeoutKeepsEveryArticle(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{release: make(chan struct{})}
	defer close(ex.release)
	e := newTestEnricher(ex, EnricherConfig{Concurrency: 2, Timeout: 100 * time.Millisecond, MinTextLength: 200}, nil)

	var in []*news.Article
	for i := 0; i < 9; i++ {
		path := "hang"
		if i%3 == 0 {
			path = "ok"
		}
		in = append(in, &news.Article{
			Title:   fmt.Sprintf("Distributeur alimentaire %d", i),
			URL:     fmt.Sprintf("https://example.com/%s/%d", path, i),
			Summary: "Le grossiste annonce une expansion.",
		})
	}

	start := time.Now()
	got := e.Enrich(context.Background(), in)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, got, len(in))
	for _, a := range got {
		assert.NotEmpty(t, a.FullText, a.URL)
	}
}

func TestEnricher_Empty(t *testing.T) {
	t.Parallel()

	e := newTestEnricher(&fakeExtractor{}, EnricherConfig{Concurrency: 1}, nil)
	assert.Empty(t, e.Enrich(context.Background(), nil))
}
