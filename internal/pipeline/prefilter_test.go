package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/foodnews/internal/logger"
	"github.com/deusflow/foodnews/internal/news"
)

func newTestPreFilter(cfg PreFilterConfig) *PreFilter {
	return NewPreFilter(newTestScorer(testSources()), cfg, logger.Discard(), nil)
}

func defaultPreFilterConfig() PreFilterConfig {
	return PreFilterConfig{MaxArticles: 7, KeepFraction: 1.0 / 3.0, MinKeep: 30, BufferMin: 5, BufferMax: 15}
}

func TestPreFilter_RapidStepNeedsCriticalTerm(t *testing.T) {
	t.Parallel()

	p := newTestPreFilter(defaultPreFilterConfig())
	in := []*news.Article{
		{Title: "Le Canadien gagne en prolongation", Summary: "Match serré au Centre Bell."},
		{Title: "Nouvel entrepôt du GROSSISTE", Summary: "Expansion à Lévis."},
	}
	got := p.rapid(in)
	require.Len(t, got, 1)
	assert.Equal(t, in[1], got[0])
}

func TestPreFilter_RapidStepIgnoresImportantProse(t *testing.T) {
	t.Parallel()

	p := newTestPreFilter(defaultPreFilterConfig())
	in := []*news.Article{
		{Title: "Un rôle important pour le club", Summary: "L'importance du match de ce soir."},
		{Title: "New import rules", Summary: "Ottawa changes the paperwork."},
		{Title: "Importations record", Summary: "Les importateurs se réjouissent."},
	}
	got := p.rapid(in)
	require.Len(t, got, 2)
	assert.Equal(t, in[1], got[0])
	assert.Equal(t, in[2], got[1])
}

func TestPreFilter_PriorityKeepsShareOrFloor(t *testing.T) {
	t.Parallel()

	cfg := defaultPreFilterConfig()
	cfg.MinKeep = 2
	p := newTestPreFilter(cfg)

	in := []*news.Article{
		{Title: "old journal", Source: "journal", PublishedAt: daysAgo(6)},           // 2
		{Title: "fresh journal", Source: "journal", PublishedAt: daysAgo(0)},         // 2 + 3
		{Title: "food in canada", Source: "food_in_canada", PublishedAt: daysAgo(1)}, // 5 + 2
		{Title: "undated soleil", Source: "le_soleil"},                               // 4
		{Title: "unknown", Source: "blog", PublishedAt: daysAgo(2)},                  // 1 + 1
		{Title: "presse", Source: "la_presse", PublishedAt: daysAgo(3)},              // 3
	}
	got := p.prioritize(in)

	// ceil(6/3) = 2, equal to the floor
	require.Len(t, got, 2)
	assert.Equal(t, "food in canada", got[0].Title)
	assert.Equal(t, "fresh journal", got[1].Title)

	cfg.MinKeep = 4
	got = newTestPreFilter(cfg).prioritize(in)
	require.Len(t, got, 4)
	assert.Equal(t, "undated soleil", got[2].Title)
	assert.Equal(t, "presse", got[3].Title)
}

func TestPreFilter_AllZeroScoresRemoved(t *testing.T) {
	t.Parallel()

	p := newTestPreFilter(defaultPreFilterConfig())
	var in []*news.Article
	for i := 0; i < 10; i++ {
		// passes the critical substring check but matches no weighted keyword
		in = append(in, &news.Article{
			Title:  fmt.Sprintf("Agroalimentaire bulletin %d", i),
			URL:    fmt.Sprintf("https://example.com/%d", i),
			Source: "le_soleil",
		})
	}
	assert.Empty(t, p.Apply(in))
}

func TestPreFilter_ScoreStepKeepsMaxPlusBuffer(t *testing.T) {
	t.Parallel()

	cfg := defaultPreFilterConfig()
	cfg.MaxArticles = 2
	cfg.MinKeep = 100
	p := newTestPreFilter(cfg)

	var in []*news.Article
	for i := 0; i < 12; i++ {
		in = append(in, &news.Article{
			Title:   fmt.Sprintf("Importation record numéro %d", i),
			Summary: "Le grossiste de Lévis confirme.",
			URL:     fmt.Sprintf("https://example.com/%d", i),
			Source:  "le_soleil",
		})
	}
	got := p.Apply(in)

	// 12 survivors: buffer = clamp(12/4, 5, 15) = 5
	require.Len(t, got, 7)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].RelevanceScore, got[i].RelevanceScore)
	}
	assert.False(t, got[0].ScoredWithFullText)
}

func TestBufferSize(t *testing.T) {
	t.Parallel()

	tests := []struct{ survivors, want int }{
		{0, 5}, {8, 5}, {20, 5}, {40, 10}, {60, 15}, {400, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bufferSize(tt.survivors, 5, 15), "survivors=%d", tt.survivors)
	}
}
