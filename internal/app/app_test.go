package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/logger"
	"github.com/deusflow/foodnews/internal/metrics"
)

var feedItems = map[string][][2]string{
	"/soleil.xml": {
		{"Pénurie de laitue chez les restaurateurs de Québec", "Les restaurants de la Capitale-Nationale cherchent un grossiste."},
		{"Le Canadien l'emporte en prolongation", "Victoire au Centre Bell."},
	},
	"/presse.xml": {
		{"Importation: nouveaux tarifs douaniers sur les produits frais", "Les distributeurs alimentaires du Québec s'inquiètent de la douane."},
		{"Sysco agrandit son centre de distribution alimentaire à Lévis", "Le grossiste alimentaire investit dans la région de Québec."},
	},
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	for path, items := range feedItems {
		path, items := path, items
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			var b strings.Builder
			b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>t</title>`)
			for i, it := range items {
				fmt.Fprintf(&b, `<item><title>%s</title><link>%s/article%s/%d</link><description>%s</description><pubDate>%s</pubDate></item>`,
					it[0], srv.URL, strings.TrimSuffix(path, ".xml"), i, it[1], time.Now().Add(-2*time.Hour).Format(time.RFC1123Z))
			}
			b.WriteString(`</channel></rss>`)
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(b.String()))
		})
	}
	mux.HandleFunc("/article/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srvURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	sourcesPath := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(sourcesPath, []byte(fmt.Sprintf(`sources:
  le_soleil:
    type: rss
    url: %[1]s/soleil.xml
    category: B
    language: fr
  la_presse:
    type: rss
    url: %[1]s/presse.xml
    category: C
    language: fr
`, srvURL)), 0o644))

	cfg := config.Default()
	cfg.SourcesConfigPath = sourcesPath
	cfg.KeywordsConfigPath = filepath.Join(dir, "missing.yaml")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.Bulletin.OutputDir = filepath.Join(dir, "bulletins")
	cfg.Bulletin.MaxArticles = 3
	cfg.History.FilePath = filepath.Join(dir, "published.json")
	cfg.Translation.Enabled = false
	cfg.RequestTimeout = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApp_RunWritesBulletinOnce(t *testing.T) {
	srv := newFeedServer(t)
	cfg := testConfig(t, srv.URL)
	m := metrics.New()
	ctx := context.Background()

	a, err := New(ctx, cfg, logger.Discard(), m)
	require.NoError(t, err)
	report, err := a.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	require.NotEmpty(t, report.Path)
	assert.Equal(t, 4, report.Stats.Collected)
	assert.Equal(t, 3, report.Stats.Selected)

	html, err := os.ReadFile(report.Path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Sysco agrandit")
	assert.NotContains(t, string(html), "Canadien")
	assert.EqualValues(t, 1, m.BulletinsWritten)
	assert.True(t, m.Healthy())

	// everything selected is now in the history
	again, err := New(ctx, cfg, logger.Discard(), m)
	require.NoError(t, err)
	defer again.Close()
	second, err := again.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Path)
	assert.Equal(t, 3, second.Stats.AlreadyPublished)
	assert.EqualValues(t, 1, m.BulletinsWritten)
}

func TestNew_MissingSources(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.SourcesConfigPath = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := New(context.Background(), cfg, logger.Discard(), nil)
	assert.Error(t, err)
}

func TestLLMConfig(t *testing.T) {
	t.Parallel()

	a := config.Default().Analysis
	a.Tier = config.TierCloud
	c := llmConfig(a)
	assert.Equal(t, a.MaxCloudArticles, c.MaxAnalyze)
	assert.Equal(t, a.MinScore, c.MinScore)

	a.Tier = config.TierLocal
	a.EnableBaseScorer = false
	c = llmConfig(a)
	assert.Equal(t, a.MaxLocalArticles, c.MaxAnalyze)
	assert.Zero(t, c.MinScore)
}

func TestApp_CorruptHistoryStillPublishes(t *testing.T) {
	srv := newFeedServer(t)
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(cfg.History.FilePath, []byte("[{broken"), 0o644))
	ctx := context.Background()

	a, err := New(ctx, cfg, logger.Discard(), metrics.New())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.history)

	report, err := a.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Path)
	assert.FileExists(t, cfg.History.FilePath+".corrupt")
	assert.FileExists(t, cfg.History.FilePath)
}

func TestNew_UnusableHistoryIsDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.History.Backend = "redis"

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.history)
}

func TestNew_RestoresBudgetAndPrunesCaches(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Analysis.Tier = config.TierLocal
	cfg.Analysis.OllamaBaseURL = "http://127.0.0.1:1"
	cfg.Analysis.OllamaModel = "llama3"
	cfg.Translation.Enabled = true
	cfg.Translation.CacheTTL = 7 * 24 * time.Hour

	stale := []string{
		filepath.Join(cfg.CacheDir, "analysis", "stale.json"),
		filepath.Join(cfg.CacheDir, "translations", "stale.json"),
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	for _, p := range stale {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o644))
		require.NoError(t, os.Chtimes(p, old, old))
	}

	state := fmt.Sprintf(`{"used":{"local":4},"reset_time":%q}`, time.Now().Add(time.Hour).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CacheDir, "budget.json"), []byte(state), 0o644))

	a, err := New(context.Background(), cfg, logger.Discard(), nil)
	require.NoError(t, err)
	defer a.Close()

	for _, p := range stale {
		assert.NoFileExists(t, p)
	}
	require.NotNil(t, a.budget)
	assert.Equal(t, 4, a.budget.GetStats()["local_used"])
}

func TestRun_LogsFailureThroughConfiguredLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "foodnews.log")
	t.Setenv("SOURCES_CONFIG_PATH", filepath.Join(dir, "absent.yaml"))
	t.Setenv("LOG_FILE", logFile)
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("HISTORY_BACKEND", "none")
	t.Setenv("ANALYZER_TIER", "none")

	m := metrics.New()
	err := Run(context.Background(), m)
	require.Error(t, err)
	assert.False(t, m.Healthy())

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "bulletin run failed")
	assert.Contains(t, string(logged), "service=foodnews")
}
