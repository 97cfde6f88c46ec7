package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/scoring"
	"github.com/deusflow/foodnews/internal/scraper"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func daysAgo(d int) *time.Time {
	t := fixedNow.AddDate(0, 0, -d)
	return &t
}

func testSources() map[string]news.Source {
	return map[string]news.Source{
		"food_in_canada": {Name: "food_in_canada", Type: news.SourceRSS, Category: "A"},
		"le_soleil":      {Name: "le_soleil", Type: news.SourceRSS, Category: "B"},
		"la_presse":      {Name: "la_presse", Type: news.SourceRSS, Category: "C"},
		"radio_canada":   {Name: "radio_canada", Type: news.SourceRSS, Category: "C"},
		"journal":        {Name: "journal", Type: news.SourceWebsite, Category: "D"},
	}
}

func newTestScorer(srcs map[string]news.Source) *scoring.Scorer {
	return scoring.New(scoring.DefaultTable(), srcs, scoring.WithClock(func() time.Time { return fixedNow }))
}

func article(title, link, source string, score float64) *news.Article {
	return &news.Article{Title: title, URL: link, Source: source, RelevanceScore: score}
}

// fakeFetcher returns canned articles per source name.
type fakeFetcher struct {
	items map[string][]*news.Article
	fail  map[string]bool
	delay map[string]time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, src news.Source, _ time.Time) ([]*news.Article, error) {
	if d := f.delay[src.Name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[src.Name] {
		return nil, errors.New("feed unavailable")
	}
	var out []*news.Article
	for _, a := range f.items[src.Name] {
		cp := *a
		cp.Source = src.Name
		cp.ContentFingerprint = news.Fingerprint(cp.Title, cp.URL)
		out = append(out, &cp)
	}
	return out, nil
}

// fakeExtractor behaves according to a marker in the URL path.
type fakeExtractor struct {
	calls   atomic.Int32
	release chan struct{}
}

var longText = strings.Repeat("Les distributeurs alimentaires de la région de Québec ajustent leurs prix de gros. ", 5)

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*scraper.ArticleContent, error) {
	f.calls.Add(1)
	switch {
	case strings.Contains(url, "/ok"):
		return &scraper.ArticleContent{Text: longText, ImageURL: "https://img.example.com/a.jpg", URL: url}, nil
	case strings.Contains(url, "/short"):
		return &scraper.ArticleContent{Text: "Trop court.", URL: url}, nil
	case strings.Contains(url, "/slow"):
		<-ctx.Done()
		return nil, ctx.Err()
	case strings.Contains(url, "/hang"):
		// ignores its context
		<-f.release
		return nil, errors.New("released")
	default:
		return nil, scraper.ErrNoContent
	}
}

type fakeHistory struct {
	seen map[string]bool
}

func (h fakeHistory) Seen(_ context.Context, fp string) (bool, error) {
	return h.seen[fp], nil
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeTranslator) TranslateArticle(_ context.Context, a *news.Article) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, a.URL)
	return a.Source == "food_in_canada"
}
