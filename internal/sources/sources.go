package sources

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/foodnews/internal/news"
)

// MaxItemsPerSource caps how many entries are read from one feed or page.
const MaxItemsPerSource = 20

// MaxSummaryRunes caps the summary kept from a feed entry.
const MaxSummaryRunes = 1800

// Fetcher returns the basic candidate records of one source. Articles older
// than cutoff are skipped when their date is known.
type Fetcher interface {
	Fetch(ctx context.Context, src news.Source, cutoff time.Time) ([]*news.Article, error)
}

// Registry maps a source type to its fetcher.
type Registry map[string]Fetcher

// NewRegistry returns the rss and website fetchers sharing one HTTP client.
func NewRegistry(client *http.Client, userAgent string) Registry {
	return Registry{
		news.SourceRSS:     NewRSSFetcher(client, userAgent),
		news.SourceWebsite: NewWebsiteFetcher(client, userAgent),
	}
}

// SourcesConfig is the YAML layout of configs/sources.yaml
// sources:
//
//	name:
//	  type: rss
//	  url: https://...
type SourcesConfig struct {
	Sources map[string]news.Source `yaml:"sources"`
}

// LoadSources reads the source registry from a YAML file.
func LoadSources(path string) (map[string]news.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources config: %w", err)
	}
	defer f.Close()

	var cfg SourcesConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse sources config %s: %w", path, err)
	}

	out := make(map[string]news.Source, len(cfg.Sources))
	for name, src := range cfg.Sources {
		if src.URL == "" {
			return nil, fmt.Errorf("source %q has no url", name)
		}
		src.Name = name
		if src.Type == "" {
			src.Type = news.SourceRSS
		}
		src.Category = strings.ToUpper(strings.TrimSpace(src.Category))
		src.Language = strings.ToLower(strings.TrimSpace(src.Language))
		out[name] = src
	}
	return out, nil
}

// Names returns the source names in sorted order.
func Names(srcs map[string]news.Source) []string {
	names := make([]string, 0, len(srcs))
	for name := range srcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var strictPolicy = bluemonday.StrictPolicy()

// StripHTML turns an HTML fragment into plain text with collapsed whitespace.
func StripHTML(s string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func newArticle(title, link, source string, published *time.Time, summary, image string) *news.Article {
	title = strings.Join(strings.Fields(title), " ")
	return &news.Article{
		Title:              title,
		URL:                link,
		Source:             source,
		PublishedAt:        published,
		Summary:            Truncate(summary, MaxSummaryRunes),
		ImageURL:           image,
		ContentFingerprint: news.Fingerprint(title, link),
	}
}
