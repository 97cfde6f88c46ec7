package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/retry"
)

const (
	defaultArticleSelector = "article"
	defaultTitleSelector   = "h2"
)

// WebsiteFetcher scrapes article listings with CSS selectors.
type WebsiteFetcher struct {
	client    *http.Client
	userAgent string
}

func NewWebsiteFetcher(client *http.Client, userAgent string) *WebsiteFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebsiteFetcher{client: client, userAgent: userAgent}
}

// Fetch loads the listing page and returns one article per matched element.
func (f *WebsiteFetcher) Fetch(ctx context.Context, src news.Source, cutoff time.Time) ([]*news.Article, error) {
	var doc *goquery.Document
	err := retry.Do(ctx, retry.FetchPolicy, func(ctx context.Context) error {
		var err error
		doc, err = f.load(ctx, src.URL)
		return err
	})
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(src.BaseURL)
	if err != nil || src.BaseURL == "" {
		base, _ = url.Parse(src.URL)
	}

	articleSel := src.ArticleSelector
	if articleSel == "" {
		articleSel = defaultArticleSelector
	}
	titleSel := src.TitleSelector
	if titleSel == "" {
		titleSel = defaultTitleSelector
	}

	var out []*news.Article
	doc.Find(articleSel).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(out) >= MaxItemsPerSource {
			return false
		}

		title := strings.TrimSpace(s.Find(titleSel).First().Text())
		href, ok := s.Find("a[href]").First().Attr("href")
		if title == "" || !ok || strings.TrimSpace(href) == "" {
			return true
		}
		link := resolve(base, strings.TrimSpace(href))

		published := listingDate(s)
		if published != nil && published.Before(cutoff) {
			return true
		}

		summary := strings.TrimSpace(s.Find("p").First().Text())
		image, _ := s.Find("img[src]").First().Attr("src")
		if image != "" {
			image = resolve(base, image)
		}

		out = append(out, newArticle(title, link, src.Name, published, summary, image))
		return true
	})
	return out, nil
}

func (f *WebsiteFetcher) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("build request: %w", err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP error: %d", resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Stop(err)
		}
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("error parsing HTML: %w", err))
	}
	return doc, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// listingDate reads a machine readable date from a <time datetime> element.
func listingDate(s *goquery.Selection) *time.Time {
	raw, ok := s.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return &t
		}
	}
	return nil
}
