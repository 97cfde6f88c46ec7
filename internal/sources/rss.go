package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/retry"
)

// RSSFetcher reads RSS and Atom feeds.
type RSSFetcher struct {
	client    *http.Client
	userAgent string
}

func NewRSSFetcher(client *http.Client, userAgent string) *RSSFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &RSSFetcher{client: client, userAgent: userAgent}
}

// Fetch downloads and parses one feed.
func (f *RSSFetcher) Fetch(ctx context.Context, src news.Source, cutoff time.Time) ([]*news.Article, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = f.userAgent

	var feed *gofeed.Feed
	err := retry.Do(ctx, retry.FetchPolicy, func(ctx context.Context) error {
		var err error
		feed, err = parser.ParseURLWithContext(src.URL, ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	items := feed.Items
	if len(items) > MaxItemsPerSource {
		items = items[:MaxItemsPerSource]
	}

	var out []*news.Article
	for _, item := range items {
		if item == nil || item.Link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}

		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil && published.Before(cutoff) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		out = append(out, newArticle(
			item.Title, item.Link, src.Name, published, StripHTML(summary), feedImage(item)))
	}
	return out, nil
}

// feedImage picks the entry image from the item image, media extensions or
// image enclosures, in that order.
func feedImage(item *gofeed.Item) string {
	if item.Image != nil && validImageURL(item.Image.URL) {
		return item.Image.URL
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if medium := ext.Attrs["medium"]; medium != "" && medium != "image" {
					continue
				}
				if u := ext.Attrs["url"]; validImageURL(u) {
					return u
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && validImageURL(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

func validImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
