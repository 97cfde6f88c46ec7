package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/deusflow/foodnews/internal/retry"
)

// ErrNoContent is returned when no article text could be found on the page.
var ErrNoContent = errors.New("can't get content")

// maxPageBytes bounds how much of a page is read.
const maxPageBytes = 5 << 20

// ArticleContent is the full text and representative image of an article.
type ArticleContent struct {
	Title    string
	Text     string
	ImageURL string
	URL      string
}

// Extractor fetches article pages and extracts their content.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxRunes  int
}

// NewExtractor creates an extractor. A nil client gets a 15 second timeout.
func NewExtractor(client *http.Client, userAgent string) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Extractor{client: client, userAgent: userAgent, maxRunes: 5000}
}

// Extract gets the full text and image of the article at pageURL.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*ArticleContent, error) {
	var body []byte
	err := retry.Do(ctx, retry.FetchPolicy, func(ctx context.Context) error {
		var err error
		body, err = e.download(ctx, pageURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.parse(body, pageURL)
}

func (e *Extractor) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("build request: %w", err))
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
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

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading page: %w", err)
	}
	return body, nil
}

func (e *Extractor) parse(body []byte, pageURL string) (*ArticleContent, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	out := &ArticleContent{URL: pageURL}

	// readability first, selector lists when it finds nothing useful
	if article, err := readability.FromReader(bytes.NewReader(body), parsedURL); err == nil {
		out.Title = strings.TrimSpace(article.Title)
		out.Text = cleanContent(article.TextContent, e.maxRunes)
		out.ImageURL = absolute(parsedURL, article.Image)
	}
	if len([]rune(out.Text)) < minReadableRunes {
		if text := cleanContent(extractContentBySelectors(doc), e.maxRunes); len([]rune(text)) > len([]rune(out.Text)) {
			out.Text = text
		}
	}
	if out.Title == "" {
		out.Title = extractTitle(doc)
	}
	if out.ImageURL == "" {
		out.ImageURL = extractImage(doc, parsedURL)
	}

	if out.Text == "" {
		return out, ErrNoContent
	}
	return out, nil
}

// minReadableRunes is the readability result length under which the selector
// fallback is tried.
const minReadableRunes = 400

// extractContentBySelectors is the universal selector based parser.
func extractContentBySelectors(doc *goquery.Document) string {
	var paragraphs []string

	selectors := []string{
		"article p",
		".article-body p",
		".article-content p",
		".entry-content p",
		".post-content p",
		".field--name-body p",
		".content p",
		"main p",
		"#content p",
		"p",
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}

	return strings.Join(paragraphs, "\n")
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"h1",
		".article-title",
		".entry-title",
		"title",
	}

	for _, selector := range selectors {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}
	return ""
}

// extractImage looks for og:image, then twitter:image, then the first image.
func extractImage(doc *goquery.Document, base *url.URL) string {
	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return absolute(base, v)
	}
	if v, ok := doc.Find(`meta[name="twitter:image"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return absolute(base, v)
	}
	if v, ok := doc.Find("img[src]").First().Attr("src"); ok && strings.TrimSpace(v) != "" {
		return absolute(base, v)
	}
	return ""
}

func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
