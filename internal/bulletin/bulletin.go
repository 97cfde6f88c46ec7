// Package bulletin renders the final selection as an HTML page.
package bulletin

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/foodnews/internal/news"
)

//go:embed templates/bulletin.html
var templates embed.FS

const (
	maxSummaryRunes = 1800
	maxTags         = 5
)

var months = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// DateFR formats t the way French-language Québec bulletins print dates.
func DateFR(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

type Renderer struct {
	tmpl *template.Template
	now  func() time.Time
}

func New() (*Renderer, error) {
	tmpl, err := template.New("bulletin.html").Funcs(template.FuncMap{
		"dateFR":   DateFR,
		"truncate": truncate,
		"tags":     firstTags,
	}).ParseFS(templates, "templates/bulletin.html")
	if err != nil {
		return nil, fmt.Errorf("parse bulletin template: %w", err)
	}
	return &Renderer{tmpl: tmpl, now: time.Now}, nil
}

type page struct {
	Date        string
	GeneratedAt string
	Year        int
	Count       int
	Articles    []*news.Article
	Featured    *news.Article
}

// Render writes the bulletin for articles. The featured article is shown
// first under its own heading and is not repeated in the list.
func (r *Renderer) Render(w io.Writer, articles []*news.Article, featured *news.Article) error {
	now := r.now()
	p := page{
		Date:        DateFR(now),
		GeneratedAt: now.Format("02/01/2006 à 15:04"),
		Year:        now.Year(),
		Count:       len(articles),
		Featured:    featured,
	}
	for _, a := range articles {
		if a != featured {
			p.Articles = append(p.Articles, a)
		}
	}
	return r.tmpl.Execute(w, p)
}

// WriteFile renders the bulletin to dir/bulletin_<timestamp>.html and returns
// the file path.
func (r *Renderer) WriteFile(dir string, articles []*news.Article, featured *news.Article) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, articles, featured); err != nil {
		return "", fmt.Errorf("render bulletin: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, "bulletin_"+r.now().Format("20060102_150405")+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write bulletin: %w", err)
	}
	return path, nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxSummaryRunes {
		return s
	}
	return string([]rune(s)[:maxSummaryRunes]) + "..."
}

func firstTags(tags []string) []string {
	if len(tags) > maxTags {
		return tags[:maxTags]
	}
	return tags
}
