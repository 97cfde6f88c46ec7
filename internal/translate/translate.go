package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/foodnews/internal/cache"
	"github.com/deusflow/foodnews/internal/metrics"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/retry"
)

// maxServiceRunes is the longest text sent to a translation service.
const maxServiceRunes = 4000

// EnglishSources lists the sources known to publish in English when their
// configuration carries no language.
var EnglishSources = []string{
	"food_in_canada", "canadian_grocer", "grocery_business", "western_grocer",
	"the_western_producer", "real_agriculture", "foodservice_and_hospitality",
	"global_news", "ctv_news", "cbc_news", "the_globe_and_mail", "national_post",
}

type Config struct {
	Target        string
	GoogleURL     string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Timeout       time.Duration
}

// Translator brings non-French source text to the target language. Every
// translation is cached under the hash of its input and of its output, so
// translating a translation returns it unchanged.
type Translator struct {
	cfg     Config
	sources map[string]news.Source
	english map[string]bool
	client  *http.Client
	openai  *openai.Client
	store   *cache.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	memo map[string]string
}

func New(cfg Config, sources map[string]news.Source, store *cache.Store, logger *slog.Logger, m *metrics.Metrics) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Target == "" {
		cfg.Target = "fr"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	t := &Translator{
		cfg:     cfg,
		sources: sources,
		english: make(map[string]bool, len(EnglishSources)),
		client:  &http.Client{Timeout: cfg.Timeout},
		store:   store,
		logger:  logger,
		metrics: m,
		memo:    make(map[string]string),
	}
	for _, s := range EnglishSources {
		t.english[s] = true
	}
	if cfg.OpenAIAPIKey != "" {
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		oc.HTTPClient = &http.Client{Timeout: 2 * cfg.Timeout}
		t.openai = openai.NewClientWithConfig(oc)
	}
	return t
}

// SourceLanguage returns the language of a source and whether its text needs
// translation.
func (t *Translator) SourceLanguage(source string) (string, bool) {
	if src, ok := t.sources[source]; ok && src.Language != "" {
		lang := strings.ToLower(src.Language)
		return lang, lang != t.cfg.Target
	}
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(source)), " ", "_")
	if t.english[key] {
		return "en", "en" != t.cfg.Target
	}
	return t.cfg.Target, false
}

// TranslateIfNeeded returns text in the target language. Text from sources
// already in the target language is returned as is.
func (t *Translator) TranslateIfNeeded(ctx context.Context, text, source string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	from, ok := t.SourceLanguage(source)
	if !ok {
		return text
	}

	key := t.key(text)
	if cached, ok := t.lookup(key); ok {
		return cached
	}

	translated := t.translate(ctx, text, from)
	t.remember(key, translated)
	t.remember(t.key(translated), translated)
	return translated
}

// TranslateArticle translates the title and summary of an article once.
func (t *Translator) TranslateArticle(ctx context.Context, a *news.Article) bool {
	if a.IsTranslated {
		return false
	}
	if _, ok := t.SourceLanguage(a.Source); !ok {
		return false
	}

	title := t.TranslateIfNeeded(ctx, a.Title, a.Source)
	summary := t.TranslateIfNeeded(ctx, a.Summary, a.Source)
	if title == a.Title && summary == a.Summary {
		return false
	}
	a.Title, a.Summary = title, summary
	a.IsTranslated = true
	return true
}

func (t *Translator) translate(ctx context.Context, text, from string) string {
	if utf8.RuneCountInString(text) <= maxServiceRunes {
		result, err := t.viaGoogle(ctx, text, from)
		if err == nil && result != "" && result != text {
			t.metrics.IncrementSuccessfulTranslations()
			return formal(quebecois(result))
		}
		t.logger.Debug("Google Translate failed", "from", from, "to", t.cfg.Target, "error", err)

		if t.openai != nil {
			result, err := t.viaOpenAI(ctx, text, from)
			if err == nil && result != "" && result != text {
				t.metrics.IncrementSuccessfulTranslations()
				return formal(quebecois(result))
			}
			t.logger.Debug("OpenAI translation failed", "from", from, "to", t.cfg.Target, "error", err)
		}
	}

	t.metrics.IncrementFailedTranslations()
	t.logger.Warn("translation services unavailable, using term substitution", "from", from)
	return basicTranslate(text)
}

func (t *Translator) key(text string) string {
	return cache.Key("translation", t.cfg.Target, text)
}

func (t *Translator) lookup(key string) (string, bool) {
	t.mu.Lock()
	v, ok := t.memo[key]
	t.mu.Unlock()
	if ok {
		return v, true
	}
	if t.store == nil {
		return "", false
	}
	b, ok := t.store.Get(key)
	if !ok {
		return "", false
	}
	t.mu.Lock()
	t.memo[key] = string(b)
	t.mu.Unlock()
	return string(b), true
}

func (t *Translator) remember(key, value string) {
	t.mu.Lock()
	t.memo[key] = value
	t.mu.Unlock()
	if t.store != nil {
		if err := t.store.Set(key, []byte(value)); err != nil {
			t.logger.Warn("failed to cache translation", "error", err)
		}
	}
}

// viaGoogle uses the public Google Translate endpoint.
func (t *Translator) viaGoogle(ctx context.Context, text, from string) (string, error) {
	if t.cfg.GoogleURL == "" {
		return "", errors.New("google translate disabled")
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", from)
	params.Set("tl", t.cfg.Target)
	params.Set("dt", "t")
	params.Set("q", text)
	fullURL := t.cfg.GoogleURL + "?" + params.Encode()

	var translation string
	err := retry.Do(ctx, retry.TranslatePolicy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return retry.Stop(err)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP error: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Stop(err)
			}
			return err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading response: %w", err)
		}
		translation, err = parseGoogleTranslateResponse(body)
		if err != nil {
			return retry.Stop(fmt.Errorf("error parsing response: %w", err))
		}
		return nil
	})
	return translation, err
}

// parseGoogleTranslateResponse parses Google Translate API response
func parseGoogleTranslateResponse(body []byte) (string, error) {
	// Google Translate returns array of arrays
	var response []interface{}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	// First element contains translations
	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	return result.String(), nil
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
}

// viaOpenAI performs a formal Québec French translation through OpenAI.
func (t *Translator) viaOpenAI(ctx context.Context, text, from string) (string, error) {
	sourceLang := languageNames[from]
	if sourceLang == "" {
		sourceLang = from
	}

	prompt := fmt.Sprintf(`Translate the following %s news text to Québec French.
Keep the meaning and the journalistic tone of the original.
Use the formal "vous" and Québec business vocabulary.
Translate only the text itself, without additional comments.

Text to translate:
%s`, sourceLang, text)

	var translation string
	err := retry.Do(ctx, retry.TranslatePolicy, func(ctx context.Context) error {
		resp, err := t.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: t.cfg.OpenAIModel,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens: 2000,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return retry.Stop(errors.New("no response from OpenAI"))
		}
		translation = SanitizeAIText(resp.Choices[0].Message.Content)
		return nil
	})
	return translation, err
}
