// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Analyzer tiers
const (
	TierNone  = "none"
	TierLocal = "local"
	TierCloud = "cloud"
)

// Cloud providers
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

type Config struct {
	// Source settings
	SourcesConfigPath  string
	KeywordsConfigPath string

	Bulletin    BulletinConfig
	Pipeline    PipelineConfig
	Analysis    AnalysisConfig
	Translation TranslationConfig
	History     HistoryConfig

	// App settings
	Debug          bool
	LogLevel       string
	LogFile        string
	CacheDir       string
	RequestTimeout time.Duration
	UserAgent      string

	// Warnings lists the optional tiers disabled by Validate.
	Warnings []string
}

type BulletinConfig struct {
	MaxArticles    int
	MaxPerSource   int
	MaxPerCategory int
	DaysToScrape   int
	OutputDir      string
	Percentile     float64 // adaptive threshold percentile, 0-100
	MinThreshold   float64 // floor of the adaptive threshold
}

type PipelineConfig struct {
	CollectConcurrency int
	SourceTimeout      time.Duration
	CollectTimeout     time.Duration
	EnrichConcurrency  int
	ItemTimeout        time.Duration
	EnrichTimeout      time.Duration
	MinTextLength      int
	KeepFraction       float64
	MinKeep            int
	BufferMin          int
	BufferMax          int
}

type AnalysisConfig struct {
	EnableBaseScorer  bool
	Tier              string // none | local | cloud
	OllamaBaseURL     string
	OllamaModel       string
	CloudProvider     string // openrouter | gemini
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	GeminiAPIKey      string
	GeminiModel       string
	MinScore          float64
	MaxLocalArticles  int
	MaxCloudArticles  int
	CacheTTL          time.Duration
	Timeout           time.Duration
}

type TranslationConfig struct {
	Enabled      bool
	Target       string
	GoogleURL    string
	OpenAIAPIKey string
	OpenAIModel  string
	CacheTTL     time.Duration
}

type HistoryConfig struct {
	Backend     string // file | postgres | none
	FilePath    string
	DatabaseURL string
	TTL         time.Duration
}

// Default returns the configuration used when no environment is set.
func Default() *Config {
	return &Config{
		SourcesConfigPath:  "configs/sources.yaml",
		KeywordsConfigPath: "configs/keywords.yaml",
		Bulletin: BulletinConfig{
			MaxArticles:    7,
			MaxPerSource:   2,
			MaxPerCategory: 4,
			DaysToScrape:   7,
			OutputDir:      "bulletins",
			Percentile:     60,
			MinThreshold:   10,
		},
		Pipeline: PipelineConfig{
			CollectConcurrency: 5,
			SourceTimeout:      20 * time.Second,
			CollectTimeout:     60 * time.Second,
			EnrichConcurrency:  8,
			ItemTimeout:        15 * time.Second,
			EnrichTimeout:      90 * time.Second,
			MinTextLength:      200,
			KeepFraction:       1.0 / 3.0,
			MinKeep:            30,
			BufferMin:          5,
			BufferMax:          15,
		},
		Analysis: AnalysisConfig{
			EnableBaseScorer:  true,
			Tier:              TierNone,
			OllamaBaseURL:     "http://localhost:11434",
			OllamaModel:       "phi2",
			CloudProvider:     ProviderOpenRouter,
			OpenRouterModel:   "anthropic/claude-3-haiku",
			OpenRouterBaseURL: "https://openrouter.ai/api/v1",
			GeminiModel:       "gemini-1.5-flash",
			MinScore:          0.3,
			MaxLocalArticles:  20,
			MaxCloudArticles:  5,
			CacheTTL:          24 * time.Hour,
			Timeout:           30 * time.Second,
		},
		Translation: TranslationConfig{
			Enabled:     true,
			Target:      "fr",
			GoogleURL:   "https://translate.googleapis.com/translate_a/single",
			OpenAIModel: "gpt-3.5-turbo",
		},
		History: HistoryConfig{
			Backend:  "file",
			FilePath: "published_news.json",
			TTL:      48 * time.Hour,
		},
		LogLevel:       "info",
		CacheDir:       ".cache",
		RequestTimeout: 15 * time.Second,
		UserAgent:      "Mozilla/5.0 (compatible; FLBNewsBot/1.0)",
	}
}

func Load() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	cfg.SourcesConfigPath = getEnvOrDefault("SOURCES_CONFIG_PATH", cfg.SourcesConfigPath)
	cfg.KeywordsConfigPath = getEnvOrDefault("KEYWORDS_CONFIG_PATH", cfg.KeywordsConfigPath)

	// Bulletin settings
	b := &cfg.Bulletin
	b.MaxArticles = getEnvIntOrDefault("MAX_ARTICLES", b.MaxArticles)
	b.MaxPerSource = getEnvIntOrDefault("MAX_PER_SOURCE", b.MaxPerSource)
	b.MaxPerCategory = getEnvIntOrDefault("MAX_PER_CATEGORY", b.MaxPerCategory)
	b.DaysToScrape = getEnvIntOrDefault("DAYS_TO_SCRAPE", b.DaysToScrape)
	b.OutputDir = getEnvOrDefault("OUTPUT_DIR", b.OutputDir)
	b.Percentile = getEnvFloatOrDefault("THRESHOLD_PERCENTILE", b.Percentile)
	b.MinThreshold = getEnvFloatOrDefault("MIN_THRESHOLD", b.MinThreshold)

	// Pipeline settings
	p := &cfg.Pipeline
	p.CollectConcurrency = getEnvIntOrDefault("COLLECT_CONCURRENCY", p.CollectConcurrency)
	p.SourceTimeout = getEnvDurationOrDefault("SOURCE_TIMEOUT", p.SourceTimeout)
	p.CollectTimeout = getEnvDurationOrDefault("COLLECT_TIMEOUT", p.CollectTimeout)
	p.EnrichConcurrency = getEnvIntOrDefault("ENRICH_CONCURRENCY", p.EnrichConcurrency)
	p.ItemTimeout = getEnvDurationOrDefault("ARTICLE_TIMEOUT", p.ItemTimeout)
	p.EnrichTimeout = getEnvDurationOrDefault("ENRICH_TIMEOUT", p.EnrichTimeout)
	p.MinTextLength = getEnvIntOrDefault("MIN_TEXT_LENGTH", p.MinTextLength)

	// Analysis settings
	a := &cfg.Analysis
	a.EnableBaseScorer = getEnvBoolOrDefault("ENABLE_BASE_SCORER", a.EnableBaseScorer)
	a.Tier = strings.ToLower(getEnvOrDefault("ANALYZER_TIER", a.Tier))
	a.OllamaBaseURL = getEnvOrDefault("OLLAMA_BASE_URL", a.OllamaBaseURL)
	a.OllamaModel = getEnvOrDefault("OLLAMA_MODEL", a.OllamaModel)
	a.CloudProvider = strings.ToLower(getEnvOrDefault("CLOUD_PROVIDER", a.CloudProvider))
	a.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	a.OpenRouterModel = getEnvOrDefault("OPENROUTER_MODEL", a.OpenRouterModel)
	a.OpenRouterBaseURL = getEnvOrDefault("OPENROUTER_BASE_URL", a.OpenRouterBaseURL)
	a.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	a.GeminiModel = getEnvOrDefault("GEMINI_MODEL", a.GeminiModel)
	a.MinScore = getEnvFloatOrDefault("ANALYSIS_MIN_SCORE", a.MinScore)
	a.MaxLocalArticles = getEnvIntOrDefault("MAX_LOCAL_ARTICLES", a.MaxLocalArticles)
	a.MaxCloudArticles = getEnvIntOrDefault("MAX_CLOUD_ARTICLES", a.MaxCloudArticles)
	a.CacheTTL = time.Duration(getEnvIntOrDefault("ANALYSIS_CACHE_HOURS", int(a.CacheTTL/time.Hour))) * time.Hour
	a.Timeout = getEnvDurationOrDefault("ANALYSIS_TIMEOUT", a.Timeout)

	// Translation settings
	tr := &cfg.Translation
	tr.Enabled = getEnvBoolOrDefault("ENABLE_TRANSLATION", tr.Enabled)
	tr.Target = getEnvOrDefault("TRANSLATION_TARGET", tr.Target)
	tr.GoogleURL = getEnvOrDefault("GOOGLE_TRANSLATE_URL", tr.GoogleURL)
	tr.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	tr.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", tr.OpenAIModel)

	// History settings
	h := &cfg.History
	h.Backend = strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", h.Backend))
	h.FilePath = getEnvOrDefault("HISTORY_FILE", h.FilePath)
	h.DatabaseURL = os.Getenv("DATABASE_URL")
	h.TTL = time.Duration(getEnvIntOrDefault("HISTORY_TTL_HOURS", int(h.TTL/time.Hour))) * time.Hour

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.CacheDir = getEnvOrDefault("CACHE_DIR", cfg.CacheDir)
	cfg.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.UserAgent = getEnvOrDefault("USER_AGENT", cfg.UserAgent)

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("20s") or plain seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Validate rejects invalid required settings and disables optional tiers whose
// credentials are missing, recording a warning for each.
func (c *Config) Validate() error {
	if c.SourcesConfigPath == "" {
		return fmt.Errorf("SOURCES_CONFIG_PATH is required")
	}
	if c.Bulletin.MaxArticles < 1 {
		return fmt.Errorf("MAX_ARTICLES must be at least 1")
	}
	if c.Bulletin.MaxPerSource < 1 {
		return fmt.Errorf("MAX_PER_SOURCE must be at least 1")
	}
	if c.Bulletin.MaxPerCategory < 1 {
		return fmt.Errorf("MAX_PER_CATEGORY must be at least 1")
	}
	if c.Bulletin.DaysToScrape < 1 {
		return fmt.Errorf("DAYS_TO_SCRAPE must be at least 1")
	}
	if c.Bulletin.Percentile < 0 || c.Bulletin.Percentile > 100 {
		return fmt.Errorf("THRESHOLD_PERCENTILE must be between 0 and 100")
	}
	if c.Pipeline.CollectConcurrency < 1 || c.Pipeline.EnrichConcurrency < 1 {
		return fmt.Errorf("concurrency settings must be at least 1")
	}

	switch c.Analysis.Tier {
	case TierNone:
	case TierLocal:
		if c.Analysis.OllamaBaseURL == "" || c.Analysis.OllamaModel == "" {
			c.disableAnalysis("local analyzer needs OLLAMA_BASE_URL and OLLAMA_MODEL")
		}
	case TierCloud:
		switch c.Analysis.CloudProvider {
		case ProviderOpenRouter:
			if c.Analysis.OpenRouterAPIKey == "" {
				c.disableAnalysis("OPENROUTER_API_KEY is not set")
			}
		case ProviderGemini:
			if c.Analysis.GeminiAPIKey == "" {
				c.disableAnalysis("GEMINI_API_KEY is not set")
			}
		default:
			c.disableAnalysis(fmt.Sprintf("unknown CLOUD_PROVIDER %q", c.Analysis.CloudProvider))
		}
	default:
		c.disableAnalysis(fmt.Sprintf("unknown ANALYZER_TIER %q", c.Analysis.Tier))
	}

	switch c.History.Backend {
	case "file", "none", "":
	case "postgres":
		if c.History.DatabaseURL == "" {
			c.History.Backend = "file"
			c.Warnings = append(c.Warnings, "DATABASE_URL is not set, using file history")
		}
	default:
		return fmt.Errorf("HISTORY_BACKEND must be 'file', 'postgres' or 'none'")
	}
	return nil
}

func (c *Config) disableAnalysis(reason string) {
	c.Warnings = append(c.Warnings, "LLM analysis disabled: "+reason)
	c.Analysis.Tier = TierNone
}
