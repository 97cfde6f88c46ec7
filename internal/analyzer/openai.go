package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deusflow/foodnews/internal/config"
	"github.com/deusflow/foodnews/internal/news"
	"github.com/deusflow/foodnews/internal/retry"
)

// ChatAnalyzer talks to any OpenAI compatible chat completion endpoint. The
// local tier uses Ollama's /v1 API, the cloud tier OpenRouter.
type ChatAnalyzer struct {
	client   *openai.Client
	model    string
	tier     string
	method   string
	jsonMode bool
}

// NewLocal creates an analyzer for an Ollama server.
func NewLocal(baseURL, model string, timeout time.Duration) *ChatAnalyzer {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &ChatAnalyzer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		tier:   config.TierLocal,
		method: news.MethodLocal,
	}
}

// NewOpenRouter creates a cloud analyzer for OpenRouter.
func NewOpenRouter(baseURL, apiKey, model string, timeout time.Duration) *ChatAnalyzer {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &ChatAnalyzer{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		tier:     config.TierCloud,
		method:   news.MethodCloud,
		jsonMode: true,
	}
}

func (c *ChatAnalyzer) Tier() string { return c.tier }

func (c *ChatAnalyzer) Close() error { return nil }

// Analyze sends the article to the model and parses its JSON answer.
func (c *ChatAnalyzer) Analyze(ctx context.Context, a *news.Article) (*news.Analysis, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Tu es un analyste de l'industrie alimentaire québécoise. Tu réponds uniquement en JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(a),
			},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	analysis, err := parseResponse(resp.Choices[0].Message.Content, c.method)
	if err != nil {
		// a malformed answer will not get better by asking again
		return nil, retry.Stop(err)
	}
	return analysis, nil
}

// classify marks client errors as permanent and wraps the rest as unavailable.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests {
			return retry.Stop(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != http.StatusTooManyRequests {
			return retry.Stop(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
