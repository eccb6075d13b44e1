// Package llm scores postings and drafts proposals through an
// OpenAI-compatible chat completions API (OpenAI, Gemini's compatibility
// endpoint, or OpenRouter).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bidbot-engine/internal/domain"
	"bidbot-engine/internal/errs"
)

const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

var providerBaseURL = map[string]string{
	ProviderOpenAI:     "https://api.openai.com/v1",
	ProviderGemini:     "https://generativelanguage.googleapis.com/v1beta/openai",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// Models are tried in order, fastest first.
var providerModels = map[string][]string{
	ProviderOpenAI: {"gpt-4o-mini"},
	ProviderGemini: {
		"gemini-2.5-flash-lite",
		"gemini-2.0-flash-lite",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
		"gemini-flash-latest",
		"gemini-2.5-pro",
	},
	ProviderOpenRouter: {"openai/gpt-4o-mini"},
}

// Config holds scorer client configuration
type Config struct {
	Provider          string
	APIKey            string
	BaseURL           string   // empty = provider default
	Models            []string // empty = provider default list
	Temperature       *float64 // nil = 0.7
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = 1 request per second
	HTTPClient        *http.Client
	Logger            *zap.SugaredLogger // nil = nop logger
}

type Client struct {
	config  Config
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
}

func NewClient(config Config) (*Client, error) {
	config.Provider = strings.ToLower(strings.TrimSpace(config.Provider))
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	base, known := providerBaseURL[config.Provider]
	if !known {
		return nil, errs.Newf("unknown AI provider %q", config.Provider)
	}
	if config.APIKey == "" {
		return nil, errs.WithHintf(errs.Newf("missing API key for provider %s", config.Provider),
			"store it with `bidbot secrets set %s` or set the provider's environment variable", config.Provider)
	}
	if config.BaseURL != "" {
		base = strings.TrimRight(config.BaseURL, "/")
	}
	if len(config.Models) == 0 {
		config.Models = providerModels[config.Provider]
	}
	if config.Temperature == nil {
		t := 0.7
		config.Temperature = &t
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 1
	}
	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{
		config:  config,
		baseURL: base,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:  log,
	}, nil
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type ChatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// CreateChatCompletion sends one request for one model.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errs.Wrap(err, "failed to marshal request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errs.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if c.config.Provider == ProviderOpenRouter {
		httpReq.Header.Set("X-Title", "bidbot")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errs.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errs.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.Newf("API request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errs.Wrap(err, "failed to unmarshal response")
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errs.New("empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// Evaluate tries each configured model until one returns a parseable
// evaluation. If none does, the error wraps errs.ErrServiceUnavailable.
func (c *Client) Evaluate(ctx context.Context, p domain.Posting) (domain.Evaluation, error) {
	prompt, err := BuildPrompt(p)
	if err != nil {
		return domain.Evaluation{}, err
	}
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}

	var lastErr error
	for i, model := range c.config.Models {
		req := ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: *c.config.Temperature,
		}
		if c.config.Provider != ProviderGemini {
			req.ResponseFormat = &responseFormat{Type: "json_object"}
		}

		text, err := c.CreateChatCompletion(ctx, req)
		if err == nil {
			var ev domain.Evaluation
			ev, err = ParseEvaluation(text)
			if err == nil {
				c.logger.Debugw("evaluation", "model", model, "score", ev.Score, "url", p.URL)
				return ev, nil
			}
		}
		if ctx.Err() != nil {
			return domain.Evaluation{}, ctx.Err()
		}
		lastErr = err
		if i == 0 {
			c.logger.Warnw("model failed", "model", model, "error", truncate(err.Error(), 200))
		} else {
			c.logger.Debugw("model failed", "model", model, "error", err)
		}
	}

	if lastErr == nil {
		lastErr = errs.New("no models configured")
	}
	return domain.Evaluation{}, errs.Mark(
		errs.Wrapf(lastErr, "all %d %s models failed", len(c.config.Models), c.config.Provider),
		errs.ErrServiceUnavailable)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
