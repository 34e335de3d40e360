// Package llm calls the Anthropic Messages API to explain captured events.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"errlens-agent/src/config"
	"errlens-agent/src/contracts"
	"errlens-agent/src/sanitize"
)

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

const (
	maxPromptMessage = 2000
	maxPromptStack   = 4000
	maxErrorBody     = 500
)

// Client is an analyze.Analyzer backed by the Messages API.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	apiURL     string
	httpClient *http.Client
}

// NewClient creates a client. Empty model, maxTokens or apiURL fall back to
// the config defaults.
func NewClient(apiKey, model string, maxTokens int, apiURL string) *Client {
	if model == "" {
		model = config.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = config.DefaultMaxTokens
	}
	if apiURL == "" {
		apiURL = config.DefaultAPIURL
	}
	return &Client{
		apiKey:    strings.TrimSpace(apiKey),
		model:     model,
		maxTokens: maxTokens,
		apiURL:    apiURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// FromConfig creates a client from the current configuration.
func FromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.APIURL)
}

// IsPlaceholderKey reports whether key is empty or an obvious template value.
func IsPlaceholderKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return true
	}
	switch k {
	case "changeme", "change-me", "todo", "xxx", "api_key", "api-key", "sk-ant-...", "sk-...":
		return true
	}
	if strings.HasPrefix(k, "<") && strings.HasSuffix(k, ">") {
		return true
	}
	return strings.Contains(k, "your") && strings.Contains(k, "key")
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze sends one prompt describing ev and returns the model's text.
// Errors are wrapped for display on the failed event.
func (c *Client) Analyze(ctx context.Context, ev contracts.Event) (string, error) {
	text, err := c.analyze(ctx, ev)
	return text, WrapError(err)
}

func (c *Client) analyze(ctx context.Context, ev contracts.Event) (string, error) {
	if IsPlaceholderKey(c.apiKey) {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: BuildPrompt(ev)}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("%w (HTTP 401)", ErrInvalidAPIKey)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", &APIError{StatusCode: resp.StatusCode, Body: sanitize.Truncate(strings.TrimSpace(string(data)), maxErrorBody)}
	}

	var parsed messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// BuildPrompt renders the single user prompt for ev.
func BuildPrompt(ev contracts.Event) string {
	var sb strings.Builder
	sb.WriteString("You are helping a web developer understand an error captured in their browser.\n\n")
	fmt.Fprintf(&sb, "Type: %s\n", ev.Type)
	fmt.Fprintf(&sb, "Message: %s\n", sanitize.Truncate(ev.Message, maxPromptMessage))
	if ev.Filename != "" {
		fmt.Fprintf(&sb, "Location: %s:%d:%d\n", ev.Filename, ev.Lineno, ev.Colno)
	}
	if ev.OriginURL != "" {
		fmt.Fprintf(&sb, "Page: %s\n", ev.OriginURL)
	}
	if ev.Stack != "" {
		fmt.Fprintf(&sb, "Stack:\n%s\n", sanitize.Truncate(ev.Stack, maxPromptStack))
	}
	sb.WriteString("\nRespond with a single JSON object with these keys:\n")
	sb.WriteString(`{"severity": "critical|high|medium|low", "explanation": "...", "cause": "...", "fix": "...", "prevention": "..."}`)
	sb.WriteString("\n")
	return sb.String()
}
