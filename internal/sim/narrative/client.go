package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 1024
	anthropicVersion = "2023-06-01"
)

var ErrNotConfigured = errors.New("narrative generator not configured")

// ClientConfig points the client at an Anthropic-compatible messages endpoint.
type ClientConfig struct {
	URL       string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client is a Generator backed by a messages API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Generate(ctx context.Context, s Situation) (json.RawMessage, error) {
	prompt, err := userPrompt(s)
	if err != nil {
		return nil, err
	}
	text, err := c.complete(ctx, prompt, c.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(text), nil
}

func (c *Client) GenerateBatch(ctx context.Context, ss []Situation) ([]json.RawMessage, error) {
	prompt, err := batchPrompt(ss)
	if err != nil {
		return nil, err
	}
	text, err := c.complete(ctx, prompt, c.cfg.MaxTokens*len(ss))
	if err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	return out, nil
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.cfg.URL == "" || c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator error (status %d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var mr messagesResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	for _, part := range mr.Content {
		if part.Type == "text" && part.Text != "" {
			return stripFences(part.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
