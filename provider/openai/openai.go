// Package openai implements the completion and embedding ports against the
// OpenAI-compatible HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/recollect-labs/recollect/config"
	"github.com/recollect-labs/recollect/internal/telemetry"
)

const defaultEmbeddingBatch = 100

// Client talks to an OpenAI-compatible API.
type Client struct {
	cfg        config.LLMProvider
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient builds a client from provider configuration. A missing API key
// falls back to OPENAI_API_KEY at call time.
func NewClient(cfg config.LLMProvider) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.New(log.Writer(), "[OPENAI] ", log.LstdFlags),
	}
}

func (c *Client) apiKey() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (c *Client) baseURL() string {
	if c.cfg.BaseURL != "" {
		return c.cfg.BaseURL
	}
	return "https://api.openai.com/v1"
}

// Complete generates text for a prompt via the chat completions endpoint.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	apiKey := c.apiKey()
	if apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	body, err := json.Marshal(chatReq{
		Model:       c.cfg.CompletionModel,
		Messages:    []chatMsg{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL()+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ProviderRequests.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		telemetry.ProviderRequests.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		telemetry.ProviderRequests.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		telemetry.ProviderRequests.WithLabelValues("complete", "error").Inc()
		return "", fmt.Errorf("no choices")
	}

	telemetry.ProviderRequests.WithLabelValues("complete", "ok").Inc()
	return out.Choices[0].Message.Content, nil
}

// Embed generates embeddings for the given texts. Inputs are chunked to the
// provider batch limit; a failed chunk degrades to empty vectors for its
// members instead of failing the whole call, so the result always has the
// same length as the input with positions preserved.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	apiKey := c.apiKey()
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	batch := c.cfg.EmbeddingBatch
	if batch <= 0 {
		batch = defaultEmbeddingBatch
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := c.embedChunk(ctx, apiKey, texts[start:end])
		if err != nil {
			telemetry.ProviderRequests.WithLabelValues("embed", "error").Inc()
			c.logger.Printf("embedding chunk [%d:%d] failed, degrading to empty vectors: %v", start, end, err)
			continue
		}
		telemetry.ProviderRequests.WithLabelValues("embed", "ok").Inc()
		for i, vec := range chunk {
			if start+i < len(vectors) {
				vectors[start+i] = vec
			}
		}
	}
	return vectors, nil
}

func (c *Client) embedChunk(ctx context.Context, apiKey string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL()+"/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI status %d", resp.StatusCode)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}
