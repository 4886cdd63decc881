// Package llm provides a minimal client for an OpenAI-compatible API,
// covering the two capabilities the application needs: chat completions
// (answer generation) and text embeddings (vector indexing).
//
// The client deliberately does not retry. Generation failures must surface
// to the caller unchanged so that the conversational chain can report them,
// and retry policy stays at the transport boundary. All transport, quota,
// and decoding failures are wrapped in ErrUnavailable so callers can branch
// on a single sentinel.
package llm

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

// ErrUnavailable indicates that the generation/embedding service could not
// produce a result (network error, non-2xx status, or malformed response).
var ErrUnavailable = errors.New("llm service unavailable")

// Message is a single conversational turn sent to the chat completions API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string
	// APIKey is sent as a Bearer token. May be empty for local servers.
	APIKey string
	// EmbeddingModel is the model used for Embed calls.
	EmbeddingModel string
	// Timeout bounds each HTTP request. Zero means 60s.
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible HTTP API. It is safe for concurrent
// use; the zero value is not usable, construct with NewClient.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	hc             *http.Client
}

// NewClient constructs a Client, applying defaults for missing fields.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:        base,
		apiKey:         cfg.APIKey,
		embeddingModel: model,
		hc:             &http.Client{Timeout: timeout},
	}
}

// EmbeddingModel returns the model identifier used for Embed calls.
func (c *Client) EmbeddingModel() string { return c.embeddingModel }

// Generate runs one chat completion with the given model, an optional system
// instruction, and the conversation messages, returning the assistant text.
//
// The model identifier is a per-call parameter; the client holds no default.
func (c *Client) Generate(ctx context.Context, model, system string, msgs []Message) (string, error) {
	payload := make([]Message, 0, len(msgs)+1)
	if system != "" {
		payload = append(payload, Message{Role: "system", Content: system})
	}
	payload = append(payload, msgs...)

	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": payload,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}
	return out.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text using the configured
// embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.embeddingModel,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	var out embeddingResponse
	if err := c.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrUnavailable)
	}
	return out.Data[0].Embedding, nil
}

// post issues one JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(detail))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
