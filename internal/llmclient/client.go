// Package llmclient provides the single-turn chat-completion client shared
// by the LLM Relation Inferrer, the Normalizer's LLM confirmation stage, the
// NL-Query intent parser, the Chain-of-Thought Reasoner, and the Consistency
// Checker's claim extraction.
//
// The wire contract matches spec section 6: an HTTP POST carrying a prompt
// and generation options, and a non-streaming text response. Every call is
// routed through a resilience.Guard so rate limiting and circuit breaking
// apply uniformly across callers.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"litkg/internal/apperrors"
	"litkg/internal/resilience"
)

// ChatRequest is a single-turn prompt plus generation options.
type ChatRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatClient is the capability interface every LLM-dependent component
// depends on, so each can be tested against a fake without a live endpoint.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Config holds HTTP chat-endpoint configuration.
type Config struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
}

// HTTPChatClient implements ChatClient against a generic HTTP chat endpoint,
// guarded by rate limiting and circuit breaking per spec section 4.11.
type HTTPChatClient struct {
	client *http.Client
	guard  *resilience.Guard
	cfg    Config
}

// NewHTTPChatClient builds an HTTP chat client guarded by guard.
func NewHTTPChatClient(cfg Config, guard *resilience.Guard, httpClient *http.Client) *HTTPChatClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &HTTPChatClient{client: httpClient, guard: guard, cfg: cfg}
}

type chatRequestBody struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponseBody struct {
	Text string `json:"text"`
}

// Chat sends a single-turn prompt and returns the generated text.
func (c *HTTPChatClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	raw, err := c.guard.Call(ctx, func(ctx context.Context) (any, error) {
		return c.doRequest(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return raw.(string), nil
}

func (c *HTTPChatClient) doRequest(ctx context.Context, req ChatRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body, err := json.Marshal(chatRequestBody{
		Model:       c.cfg.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("marshal-request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("build-request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrExternalTimeout, err).WithStage("chat-call")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrLLMCallFailed, err).WithStage("read-response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.New(apperrors.ErrLLMCallFailed, fmt.Sprintf("chat endpoint returned status %d", resp.StatusCode)).WithDetails(string(respBody))
	}

	var parsed chatResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperrors.Wrap(apperrors.ErrLLMParseFailed, err).WithStage("decode-response")
	}
	return parsed.Text, nil
}
