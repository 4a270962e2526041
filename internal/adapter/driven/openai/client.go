// Package openai implements the Completer port using the openai-go SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ericfisherdev/chatrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Completer = (*Client)(nil)

// ErrEmptyCompletion is returned when the API answers without any choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

// Client implements the driven.Completer port against the Chat Completions API.
type Client struct {
	sdk   oai.Client
	model string
}

// NewClient creates a Client for the given API key and fixed model.
// SDK-level retries are disabled: a failed upstream call fails the request.
// Extra options (for example option.WithBaseURL for an OpenAI-compatible
// server) are applied after the defaults.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	return &Client{
		sdk:   oai.NewClient(append(base, opts...)...),
		model: model,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, apiKey, model string) *Client {
	return NewClient(apiKey, model,
		option.WithHTTPClient(httpClient),
		option.WithBaseURL(baseURL),
	)
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the content of
// the first choice. Neither side is trimmed or otherwise rewritten.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sdk.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion with %s: %w", c.model, err)
	}

	slog.Debug("openai api call",
		"model", resp.Model,
		"choices", len(resp.Choices),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

// StatusCode extracts the HTTP status of an upstream API error, or 0 when err
// did not come from an API response (network failure, timeout).
func StatusCode(err error) int {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
