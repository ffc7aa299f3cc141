package providers

import (
	"context"
	"fmt"
)

const (
	deepseekURL          = "https://api.deepseek.com/chat/completions"
	deepseekDefaultModel = "deepseek-chat"
)

// DeepSeek is a client for the DeepSeek chat completions API
// (OpenAI-compatible wire format)
type DeepSeek struct {
	client *Client
	apiKey string
	model  string
}

// NewDeepSeek creates a new DeepSeek client
func NewDeepSeek(client *Client, apiKey string) *DeepSeek {
	return &DeepSeek{
		client: client,
		apiKey: apiKey,
		model:  deepseekDefaultModel,
	}
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekRequest struct {
	Model    string            `json:"model"`
	Messages []deepseekMessage `json:"messages"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
}

// Model returns the model name used for requests
func (d *DeepSeek) Model() string {
	return d.model
}

// Complete sends a system prompt and user content to DeepSeek and
// returns the completion text.
func (d *DeepSeek) Complete(ctx context.Context, system, user string) (string, error) {
	if d.apiKey == "" {
		return "", ErrNotConfigured
	}

	req := deepseekRequest{
		Model: d.model,
		Messages: []deepseekMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	headers := map[string]string{
		"Authorization": "Bearer " + d.apiKey,
	}

	var resp deepseekResponse
	if err := d.client.postJSON(ctx, "deepseek", d.model, deepseekURL, headers, &req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choice list", ErrUpstreamError)
	}
	return resp.Choices[0].Message.Content, nil
}
