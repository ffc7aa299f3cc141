package providers

import (
	"context"
	"fmt"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiDefaultModel = "gemini-1.5-flash"
)

// Gemini is a client for the Google Gemini generateContent API
type Gemini struct {
	client *Client
	apiKey string
	model  string
}

// NewGemini creates a new Gemini client
func NewGemini(client *Client, apiKey string) *Gemini {
	return &Gemini{
		client: client,
		apiKey: apiKey,
		model:  geminiDefaultModel,
	}
}

// Message is a single turn in a chat exchange
type Message struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content" binding:"required"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Model returns the model name used for requests
func (g *Gemini) Model() string {
	return g.model
}

// Generate sends a system instruction and chat history to Gemini and
// returns the generated text.
func (g *Gemini) Generate(ctx context.Context, system string, messages []Message) (string, error) {
	if g.apiKey == "" {
		return "", ErrNotConfigured
	}

	req := geminiRequest{}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range messages {
		role := m.Role
		// Gemini names the assistant role "model"
		if role == "assistant" {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, g.model, g.apiKey)

	var resp geminiResponse
	if err := g.client.postJSON(ctx, "gemini", g.model, url, nil, &req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidate list", ErrUpstreamError)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
