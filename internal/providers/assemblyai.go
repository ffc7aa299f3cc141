package providers

import (
	"context"
	"fmt"
	"time"
)

const (
	assemblyAIBaseURL = "https://api.assemblyai.com/v2"
	assemblyAIModel   = "best"

	transcriptPollInterval = 2 * time.Second
)

// AssemblyAI is a client for the AssemblyAI transcription API
type AssemblyAI struct {
	client *Client
	apiKey string
}

// NewAssemblyAI creates a new AssemblyAI client
func NewAssemblyAI(client *Client, apiKey string) *AssemblyAI {
	return &AssemblyAI{
		client: client,
		apiKey: apiKey,
	}
}

// Transcript is a completed transcription result
type Transcript struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Word is a single recognized word with timing and confidence
type Word struct {
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
	Error      string  `json:"error"`
}

func (a *AssemblyAI) headers() map[string]string {
	return map[string]string{"Authorization": a.apiKey}
}

// Transcribe submits an audio URL for transcription and polls until the
// job completes or the context expires.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string) (*Transcript, error) {
	if a.apiKey == "" {
		return nil, ErrNotConfigured
	}

	var submitted transcriptResponse
	err := a.client.postJSON(ctx, "assemblyai", assemblyAIModel,
		assemblyAIBaseURL+"/transcript", a.headers(),
		&transcriptRequest{AudioURL: audioURL}, &submitted)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(transcriptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrUpstreamTimeout
		case <-ticker.C:
		}

		var status transcriptResponse
		err := a.client.getJSON(ctx, "assemblyai", assemblyAIModel,
			fmt.Sprintf("%s/transcript/%s", assemblyAIBaseURL, submitted.ID),
			a.headers(), &status)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
			return &Transcript{
				ID:         status.ID,
				Text:       status.Text,
				Confidence: status.Confidence,
				Words:      status.Words,
			}, nil
		case "error":
			return nil, fmt.Errorf("%w: transcription failed: %s", ErrUpstreamError, status.Error)
		}
	}
}
