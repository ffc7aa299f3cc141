package providers

import (
	"context"
	"encoding/base64"
	"fmt"
)

const (
	googleTTSURL          = "https://texttospeech.googleapis.com/v1/text:synthesize"
	googleTTSDefaultVoice = "en-US-Neural2-C"
)

// GoogleTTS is a client for the Google Cloud Text-to-Speech API
type GoogleTTS struct {
	client *Client
	apiKey string
}

// NewGoogleTTS creates a new Google TTS client
func NewGoogleTTS(client *Client, apiKey string) *GoogleTTS {
	return &GoogleTTS{
		client: client,
		apiKey: apiKey,
	}
}

type ttsRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate,omitempty"`
	} `json:"audioConfig"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize converts text to MP3 audio using the given voice. An empty
// voice falls back to the default.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if voice == "" {
		voice = googleTTSDefaultVoice
	}

	languageCode := "en-US"
	if len(voice) >= 5 {
		languageCode = voice[:5]
	}

	req := ttsRequest{}
	req.Input.Text = text
	req.Voice.LanguageCode = languageCode
	req.Voice.Name = voice
	req.AudioConfig.AudioEncoding = "MP3"

	url := fmt.Sprintf("%s?key=%s", googleTTSURL, g.apiKey)

	var resp ttsResponse
	if err := g.client.postJSON(ctx, "google-tts", "neural2", url, nil, &req, &resp); err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid audio payload: %v", ErrUpstreamError, err)
	}
	return audio, nil
}
