package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	ttsgenai "google.golang.org/genai"
)

// The generative-ai-go SDK has no audio response modality, so speech goes
// through google.golang.org/genai.
func (c *Client) speechClient(ctx context.Context) (*ttsgenai.Client, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tts == nil {
		client, err := ttsgenai.NewClient(ctx, &ttsgenai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: ttsgenai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini speech client: %w", err)
		}
		c.tts = client
	}
	return c.tts, nil
}

// SynthesizeSpeech returns base64 mono 16-bit PCM at 24 kHz for text.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	client, err := c.speechClient(ctx)
	if err != nil {
		return "", wrap("speech", err)
	}

	resp, err := client.Models.GenerateContent(ctx, c.ttsModel, ttsgenai.Text(text), &ttsgenai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &ttsgenai.SpeechConfig{
			VoiceConfig: &ttsgenai.VoiceConfig{
				PrebuiltVoiceConfig: &ttsgenai.PrebuiltVoiceConfig{VoiceName: c.voice},
			},
		},
	})
	if err != nil {
		return "", wrap("speech", err)
	}

	data := inlineAudio(resp)
	if len(data) == 0 {
		return "", wrap("speech", errors.New("no audio data received from API"))
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func inlineAudio(resp *ttsgenai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data
		}
	}
	return nil
}
