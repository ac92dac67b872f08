package stt

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI calls a hosted transcription endpoint. BaseURL may point at any
// OpenAI compatible server such as a local whisper.cpp or faster-whisper one.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: openai.Whisper1}
}

func (o *OpenAI) Name() string          { return "openai" }
func (o *OpenAI) Model() string         { return o.model }
func (o *OpenAI) Close() error          { return nil }
func (o *OpenAI) ConcurrencySafe() bool { return true }

func (o *OpenAI) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		Reader:   a.Reader,
		FilePath: a.Filename,
		Language: a.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}, nil
}
