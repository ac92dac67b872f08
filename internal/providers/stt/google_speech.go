package stt

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleSpeech uses synchronous Recognize, which caps audio at one minute.
type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context, credentialsFile string) (*GoogleSpeech, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Name() string          { return "google" }
func (g *GoogleSpeech) Model() string         { return "default" }
func (g *GoogleSpeech) Close() error          { return g.c.Close() }
func (g *GoogleSpeech) ConcurrencySafe() bool { return true }

// recognitionConfig picks the encoding from the extension. Sample rates are
// read from the file header where the format carries one.
func recognitionConfig(filename, language string) (*speechpb.RecognitionConfig, error) {
	if language == "" {
		language = "en-US"
	}
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
	case ".mp3":
		cfg.Encoding = speechpb.RecognitionConfig_MP3
		cfg.SampleRateHertz = 16000
	case ".ogg":
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case ".webm":
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	default:
		return nil, fmt.Errorf("google speech cannot decode %q", filepath.Ext(filename))
	}
	return cfg, nil
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, a Audio) (*Result, error) {
	cfg, err := recognitionConfig(a.Filename, a.Language)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(a.Reader)
	if err != nil {
		return nil, err
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return nil, err
	}

	// one result per consecutive chunk; keep the best alternative of each
	var parts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		best := r.Alternatives[0]
		if best.Transcript == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(best.Transcript))
		confSum += float64(best.Confidence)
	}

	res := &Result{Text: strings.Join(parts, " "), Language: cfg.LanguageCode}
	if len(parts) > 0 {
		res.Confidence = confSum / float64(len(parts))
	}
	if d := resp.GetTotalBilledTime(); d != nil {
		res.Duration = d.AsDuration()
	}
	return res, nil
}
