package stt

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognitionConfig(t *testing.T) {
	tests := []struct {
		file string
		want speechpb.RecognitionConfig_AudioEncoding
	}{
		{"a.wav", speechpb.RecognitionConfig_LINEAR16},
		{"a.MP3", speechpb.RecognitionConfig_MP3},
		{"a.ogg", speechpb.RecognitionConfig_OGG_OPUS},
		{"a.webm", speechpb.RecognitionConfig_WEBM_OPUS},
	}
	for _, tt := range tests {
		cfg, err := recognitionConfig(tt.file, "")
		require.NoError(t, err, tt.file)
		assert.Equal(t, tt.want, cfg.Encoding, tt.file)
		assert.Equal(t, "en-US", cfg.LanguageCode)
	}

	cfg, err := recognitionConfig("a.wav", "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", cfg.LanguageCode)

	_, err = recognitionConfig("a.m4a", "")
	assert.Error(t, err)
}
