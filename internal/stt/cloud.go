// Package stt recognizes speech with the OpenAI transcription API.
// A local whisper.cpp recognizer lives in stt/offline.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"jarvis/internal/speech"
	"jarvis/pkg/audioconv"
)

type Cloud struct {
	client   openai.Client
	model    openai.AudioModel
	language string
}

// NewCloud uses whisper-1. An empty or "auto" language lets the service
// detect it.
func NewCloud(client openai.Client, language string) *Cloud {
	return &Cloud{
		client:   client,
		model:    openai.AudioModelWhisper1,
		language: language,
	}
}

// Recognize uploads pcm as a WAV file. The API reports no confidence, so a
// non-empty transcript is returned with confidence 1.
func (c *Cloud) Recognize(ctx context.Context, pcm []float32) (speech.Transcript, error) {
	if len(pcm) == 0 {
		return speech.Transcript{}, speech.ErrUnintelligible
	}

	data, err := audioconv.EncodeWAV(pcm, speech.SampleRate)
	if err != nil {
		return speech.Transcript{}, err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "speech.wav", "audio/wav"),
		Model: c.model,
	}
	if c.language != "" && c.language != "auto" {
		params.Language = openai.String(c.language)
	}

	res, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return speech.Transcript{}, classify(err)
	}

	text := strings.TrimSpace(res.Text)
	log.Debug("Transcribed", "text", text, "samples", len(pcm))
	if text == "" {
		return speech.Transcript{}, speech.ErrUnintelligible
	}
	return speech.Transcript{Text: text, Confidence: 1}, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", speech.ErrNetwork, err)
		}
		return fmt.Errorf("transcription request: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", speech.ErrNetwork, err)
	}
	return fmt.Errorf("transcribe: %w", err)
}

var _ speech.Recognizer = (*Cloud)(nil)
