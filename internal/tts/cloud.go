// Package tts speaks replies with the OpenAI speech API. The local
// espeak-ng synthesizer lives in tts/espeak.
package tts

import (
	"context"
	"fmt"
	"io"

	openai "github.com/openai/openai-go/v3"

	"jarvis/internal/speech"
)

// Player plays an MP3 stream to the end.
type Player interface {
	PlayMP3(ctx context.Context, r io.Reader) error
}

type Cloud struct {
	client openai.Client
	voice  openai.AudioSpeechNewParamsVoice
	speed  func() float64
	player Player
}

// NewCloud reads the speed before every request so preference changes
// apply immediately. A nil speed means 1.0.
func NewCloud(client openai.Client, voice string, speed func() float64, player Player) *Cloud {
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	if speed == nil {
		speed = func() float64 { return 1 }
	}
	return &Cloud{
		client: client,
		voice:  openai.AudioSpeechNewParamsVoice(voice),
		speed:  speed,
		player: player,
	}
}

func (c *Cloud) Speak(ctx context.Context, text string) error {
	res, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModelTTS1,
		Voice:          c.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		// the API accepts 0.25 to 4
		Speed: openai.Float(max(0.25, min(4, c.speed()))),
	})
	if err != nil {
		return fmt.Errorf("%w: synthesize: %v", speech.ErrNetwork, err)
	}
	defer res.Body.Close()

	if err := c.player.PlayMP3(ctx, res.Body); err != nil {
		return fmt.Errorf("play speech: %w", err)
	}
	return nil
}

var _ speech.Synthesizer = (*Cloud)(nil)
