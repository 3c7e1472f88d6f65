// Package notify plays audio cues and synthesized speech through the
// default output device.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Speaker initializes the output device on first use. Playback is
// serialized.
type Speaker struct {
	mu   sync.Mutex
	rate beep.SampleRate
}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Beep plays the MP3 cue at path.
func (s *Speaker) Beep(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}
	return s.PlayMP3(ctx, f)
}

// PlayMP3 decodes r and blocks until playback ends or ctx is done.
func (s *Speaker) PlayMP3(ctx context.Context, r io.Reader) error {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}

	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate == 0 {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("init speaker: %w", err)
		}
		s.rate = format.SampleRate
	}

	var src beep.Streamer = streamer
	if format.SampleRate != s.rate {
		src = beep.Resample(4, format.SampleRate, s.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(src, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
