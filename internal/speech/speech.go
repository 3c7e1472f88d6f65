// Package speech connects a microphone capturer, a recognizer and a
// synthesizer to the assistant. Concrete backends live in audio, stt and tts.
package speech

import (
	"context"
	"errors"
	"time"
)

// SampleRate is the PCM rate every capturer produces and every recognizer
// expects: mono float32 in [-1, 1].
const SampleRate = 16000

var (
	ErrTimeout        = errors.New("listening timed out")
	ErrUnintelligible = errors.New("could not understand audio")
	ErrNetwork        = errors.New("speech service unreachable")
	ErrUnavailable    = errors.New("speech backend unavailable")
	ErrBusy           = errors.New("continuous listening is active")
)

// Discardable reports whether err is a routine miss of one listening cycle.
func Discardable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnintelligible) ||
		errors.Is(err, ErrNetwork)
}

type Capturer interface {
	// Capture waits up to timeout for a phrase to start and returns it.
	// It returns ErrTimeout when nothing was said.
	Capture(ctx context.Context, timeout time.Duration) ([]float32, error)
}

// Calibrator is implemented by capturers that can adapt to ambient noise.
type Calibrator interface {
	Calibrate(ctx context.Context, d time.Duration) error
}

type Transcript struct {
	Text string
	// Confidence is in [0, 1]; backends without an estimate report 1.
	Confidence float64
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm []float32) (Transcript, error)
}

type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}
