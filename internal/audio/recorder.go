// Package audio captures microphone input through PortAudio.
package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"jarvis/internal/audio/vad"
	"jarvis/internal/speech"
)

const (
	frameSize    = 320 // 20ms
	frameMillis  = 1000 * frameSize / speech.SampleRate
	silenceAfter = 600 * time.Millisecond
	maxPhrase    = 10 * time.Second
)

// Recorder implements speech.Capturer and speech.Calibrator on the default
// input device.
type Recorder struct {
	mu        sync.Mutex
	threshold float64
}

func NewRecorder() *Recorder {
	return &Recorder{threshold: vad.DefaultThreshold}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

// Capture waits up to timeout for speech, then records until the speaker
// pauses or the phrase hits its length cap.
func (r *Recorder) Capture(ctx context.Context, timeout time.Duration) ([]float32, error) {
	seg := vad.New(
		r.Threshold(),
		int(silenceAfter.Milliseconds())/frameMillis,
		int(maxPhrase.Milliseconds())/frameMillis,
	)

	deadline := time.Now().Add(timeout)
	err := r.stream(ctx, func(buf []float32) (bool, error) {
		switch seg.Feed(buf) {
		case vad.Waiting:
			if time.Now().After(deadline) {
				return true, speech.ErrTimeout
			}
		case vad.Done:
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return seg.Phrase(), nil
}

// Calibrate listens to ambient noise for d and raises the speech threshold
// above it.
func (r *Recorder) Calibrate(ctx context.Context, d time.Duration) error {
	var levels []float64
	deadline := time.Now().Add(d)
	err := r.stream(ctx, func(buf []float32) (bool, error) {
		levels = append(levels, vad.RMS(buf))
		return time.Now().After(deadline), nil
	})
	if err != nil {
		return err
	}

	th := vad.Calibrated(levels)
	r.mu.Lock()
	r.threshold = th
	r.mu.Unlock()

	log.Info("Calibrated microphone", "threshold", th, "frames", len(levels))
	return nil
}

// stream reads frames into fn until it reports done or ctx ends.
func (r *Recorder) stream(ctx context.Context, fn func([]float32) (bool, error)) error {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, speech.SampleRate, len(buf), buf)
	if err != nil {
		return fmt.Errorf("%w: open input: %v", speech.ErrUnavailable, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start input: %v", speech.ErrUnavailable, err)
	}
	defer stream.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		done, err := fn(buf)
		if err != nil || done {
			return err
		}
	}
}
