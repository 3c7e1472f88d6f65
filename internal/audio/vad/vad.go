// Package vad splits a stream of PCM frames into one spoken phrase using an
// RMS energy threshold.
package vad

import "math"

const (
	DefaultThreshold = 0.015
	// ambient noise is multiplied by this to get the calibrated threshold
	ambientFactor = 1.5
)

type Event int

const (
	// Waiting means no speech has started yet.
	Waiting Event = iota
	Speaking
	// Done means the phrase ended with enough trailing silence.
	Done
)

// Segmenter is fed consecutive frames of equal length.
type Segmenter struct {
	Threshold     float64
	SilenceFrames int // trailing quiet frames that end a phrase
	MaxFrames     int // phrase length cap, 0 for none

	speaking bool
	quiet    int
	frames   int
	out      []float32
}

func New(threshold float64, silenceFrames, maxFrames int) *Segmenter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Segmenter{
		Threshold:     threshold,
		SilenceFrames: silenceFrames,
		MaxFrames:     maxFrames,
	}
}

// Feed consumes one frame. The frame is copied.
func (s *Segmenter) Feed(frame []float32) Event {
	loud := RMS(frame) > s.Threshold

	if !s.speaking {
		if !loud {
			return Waiting
		}
		s.speaking = true
	}

	s.out = append(s.out, frame...)
	s.frames++

	if loud {
		s.quiet = 0
	} else {
		s.quiet++
	}

	if s.quiet >= s.SilenceFrames || (s.MaxFrames > 0 && s.frames >= s.MaxFrames) {
		return Done
	}
	return Speaking
}

func (s *Segmenter) Started() bool {
	return s.speaking
}

// Phrase returns the samples gathered since speech started.
func (s *Segmenter) Phrase() []float32 {
	return s.out
}

func RMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var sum float64
	for _, x := range f {
		sum += float64(x * x)
	}
	return math.Sqrt(sum / float64(len(f)))
}

// Calibrated derives a speech threshold from the mean RMS of ambient frames.
func Calibrated(ambient []float64) float64 {
	if len(ambient) == 0 {
		return DefaultThreshold
	}
	var sum float64
	for _, v := range ambient {
		sum += v
	}
	return max(DefaultThreshold, sum/float64(len(ambient))*ambientFactor)
}
