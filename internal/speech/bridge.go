package speech

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type State string

const (
	Idle      State = "idle"
	Listening State = "listening"
)

const (
	DefaultCaptureTimeout = time.Second
	DefaultListenTimeout  = 5 * time.Second
	DefaultPause          = 100 * time.Millisecond
)

// Bridge runs the background listening loop and hands transcripts to the
// consumer through a queue drained with Poll.
type Bridge struct {
	capture Capturer
	rec     Recognizer
	synth   Synthesizer

	minConfidence  func() float64
	captureTimeout time.Duration
	listenTimeout  time.Duration
	pause          time.Duration

	listening atomic.Bool
	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	captureMu sync.Mutex
	speakMu   sync.Mutex
	queue     queue
}

type Option func(*Bridge)

func WithSynthesizer(s Synthesizer) Option {
	return func(b *Bridge) { b.synth = s }
}

// WithMinConfidence sets the threshold read before each recognition, so
// preference changes apply to a running loop.
func WithMinConfidence(f func() float64) Option {
	return func(b *Bridge) { b.minConfidence = f }
}

func WithCaptureTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.captureTimeout = d }
}

func WithListenTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.listenTimeout = d }
}

func WithPause(d time.Duration) Option {
	return func(b *Bridge) { b.pause = d }
}

// NewBridge accepts nil backends; operations needing them return
// ErrUnavailable.
func NewBridge(c Capturer, r Recognizer, opts ...Option) *Bridge {
	b := &Bridge{
		capture:        c,
		rec:            r,
		minConfidence:  func() float64 { return 0 },
		captureTimeout: DefaultCaptureTimeout,
		listenTimeout:  DefaultListenTimeout,
		pause:          DefaultPause,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bridge) CanListen() bool {
	return b.capture != nil && b.rec != nil
}

func (b *Bridge) CanSpeak() bool {
	return b.synth != nil
}

func (b *Bridge) State() State {
	if b.listening.Load() {
		return Listening
	}
	return Idle
}

// Start launches the listening loop. Starting twice is a no-op.
func (b *Bridge) Start() error {
	if !b.CanListen() {
		return ErrUnavailable
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listening.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b.cancel, b.done = cancel, done
	b.listening.Store(true)

	go b.loop(ctx, done)

	log.Info("Continuous listening started")
	return nil
}

// Stop clears the listening flag and cancels the capture in flight. It does
// not wait for the loop; use Wait for that.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.listening.Swap(false) {
		return
	}
	b.cancel()
	log.Info("Continuous listening stopped")
}

// Wait blocks until the most recently started loop has exited.
func (b *Bridge) Wait() {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Poll returns the oldest pending transcript without blocking.
func (b *Bridge) Poll() (string, bool) {
	return b.queue.pop()
}

func (b *Bridge) Pending() int {
	return b.queue.len()
}

// ListenOnce captures and recognizes a single phrase.
func (b *Bridge) ListenOnce(ctx context.Context) (string, error) {
	if !b.CanListen() {
		return "", ErrUnavailable
	}
	if b.listening.Load() {
		return "", ErrBusy
	}
	return b.recognize(ctx, b.listenTimeout)
}

// Speak runs the synthesizer; concurrent calls are serialized.
func (b *Bridge) Speak(ctx context.Context, text string) error {
	if b.synth == nil {
		return ErrUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	b.speakMu.Lock()
	defer b.speakMu.Unlock()
	return b.synth.Speak(ctx, text)
}

// Calibrate samples ambient noise for d when the capturer supports it.
func (b *Bridge) Calibrate(ctx context.Context, d time.Duration) error {
	c, ok := b.capture.(Calibrator)
	if !ok {
		return ErrUnavailable
	}

	b.captureMu.Lock()
	defer b.captureMu.Unlock()
	return c.Calibrate(ctx, d)
}

func (b *Bridge) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil && b.listening.Load() {
		text, err := b.recognize(ctx, b.captureTimeout)
		switch {
		case err == nil:
			if ctx.Err() == nil && b.listening.Load() {
				log.Debug("Heard", "text", text)
				b.queue.push(text)
			}
		case ctx.Err() != nil:
			return
		case Discardable(err):
			log.Debug("Listening cycle discarded", "err", err)
		default:
			log.Warn("Listening cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.pause):
		}
	}
}

func (b *Bridge) recognize(ctx context.Context, timeout time.Duration) (string, error) {
	b.captureMu.Lock()
	pcm, err := b.capture.Capture(ctx, timeout)
	b.captureMu.Unlock()
	if err != nil {
		return "", err
	}
	return b.transcribe(ctx, pcm)
}

// Transcribe recognizes already captured audio, such as an upload, with the
// same filtering the listening loop applies.
func (b *Bridge) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if b.rec == nil {
		return "", ErrUnavailable
	}
	return b.transcribe(ctx, pcm)
}

func (b *Bridge) CanTranscribe() bool {
	return b.rec != nil
}

func (b *Bridge) transcribe(ctx context.Context, pcm []float32) (string, error) {
	tr, err := b.rec.Recognize(ctx, pcm)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	if threshold := b.minConfidence(); tr.Confidence < threshold {
		return "", fmt.Errorf("%w: confidence %.2f below %.2f", ErrUnintelligible, tr.Confidence, threshold)
	}
	return text, nil
}
