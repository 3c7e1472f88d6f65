// Package assistant is the single path every frontend uses to turn a typed
// or spoken command into a reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"jarvis/internal/history"
	"jarvis/internal/nlu"
	"jarvis/internal/prefs"
	"jarvis/internal/speech"
)

var ErrEmptyCommand = errors.New("empty command")

const speakTimeout = time.Minute

type Reply struct {
	Command   string     `json:"command"`
	Intent    nlu.Intent `json:"intent"`
	Response  string     `json:"response"`
	Timestamp time.Time  `json:"timestamp"`
}

type Stats struct {
	SessionStart  time.Time    `json:"session_start"`
	Commands      int          `json:"commands_processed"`
	Conversations int          `json:"conversations"`
	Listening     bool         `json:"listening"`
	Voice         speech.State `json:"voice_state"`
	CanListen     bool         `json:"can_listen"`
	CanSpeak      bool         `json:"can_speak"`
}

type Assistant struct {
	resp  *nlu.Responder
	hist  history.Store
	prefs *prefs.Store
	voice *speech.Bridge
	cue   func(ctx context.Context)
	now   func() time.Time

	mu       sync.Mutex
	commands int
	started  time.Time

	speaking sync.WaitGroup
}

type Option func(*Assistant)

// WithListenCue runs fn before every one-shot capture, e.g. a beep.
func WithListenCue(fn func(ctx context.Context)) Option {
	return func(a *Assistant) { a.cue = fn }
}

func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

func New(resp *nlu.Responder, hist history.Store, p *prefs.Store, voice *speech.Bridge, opts ...Option) *Assistant {
	a := &Assistant{
		resp:  resp,
		hist:  hist,
		prefs: p,
		voice: voice,
		now:   time.Now,
	}
	if a.voice == nil {
		a.voice = speech.NewBridge(nil, nil)
	}
	for _, o := range opts {
		o(a)
	}
	a.started = a.now()
	return a
}

// Handle sanitizes input, answers it and records the exchange. History
// write failures are logged, the reply is still returned.
func (a *Assistant) Handle(ctx context.Context, input string) (Reply, error) {
	cmd := StripWakeWord(Sanitize(input), a.prefs.Get().WakeWord)
	if cmd == "" {
		return Reply{}, ErrEmptyCommand
	}

	intent, text := a.resp.Process(ctx, cmd)
	log.Info("Handled command", "command", cmd, "intent", intent)

	if err := a.hist.Append(ctx, cmd, text); err != nil {
		log.Warn("Failed to record conversation", "err", err)
	}

	a.mu.Lock()
	a.commands++
	a.mu.Unlock()

	if a.prefs.Get().VoiceEnabled && a.voice.CanSpeak() {
		a.speakAsync(text)
	}

	return Reply{
		Command:   cmd,
		Intent:    intent,
		Response:  text,
		Timestamp: a.now(),
	}, nil
}

func (a *Assistant) speakAsync(text string) {
	a.speaking.Add(1)
	go func() {
		defer a.speaking.Done()

		ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
		defer cancel()
		if err := a.voice.Speak(ctx, text); err != nil {
			log.Warn("Failed to voice out", "err", err)
		}
	}()
}

// Listen captures one phrase and handles it.
func (a *Assistant) Listen(ctx context.Context) (Reply, error) {
	if a.cue != nil {
		a.cue(ctx)
	}

	text, err := a.voice.ListenOnce(ctx)
	if err != nil {
		return Reply{}, err
	}
	return a.Handle(ctx, text)
}

// HandleAudio recognizes uploaded PCM and handles the transcript.
func (a *Assistant) HandleAudio(ctx context.Context, pcm []float32) (Reply, error) {
	text, err := a.voice.Transcribe(ctx, pcm)
	if err != nil {
		return Reply{}, err
	}
	return a.Handle(ctx, text)
}

// DrainVoice handles every transcript queued by the listening loop.
func (a *Assistant) DrainVoice(ctx context.Context) []Reply {
	var out []Reply
	for {
		text, ok := a.voice.Poll()
		if !ok {
			return out
		}
		r, err := a.Handle(ctx, text)
		if err != nil {
			log.Debug("Skipped voice input", "text", text, "err", err)
			continue
		}
		out = append(out, r)
	}
}

func (a *Assistant) StartListening() error {
	if err := a.voice.Start(); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}
	return nil
}

func (a *Assistant) StopListening() {
	a.voice.Stop()
}

func (a *Assistant) Voice() *speech.Bridge {
	return a.voice
}

func (a *Assistant) History(ctx context.Context, k int) ([]history.Record, error) {
	return a.hist.Recent(ctx, k)
}

// Clear empties the conversation and resets the command counter.
func (a *Assistant) Clear(ctx context.Context) error {
	if err := a.hist.Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	a.mu.Lock()
	a.commands = 0
	a.mu.Unlock()
	return nil
}

func (a *Assistant) Stats(ctx context.Context) Stats {
	n, err := a.hist.Len(ctx)
	if err != nil {
		log.Warn("Failed to count history", "err", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		SessionStart:  a.started,
		Commands:      a.commands,
		Conversations: n / 2,
		Listening:     a.voice.State() == speech.Listening,
		Voice:         a.voice.State(),
		CanListen:     a.voice.CanListen(),
		CanSpeak:      a.voice.CanSpeak(),
	}
}

func (a *Assistant) Preferences() prefs.Preferences {
	return a.prefs.Get()
}

func (a *Assistant) SavePreferences(p prefs.Preferences) (prefs.Preferences, error) {
	return a.prefs.Save(p)
}

// Close stops listening and waits for pending speech.
func (a *Assistant) Close() {
	a.voice.Stop()
	a.voice.Wait()
	a.speaking.Wait()
}
