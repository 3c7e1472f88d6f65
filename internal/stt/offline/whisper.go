// Package offline recognizes speech locally with whisper.cpp.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"jarvis/internal/speech"
)

type Options struct {
	Language      string // "auto", "en", ...
	TranslateToEn bool
	Threads       int // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int // 0 = greedy
}

// Recognizer owns one loaded model. whisper contexts are not safe for
// concurrent use, so recognitions are serialized.
type Recognizer struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func New(modelPath string, opt Options) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	return &Recognizer{model: m, opt: opt}, nil
}

func (r *Recognizer) Close() error {
	if r.model == nil {
		return nil
	}
	return r.model.Close()
}

// Recognize expects mono 16 kHz samples. Confidence is the mean token
// probability over all segments.
func (r *Recognizer) Recognize(ctx context.Context, pcm []float32) (speech.Transcript, error) {
	if r.model == nil {
		return speech.Transcript{}, speech.ErrUnavailable
	}
	if len(pcm) == 0 {
		return speech.Transcript{}, speech.ErrUnintelligible
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wctx, err := r.model.NewContext()
	if err != nil {
		return speech.Transcript{}, fmt.Errorf("new context: %w", err)
	}
	if err := r.configure(wctx); err != nil {
		return speech.Transcript{}, err
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return speech.Transcript{}, fmt.Errorf("process: %w", err)
	}

	var (
		parts  []string
		pSum   float64
		tokens int
	)
	for {
		if err := ctx.Err(); err != nil {
			return speech.Transcript{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return speech.Transcript{}, fmt.Errorf("next segment: %w", err)
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
		for _, tok := range s.Tokens {
			pSum += float64(tok.P)
			tokens++
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		return speech.Transcript{}, speech.ErrUnintelligible
	}

	conf := 1.0
	if tokens > 0 {
		conf = pSum / float64(tokens)
	}
	log.Debug("Transcribed locally", "text", text, "confidence", conf, "lang", wctx.DetectedLanguage())

	return speech.Transcript{Text: text, Confidence: conf}, nil
}

func (r *Recognizer) configure(wctx whisper.Context) error {
	lang := r.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(r.opt.TranslateToEn)

	threads := r.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if r.opt.BeamSize > 0 {
		wctx.SetBeamSize(r.opt.BeamSize)
	}
	if r.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(r.opt.InitialPrompt)
	}
	return nil
}

var _ speech.Recognizer = (*Recognizer)(nil)
