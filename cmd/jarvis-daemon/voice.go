package main

import (
	"context"
	"os"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	log "log/slog"

	"jarvis/internal/audio"
	"jarvis/internal/config"
	"jarvis/internal/mixer"
	"jarvis/internal/notify"
	"jarvis/internal/prefs"
	"jarvis/internal/proxy"
	"jarvis/internal/speech"
	"jarvis/internal/stt"
	"jarvis/internal/stt/offline"
	"jarvis/internal/tts"
	"jarvis/internal/tts/espeak"
)

const calibration = time.Second

type voice struct {
	bridge  *speech.Bridge
	cue     func(ctx context.Context)
	closers []func()
}

func (v *voice) close() {
	for i := len(v.closers) - 1; i >= 0; i-- {
		v.closers[i]()
	}
}

// newVoice builds whatever speech backends are configured and available.
// A missing microphone, model or API key only disables that half of the
// voice path.
func newVoice(ctx context.Context, cfg config.Config, p *prefs.Store) *voice {
	v := &voice{}
	if !cfg.Voice.Enabled {
		log.Info("Voice disabled by config")
		v.bridge = speech.NewBridge(nil, nil)
		return v
	}

	client, cloudOK := newOpenAI(cfg)
	spk := notify.NewSpeaker()

	var capturer speech.Capturer
	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		log.Warn("Microphone unavailable, voice input disabled", "err", err)
	} else {
		v.closers = append(v.closers, rec.Close)
		capturer = rec
	}

	var recognizer speech.Recognizer
	switch cfg.Voice.Recognizer {
	case "cloud":
		if cloudOK {
			recognizer = stt.NewCloud(client, cfg.Voice.Language)
		}
	case "offline":
		w, err := offline.New(cfg.Voice.WhisperModel, offline.Options{Language: cfg.Voice.Language})
		if err != nil {
			log.Warn("Failed to load whisper model, voice input disabled", "model", cfg.Voice.WhisperModel, "err", err)
			break
		}
		v.closers = append(v.closers, func() { _ = w.Close() })
		recognizer = w
	}

	speed := func() float64 { return p.Get().ResponseSpeed }

	var synth speech.Synthesizer
	switch cfg.Voice.Synthesizer {
	case "espeak":
		synth = espeak.New(cfg.Voice.Language, speed)
	case "cloud":
		if cloudOK {
			synth = tts.NewCloud(client, cfg.Voice.Voice, speed, spk)
		}
	}
	if synth != nil && cfg.Voice.Duck {
		synth = mixer.NewDuckingSpeaker(synth, mixer.NewDucker([]string{"jarvis"}, 10))
	}

	opts := []speech.Option{
		speech.WithMinConfidence(func() float64 { return p.Get().ConfidenceThreshold }),
		speech.WithCaptureTimeout(cfg.Voice.CaptureTimeout),
		speech.WithListenTimeout(cfg.Voice.ListenTimeout),
	}
	if synth != nil {
		opts = append(opts, speech.WithSynthesizer(synth))
	}
	v.bridge = speech.NewBridge(capturer, recognizer, opts...)

	if capturer != nil {
		if err := v.bridge.Calibrate(ctx, calibration); err != nil {
			log.Warn("Ambient noise calibration failed", "err", err)
		}
	}

	if cfg.Voice.Beep != "" {
		v.cue = func(ctx context.Context) {
			if err := spk.Beep(ctx, cfg.Voice.Beep); err != nil {
				log.Debug("Failed to play listening cue", "err", err)
			}
		}
	}

	log.Debug("Voice ready",
		"recognizer", cfg.Voice.Recognizer,
		"synthesizer", cfg.Voice.Synthesizer,
		"can_listen", v.bridge.CanListen(),
		"can_speak", v.bridge.CanSpeak(),
	)
	return v
}

// newOpenAI returns false when no API key is set or the proxy is unusable.
func newOpenAI(cfg config.Config) (openai.Client, bool) {
	needed := cfg.Voice.Recognizer == "cloud" || cfg.Voice.Synthesizer == "cloud"
	if !needed {
		return openai.Client{}, false
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn("OPENAI_API_KEY not set, cloud speech disabled")
		return openai.Client{}, false
	}

	httpClient, err := proxy.NewClient(cfg.Proxy, cfg.Server.Timeout)
	if err != nil {
		log.Warn("Failed to dial socks proxy, cloud speech disabled", "proxy", cfg.Proxy, "err", err)
		return openai.Client{}, false
	}

	return openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	), true
}
