package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
	"jarvis/internal/history"
	"jarvis/internal/ipc"
	"jarvis/internal/nlu"
	"jarvis/internal/prefs"
	"jarvis/internal/server"
	"jarvis/internal/system"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	configPath := cli.StringP("config", "c", "config/config.yaml", "Config file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for cloud calls")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	listen := cli.String("listen", "", "HTTP listen address, overrides the config")
	socket := cli.String("socket", "", "Control socket path, overrides the config")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("Failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *socket != "" {
		cfg.IPC.Socket = *socket
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *logLevel == "debug" {
		cfg.Debug = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func run(ctx context.Context, cfg config.Config) error {
	hist, err := newHistoryStore(ctx, cfg)
	if err != nil {
		return err
	}

	prefStore := prefs.LoadWithDefaults(cfg.Storage.PreferencesPath, prefs.Preferences{
		VoiceEnabled:        cfg.Voice.Enabled,
		WakeWord:            cfg.Voice.WakeWord,
		ConfidenceThreshold: cfg.Voice.ConfidenceThreshold,
		ResponseSpeed:       prefs.Defaults().ResponseSpeed,
	})
	log.Debug("Loaded preferences", "path", prefStore.Path(), "prefs", prefStore.Get())

	probe := system.NewProbe()
	controller := system.NewController(system.WithProbe(probe))
	responder := nlu.NewResponder(nlu.WithController(controller))

	v := newVoice(ctx, cfg, prefStore)
	defer v.close()

	var opts []assistant.Option
	if v.cue != nil {
		opts = append(opts, assistant.WithListenCue(v.cue))
	}
	a := assistant.New(responder, hist, prefStore, v.bridge, opts...)
	defer a.Close()

	ctl, err := ipc.Listen(cfg.IPC.Socket, a.Control)
	if err != nil {
		return fmt.Errorf("control socket: %w", err)
	}
	defer ctl.Close()

	srv := server.New(server.Config{
		Listen:  cfg.Server.Listen,
		Timeout: cfg.Server.Timeout,
		AppName: cfg.AppName,
		Version: cfg.Version,
		Debug:   cfg.Debug,
	}, a, probe)

	log.Info("Boot up - successful",
		"listen", cfg.Server.Listen,
		"socket", cfg.IPC.Socket,
		"can_listen", v.bridge.CanListen(),
		"can_speak", v.bridge.CanSpeak(),
	)

	return srv.Run(ctx)
}

// newHistoryStore picks the conversation backend. REDIS_URL from the
// environment wins over storage.redis_url.
func newHistoryStore(ctx context.Context, cfg config.Config) (history.Store, error) {
	switch cfg.Storage.Backend {
	case "redis":
		url := os.Getenv("REDIS_URL")
		if url == "" {
			url = cfg.Storage.RedisURL
		}
		if url == "" {
			return nil, errors.New("redis backend selected but no REDIS_URL or storage.redis_url set")
		}

		connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		store, err := history.NewRedisStore(connCtx, url, cfg.Storage.RedisKey, cfg.UI.MaxHistory)
		if err != nil {
			return nil, err
		}
		log.Info("Using redis conversation history", "key", cfg.Storage.RedisKey)
		return store, nil

	default:
		store := history.NewFileStore(cfg.Storage.HistoryPath, cfg.UI.MaxHistory)
		log.Info("Using file conversation history", "path", store.Path())
		return store, nil
	}
}
