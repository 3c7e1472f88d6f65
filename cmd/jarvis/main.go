package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"jarvis/pkg/bus"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	url := cli.StringP("url", "u", "", "Websocket url of the daemon, defaults to $BUS_URL or ws://127.0.0.1:8501/ws")
	name := cli.StringP("name", "n", "cli", "Client name on the bus")
	timeout := cli.DurationP("timeout", "t", 30*time.Second, "Reply timeout")
	logLevel := cli.StringP("log", "l", "warn", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	wsURL := *url
	if wsURL == "" {
		wsURL = os.Getenv("BUS_URL")
	}
	if wsURL == "" {
		wsURL = "ws://127.0.0.1:8501/ws"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := bus.Dial(ctx, bus.Config{
		Name: *name,
		URL:  wsURL,
		OnMessage: func(m bus.Message) {
			fmt.Printf("\n[%s] %s\n> ", m.From, m.Content)
		},
	})
	if err != nil {
		log.Error("Failed to connect to bus", "err", err)
		os.Exit(1)
	}
	defer c.Close()

	go func() {
		if err := c.Run(ctx); err != nil && !errors.Is(err, bus.ErrClosed) && !errors.Is(err, context.Canceled) {
			log.Error("Bus stopped", "err", err)
		}
	}()

	fmt.Println("Connected to", wsURL, "- type a command, Ctrl-D to quit")
	in := bufio.NewScanner(os.Stdin)
	for fmt.Print("> "); in.Scan(); fmt.Print("> ") {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, *timeout)
		m, err := c.Request(reqCtx, line)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Request failed", "err", err)
			continue
		}

		if m.Kind == bus.KindError {
			fmt.Println("error:", m.Content)
			continue
		}
		fmt.Printf("[%s] %s\n", m.Intent, m.Content)
	}
	fmt.Println()
}
