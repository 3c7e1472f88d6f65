// Package server serves the chat UI, the JSON API and the websocket
// command channel.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/gorilla/websocket"

	"jarvis/internal/assistant"
	"jarvis/internal/history"
	"jarvis/internal/prefs"
	"jarvis/internal/system"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Assistant is what the handlers need from the command pipeline.
type Assistant interface {
	Handle(ctx context.Context, input string) (assistant.Reply, error)
	HandleAudio(ctx context.Context, pcm []float32) (assistant.Reply, error)
	DrainVoice(ctx context.Context) []assistant.Reply
	StartListening() error
	StopListening()
	History(ctx context.Context, k int) ([]history.Record, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) assistant.Stats
	Preferences() prefs.Preferences
	SavePreferences(p prefs.Preferences) (prefs.Preferences, error)
}

// SystemProbe reports host metrics for the system endpoint.
type SystemProbe interface {
	Status(ctx context.Context) (system.Status, error)
	Processes(ctx context.Context, limit int) ([]system.Process, error)
}

type Config struct {
	Listen  string
	Timeout time.Duration
	AppName string
	Version string
	Debug   bool
}

type Server struct {
	cfg       Config
	assistant Assistant
	probe     SystemProbe
	templates *template.Template
	upgrader  websocket.Upgrader

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New wires routes and middleware. probe may be nil.
func New(cfg Config, a Assistant, probe SystemProbe) *Server {
	if cfg.AppName == "" {
		cfg.AppName = "JARVIS Assistant"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		assistant: a,
		probe:     probe,
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")),
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

var templateFuncs = template.FuncMap{
	"clock": func(t time.Time) string { return t.Format("15:04:05") },
	"ago":   humanize.Time,
	"pct":   func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log.Info("Starting HTTP server", "listen", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Timeout,
		// voice uploads and synthesized replies may take a while
		WriteTimeout: 2 * s.cfg.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown error", "err", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("jarvis", "jarvis", s.cfg.Version))
	s.router.Use(rest.Ping)

	if s.cfg.Debug {
		s.router.Use(logger.New(logger.Log(slogBackend{}), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(slogBackend{}))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(maxUploadSize))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.indexHandler)
	s.router.HandleFunc("POST /command", s.commandHandler)
	s.router.HandleFunc("POST /history/clear", s.clearHandler)
	s.router.HandleFunc("POST /voice/start", s.voiceStartHandler)
	s.router.HandleFunc("POST /voice/stop", s.voiceStopHandler)
	s.router.HandleFunc("GET /voice/poll", s.voicePollHandler)
	s.router.HandleFunc("POST /settings", s.settingsHandler)
	s.router.HandleFunc("GET /stats", s.statsHandler)
	s.router.HandleFunc("GET /ws", s.wsHandler)

	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.apiStatusHandler)
		r.HandleFunc("POST /command", s.apiCommandHandler)
		r.HandleFunc("GET /history", s.apiHistoryHandler)
		r.HandleFunc("DELETE /history", s.apiClearHistoryHandler)
		r.HandleFunc("GET /preferences", s.apiGetPreferencesHandler)
		r.HandleFunc("PUT /preferences", s.apiPutPreferencesHandler)
		r.HandleFunc("GET /system", s.apiSystemHandler)
		r.HandleFunc("POST /voice/transcribe", s.apiTranscribeHandler)
	})
}

func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error("Can't encode response to JSON", "err", err)
		}
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
