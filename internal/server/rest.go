package server

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strconv"
	"time"

	"jarvis/internal/assistant"
	"jarvis/internal/prefs"
	"jarvis/internal/speech"
	"jarvis/internal/system"
	"jarvis/pkg/audioconv"
)

const (
	maxUploadSize = 16 << 20
	// 30 seconds of 16 kHz audio
	maxUploadSamples = 30 * audioconv.TargetRate
)

func (s *Server) apiStatusHandler(w http.ResponseWriter, r *http.Request) {
	st := s.assistant.Stats(r.Context())
	renderJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.cfg.Version,
		"time":      time.Now().UTC(),
		"listening": st.Listening,
	})
}

type commandRequest struct {
	Command string `json:"command"`
}

func (s *Server) apiCommandHandler(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	reply, err := s.assistant.Handle(r.Context(), req.Command)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, assistant.ErrEmptyCommand) {
			code = http.StatusBadRequest
		}
		renderError(w, r, err, code)
		return
	}
	renderJSON(w, r, http.StatusOK, reply)
}

func (s *Server) apiHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			renderError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.assistant.History(r.Context(), limit)
	if err != nil {
		log.Warn("Failed to load history", "err", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, recs)
}

func (s *Server) apiClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.Clear(r.Context()); err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) apiGetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, s.assistant.Preferences())
}

// apiPutPreferencesHandler replaces preferences wholesale; omitted fields
// take their defaults.
func (s *Server) apiPutPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	p := prefs.Defaults()
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		renderError(w, r, fmt.Errorf("invalid preferences: %w", err), http.StatusBadRequest)
		return
	}

	saved, err := s.assistant.SavePreferences(p)
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderJSON(w, r, http.StatusOK, saved)
}

func (s *Server) apiSystemHandler(w http.ResponseWriter, r *http.Request) {
	if s.probe == nil {
		renderError(w, r, errors.New("system metrics disabled"), http.StatusServiceUnavailable)
		return
	}

	st, err := s.probe.Status(r.Context())
	if err != nil {
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("processes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			renderError(w, r, fmt.Errorf("invalid processes %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	// the probe treats a zero limit as unlimited
	procs := []system.Process{}
	if limit > 0 {
		if procs, err = s.probe.Processes(r.Context(), limit); err != nil {
			log.Warn("Failed to list processes", "err", err)
		}
	}

	renderJSON(w, r, http.StatusOK, map[string]any{
		"status":    st,
		"report":    st.Report(),
		"processes": procs,
	})
}

// apiTranscribeHandler takes a multipart "audio" file, recognizes it and
// runs the transcript as a command.
func (s *Server) apiTranscribeHandler(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		renderError(w, r, fmt.Errorf("missing audio file: %w", err), http.StatusBadRequest)
		return
	}
	defer f.Close()

	pcm, err := audioconv.Decode(f, hdr.Filename, audioconv.Options{MaxSamples: maxUploadSamples})
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, audioconv.ErrUnsupportedFormat) {
			code = http.StatusUnsupportedMediaType
		}
		renderError(w, r, err, code)
		return
	}

	reply, err := s.assistant.HandleAudio(r.Context(), pcm)
	if err != nil {
		renderError(w, r, err, transcribeStatus(err))
		return
	}
	renderJSON(w, r, http.StatusOK, reply)
}

func transcribeStatus(err error) int {
	switch {
	case errors.Is(err, speech.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, speech.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, speech.ErrUnintelligible), errors.Is(err, assistant.ErrEmptyCommand):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
