package server

import (
	"errors"
	log "log/slog"
	"net/http"
	"strconv"

	"jarvis/internal/assistant"
	"jarvis/internal/history"
	"jarvis/internal/prefs"
)

const (
	templateIndex        = "index"
	templateConversation = "conversation"
	templateVoice        = "voice"
	templateSettings     = "settings"
	templateStats        = "stats"
)

type pageData struct {
	AppName   string
	Version   string
	Records   []history.Record
	Prefs     prefs.Preferences
	WakeWords []string
	Stats     assistant.Stats
	Notice    string
	Error     string
}

func (s *Server) page(r *http.Request) pageData {
	recs, err := s.assistant.History(r.Context(), 0)
	if err != nil {
		log.Warn("Failed to load history", "err", err)
	}
	return pageData{
		AppName:   s.cfg.AppName,
		Version:   s.cfg.Version,
		Records:   recs,
		Prefs:     s.assistant.Preferences(),
		WakeWords: prefs.WakeWords,
		Stats:     s.assistant.Stats(r.Context()),
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Error("Failed to render template", "template", name, "err", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, templateIndex, s.page(r))
}

// commandHandler answers a typed command and re-renders the conversation.
func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	_, err := s.assistant.Handle(r.Context(), r.FormValue("command"))
	data := s.page(r)
	if err != nil && !errors.Is(err, assistant.ErrEmptyCommand) {
		data.Error = err.Error()
	}
	w.Header().Set("HX-Trigger", "stats-changed")
	s.render(w, templateConversation, data)
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	data := pageData{}
	if err := s.assistant.Clear(r.Context()); err != nil {
		log.Warn("Failed to clear history", "err", err)
		data.Error = "Could not clear conversation history"
	}
	recs, err := s.assistant.History(r.Context(), 0)
	if err != nil {
		log.Warn("Failed to load history", "err", err)
	}
	data.Records = recs
	w.Header().Set("HX-Trigger", "stats-changed")
	s.render(w, templateConversation, data)
}

func (s *Server) voiceStartHandler(w http.ResponseWriter, r *http.Request) {
	data := s.page(r)
	if err := s.assistant.StartListening(); err != nil {
		log.Warn("Failed to start listening", "err", err)
		data.Error = "Voice input is not available"
	} else {
		data.Stats = s.assistant.Stats(r.Context())
	}
	s.render(w, templateVoice, data)
}

func (s *Server) voiceStopHandler(w http.ResponseWriter, r *http.Request) {
	s.assistant.StopListening()
	s.render(w, templateVoice, s.page(r))
}

// voicePollHandler handles queued transcripts. With nothing queued it
// answers 204 so htmx leaves the page alone.
func (s *Server) voicePollHandler(w http.ResponseWriter, r *http.Request) {
	if replies := s.assistant.DrainVoice(r.Context()); len(replies) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("HX-Trigger", "stats-changed")
	s.render(w, templateConversation, s.page(r))
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.assistant.Preferences()
	p.VoiceEnabled = r.FormValue("voice_enabled") != ""
	if v := r.FormValue("wake_word"); v != "" {
		p.WakeWord = v
	}
	if v, err := strconv.ParseFloat(r.FormValue("confidence_threshold"), 64); err == nil {
		p.ConfidenceThreshold = v
	}
	if v, err := strconv.ParseFloat(r.FormValue("response_speed"), 64); err == nil {
		p.ResponseSpeed = v
	}

	saved, err := s.assistant.SavePreferences(p)
	data := s.page(r)
	data.Prefs = saved
	if err != nil {
		log.Warn("Failed to save preferences", "err", err)
		data.Error = "Preferences applied but could not be saved"
	} else {
		data.Notice = "Preferences saved"
	}
	s.render(w, templateSettings, data)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, templateStats, pageData{Stats: s.assistant.Stats(r.Context())})
}
