package server

import (
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"jarvis/pkg/bus"
)

const busName = "jarvis"

// wsHandler answers each command frame with a reply frame until the client
// disconnects.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	log.Info("Websocket client connected", "remote", r.RemoteAddr)
	for {
		var in bus.Message
		if err := conn.ReadJSON(&in); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug("Websocket read failed", "err", err)
			}
			return
		}

		if err := conn.WriteJSON(s.busReply(r, in)); err != nil {
			log.Debug("Websocket write failed", "err", err)
			return
		}
	}
}

func (s *Server) busReply(r *http.Request, in bus.Message) bus.Message {
	if in.Kind != bus.KindCommand {
		return in.ErrorTo(busName, "unsupported message kind: "+string(in.Kind))
	}

	reply, err := s.assistant.Handle(r.Context(), in.Content)
	if err != nil {
		return in.ErrorTo(busName, err.Error())
	}
	out := in.ReplyTo(busName, reply.Response)
	out.Intent = string(reply.Intent)
	return out
}
