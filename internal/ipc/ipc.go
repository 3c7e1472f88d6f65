// Package ipc is the unix-socket control channel between jarvis-ctl and the
// daemon: one JSON request and one JSON reply per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const DefaultSocketPath = "/tmp/jarvis.sock"

const (
	CmdSay    = "say"
	CmdListen = "listen"
	CmdStart  = "start"
	CmdStop   = "stop"
	CmdClear  = "clear"
	CmdStats  = "stats"
)

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

type ControlReply struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func Fail(err error) ControlReply {
	return ControlReply{Error: err.Error()}
}

func Reply(text string) ControlReply {
	return ControlReply{OK: true, Text: text}
}

type Handler func(ctx context.Context, msg ControlMessage) ControlReply

type Server struct {
	path    string
	handler Handler
	ln      net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var ErrInUse = errors.New("control socket in use by another daemon")

// Listen removes a stale socket at path and starts serving in the
// background. A socket somebody still answers on is left alone.
func Listen(path string, handler Handler) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrInUse)
	}
	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{path: path, handler: handler, ln: ln, ctx: ctx, cancel: cancel}

	s.wg.Add(1)
	go s.accept()

	log.Info("Control socket ready", "path", path)
	return s, nil
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Control socket accept failed", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Fail(fmt.Errorf("decode request: %w", err)))
		return
	}

	log.Debug("Control command", "cmd", msg.Cmd)
	if err := json.NewEncoder(conn).Encode(s.handler(s.ctx, msg)); err != nil {
		log.Debug("Failed to write control reply", "err", err)
	}
}

// Close stops accepting, cancels handler contexts and waits for them.
func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}

// Send delivers one request and waits up to timeout for the reply.
func Send(path string, msg ControlMessage, timeout time.Duration) (ControlReply, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return ControlReply{}, err
	}
	defer conn.Close()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return ControlReply{}, fmt.Errorf("send: %w", err)
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
