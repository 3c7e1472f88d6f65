package bus

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
)

var ErrClosed = errors.New("bus client closed")

type Config struct {
	Name      string
	URL       string
	Reconnect time.Duration
	// OnMessage receives frames that do not answer a pending Request.
	OnMessage func(Message)
}

// Client keeps one websocket connection and redials it when it drops.
// Requests are answered one at a time.
type Client struct {
	cfg Config

	connMu sync.Mutex
	conn   *ws.Conn
	closed atomic.Bool

	writeMu sync.Mutex
	reqMu   sync.Mutex

	waiterMu sync.Mutex
	waiter   chan Message
}

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Name == "" {
		cfg.Name = "cli"
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = time.Second
	}

	c := &Client{cfg: cfg}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*ws.Conn, error) {
	log.Debug("Dialing bus", "url", c.cfg.URL)
	conn, resp, err := ws.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// Send writes m with From set to the client name.
func (c *Client) Send(m Message) error {
	if c.closed.Load() {
		return ErrClosed
	}
	m.From = c.cfg.Name

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.current().WriteJSON(m); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Request sends a command and waits for the next frame addressed to us.
// Run must be active to deliver the answer.
func (c *Client) Request(ctx context.Context, command string) (Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	w := c.installWaiter()
	defer c.clearWaiter()

	if err := c.Send(Message{To: "jarvis", Kind: KindCommand, Content: command}); err != nil {
		return Message{}, err
	}

	select {
	case m := <-w:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Run reads frames until ctx is done or Close is called, redialing after
// connection loss.
func (c *Client) Run(ctx context.Context) error {
	for {
		var m Message
		err := c.current().ReadJSON(&m)
		if err != nil {
			if c.closed.Load() {
				return ErrClosed
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsClosed(err) {
				log.Warn("Bus connection closed, reconnecting", "url", c.cfg.URL)
			} else {
				log.Error("Failed to read from bus", "err", err)
			}
			if err := c.reconnect(ctx); err != nil {
				return err
			}
			log.Info("Successfully reconnected", "url", c.cfg.URL)
			continue
		}

		if m.To != "" && m.To != c.cfg.Name {
			continue
		}

		if w := c.takeWaiter(); w != nil {
			w <- m
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(m)
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.connMu.Lock()
			old := c.conn
			c.conn = conn
			c.connMu.Unlock()
			_ = old.Close()
			return nil
		}
		log.Debug("Reconnect failed", "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Reconnect):
		}
		if c.closed.Load() {
			return ErrClosed
		}
	}
}

func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	conn := c.current()

	c.writeMu.Lock()
	_ = conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) current() *ws.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) installWaiter() chan Message {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	c.waiter = make(chan Message, 1)
	return c.waiter
}

func (c *Client) clearWaiter() {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	c.waiter = nil
}

// takeWaiter hands out the pending waiter at most once.
func (c *Client) takeWaiter() chan Message {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	w := c.waiter
	c.waiter = nil
	return w
}

// IsClosed reports whether err is an orderly or abnormal websocket close.
func IsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
