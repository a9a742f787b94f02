package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/prepvox/PrepVox/internal/models"
)

// Constants for websocket transport configuration
const (
	// DefaultChannelBufferSize defines the buffer size for the event channel
	DefaultChannelBufferSize = 100
)

// Opts holds configuration options for the websocket transport.
type Opts struct {
	URL    string
	APIKey string
}

// Option defines a functional option for configuring the websocket transport.
type Option func(*Opts)

// WithURL sets the session service websocket endpoint.
func WithURL(url string) Option {
	return func(o *Opts) {
		o.URL = url
	}
}

// WithAPIKey sets the bearer token sent when dialing the session service.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// startFrame is the frame sent to begin a session.
type startFrame struct {
	Type      string            `json:"type"`
	Target    string            `json:"target"`
	Variables map[string]string `json:"variables,omitempty"`
}

// stopFrame is the frame sent to request session termination.
type stopFrame struct {
	Type string `json:"type"`
}

// WSClient implements Service over the session service's websocket event
// stream. Incoming frames share the models.SessionEvent wire shape.
type WSClient struct {
	url    string
	apiKey string

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan models.SessionEvent
	ended  sync.Once
}

// NewWSClient creates a websocket-backed session transport.
func NewWSClient(opts ...Option) (*WSClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.URL == "" {
		slog.Error("WSClient session service URL not set")
		return nil, fmt.Errorf("session service URL not set")
	}
	return &WSClient{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		events: make(chan models.SessionEvent, DefaultChannelBufferSize),
	}, nil
}

// Start dials the session service, sends the start frame, and begins pumping
// events into the channel.
func (c *WSClient) Start(ctx context.Context, target string, variables map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return fmt.Errorf("session already started")
	}

	slog.Debug("WSClient Start invoked", "target", target, "variable_count", len(variables))

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		slog.Error("WSClient dial failed", "error", err, "url", c.url)
		return fmt.Errorf("failed to dial session service: %w", err)
	}

	if err := conn.WriteJSON(startFrame{Type: "start", Target: target, Variables: variables}); err != nil {
		conn.Close()
		slog.Error("WSClient start frame failed", "error", err)
		return fmt.Errorf("failed to send start frame: %w", err)
	}

	c.conn = conn
	go c.readLoop(conn)
	slog.Info("WSClient session started", "target", target)
	return nil
}

// Stop requests termination and closes the connection. The call-end event is
// still delivered to the consumer, matching a remote hang-up.
func (c *WSClient) Stop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	slog.Debug("WSClient Stop invoked")
	if err := conn.WriteJSON(stopFrame{Type: "stop"}); err != nil {
		slog.Warn("WSClient stop frame failed", "error", err)
	}
	if err := conn.Close(); err != nil {
		slog.Warn("WSClient close failed", "error", err)
	}
	return nil
}

// Events returns the session event channel.
func (c *WSClient) Events() <-chan models.SessionEvent {
	return c.events
}

// readLoop pumps incoming frames into the event channel until the connection
// closes, then guarantees a terminal call-end and closes the channel.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer c.finish()
	for {
		var evt models.SessionEvent
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WSClient read loop terminated unexpectedly", "error", err)
			} else {
				slog.Debug("WSClient read loop closed", "error", err)
			}
			return
		}
		if evt.Type == models.SessionEventCallEnd {
			c.deliver(evt)
			return
		}
		c.deliver(evt)
	}
}

// deliver emits an event without blocking; events beyond the buffer are
// dropped with a warning rather than stalling the read loop.
func (c *WSClient) deliver(evt models.SessionEvent) {
	if evt.Type == models.SessionEventCallEnd {
		c.ended.Do(func() {
			c.events <- evt
		})
		return
	}
	select {
	case c.events <- evt:
	default:
		slog.Warn("WSClient event channel full, dropping event", "type", evt.Type)
	}
}

// finish guarantees the terminal call-end event and closes the channel.
func (c *WSClient) finish() {
	c.ended.Do(func() {
		c.events <- models.SessionEvent{Type: models.SessionEventCallEnd}
	})
	close(c.events)

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}
