package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/riptide-proxy/autostart-tui/internal/protocol"
)

const (
	defaultWriteTimeout = 10 * time.Second
	maxFrameSize        = 1 << 20
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("not connected")

// WSOptions tunes the WebSocket client. Zero values pick defaults.
type WSOptions struct {
	Header       http.Header
	PingInterval time.Duration // 0 disables keepalive pings
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
	Logger       *slog.Logger
}

// WSClient owns the single autostart WebSocket. It never reconnects: once
// the connection ends, the client is done.
type WSClient struct {
	url  string
	opts WSOptions
	log  *slog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (commands, pings, close)
	conn    *websocket.Conn
	stop    context.CancelFunc // stops the ping goroutine
}

// NewWSClient creates a client for the given WebSocket URL.
func NewWSClient(url string, opts WSOptions) *WSClient {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &WSClient{url: url, opts: opts, log: log}
}

// URL returns the endpoint the client dials.
func (c *WSClient) URL() string {
	return c.url
}

// Dial returns a command that opens the connection. It yields OpenMsg on
// success and ClosedMsg when the handshake fails.
func (c *WSClient) Dial(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		conn, resp, err := c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
		if err != nil {
			c.log.Debug("ws dial failed", "url", c.url, "error", err)
			return dialFailure(resp, err)
		}
		conn.SetReadLimit(maxFrameSize)
		pingCtx, cancel := context.WithCancel(ctx)

		c.mu.Lock()
		c.conn = conn
		c.stop = cancel
		c.mu.Unlock()

		if c.opts.PingInterval > 0 {
			deadline := 2 * c.opts.PingInterval
			conn.SetReadDeadline(time.Now().Add(deadline))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(deadline))
			})
			go c.pingLoop(pingCtx, conn)
		}

		// Unblock a pending read when the program shuts down.
		go func() {
			<-pingCtx.Done()
			conn.Close()
		}()

		c.log.Debug("ws connected", "url", c.url)
		return OpenMsg{}
	}
}

// ReadLoop returns a command that blocks until the next text frame and
// yields it as FrameMsg, or ClosedMsg when the connection ends. It must be
// re-issued after every FrameMsg.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return ClosedMsg{Code: websocket.CloseAbnormalClosure, Reason: ErrNotConnected.Error()}
		}

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				c.drop(conn)
				if ctx.Err() != nil {
					return ClosedMsg{Code: websocket.CloseNormalClosure, Reason: "client shut down", Err: ctx.Err()}
				}
				return closure(err)
			}
			if kind != websocket.TextMessage {
				continue
			}
			if c.opts.PingInterval > 0 {
				conn.SetReadDeadline(time.Now().Add(2 * c.opts.PingInterval))
			}
			return FrameMsg{Data: data}
		}
	}
}

// Send writes a command as a JSON text frame. It does not wait for any
// response.
func (c *WSClient) Send(cmd protocol.Command) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Method(), err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Method(), err)
	}
	return nil
}

// Close sends a normal close frame and releases the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))
	c.writeMu.Unlock()

	c.drop(conn)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Connected reports whether a connection is open.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// drop forgets conn, stops its ping goroutine and closes it.
func (c *WSClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.stop != nil {
			c.stop()
			c.stop = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug("ws ping failed", "error", err)
				return
			}
		}
	}
}

// closure converts a read error into the ClosedMsg shown to the user.
func closure(err error) ClosedMsg {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ClosedMsg{Code: ce.Code, Reason: ce.Text, Err: err}
	}
	// No close frame: the browser equivalent reports 1006 without a reason.
	return ClosedMsg{Code: websocket.CloseAbnormalClosure, Err: err}
}

func dialFailure(resp *http.Response, err error) ClosedMsg {
	msg := ClosedMsg{Code: websocket.CloseAbnormalClosure, Reason: err.Error(), Err: err}
	if resp != nil {
		msg.Reason = fmt.Sprintf("handshake failed: %s", resp.Status)
	}
	return msg
}
