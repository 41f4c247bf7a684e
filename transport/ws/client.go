package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/composer/transport"
)

// Client is a transport.DocumentEnd connected to a Server's /bridge
// endpoint.
type Client struct {
	ws      *websocket.Conn
	logger  *slog.Logger
	scripts chan string
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

// DialOption configures a Client.
type DialOption func(*Client)

// WithClientLogger sets the client logger. Default: slog.Default().
func WithClientLogger(l *slog.Logger) DialOption {
	return func(c *Client) { c.logger = l }
}

// Dial connects to url ("ws://host:port/bridge").
func Dial(ctx context.Context, url string, opts ...DialOption) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		scripts: make(chan string, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	go c.read()
	return c, nil
}

func (c *Client) read() {
	defer c.Close()
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Debug("ws: client read ended", "error", err)
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case c.scripts <- string(data):
		case <-c.done:
			return
		}
	}
}

// PostMessage implements transport.DocumentEnd.
func (c *Client) PostMessage(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: post: %w: %w", transport.ErrNotAttached, err)
	}
	return nil
}

// Listen implements transport.DocumentEnd.
func (c *Client) Listen(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case s := <-c.scripts:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				case <-c.done:
					return
				}
			}
		}
	}()
	return out
}

// Close implements transport.DocumentEnd.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
	})
	return nil
}

var _ transport.DocumentEnd = (*Client)(nil)
