// Package ws carries the bridge over a websocket. Server is the host end: it
// serves the editor page and accepts one document connection at a time.
// Dial is the document end for Go documents.
package ws

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/composer/transport"
)

//go:embed bridge.js
var bridgeJS []byte

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	// The document is loaded from our own origin or from a webview with a
	// file:// origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBuffer sets the capacity of the inbound event queue. Default: 64.
func WithBuffer(n int) Option {
	return func(s *Server) { s.buffer = n }
}

// Server is a transport.HostEnd backed by a websocket endpoint.
type Server struct {
	assets string
	logger *slog.Logger
	buffer int
	router chi.Router
	events chan transport.Event
	done   chan struct{}

	mu     sync.Mutex
	conn   *conn
	closed bool
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func (c *conn) write(data string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(data))
}

// NewServer returns a Server for the editor bundle in assets. An empty
// assets directory serves the bridge endpoints only.
func NewServer(assets string, opts ...Option) *Server {
	s := &Server{assets: assets, buffer: 64, done: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.events = make(chan transport.Event, s.buffer)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(headToGet)
	r.Use(securityHeaders)
	r.Get("/healthz", s.handleHealth)
	r.Get("/bridge.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Write(bridgeJS)
	})
	r.Get("/bridge", s.handleBridge)
	if assets != "" {
		r.Handle("/*", http.FileServer(http.Dir(assets)))
	}
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	attached := s.conn != nil
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "attached": attached})
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws: upgrade failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		return
	}
	c := &conn{ws: ws}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return
	}
	prev := s.conn
	s.conn = c
	s.mu.Unlock()

	if prev != nil {
		s.logger.Info("ws: document replaced", "remote", r.RemoteAddr)
		s.drop(prev)
	} else {
		s.logger.Info("ws: document attached", "remote", r.RemoteAddr)
	}

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("ws: read ended", "error", err)
			}
			break
		}
		if typ != websocket.TextMessage {
			continue
		}
		select {
		case s.events <- transport.Event{Data: data}:
		case <-s.done:
			return
		}
	}

	s.mu.Lock()
	current := s.conn == c
	if current {
		s.conn = nil
	}
	s.mu.Unlock()
	if current {
		s.drop(c)
	}
}

// drop closes c and reports the document gone exactly once.
func (s *Server) drop(c *conn) {
	c.once.Do(func() {
		c.ws.Close()
		select {
		case s.events <- transport.Event{Detached: true}:
		case <-s.done:
		}
	})
}

// Load checks that the asset directory holds the editor page. A server
// without assets has nothing to load.
func (s *Server) Load(ctx context.Context) error {
	if s.assets == "" {
		return nil
	}
	index := filepath.Join(s.assets, "index.html")
	if _, err := os.Stat(index); err != nil {
		return &transport.LoadError{URL: "file://" + index, Cause: err}
	}
	return nil
}

// Inject implements transport.HostEnd.
func (s *Server) Inject(ctx context.Context, script string) error {
	s.mu.Lock()
	c, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if c == nil {
		return transport.ErrNotAttached
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.write(script); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return transport.ErrNotAttached
		}
		return fmt.Errorf("ws: inject: %w", err)
	}
	return nil
}

// Listen implements transport.HostEnd.
func (s *Server) Listen(ctx context.Context) <-chan transport.Event {
	out := make(chan transport.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case ev := <-s.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-s.done:
					return
				}
			}
		}
	}()
	return out
}

// Close drops the current document and ends every listener.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	c := s.conn
	s.conn = nil
	close(s.done)
	s.mu.Unlock()
	if c != nil {
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "host closed"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
	}
	return nil
}

var (
	_ transport.HostEnd = (*Server)(nil)
	_ transport.Loader  = (*Server)(nil)
)
