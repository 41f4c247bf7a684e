// Command composer runs a compose editor session.
//
// Usage:
//
//	composer -config composer.yaml
//	composer -config composer.yaml -log-level debug
//
// In ws mode the editor page is served for a webview that loads
// /bridge.js. In chrome mode the page is also driven in Chrome. In
// headless mode a Go document over editor.Model answers instead of a
// browser.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/composer/document"
	"github.com/hazyhaar/composer/drafts"
	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/host"
	"github.com/hazyhaar/composer/internal/config"
	"github.com/hazyhaar/composer/protocol"
	"github.com/hazyhaar/composer/transport"
	"github.com/hazyhaar/composer/transport/rodpage"
	"github.com/hazyhaar/composer/transport/ws"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to composer.yaml")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: composer -config <file> [-log-level info]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("composer: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	props, err := propsFrom(cfg)
	if err != nil {
		return err
	}

	var hostOpts []host.Option
	hostOpts = append(hostOpts, host.WithLogger(logger))
	keepContent := cfg.Drafts.Path != ""
	if keepContent {
		store, id, restored, err := openDrafts(ctx, cfg.Drafts, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if restored != "" {
			props.DefaultValue = restored
		}
		hostOpts = append(hostOpts, host.WithDrafts(store, id))
	}

	srv := ws.NewServer(cfg.Assets, ws.WithLogger(logger))
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("composer: http", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()
	defer srv.Close()
	base := baseURL(ln.Addr())
	logger.Info("composer: listening", "url", base, "mode", cfg.Mode)

	var end transport.HostEnd = srv
	switch cfg.Mode {
	case config.ModeChrome:
		b, stopBrowser, err := rodpage.Launch(*cfg.Chrome.Headless, cfg.Chrome.Remote, logger)
		if err != nil {
			return err
		}
		defer stopBrowser()
		page, err := rodpage.Open(b, base+"/index.html",
			rodpage.WithLogger(logger), rodpage.WithLoadTimeout(cfg.Chrome.LoadTimeout))
		if err != nil {
			return err
		}
		defer page.Close()
		end = page

	case config.ModeHeadless:
		if err := startHeadless(ctx, cfg, logger, "ws://"+strings.TrimPrefix(base, "http://")+"/bridge"); err != nil {
			return err
		}
	}

	c := host.New(end, props, handlers(logger), hostOpts...)

	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "composer", Version: version}, nil)
		c.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("composer: mcp", "error", err)
			}
		}()
	}

	if err := config.Watch(ctx, path, logger, func(next *config.Config) {
		p, err := reloadProps(c.Props(), next, keepContent)
		if err != nil {
			logger.Warn("composer: reload editor props", "error", err)
			return
		}
		c.Update(p)
	}); err != nil {
		logger.Warn("composer: config watch disabled", "error", err)
	}

	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startHeadless runs a Go document against the websocket endpoint.
func startHeadless(ctx context.Context, cfg *config.Config, logger *slog.Logger, url string) error {
	client, err := ws.Dial(ctx, url, ws.WithClientLogger(logger))
	if err != nil {
		return err
	}
	bridge := document.New(editor.NewModel(),
		document.WithLogger(logger),
		document.WithGeometryDelay(cfg.Document.GeometryDelay),
		document.WithRefocusDelay(cfg.Document.RefocusDelay),
	)
	go func() {
		if err := bridge.Run(ctx, client); err != nil && ctx.Err() == nil {
			logger.Error("composer: headless document", "error", err)
		}
	}()
	return nil
}

func openDrafts(ctx context.Context, dc config.DraftsConfig, logger *slog.Logger) (*drafts.Store, string, string, error) {
	store, err := drafts.Open(dc.Path, drafts.WithLogger(logger))
	if err != nil {
		return nil, "", "", err
	}
	id := dc.ID
	if id == "" {
		id = store.NewID()
	}
	d, err := store.Load(ctx, id)
	switch {
	case err == nil:
		logger.Info("composer: draft restored", "draft", id, "updated_at", d.UpdatedAt)
		return store, id, d.HTML, nil
	case errors.Is(err, drafts.ErrNotFound):
		logger.Info("composer: new draft", "draft", id)
		return store, id, "", nil
	default:
		store.Close()
		return nil, "", "", err
	}
}

func propsFrom(cfg *config.Config) (host.Props, error) {
	html, err := cfg.Editor.DefaultHTML()
	if err != nil {
		return host.Props{}, err
	}
	return host.Props{
		DefaultValue: html,
		Placeholder:  cfg.Editor.Placeholder,
		Style:        cfg.Editor.Style,
		DarkMode:     cfg.Editor.DarkMode,
	}, nil
}

// reloadProps builds props from a reloaded config. With a draft store the
// content belongs to the draft, so the current DefaultValue is kept.
func reloadProps(cur host.Props, next *config.Config, keepContent bool) (host.Props, error) {
	p, err := propsFrom(next)
	if err != nil {
		return host.Props{}, err
	}
	if keepContent {
		p.DefaultValue = cur.DefaultValue
	}
	return p, nil
}

func handlers(logger *slog.Logger) host.Handlers {
	return host.Handlers{
		OnEditorReady:  func() { logger.Info("composer: editor ready") },
		OnEditorChange: func(html string) { logger.Debug("composer: content", "size", len(html)) },
		OnActiveStyleChange: func(styles []string) {
			logger.Debug("composer: active styles", "styles", styles)
		},
		OnSizeChange:    func(h float64) { logger.Debug("composer: size", "height", h) },
		OnCaretPosition: func(y float64) { logger.Debug("composer: caret", "offset", y) },
		OnFocus:         func() { logger.Debug("composer: focus") },
		OnBlur:          func() { logger.Debug("composer: blur") },
		OnContentDirty:  func() { logger.Info("composer: content modified") },
		OnFilesPasted: func(files []protocol.File) {
			logger.Info("composer: files pasted", "count", len(files))
		},
		OnLocalFilesPasted: func(paths []string) {
			logger.Info("composer: local files pasted", "paths", paths)
		},
		OnFilesDropped: func(files []protocol.File) {
			logger.Info("composer: files dropped", "count", len(files))
		},
		OnLoadError: func(err error) { logger.Error("composer: document load", "error", err) },
	}
}

// baseURL returns an http URL a local client can reach addr with.
func baseURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
