// Package rodpage drives a web document in Chrome through the DevTools
// protocol. Commands are evaluated with Runtime.evaluate; the page reports
// back through a runtime binding exposed as window.ReactNativeWebView.
package rodpage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/composer/transport"
)

const bindingName = "__composer_bridge"

const shimJS = `window.ReactNativeWebView = {
	postMessage: function (msg) { window.` + bindingName + `(String(msg)); }
};`

// DefaultLoadTimeout bounds navigation in Load.
const DefaultLoadTimeout = 30 * time.Second

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(p *Page) { p.logger = l } }

// WithLoadTimeout bounds navigation. Default: DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) Option { return func(p *Page) { p.loadTimeout = d } }

// Page is a transport.HostEnd over a Chrome tab.
type Page struct {
	page        *rod.Page
	url         string
	logger      *slog.Logger
	loadTimeout time.Duration
	events      chan transport.Event
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	attached bool
	closed   bool
}

// New prepares page to host the document at url. The shim and the binding
// are installed before any navigation so every load of the document sees
// them. Call Load to navigate.
func New(page *rod.Page, url string, opts ...Option) (*Page, error) {
	p := &Page{
		page:        page,
		url:         url,
		loadTimeout: DefaultLoadTimeout,
		events:      make(chan transport.Event, 64),
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())

	if err := (proto.PageEnable{}).Call(page); err != nil {
		return nil, fmt.Errorf("rodpage: page enable: %w", err)
	}
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("rodpage: add binding: %w", err)
	}
	if _, err := page.EvalOnNewDocument(shimJS); err != nil {
		return nil, fmt.Errorf("rodpage: install shim: %w", err)
	}

	wait := page.Context(p.ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			p.push(transport.Event{Data: []byte(e.Payload)})
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			p.mu.Lock()
			was := p.attached
			p.attached = true
			p.mu.Unlock()
			if was {
				p.logger.Info("rodpage: document reloaded", "url", e.Frame.URL)
			}
			p.push(transport.Event{Detached: true})
		},
	)
	go wait()
	return p, nil
}

func (p *Page) push(ev transport.Event) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

// Load navigates to the document and waits for its load event.
func (p *Page) Load(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()
	if err := p.page.Context(navCtx).Navigate(p.url); err != nil {
		return &transport.LoadError{URL: p.url, Cause: err}
	}
	if err := p.page.Context(navCtx).WaitLoad(); err != nil {
		p.logger.Warn("rodpage: wait load", "url", p.url, "error", err)
	}
	return nil
}

// Inject implements transport.HostEnd.
func (p *Page) Inject(ctx context.Context, script string) error {
	p.mu.Lock()
	attached, closed := p.attached, p.closed
	p.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if !attached {
		return transport.ErrNotAttached
	}
	res, err := proto.RuntimeEvaluate{Expression: script}.Call(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("rodpage: evaluate: %w", err)
	}
	if res.ExceptionDetails != nil {
		return fmt.Errorf("rodpage: evaluate: %s", res.ExceptionDetails.Text)
	}
	return nil
}

// Listen implements transport.HostEnd.
func (p *Page) Listen(ctx context.Context) <-chan transport.Event {
	out := make(chan transport.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.ctx.Done():
				return
			case ev := <-p.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-p.ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close stops event delivery and closes the tab.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	return p.page.Close()
}

// Launch starts a local Chrome, or connects to remoteURL when it is set, and
// returns the browser with a function that shuts it down.
func Launch(headless bool, remoteURL string, logger *slog.Logger) (*rod.Browser, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	wsURL := remoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(headless)
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("rodpage: launch: %w", err)
		}
		wsURL = u
		logger.Info("rodpage: launched local chrome", "url", wsURL, "headless", headless)
	} else {
		logger.Info("rodpage: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("rodpage: connect: %w", err)
	}
	stop := func() {
		if err := b.Close(); err != nil {
			logger.Debug("rodpage: close browser", "error", err)
		}
		if l != nil {
			l.Cleanup()
		}
	}
	return b, stop, nil
}

// Open creates a blank tab on b and prepares it for url.
func Open(b *rod.Browser, url string, opts ...Option) (*Page, error) {
	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("rodpage: create tab: %w", err)
	}
	p, err := New(page, url, opts...)
	if err != nil {
		page.Close()
		return nil, err
	}
	return p, nil
}

var (
	_ transport.HostEnd = (*Page)(nil)
	_ transport.Loader  = (*Page)(nil)
)
