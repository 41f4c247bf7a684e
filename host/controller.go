// Package host drives a compose document from the native side. A Controller
// turns props and API calls into commands, holds them until the document
// reports it is mounted, and routes notifications to callbacks.
//
//	c := host.New(end, host.Props{DefaultValue: "<p>Hi</p>"}, host.Handlers{
//		OnEditorChange: func(html string) { ... },
//	})
//	go c.Run(ctx)
//	c.SetStyle("BOLD") // queued until the document mounts
package host

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/composer/drafts"
	"github.com/hazyhaar/composer/idgen"
	"github.com/hazyhaar/composer/protocol"
	"github.com/hazyhaar/composer/transport"
)

// Props is the declarative configuration of the document.
type Props struct {
	DefaultValue string
	Placeholder  string
	Style        map[string]any
	DarkMode     bool
}

// Handlers are the caller's callbacks. Any of them may be nil. They run on
// the goroutine executing Run.
type Handlers struct {
	OnEditorReady       func()
	OnEditorChange      func(html string)
	OnActiveStyleChange func(styles []string)
	OnSizeChange        func(height float64)
	OnCaretPosition     func(offset float64)
	OnFocus             func()
	OnBlur              func()
	OnContentDirty      func()
	OnFilesPasted       func(files []protocol.File)
	OnLocalFilesPasted  func(paths []string)
	OnFilesDropped      func(files []protocol.File)
	OnLoadError         func(err error)
}

// Controller is the host end of the protocol. Its methods are safe for
// concurrent use.
type Controller struct {
	end       transport.HostEnd
	handlers  Handlers
	logger    *slog.Logger
	drafts    *drafts.Store
	draftID   string
	sessionID string
	md        *converter.Converter

	wake chan struct{}

	mu      sync.Mutex
	ctx     context.Context
	props   Props
	mounted bool
	mounts  int
	ready   chan struct{}
	pending []protocol.Command
	outbox  []protocol.Command
	content string
}

// New returns a Controller for end.
func New(end transport.HostEnd, props Props, h Handlers, opts ...Option) *Controller {
	c := &Controller{
		end:      end,
		handlers: h,
		ctx:      context.Background(),
		props:    cloneProps(props),
		ready:    make(chan struct{}),
		wake:     make(chan struct{}, 1),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sessionID == "" {
		c.sessionID = idgen.Prefixed("ses_", idgen.Default)()
	}
	c.logger = c.logger.With("session", c.sessionID)
	return c
}

// Run loads the document if the transport can, then dispatches
// notifications until ctx is cancelled or the transport closes. Commands are
// written by a separate goroutine, never from the dispatch loop.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	wctx, stop := context.WithCancel(ctx)
	written := make(chan struct{})
	go func() {
		defer close(written)
		c.write(wctx)
	}()
	defer func() {
		stop()
		<-written
	}()

	events := c.end.Listen(ctx)
	if l, ok := c.end.(transport.Loader); ok {
		if err := l.Load(ctx); err != nil {
			c.logger.Error("host: document load failed", "error", err)
			if c.handlers.OnLoadError != nil {
				c.handlers.OnLoadError(err)
			}
		}
	}

	for ev := range events {
		if ev.Detached {
			c.detach()
			continue
		}
		c.dispatch(ev.Data)
	}
	return ctx.Err()
}

// Ready returns a channel closed once the current session has mounted and
// its initialisation is queued for writing. Commands sent after Ready are
// written after it. A detached document starts a new session with a new
// channel.
func (c *Controller) Ready() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Mounted reports whether the document has completed its handshake.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Props returns the current props.
func (c *Controller) Props() Props {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneProps(c.props)
}

// send delivers cmd now if the document is mounted, or queues it for the
// next mount.
func (c *Controller) send(cmd protocol.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendLocked(cmd)
}

func (c *Controller) sendLocked(cmd protocol.Command) {
	if !c.mounted {
		c.pending = append(c.pending, cmd)
		c.logger.Debug("host: command queued", "command", cmd.Name, "pending", len(c.pending))
		return
	}
	c.enqueueLocked(cmd)
}

// enqueueLocked appends cmds to the outbox and wakes the writer. It never
// waits on the transport.
func (c *Controller) enqueueLocked(cmds ...protocol.Command) {
	if len(cmds) == 0 {
		return
	}
	c.outbox = append(c.outbox, cmds...)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// write drains the outbox in order until ctx is done.
func (c *Controller) write(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		for {
			c.mu.Lock()
			if len(c.outbox) == 0 {
				c.mu.Unlock()
				break
			}
			cmd := c.outbox[0]
			c.outbox[0] = protocol.Command{}
			c.outbox = c.outbox[1:]
			c.mu.Unlock()

			if !c.inject(ctx, cmd) {
				return
			}
		}
	}
}

// inject writes one command. It reports false once ctx is done.
func (c *Controller) inject(ctx context.Context, cmd protocol.Command) bool {
	err := c.end.Inject(ctx, protocol.FormatScript(cmd))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return false
	case transport.IsUnavailable(err):
		c.logger.Debug("host: document not attached", "command", cmd.Name)
	default:
		c.logger.Warn("host: inject failed", "command", cmd.Name, "error", err)
	}
	return true
}

// mount hands the initialisation sequence and the queue to the writer and
// resolves the ready channel. A repeated handshake runs the sequence again.
func (c *Controller) mount() {
	c.mu.Lock()
	c.mounted = true
	c.mounts++
	c.enqueueLocked(initCommands(c.props, c.logger)...)
	queued := c.pending
	c.pending = nil
	c.enqueueLocked(queued...)
	select {
	case <-c.ready:
	default:
		close(c.ready)
	}
	mounts := c.mounts
	c.mu.Unlock()

	c.logger.Info("host: document mounted", "mounts", mounts, "flushed", len(queued))
	if c.handlers.OnEditorReady != nil {
		c.handlers.OnEditorReady()
	}
}

// detach drops commands not yet written; they belonged to the old document.
func (c *Controller) detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return
	}
	c.mounted = false
	c.ready = make(chan struct{})
	if n := len(c.outbox); n > 0 {
		c.logger.Debug("host: unwritten commands dropped", "count", n)
	}
	c.outbox = nil
	c.logger.Info("host: document detached")
}

// initCommands is the sequence sent on every mount: placeholder, default
// content, visual style, dark mode. Empty props are skipped.
func initCommands(p Props, logger *slog.Logger) []protocol.Command {
	var cmds []protocol.Command
	if p.Placeholder != "" {
		cmds = append(cmds, protocol.SetPlaceholder(p.Placeholder))
	}
	if p.DefaultValue != "" {
		cmds = append(cmds, protocol.SetContent(p.DefaultValue))
	}
	if len(p.Style) > 0 {
		if cmd, err := protocol.SetVisualStyle(p.Style); err != nil {
			logger.Warn("host: encode style", "error", err)
		} else {
			cmds = append(cmds, cmd)
		}
	}
	return append(cmds, protocol.SetDarkMode(p.DarkMode))
}

// Update replaces the props and sends commands for the ones that changed.
// Before mount nothing is sent; the next handshake uses the new props.
func (c *Controller) Update(p Props) {
	p = cloneProps(p)
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.props
	c.props = p
	if !c.mounted {
		return
	}
	if p.Placeholder != old.Placeholder {
		c.enqueueLocked(protocol.SetPlaceholder(p.Placeholder))
	}
	if p.DefaultValue != old.DefaultValue {
		c.enqueueLocked(protocol.SetContent(p.DefaultValue))
	}
	if !reflect.DeepEqual(p.Style, old.Style) {
		if cmd, err := protocol.SetVisualStyle(p.Style); err != nil {
			c.logger.Warn("host: encode style", "error", err)
		} else {
			c.enqueueLocked(cmd)
		}
	}
	if p.DarkMode != old.DarkMode {
		c.enqueueLocked(protocol.SetDarkMode(p.DarkMode))
	}
}

func cloneProps(p Props) Props {
	p.Style = maps.Clone(p.Style)
	return p
}
