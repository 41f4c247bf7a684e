// Package document runs the document side of the compose bridge. A Bridge
// owns the editor, applies the commands the host injects and reports every
// observable change back as a notification.
//
// All editor access happens on the goroutine running Run. UI entry points
// (key presses, paste, focus) and Do hand work to that loop.
package document

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/protocol"
	"github.com/hazyhaar/composer/transport"
)

// ErrNotRunning is returned by entry points before Run starts and once it
// has returned.
var ErrNotRunning = errors.New("document: bridge not running")

// Session is the ephemeral document-side state.
type Session struct {
	Placeholder string
	Style       map[string]any
	DarkMode    bool
	Dirty       bool
}

// snapshot is what dirty detection compares.
type snapshot struct {
	html   string
	styles string
}

// Bridge is the document end of the protocol.
type Bridge struct {
	ed            editor.Editor
	layout        editor.Layout
	logger        *slog.Logger
	geometryDelay time.Duration
	refocusDelay  time.Duration

	running atomic.Bool
	tasks   chan func()
	done    chan struct{}

	// Owned by the Run goroutine.
	ctx      context.Context
	end      transport.DocumentEnd
	handlers map[string]func(arg string) error
	session  Session
	baseline snapshot
	timers   map[*time.Timer]struct{}
}

// New returns a Bridge driving ed.
func New(ed editor.Editor, opts ...Option) *Bridge {
	b := &Bridge{
		ed:            ed,
		geometryDelay: DefaultGeometryDelay,
		refocusDelay:  DefaultRefocusDelay,
		tasks:         make(chan func(), 64),
		done:          make(chan struct{}),
		timers:        make(map[*time.Timer]struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.layout == nil {
		if l, ok := ed.(editor.Layout); ok {
			b.layout = l
		} else {
			b.layout = noLayout{}
		}
	}
	return b
}

// Run installs the command handlers, emits the mount handshake and processes
// commands until ctx is cancelled or the channel closes. A Bridge runs once.
func (b *Bridge) Run(ctx context.Context, end transport.DocumentEnd) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("document: bridge already started")
	}
	defer b.teardown()

	b.ctx = ctx
	b.end = end
	b.handlers = map[string]func(string) error{
		protocol.CmdSetContent:        b.setContent,
		protocol.CmdSetPlaceholder:    b.setPlaceholder,
		protocol.CmdSetVisualStyle:    b.setVisualStyle,
		protocol.CmdSetDarkMode:       b.setDarkMode,
		protocol.CmdToggleBlockType:   b.toggleBlockType,
		protocol.CmdToggleInlineStyle: b.toggleInlineStyle,
		protocol.CmdToggleSpecial:     b.toggleSpecial,
		protocol.CmdInsertAtomicBlock: b.insertAtomicBlock,
		protocol.CmdInsertLink:        b.insertLink,
		protocol.CmdFocus:             b.focus,
		protocol.CmdBlur:              b.blur,
	}
	b.baseline = b.snapshot()
	scripts := end.Listen(ctx)

	b.emit(protocol.NotifyMounted, true)
	b.logger.Debug("document: mounted")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-scripts:
			if !ok {
				return nil
			}
			b.handleScript(s)
		case fn := <-b.tasks:
			fn()
		}
	}
}

func (b *Bridge) teardown() {
	for t := range b.timers {
		t.Stop()
	}
	clear(b.timers)
	close(b.done)
}

// Done is closed when Run returns.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Do runs fn on the bridge loop and waits for it. fn may use the editor.
func (b *Bridge) Do(ctx context.Context, fn func(ed editor.Editor)) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn(b.ed)
	}
	select {
	case b.tasks <- task:
	case <-b.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-b.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a copy of the session state.
func (b *Bridge) State(ctx context.Context) (Session, error) {
	var s Session
	err := b.Do(ctx, func(editor.Editor) {
		s = b.session
		s.Style = maps.Clone(b.session.Style)
	})
	return s, err
}

func (b *Bridge) handleScript(script string) {
	cmd, err := protocol.ParseScript(script)
	if err != nil {
		b.logger.Warn("document: malformed script", "error", err)
		return
	}
	h, ok := b.handlers[cmd.Name]
	if !ok {
		b.logger.Debug("document: unknown command", "command", cmd.Name)
		return
	}
	if err := h(cmd.Arg); err != nil {
		b.logger.Warn("document: command failed", "command", cmd.Name, "error", err)
	}
}

// commit is the unified change routine: dirty check, content, active
// styles, then geometry once layout settles when focused or loading the
// default value.
func (b *Bridge) commit(isDefault bool) {
	b.checkDirty(isDefault)
	b.emit(protocol.NotifyContentChanged, protocol.StripNewlines(b.ed.HTML()))
	b.emit(protocol.NotifyActiveStyles, b.styles())
	if b.ed.HasFocus() || isDefault {
		b.after(b.geometryDelay, b.emitGeometry)
	}
}

// checkDirty emits content-dirty on the first divergence from the baseline.
// Loading a default value moves the baseline instead.
func (b *Bridge) checkDirty(isDefault bool) {
	if b.session.Dirty {
		return
	}
	cur := b.snapshot()
	if isDefault {
		b.baseline = cur
		return
	}
	if cur == b.baseline {
		return
	}
	b.session.Dirty = true
	b.emit(protocol.NotifyContentDirty, true)
}

func (b *Bridge) snapshot() snapshot {
	return snapshot{html: b.ed.HTML(), styles: strings.Join(b.ed.InlineStyles(), ",")}
}

func (b *Bridge) styles() []string {
	s := b.ed.InlineStyles()
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func (b *Bridge) emitGeometry() {
	b.emit(protocol.NotifySizeChanged, b.layout.ContentHeight())
	if r, ok := b.layout.CaretRect(); ok && r.Bottom != 0 {
		b.emit(protocol.NotifyCaretPosition, r.Bottom)
	} else if r, ok := b.layout.FocusRect(); ok {
		b.emit(protocol.NotifyCaretPosition, r.Bottom)
	}
}

func (b *Bridge) emit(typ string, data any) {
	n, err := protocol.NewNotification(typ, data)
	if err != nil {
		b.logger.Warn("document: encode notification", "type", typ, "error", err)
		return
	}
	frame, err := n.Marshal()
	if err != nil {
		b.logger.Warn("document: encode notification", "type", typ, "error", err)
		return
	}
	if err := b.end.PostMessage(b.ctx, frame); err != nil {
		if transport.IsUnavailable(err) {
			b.logger.Debug("document: host not attached", "type", typ)
			return
		}
		b.logger.Warn("document: post message", "type", typ, "error", err)
	}
}

// after schedules fn on the loop once d has elapsed. Pending timers are
// stopped when Run returns.
func (b *Bridge) after(d time.Duration, fn func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		b.post(func() {
			delete(b.timers, t)
			fn()
		})
	})
	b.timers[t] = struct{}{}
}

// post queues fn on the loop without waiting.
func (b *Bridge) post(fn func()) bool {
	select {
	case b.tasks <- fn:
		return true
	case <-b.done:
		return false
	}
}

// do runs fn on the loop and waits, discarding context errors.
func (b *Bridge) do(fn func()) error {
	return b.Do(context.Background(), func(editor.Editor) { fn() })
}

var viewportMetaRe = regexp.MustCompile(`(?i)<meta\s+name=(?:"viewport"|'viewport'|\s?viewport\s?)\s+content=[^>]*>`)

func stripViewportMeta(html string) string {
	return viewportMetaRe.ReplaceAllString(html, "")
}

type noLayout struct{}

func (noLayout) ContentHeight() float64         { return 0 }
func (noLayout) CaretRect() (editor.Rect, bool) { return editor.Rect{}, false }
func (noLayout) FocusRect() (editor.Rect, bool) { return editor.Rect{}, false }
