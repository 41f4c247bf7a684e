package document

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/protocol"
	"github.com/hazyhaar/composer/transport"
	"github.com/hazyhaar/composer/transport/inprocess"
)

// fakeEditor records calls and keeps HTML and styles as given.
type fakeEditor struct {
	html          string
	styles        []string
	focused       bool
	atIndentStart bool
	calls         []string
}

func (f *fakeEditor) SetHTML(s string) error     { f.html = s; f.calls = append(f.calls, "SetHTML"); return nil }
func (f *fakeEditor) HTML() string               { return f.html }
func (f *fakeEditor) InlineStyles() []string     { return f.styles }
func (f *fakeEditor) HasFocus() bool             { return f.focused }
func (f *fakeEditor) Focus()                     { f.focused = true }
func (f *fakeEditor) Blur()                      { f.focused = false }
func (f *fakeEditor) ClearInlineStyles()         { f.styles = nil; f.calls = append(f.calls, "Clear") }
func (f *fakeEditor) IndentIncrease()            { f.html += ">"; f.calls = append(f.calls, "IndentIncrease") }
func (f *fakeEditor) IndentDecrease()            { f.html += "<"; f.calls = append(f.calls, "IndentDecrease") }
func (f *fakeEditor) AtIndentedBlockStart() bool { return f.atIndentStart }
func (f *fakeEditor) InsertText(s string)        { f.html += s; f.calls = append(f.calls, "InsertText:"+s) }

func (f *fakeEditor) ToggleBlockType(t string) {
	f.html = "<" + t + ">" + f.html
	f.calls = append(f.calls, "ToggleBlockType:"+t)
}

func (f *fakeEditor) ToggleInlineStyle(s string) {
	if i := slices.Index(f.styles, s); i >= 0 {
		f.styles = slices.Delete(f.styles, i, i+1)
	} else {
		f.styles = append(f.styles, s)
	}
	f.calls = append(f.calls, "ToggleInlineStyle:"+s)
}

func (f *fakeEditor) InsertAtomicBlock(t string, params map[string]any) {
	f.html += "[" + t + "]"
	f.calls = append(f.calls, "InsertAtomicBlock:"+t)
}

func (f *fakeEditor) InsertLink(url, text string) {
	f.html += text
	f.calls = append(f.calls, "InsertLink:"+url)
}

func (f *fakeEditor) HandleKeyCommand(cmd string) bool {
	f.calls = append(f.calls, "Key:"+cmd)
	return cmd == editor.KeyBackspace || cmd == editor.KeyBold
}

type fakeLayout struct {
	height  float64
	caret   editor.Rect
	caretOK bool
	focus   editor.Rect
	focusOK bool
}

func (l fakeLayout) ContentHeight() float64         { return l.height }
func (l fakeLayout) CaretRect() (editor.Rect, bool) { return l.caret, l.caretOK }
func (l fakeLayout) FocusRect() (editor.Rect, bool) { return l.focus, l.focusOK }

var defaultLayout = fakeLayout{
	height: 120, caret: editor.Rect{Top: 22, Bottom: 42}, caretOK: true,
	focus: editor.Rect{Bottom: 77}, focusOK: true,
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	host   *inprocess.Host
	events <-chan transport.Event
	bridge *Bridge
	ed     editor.Editor
}

// start runs a bridge over an in-process pipe and consumes the handshake.
func start(t *testing.T, ed editor.Editor, opts ...Option) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	host, doc := inprocess.Pipe(64)
	events := host.Listen(ctx)
	opts = append([]Option{WithGeometryDelay(5 * time.Millisecond), WithRefocusDelay(5 * time.Millisecond)}, opts...)
	b := New(ed, opts...)
	go b.Run(ctx, doc)
	t.Cleanup(func() {
		cancel()
		<-b.Done()
	})
	h := &harness{t: t, ctx: ctx, host: host, events: events, bridge: b, ed: ed}
	h.expect(protocol.NotifyMounted, true)
	return h
}

func (h *harness) send(cmd protocol.Command) {
	h.t.Helper()
	if err := h.host.Inject(h.ctx, protocol.FormatScript(cmd)); err != nil {
		h.t.Fatalf("Inject: %v", err)
	}
}

func (h *harness) sendRaw(script string) {
	h.t.Helper()
	if err := h.host.Inject(h.ctx, script); err != nil {
		h.t.Fatalf("Inject: %v", err)
	}
}

func (h *harness) next() protocol.Notification {
	h.t.Helper()
	select {
	case ev := <-h.events:
		n, err := protocol.ParseNotification(ev.Data)
		if err != nil {
			h.t.Fatalf("ParseNotification(%s): %v", ev.Data, err)
		}
		return n
	case <-time.After(2 * time.Second):
		h.t.Fatal("timeout waiting for notification")
	}
	return protocol.Notification{}
}

// expect reads the next notification and checks its type and, when want is
// non-nil, its payload.
func (h *harness) expect(typ string, want any) protocol.Notification {
	h.t.Helper()
	n := h.next()
	if n.Type != typ {
		h.t.Fatalf("notification: got %s %s, want %s", n.Type, n.Data, typ)
	}
	if want != nil {
		wantJSON, _ := json.Marshal(want)
		if string(n.Data) != string(wantJSON) {
			h.t.Fatalf("%s data: got %s, want %s", typ, n.Data, wantJSON)
		}
	}
	return n
}

func (h *harness) expectNone(d time.Duration) {
	h.t.Helper()
	select {
	case ev := <-h.events:
		h.t.Fatalf("unexpected notification %s", ev.Data)
	case <-time.After(d):
	}
}

// sync waits until every command injected so far has been processed.
func (h *harness) sync() {
	h.t.Helper()
	if err := h.bridge.Do(h.ctx, func(editor.Editor) {}); err != nil {
		h.t.Fatalf("Do: %v", err)
	}
}

func TestBridge_MountedOnce(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(defaultLayout))
	h.expectNone(50 * time.Millisecond)
}

func TestBridge_SetContentEmitsChangeAndGeometry(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(defaultLayout))

	h.send(protocol.SetContent("<b>hi</b>"))
	h.expect(protocol.NotifyContentChanged, "<b>hi</b>")
	h.expect(protocol.NotifyActiveStyles, []string{})
	h.expect(protocol.NotifySizeChanged, 120)
	h.expect(protocol.NotifyCaretPosition, 42)
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_ToggleBoldTwice(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(defaultLayout))

	h.send(protocol.ToggleInlineStyle(editor.Bold))
	h.send(protocol.ToggleInlineStyle(editor.Bold))

	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, "")
	h.expect(protocol.NotifyActiveStyles, []string{editor.Bold})
	h.expect(protocol.NotifyContentChanged, "")
	h.expect(protocol.NotifyActiveStyles, []string{})
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_DefaultLoadIsBaseline(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(fakeLayout{}))

	h.send(protocol.SetContent("<p>one</p>"))
	h.expect(protocol.NotifyContentChanged, "<p>one</p>")
	h.expect(protocol.NotifyActiveStyles, nil)
	h.expect(protocol.NotifySizeChanged, nil)

	h.send(protocol.SetContent("<p>two</p>"))
	h.expect(protocol.NotifyContentChanged, "<p>two</p>")
	h.expect(protocol.NotifyActiveStyles, nil)
	h.expect(protocol.NotifySizeChanged, nil)

	h.send(protocol.ToggleBlockType(editor.HeaderOne))
	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, "<header-one><p>two</p>")
	h.expect(protocol.NotifyActiveStyles, nil)

	h.send(protocol.ToggleBlockType(editor.HeaderTwo))
	h.expect(protocol.NotifyContentChanged, nil)
	h.expect(protocol.NotifyActiveStyles, nil)

	s, err := h.bridge.State(h.ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !s.Dirty {
		t.Error("Dirty: got false")
	}
}

func TestBridge_NoEditIsNotDirty(t *testing.T) {
	ed := &fakeEditor{html: "<p>x</p>"}
	h := start(t, ed, WithLayout(fakeLayout{}))
	// A no-op toggle leaves the content equal to the baseline.
	h.send(protocol.ToggleSpecial(protocol.SpecialClear))
	h.expect(protocol.NotifyContentChanged, "<p>x</p>")
	h.expect(protocol.NotifyActiveStyles, []string{})
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_GeometryOnlyWhenFocused(t *testing.T) {
	ed := &fakeEditor{focused: true}
	delay := 20 * time.Millisecond
	h := start(t, ed, WithLayout(defaultLayout), WithGeometryDelay(delay))

	sent := time.Now()
	h.send(protocol.ToggleInlineStyle(editor.Italic))
	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, nil)
	h.expect(protocol.NotifyActiveStyles, []string{editor.Italic})
	h.expect(protocol.NotifySizeChanged, 120)
	if elapsed := time.Since(sent); elapsed < delay {
		t.Errorf("size-changed after %v, want at least %v", elapsed, delay)
	}
	h.expect(protocol.NotifyCaretPosition, 42)

	h.send(protocol.Blur())
	h.expect(protocol.NotifyFocusLost, true)
	h.send(protocol.ToggleInlineStyle(editor.Italic))
	h.expect(protocol.NotifyContentChanged, nil)
	h.expect(protocol.NotifyActiveStyles, []string{})
	h.expectNone(2 * delay)
}

func TestBridge_CaretFallback(t *testing.T) {
	l := defaultLayout
	l.caretOK = false
	h := start(t, &fakeEditor{}, WithLayout(l))
	h.send(protocol.SetContent("<p></p>"))
	h.expect(protocol.NotifyContentChanged, nil)
	h.expect(protocol.NotifyActiveStyles, nil)
	h.expect(protocol.NotifySizeChanged, 120)
	h.expect(protocol.NotifyCaretPosition, 77)

	l.focusOK = false
	h = start(t, &fakeEditor{}, WithLayout(l))
	h.send(protocol.SetContent("<p></p>"))
	h.expect(protocol.NotifyContentChanged, nil)
	h.expect(protocol.NotifyActiveStyles, nil)
	h.expect(protocol.NotifySizeChanged, 120)
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_DropTwoFiles(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(defaultLayout))
	err := h.bridge.Drop([]protocol.File{
		{Name: "a.pdf", Size: 1024, Type: "application/pdf", Data: "ignored"},
		{Name: "b.png", Size: 2048, Type: "image/png"},
	})
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	n := h.expect(protocol.NotifyFilesDropped, nil)
	var files []protocol.File
	if err := n.Decode(&files); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files: got %d, want 2", len(files))
	}
	for i, f := range files {
		if f.Data != "" {
			t.Errorf("file %d data: got %q, want empty", i, f.Data)
		}
		if f.Name == "" || f.Size == 0 || f.Type == "" {
			t.Errorf("file %d: got %+v, want name/size/type", i, f)
		}
	}
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_PasteFiles(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(defaultLayout))
	got, err := h.bridge.Paste(Paste{Files: []Blob{
		{Name: "a.txt", Type: "text/plain", Data: []byte("hi")},
		{Name: "raw", Data: []byte{1}},
	}})
	if err != nil || !got {
		t.Fatalf("Paste: got %v, %v, want intercepted", got, err)
	}
	h.expect(protocol.NotifyFilesPasted, []protocol.File{
		{Name: "a.txt", Size: 2, Type: "text/plain", Data: "data:text/plain;base64,aGk="},
		{Name: "raw", Size: 1, Data: "data:application/octet-stream;base64,AQ=="},
	})
	if len(ed.calls) != 0 {
		t.Errorf("editor calls: got %v, want none", ed.calls)
	}
}

func TestBridge_PasteHTMLReportsFileReferences(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}))
	html := `<p>x</p><img src="https://a/x.png" alt="x"><IMG SRC='file:///tmp/y.png'/>` +
		`<img src="data:image/png;base64,AA"><img src="rel/z.png">`
	got, err := h.bridge.Paste(Paste{Text: "x", HTML: html})
	if err != nil {
		t.Fatalf("Paste: %v", err)
	}
	if got {
		t.Error("Paste with HTML: got intercepted")
	}
	h.expect(protocol.NotifyLocalFilesPasted, []string{"https://a/x.png", "file:///tmp/y.png"})
	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, "x")
	h.expect(protocol.NotifyActiveStyles, nil)
}

func TestBridge_PastePlainTextNotIntercepted(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}))
	got, err := h.bridge.Paste(Paste{Text: "https://example.org"})
	if err != nil || got {
		t.Fatalf("Paste: got %v, %v", got, err)
	}
	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, "https://example.org")
	h.expect(protocol.NotifyActiveStyles, nil)
}

func TestBridge_UnknownAndMalformedCommandsIgnored(t *testing.T) {
	ed := &fakeEditor{html: "<p>keep</p>"}
	h := start(t, ed, WithLayout(fakeLayout{}))

	h.sendRaw("window.dropTables('x');true;")
	h.sendRaw("alert(1)")
	h.send(protocol.Command{Name: protocol.CmdSetContent, Arg: "%%%not-base64"})
	h.send(protocol.Command{Name: protocol.CmdSetVisualStyle, Arg: "{"})
	h.send(protocol.Command{Name: protocol.CmdInsertLink, Arg: "nope"})
	h.send(protocol.Command{Name: protocol.CmdInsertAtomicBlock, Arg: `{"params":{}}`})
	h.send(protocol.ToggleSpecial("Explode"))
	h.send(protocol.ToggleBlockType(editor.Blockquote))

	h.expect(protocol.NotifyContentDirty, true)
	h.expect(protocol.NotifyContentChanged, "<blockquote><p>keep</p>")
	h.expect(protocol.NotifyActiveStyles, nil)
	h.expectNone(30 * time.Millisecond)
	h.sync()
	if want := []string{"ToggleBlockType:blockquote"}; !slices.Equal(ed.calls, want) {
		t.Errorf("editor calls: got %v, want %v", ed.calls, want)
	}
}

func TestBridge_SessionCommandsEmitNothing(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(defaultLayout))
	style, _ := protocol.SetVisualStyle(map[string]any{"color": "red"})
	h.send(protocol.SetPlaceholder("Write it's body"))
	h.send(style)
	h.send(protocol.SetDarkMode(true))
	h.expectNone(30 * time.Millisecond)

	s, err := h.bridge.State(h.ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if s.Placeholder != "Write it's body" || !s.DarkMode || s.Style["color"] != "red" || s.Dirty {
		t.Errorf("State: got %+v", s)
	}
}

func TestBridge_SetContentStripsViewportMeta(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}))
	h.send(protocol.SetContent(`<meta name="viewport" content="width=device-width"><p>a</p>`))
	h.expect(protocol.NotifyContentChanged, "<p>a</p>")
}

func TestBridge_ContentNewlinesStripped(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(fakeLayout{}))
	h.send(protocol.SetContent("<p>a</p>\n<p>b</p>\r\n"))
	h.expect(protocol.NotifyContentChanged, "<p>a</p><p>b</p>")
}

func TestBridge_FocusCommands(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}))
	h.send(protocol.Focus())
	h.expect(protocol.NotifyFocusGained, true)
	h.send(protocol.Focus())
	h.send(protocol.Blur())
	h.expect(protocol.NotifyFocusLost, true)
	h.expectNone(30 * time.Millisecond)
}

func TestBridge_WindowFocusRefocuses(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}), WithRefocusDelay(10*time.Millisecond))
	if err := h.bridge.WindowBlur(); err != nil {
		t.Fatalf("WindowBlur: %v", err)
	}
	h.expect(protocol.NotifyFocusLost, true)
	if err := h.bridge.WindowFocus(); err != nil {
		t.Fatalf("WindowFocus: %v", err)
	}
	h.expect(protocol.NotifyFocusGained, true)
	h.sync()
	if !ed.focused {
		t.Error("editor not refocused")
	}
}

func TestBridge_FocusInOut(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(fakeLayout{}))
	h.bridge.FocusIn()
	h.expect(protocol.NotifyFocusGained, true)
	h.bridge.FocusOut()
	h.expect(protocol.NotifyFocusLost, true)
}

func TestBridge_ImageLoaded(t *testing.T) {
	h := start(t, &fakeEditor{}, WithLayout(defaultLayout))
	h.bridge.ImageLoaded()
	h.expect(protocol.NotifySizeChanged, 120)
}

func TestBridge_Keys(t *testing.T) {
	ed := &fakeEditor{}
	h := start(t, ed, WithLayout(fakeLayout{}))

	cases := []struct {
		key      Key
		indented bool
		handled  bool
		call     string
	}{
		{Key{Code: "Tab"}, false, true, "IndentIncrease"},
		{Key{Code: "Tab", Shift: true}, false, true, "IndentDecrease"},
		{Key{Code: "Backspace", Command: editor.KeyBackspace}, true, true, "IndentDecrease"},
		{Key{Code: "Backspace", Command: editor.KeyBackspace}, false, true, "Key:backspace"},
		{Key{Code: "KeyB", Command: editor.KeyBold}, false, true, "Key:bold"},
		{Key{Code: "KeyZ", Command: "undo"}, false, false, "Key:undo"},
		{Key{Code: "KeyA", Text: "a"}, false, true, "InsertText:a"},
		{Key{Code: "ShiftLeft"}, false, false, ""},
	}
	for _, c := range cases {
		h.sync()
		ed.calls = nil
		ed.atIndentStart = c.indented
		got, err := h.bridge.KeyDown(c.key)
		if err != nil {
			t.Fatalf("KeyDown(%+v): %v", c.key, err)
		}
		if got != c.handled {
			t.Errorf("KeyDown(%+v): got handled=%v, want %v", c.key, got, c.handled)
		}
		h.sync()
		var last string
		if len(ed.calls) > 0 {
			last = ed.calls[len(ed.calls)-1]
		}
		if last != c.call {
			t.Errorf("KeyDown(%+v): last call %q, want %q", c.key, last, c.call)
		}
	}
}

// Commands replayed through the bridge leave the model exactly as applying
// them directly does.
func TestBridge_ReplayMatchesDirectApplication(t *testing.T) {
	atomic, _ := protocol.InsertAtomicBlock("image", map[string]any{"src": "https://x/a.png"})
	link, _ := protocol.InsertLink("https://e.org", "e")
	cmds := []protocol.Command{
		protocol.SetContent("<p>Hello <b>world</b></p>"),
		protocol.ToggleBlockType(editor.HeaderTwo),
		protocol.ToggleInlineStyle(editor.Italic),
		link,
		protocol.ToggleSpecial(protocol.SpecialIndentIncrease),
		atomic,
		protocol.ToggleBlockType(editor.OrderedListItem),
		protocol.ToggleSpecial(protocol.SpecialClear),
		protocol.Focus(),
	}

	model := editor.NewModel()
	h := start(t, model, WithGeometryDelay(time.Hour))
	for _, c := range cmds {
		h.send(c)
	}
	h.sync()
	var viaBridge string
	h.bridge.Do(h.ctx, func(ed editor.Editor) { viaBridge = ed.HTML() })

	direct := editor.NewModel()
	direct.SetHTML("<p>Hello <b>world</b></p>")
	direct.ToggleBlockType(editor.HeaderTwo)
	direct.ToggleInlineStyle(editor.Italic)
	direct.InsertLink("https://e.org", "e")
	direct.IndentIncrease()
	direct.InsertAtomicBlock("image", map[string]any{"src": "https://x/a.png"})
	direct.ToggleBlockType(editor.OrderedListItem)
	direct.ClearInlineStyles()
	direct.Focus()

	if viaBridge != direct.HTML() {
		t.Fatalf("bridge: got %q, want %q", viaBridge, direct.HTML())
	}
	if !strings.Contains(viaBridge, "<em>") {
		t.Errorf("expected italic link in %q", viaBridge)
	}
}

func TestBridge_EntryPointsBeforeRun(t *testing.T) {
	b := New(&fakeEditor{})
	errc := make(chan error, 1)
	go func() {
		_, err := b.KeyDown(Key{Code: "Tab"})
		if err == nil {
			err = b.FocusIn()
		}
		errc <- err
	}()
	select {
	case err := <-errc:
		if err != ErrNotRunning {
			t.Fatalf("before Run: got %v, want ErrNotRunning", err)
		}
	case <-time.After(time.Second):
		t.Fatal("entry point blocked before Run")
	}
	if _, err := b.Paste(Paste{Text: "x"}); err != ErrNotRunning {
		t.Errorf("Paste before Run: got %v, want ErrNotRunning", err)
	}
}

func TestBridge_TeardownStopsTimers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	host, doc := inprocess.Pipe(16)
	events := host.Listen(context.Background())
	b := New(&fakeEditor{focused: true}, WithLayout(defaultLayout), WithGeometryDelay(30*time.Millisecond))
	go b.Run(ctx, doc)
	<-events // mounted

	host.Inject(ctx, protocol.FormatScript(protocol.ToggleInlineStyle(editor.Bold)))
	for range 3 { // dirty, content, styles
		<-events
	}
	cancel()
	<-b.Done()
	doc.Close()

	select {
	case ev := <-events:
		if !ev.Detached {
			t.Fatalf("after teardown: got %s, want only Detached", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("no Detached event")
	}
	select {
	case ev := <-events:
		t.Fatalf("after teardown: unexpected %+v", ev)
	case <-time.After(60 * time.Millisecond):
	}
	if err := b.Do(context.Background(), func(editor.Editor) {}); err != ErrNotRunning {
		t.Errorf("Do after Run: got %v, want ErrNotRunning", err)
	}
	if err := b.Run(context.Background(), doc); err == nil {
		t.Error("second Run: expected error")
	}
}
