package document

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/protocol"
)

// Key is a key press seen by the content area.
type Key struct {
	Code    string // DOM key code: "Tab", "Backspace", "KeyB", ...
	Shift   bool
	Command string // command from the default key binding, empty if none
	Text    string // characters the key inserts, if any
}

// Blob is a pasted file with its bytes.
type Blob struct {
	Name string
	Type string
	Data []byte
}

// Paste is the content of a paste event.
type Paste struct {
	Text  string
	HTML  string
	Files []Blob
}

// KeyDown handles a key press. Tab and Shift+Tab indent, backspace at the
// start of an indented block outdents; anything else goes to the editor's
// default key handling. The result reports whether the key was consumed.
func (b *Bridge) KeyDown(k Key) (handled bool, err error) {
	err = b.do(func() { handled = b.keyDown(k) })
	return handled, err
}

func (b *Bridge) keyDown(k Key) bool {
	switch {
	case k.Code == "Tab":
		if k.Shift {
			b.ed.IndentDecrease()
		} else {
			b.ed.IndentIncrease()
		}
		b.commit(false)
		return true
	case k.Command == editor.KeyBackspace && b.ed.AtIndentedBlockStart():
		b.ed.IndentDecrease()
		b.commit(false)
		return true
	case k.Command != "":
		if !b.ed.HandleKeyCommand(k.Command) {
			return false
		}
		b.commit(false)
		return true
	case k.Text != "":
		b.ed.InsertText(k.Text)
		b.commit(false)
		return true
	}
	return false
}

// Changed reports a change the editor made on its own, such as typing in a
// browser-backed editor.
func (b *Bridge) Changed() error {
	return b.do(func() { b.commit(false) })
}

// FocusIn reports that the content area gained input focus.
func (b *Bridge) FocusIn() error {
	return b.do(func() { b.setFocus(true) })
}

// FocusOut reports that the content area lost input focus.
func (b *Bridge) FocusOut() error {
	return b.do(func() { b.setFocus(false) })
}

// WindowBlur reports that the hosting window lost focus.
func (b *Bridge) WindowBlur() error {
	return b.do(func() { b.emit(protocol.NotifyFocusLost, true) })
}

// WindowFocus reports that the hosting window regained focus. After the
// refocus delay the bridge reports focus and puts the caret back.
func (b *Bridge) WindowFocus() error {
	return b.do(func() {
		b.after(b.refocusDelay, func() {
			b.emit(protocol.NotifyFocusGained, true)
			b.ed.Focus()
		})
	})
}

// ImageLoaded reports that an embedded image finished loading and the
// document height may have changed.
func (b *Bridge) ImageLoaded() error {
	return b.do(func() { b.emit(protocol.NotifySizeChanged, b.layout.ContentHeight()) })
}

// Paste handles a paste. Files are intercepted and reported; image references
// found in pasted HTML are reported and the paste continues. Text goes to
// the editor. The result reports whether the paste was intercepted.
func (b *Bridge) Paste(p Paste) (intercepted bool, err error) {
	err = b.do(func() { intercepted = b.paste(p) })
	return intercepted, err
}

func (b *Bridge) paste(p Paste) bool {
	if len(p.Files) > 0 {
		files := make([]protocol.File, 0, len(p.Files))
		for _, f := range p.Files {
			files = append(files, protocol.File{
				Name: f.Name,
				Size: int64(len(f.Data)),
				Type: f.Type,
				Data: dataURL(f.Type, f.Data),
			})
		}
		b.emit(protocol.NotifyFilesPasted, files)
		return true
	}
	if p.HTML != "" {
		if paths := imageSources(p.HTML); len(paths) > 0 {
			b.emit(protocol.NotifyLocalFilesPasted, paths)
		}
	}
	if p.Text != "" {
		b.ed.InsertText(p.Text)
		b.commit(false)
	}
	return false
}

// Drop handles dropped files. They are reported without their contents and
// never inserted.
func (b *Bridge) Drop(files []protocol.File) error {
	return b.do(func() {
		out := make([]protocol.File, len(files))
		for i, f := range files {
			out[i] = protocol.File{Name: f.Name, Size: f.Size, Type: f.Type}
		}
		b.emit(protocol.NotifyFilesDropped, out)
	})
}

func dataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// imageSources returns the src of every <img> in s that points at a remote
// or local file.
func imageSources(s string) []string {
	var out []string
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.Img {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "src" {
					continue
				}
				src := strings.TrimSpace(string(val))
				if isFileReference(src) {
					out = append(out, src)
				}
			}
		}
	}
}

func isFileReference(src string) bool {
	l := strings.ToLower(src)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "file:")
}
