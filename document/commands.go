package document

import (
	"fmt"

	"github.com/hazyhaar/composer/protocol"
)

// Command handlers. Each decodes its argument before touching the editor so a
// bad argument leaves the state as it was.

func (b *Bridge) setContent(arg string) error {
	if arg == "" {
		return nil
	}
	html, err := protocol.DecodeContent(arg)
	if err != nil {
		return err
	}
	if err := b.ed.SetHTML(stripViewportMeta(html)); err != nil {
		return fmt.Errorf("document: set content: %w", err)
	}
	b.commit(true)
	return nil
}

func (b *Bridge) setPlaceholder(arg string) error {
	b.session.Placeholder = arg
	return nil
}

func (b *Bridge) setVisualStyle(arg string) error {
	style, err := protocol.DecodeVisualStyle(arg)
	if err != nil {
		return err
	}
	b.session.Style = style
	return nil
}

func (b *Bridge) setDarkMode(arg string) error {
	b.session.DarkMode = protocol.DecodeDarkMode(arg)
	return nil
}

func (b *Bridge) toggleBlockType(arg string) error {
	b.ed.ToggleBlockType(arg)
	b.commit(false)
	return nil
}

func (b *Bridge) toggleInlineStyle(arg string) error {
	b.ed.ToggleInlineStyle(arg)
	b.commit(false)
	return nil
}

func (b *Bridge) toggleSpecial(arg string) error {
	switch arg {
	case protocol.SpecialClear:
		b.ed.ClearInlineStyles()
	case protocol.SpecialIndentIncrease:
		b.ed.IndentIncrease()
	case protocol.SpecialIndentDecrease:
		b.ed.IndentDecrease()
	default:
		b.logger.Debug("document: unknown special command", "special", arg)
		return nil
	}
	b.commit(false)
	return nil
}

func (b *Bridge) insertAtomicBlock(arg string) error {
	blk, err := protocol.DecodeAtomicBlock(arg)
	if err != nil {
		return err
	}
	b.ed.InsertAtomicBlock(blk.Type, blk.Params)
	b.commit(false)
	return nil
}

func (b *Bridge) insertLink(arg string) error {
	l, err := protocol.DecodeLink(arg)
	if err != nil {
		return err
	}
	b.ed.InsertLink(l.URL, l.Text)
	b.commit(false)
	return nil
}

func (b *Bridge) focus(string) error {
	b.setFocus(true)
	return nil
}

func (b *Bridge) blur(string) error {
	b.setFocus(false)
	return nil
}

// setFocus moves editor focus and reports the transition.
func (b *Bridge) setFocus(on bool) {
	if b.ed.HasFocus() == on {
		return
	}
	if on {
		b.ed.Focus()
		b.emit(protocol.NotifyFocusGained, true)
		return
	}
	b.ed.Blur()
	b.emit(protocol.NotifyFocusLost, true)
}
