package host

import (
	"fmt"

	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/protocol"
)

// Focus requests input focus in the document.
func (c *Controller) Focus() { c.send(protocol.Focus()) }

// Blur releases input focus.
func (c *Controller) Blur() { c.send(protocol.Blur()) }

// SetBlockType toggles the block type under the caret ("header-one",
// "unordered-list-item", ...).
func (c *Controller) SetBlockType(blockType string) { c.send(protocol.ToggleBlockType(blockType)) }

// SetStyle toggles an inline style ("BOLD", "ITALIC", ...).
func (c *Controller) SetStyle(style string) { c.send(protocol.ToggleInlineStyle(style)) }

// SetSpecialType sends a special command: CLEAR, IndentIncrease or
// IndentDecrease.
func (c *Controller) SetSpecialType(name string) { c.send(protocol.ToggleSpecial(name)) }

// AddImage inserts an image block with the given source.
func (c *Controller) AddImage(src string) error {
	return c.InsertBlock(editor.AtomicImage, map[string]any{"src": src})
}

// InsertBlock inserts an atomic block of any type.
func (c *Controller) InsertBlock(blockType string, params map[string]any) error {
	cmd, err := protocol.InsertAtomicBlock(blockType, params)
	if err != nil {
		return fmt.Errorf("host: insert block: %w", err)
	}
	c.send(cmd)
	return nil
}

// AddLink inserts a link with the given text at the caret.
func (c *Controller) AddLink(url, text string) error {
	cmd, err := protocol.InsertLink(url, text)
	if err != nil {
		return fmt.Errorf("host: add link: %w", err)
	}
	c.send(cmd)
	return nil
}

// EditorState returns the last content reported by the document, without
// newlines. It is empty until the first content change.
func (c *Controller) EditorState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Markdown converts the last reported content to CommonMark.
func (c *Controller) Markdown() (string, error) {
	html := c.EditorState()
	if html == "" {
		return "", nil
	}
	md, err := c.md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("host: markdown: %w", err)
	}
	return md, nil
}
