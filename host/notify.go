package host

import (
	"context"

	"github.com/hazyhaar/composer/protocol"
)

// dispatch decodes one frame and routes it. Malformed frames and unknown
// types are logged and dropped.
func (c *Controller) dispatch(frame []byte) {
	n, err := protocol.ParseNotification(frame)
	if err != nil {
		c.logger.Warn("host: malformed notification", "error", err)
		return
	}
	if err := c.route(n); err != nil {
		c.logger.Warn("host: decode notification", "type", n.Type, "error", err)
	}
}

func (c *Controller) route(n protocol.Notification) error {
	h := c.handlers
	switch n.Type {
	case protocol.NotifyMounted:
		c.mount()

	case protocol.NotifyContentChanged:
		var html string
		if err := n.Decode(&html); err != nil {
			return err
		}
		c.setContent(html)
		if h.OnEditorChange != nil {
			h.OnEditorChange(html)
		}

	case protocol.NotifyActiveStyles:
		var styles []string
		if err := n.Decode(&styles); err != nil {
			return err
		}
		if h.OnActiveStyleChange != nil {
			h.OnActiveStyleChange(styles)
		}

	case protocol.NotifySizeChanged:
		var height float64
		if err := n.Decode(&height); err != nil {
			return err
		}
		if h.OnSizeChange != nil {
			h.OnSizeChange(height)
		}

	case protocol.NotifyCaretPosition:
		var offset float64
		if err := n.Decode(&offset); err != nil {
			return err
		}
		if h.OnCaretPosition != nil {
			h.OnCaretPosition(offset)
		}

	case protocol.NotifyFocusGained:
		if h.OnFocus != nil {
			h.OnFocus()
		}

	case protocol.NotifyFocusLost:
		if h.OnBlur != nil {
			h.OnBlur()
		}

	case protocol.NotifyContentDirty:
		if h.OnContentDirty != nil {
			h.OnContentDirty()
		}

	case protocol.NotifyFilesPasted, protocol.NotifyFilesDropped:
		var files []protocol.File
		if err := n.Decode(&files); err != nil {
			return err
		}
		fn := h.OnFilesPasted
		if n.Type == protocol.NotifyFilesDropped {
			fn = h.OnFilesDropped
		}
		if fn != nil {
			fn(files)
		}

	case protocol.NotifyLocalFilesPasted:
		var paths []string
		if err := n.Decode(&paths); err != nil {
			return err
		}
		if h.OnLocalFilesPasted != nil {
			h.OnLocalFilesPasted(paths)
		}

	default:
		c.logger.Debug("host: unknown notification", "type", n.Type)
	}
	return nil
}

// setContent caches html and autosaves it when a draft store is set.
func (c *Controller) setContent(html string) {
	html = protocol.StripNewlines(html)
	c.mu.Lock()
	c.content = html
	ctx := c.ctx
	c.mu.Unlock()

	if c.drafts == nil {
		return
	}
	if err := c.drafts.Save(context.WithoutCancel(ctx), c.draftID, html); err != nil {
		c.logger.Warn("host: save draft", "draft", c.draftID, "error", err)
	}
}
