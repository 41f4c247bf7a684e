// Package inprocess connects a host and a document living in the same
// process through buffered channels. It is used by tests and by the
// headless mode, where the document is a Go bridge over editor.Model.
package inprocess

import (
	"context"
	"sync"

	"github.com/hazyhaar/composer/transport"
)

// Host is the host end of a pipe.
type Host struct {
	buffer int
	events chan transport.Event
	done   chan struct{}

	mu     sync.Mutex
	doc    *Document
	closed bool
}

// Document is one document context attached to a Host.
type Document struct {
	host    *Host
	scripts chan string
	done    chan struct{}
	once    sync.Once
}

// Pipe returns a host end and the document end attached to it. buffer is the
// capacity of each direction.
func Pipe(buffer int) (*Host, *Document) {
	if buffer < 0 {
		buffer = 0
	}
	h := &Host{
		buffer: buffer,
		events: make(chan transport.Event, buffer),
		done:   make(chan struct{}),
	}
	return h, h.Attach()
}

// Attach starts a fresh document context, as a reload would. The previous
// document, if any, is torn down and reported Detached first.
func (h *Host) Attach() *Document {
	d := &Document{
		host:    h,
		scripts: make(chan string, h.buffer),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	prev := h.doc
	h.doc = d
	h.mu.Unlock()
	if prev != nil {
		prev.teardown(false)
	}
	return d
}

// Inject implements transport.HostEnd.
func (h *Host) Inject(ctx context.Context, script string) error {
	h.mu.Lock()
	d, closed := h.doc, h.closed
	h.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if d == nil {
		return transport.ErrNotAttached
	}
	select {
	case d.scripts <- script:
		return nil
	case <-d.done:
		return transport.ErrNotAttached
	case <-h.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen implements transport.HostEnd.
func (h *Host) Listen(ctx context.Context) <-chan transport.Event {
	out := make(chan transport.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case ev := <-h.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-h.done:
					return
				}
			}
		}
	}()
	return out
}

// Close implements transport.HostEnd.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	return nil
}

// PostMessage implements transport.DocumentEnd.
func (d *Document) PostMessage(ctx context.Context, data []byte) error {
	select {
	case <-d.done:
		return transport.ErrClosed
	default:
	}
	msg := make([]byte, len(data))
	copy(msg, data)
	select {
	case d.host.events <- transport.Event{Data: msg}:
		return nil
	case <-d.done:
		return transport.ErrClosed
	case <-d.host.done:
		return transport.ErrNotAttached
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen implements transport.DocumentEnd.
func (d *Document) Listen(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case <-d.host.done:
				return
			case s := <-d.scripts:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				case <-d.done:
					return
				}
			}
		}
	}()
	return out
}

// Close implements transport.DocumentEnd. The host observes a Detached event.
func (d *Document) Close() error {
	d.teardown(true)
	return nil
}

func (d *Document) teardown(unlink bool) {
	d.once.Do(func() {
		close(d.done)
		h := d.host
		if unlink {
			h.mu.Lock()
			if h.doc == d {
				h.doc = nil
			}
			h.mu.Unlock()
		}
		select {
		case h.events <- transport.Event{Detached: true}:
		case <-h.done:
		}
	})
}

var (
	_ transport.HostEnd     = (*Host)(nil)
	_ transport.DocumentEnd = (*Document)(nil)
)
