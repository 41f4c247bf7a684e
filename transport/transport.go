// Package transport defines the channel between a host and the document it
// drives. The channel has no shared memory and no call-return semantics:
// the host injects scripts, the document posts string messages back. Each
// direction is one ordered pipe.
//
// Concrete ends live in subpackages: inprocess (tests and embedded use), ws
// (a webview or browser connected over a WebSocket) and rodpage (a Chrome
// page driven through the DevTools protocol).
package transport

import "context"

// Event is one message received by the host end. Detached is set instead of
// Data when the document context was torn down (reload, crash, disconnect);
// a reattached document announces itself with a fresh mount handshake.
type Event struct {
	Data     []byte
	Detached bool
}

// HostEnd is the host side of the channel.
type HostEnd interface {
	// Inject delivers one script to the document. It returns ErrNotAttached
	// when no document is present.
	Inject(ctx context.Context, script string) error

	// Listen returns the document's messages in send order. The returned
	// channel is closed when ctx is cancelled or Close is called.
	Listen(ctx context.Context) <-chan Event

	// Close shuts down the channel.
	Close() error
}

// DocumentEnd is the document side of the channel.
type DocumentEnd interface {
	// PostMessage delivers one message to the host. It returns
	// ErrNotAttached when the host bridge is absent.
	PostMessage(ctx context.Context, data []byte) error

	// Listen returns the injected scripts in send order. The returned channel
	// is closed when ctx is cancelled, Close is called or the host goes away.
	Listen(ctx context.Context) <-chan string

	// Close tears the document context down.
	Close() error
}

// Loader is implemented by host ends that load the document resource
// themselves. A Load failure is reported to the host's load-error callback.
type Loader interface {
	Load(ctx context.Context) error
}
