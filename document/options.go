package document

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/composer/editor"
)

// Default delays, taken from the deployed web document.
const (
	DefaultGeometryDelay = 50 * time.Millisecond
	DefaultRefocusDelay  = 200 * time.Millisecond
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithLayout sets the geometry source. By default the editor is used when it
// implements editor.Layout.
func WithLayout(l editor.Layout) Option {
	return func(b *Bridge) { b.layout = l }
}

// WithGeometryDelay sets how long geometry sampling waits after a change for
// layout to settle.
func WithGeometryDelay(d time.Duration) Option {
	return func(b *Bridge) { b.geometryDelay = d }
}

// WithRefocusDelay sets how long the bridge waits after the window regains
// focus before focusing the content again.
func WithRefocusDelay(d time.Duration) Option {
	return func(b *Bridge) { b.refocusDelay = d }
}
