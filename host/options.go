package host

import (
	"log/slog"

	"github.com/hazyhaar/composer/drafts"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithDrafts saves every content change under id in store.
func WithDrafts(store *drafts.Store, id string) Option {
	return func(c *Controller) {
		c.drafts = store
		c.draftID = id
	}
}

// WithSessionID sets the identifier logged with every session event.
// Default: a fresh "ses_" UUID.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}
