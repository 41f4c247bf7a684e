// Package drafts persists composed bodies in SQLite so a session can be
// restored after the host restarts.
//
//	import _ "modernc.org/sqlite"
//	st, err := drafts.Open("var/drafts.db")
//	st.Save(ctx, id, html)
package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/composer/dbopen"
	"github.com/hazyhaar/composer/idgen"
)

// Schema holds one row per draft. updated_at is Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS drafts (
    id         TEXT PRIMARY KEY,
    html       TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);
`

// ErrNotFound is returned by Load for an unknown draft.
var ErrNotFound = errors.New("drafts: not found")

// Draft is one stored body.
type Draft struct {
	ID        string
	HTML      string
	UpdatedAt time.Time
}

// Store reads and writes drafts.
type Store struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger
	now    func() time.Time
	newID  idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator sets the generator used by NewID. Default: idgen.Default.
func WithIDGenerator(g idgen.Generator) Option { return func(s *Store) { s.newID = g } }

// Open opens the database at path, creating it and its directory if needed.
// The store owns the handle and closes it in Close.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("drafts: %w", err)
	}
	s := newStore(db, opts)
	s.owned = true
	return s, nil
}

// New wraps an open database, creating the schema if needed.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("drafts: init schema: %w", err)
	}
	return newStore(db, opts), nil
}

func newStore(db *sql.DB, opts []Option) *Store {
	s := &Store{db: db, now: time.Now, newID: idgen.Default}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// NewID returns a fresh draft identifier.
func (s *Store) NewID() string { return s.newID() }

// Save creates or replaces a draft.
func (s *Store) Save(ctx context.Context, id, html string) error {
	if id == "" {
		return errors.New("drafts: empty id")
	}
	_, err := dbopen.Exec(ctx, s.db,
		`INSERT INTO drafts (id, html, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET html = excluded.html, updated_at = excluded.updated_at`,
		id, html, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("drafts: save %s: %w", id, err)
	}
	s.logger.Debug("drafts: saved", "id", id, "size", len(html))
	return nil
}

// Load returns a draft or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (Draft, error) {
	var d Draft
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, html, updated_at FROM drafts WHERE id = ?`, id).Scan(&d.ID, &d.HTML, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("drafts: load %s: %w", id, err)
	}
	d.UpdatedAt = time.UnixMilli(ms)
	return d, nil
}

// Delete removes a draft. Deleting an unknown draft is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM drafts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("drafts: delete %s: %w", id, err)
	}
	return nil
}

// List returns every draft, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, html, updated_at FROM drafts ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("drafts: list: %w", err)
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var d Draft
		var ms int64
		if err := rows.Scan(&d.ID, &d.HTML, &ms); err != nil {
			return nil, fmt.Errorf("drafts: list: %w", err)
		}
		d.UpdatedAt = time.UnixMilli(ms)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
