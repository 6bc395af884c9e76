// Package sqlite provides a core.Backend persisted in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/notetaker/internal/broker"
	"github.com/aretw0/notetaker/pkg/core"

	_ "modernc.org/sqlite"
)

// Backend stores notes in a single SQLite table.
type Backend struct {
	db     *sql.DB
	path   string
	broker *broker.Broker
	newID  func() string

	// mu keeps the order of published events equal to the order of commits.
	mu sync.Mutex
}

// Option configures the sqlite backend.
type Option func(*Backend)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Backend) {
		b.newID = fn
	}
}

// WithBuffer sets the per-subscription buffer size.
func WithBuffer(size int) Option {
	return func(b *Backend) {
		b.broker = broker.New(size)
	}
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string, opts ...Option) (*Backend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open notes db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set notes db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set notes db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	note TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize notes schema: %w", err)
	}

	b := &Backend{
		db:     db,
		path:   path,
		broker: broker.New(0),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// List returns the notes in creation order.
func (b *Backend) List(ctx context.Context) ([]core.Note, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, note FROM notes ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := make([]core.Note, 0)
	for rows.Next() {
		var n core.Note
		if err := rows.Scan(&n.ID, &n.Text); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note rows: %w", err)
	}
	return out, nil
}

// Get returns one note.
func (b *Backend) Get(ctx context.Context, id string) (core.Note, error) {
	n := core.Note{ID: id}
	err := b.db.QueryRowContext(ctx, `SELECT note FROM notes WHERE id = ?`, id).Scan(&n.Text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return core.Note{}, fmt.Errorf("query note %q: %w", id, err)
	}
	return n, nil
}

// Create inserts a note under a fresh ID and publishes a Created event.
func (b *Backend) Create(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := core.Note{ID: b.newID(), Text: text}
	now := timestamp()
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO notes (id, note, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.Text, now, now,
	); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	b.broker.Publish(ctx, core.Created(n))
	return nil
}

// Update replaces the text of an existing note and publishes an Updated event.
func (b *Backend) Update(ctx context.Context, id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx,
		`UPDATE notes SET note = ?, updated_at = ? WHERE id = ?`,
		text, timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("update note %q: %w", id, err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	b.broker.Publish(ctx, core.Updated(core.Note{ID: id, Text: text}))
	return nil
}

// Delete removes a note and publishes a Deleted event.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, err := b.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %q: %w", id, err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	b.broker.Publish(ctx, core.Deleted(id))
	return nil
}

// Subscribe opens a feed for one kind of event.
func (b *Backend) Subscribe(ctx context.Context, kind core.EventKind) (core.Subscription, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return b.broker.Subscribe(kind), nil
}

// Close releases every feed and closes the database.
func (b *Backend) Close() error {
	b.broker.Close()
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// State implements introspection.Introspectable.
func (b *Backend) State() any {
	stats := b.db.Stats()
	return map[string]any{
		"path":          b.path,
		"subscriptions": b.broker.Subscribers(),
		"open_conns":    stats.OpenConnections,
	}
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "sqlite"
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var _ core.Backend = (*Backend)(nil)
