package notetaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

// --- Types ---

// Session is a started reconciler together with the backend it owns.
type Session = platform.Session

// Note is a public alias for core.Note.
type Note = core.Note

// Snapshot is a public alias for core.Snapshot.
type Snapshot = core.Snapshot

// --- Configuration ---

// Option defines a functional option for configuring a session.
type Option = platform.Option

// WithAdapter selects the backend by name: fs, sqlite, graphql or memory.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithBackend injects a ready backend.
func WithBackend(b core.Backend) Option {
	return platform.WithBackend(b)
}

// WithLogger sets the logger for the backend and the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithMustExist makes the fs adapter fail when the notes directory is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithSystemDir sets the hidden directory the fs adapter keeps its index in.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithExtension sets the format of notes created by the fs adapter.
func WithExtension(ext string) Option {
	return platform.WithExtension(ext)
}

// WithPattern restricts the fs adapter to file names matching a glob.
func WithPattern(pattern string) Option {
	return platform.WithPattern(pattern)
}

// WithDebounce sets how long the fs watcher waits for a file to settle.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithWatch enables or disables the fs watcher.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithEventBuffer sets the per-subscription buffer of local backends.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithAPIKey sets the x-api-key sent by the graphql adapter.
func WithAPIKey(key string) Option {
	return platform.WithAPIKey(key)
}

// WithToken sets the Authorization header sent by the graphql adapter.
func WithToken(token string) Option {
	return platform.WithToken(token)
}

// WithCommandTimeout bounds each backend call issued by the reconciler.
func WithCommandTimeout(d time.Duration) Option {
	return platform.WithReconcilerOptions(core.WithCommandTimeout(d))
}

// WithBufferSize sets the reconciler inbox size.
func WithBufferSize(size int) Option {
	return platform.WithReconcilerOptions(core.WithBufferSize(size))
}

// --- Factory ---

// New opens a backend and starts a reconciler on it.
func New(ctx context.Context, uri string, opts ...Option) (*Session, error) {
	return platform.New(ctx, uri, opts...)
}

// Open creates and initializes a backend without a reconciler.
func Open(ctx context.Context, uri string, opts ...Option) (core.Backend, error) {
	return platform.Open(ctx, uri, opts...)
}
