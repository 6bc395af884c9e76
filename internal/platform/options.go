package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
)

// options holds the internal configuration for a notes session.
type options struct {
	backend     core.Backend
	logger      *slog.Logger
	adapter     string
	config      map[string]interface{}
	serializers map[string]any
	reconciler  []core.ReconcilerOption
}

// Option defines a functional option for configuring a session.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter:     "fs",
		config:      make(map[string]interface{}),
		serializers: make(map[string]any),
	}
}

// WithSerializer registers a custom serializer for a specific extension.
// The serializer 's' must implement fs.Serializer; validation happens when
// the fs adapter is opened.
func WithSerializer(ext string, s any) Option {
	return func(o *options) {
		o.serializers[ext] = s
	}
}

// WithLogger sets the logger for the backend and the reconciler.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBackend injects a ready backend (e.g. a mock). The adapter name and
// URI are then ignored.
func WithBackend(b core.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithAdapter selects the backend by name: fs, sqlite, graphql or memory.
// Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithMustExist makes the fs adapter fail when the notes directory is missing.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithSystemDir sets the hidden directory the fs adapter keeps its index in.
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithExtension sets the format of notes created by the fs adapter (e.g. ".md").
func WithExtension(ext string) Option {
	return func(o *options) {
		o.config["extension"] = ext
	}
}

// WithPattern restricts the fs adapter to file names matching a doublestar pattern.
func WithPattern(pattern string) Option {
	return func(o *options) {
		o.config["pattern"] = pattern
	}
}

// WithDebounce sets how long the fs watcher waits for a file to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.config["debounce"] = d
	}
}

// WithWatch enables or disables the fs watcher. Enabled by default.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.config["watch"] = enabled
	}
}

// WithEventBuffer sets the per-subscription buffer of local backends.
// Zero means default.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithAPIKey sets the x-api-key sent to the graphql adapter's service.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.config["api_key"] = key
	}
}

// WithToken sets the Authorization header sent to the graphql adapter's service.
func WithToken(token string) Option {
	return func(o *options) {
		o.config["token"] = token
	}
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures
// of the fs adapter, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReconcilerOptions passes options through to core.NewReconciler.
func WithReconcilerOptions(opts ...core.ReconcilerOption) Option {
	return func(o *options) {
		o.reconciler = append(o.reconciler, opts...)
	}
}
