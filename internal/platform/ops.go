package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/adapters/graphql"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/sqlite"
	"github.com/aretw0/notetaker/pkg/core"
)

// Adapters lists the backend names accepted by WithAdapter.
var Adapters = []string{"fs", "sqlite", "graphql", "memory"}

// Open creates and initializes the backend selected by the options.
// The 'uri' argument is adapter-specific: a directory for fs, a database
// file for sqlite, an endpoint URL for graphql. memory ignores it.
func Open(ctx context.Context, uri string, opts ...Option) (core.Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return open(ctx, uri, o)
}

func open(ctx context.Context, uri string, o *options) (core.Backend, error) {
	// 1. Check for injected backend
	if o.backend != nil {
		return o.backend, nil
	}

	// 2. Initialize based on Adapter
	buffer, _ := o.config["event_buffer"].(int)

	switch o.adapter {
	case "fs":
		return openFS(ctx, uri, o)
	case "sqlite":
		if uri == "" {
			return nil, fmt.Errorf("sqlite adapter needs a database path")
		}
		b, err := sqlite.Open(uri, sqlite.WithBuffer(buffer))
		if err != nil {
			return nil, err
		}
		return b, nil
	case "graphql":
		apiKey, _ := o.config["api_key"].(string)
		token, _ := o.config["token"].(string)
		c, err := graphql.NewClient(graphql.Config{
			Endpoint: uri,
			APIKey:   apiKey,
			Token:    token,
			Logger:   o.logger,
			Buffer:   buffer,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory":
		return memory.New(memory.WithBuffer(buffer)), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

// openFS handles the initialization logic for the filesystem adapter.
func openFS(ctx context.Context, path string, o *options) (core.Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("fs adapter needs a directory")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	// Parse Config
	mustExist, _ := o.config["must_exist"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	extension, _ := o.config["extension"].(string)
	pattern, _ := o.config["pattern"].(string)
	debounce, _ := o.config["debounce"].(time.Duration)
	buffer, _ := o.config["event_buffer"].(int)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))
	var watch *bool
	if w, ok := o.config["watch"].(bool); ok {
		watch = &w
	}

	backend := fs.NewBackend(fs.Config{
		Path:         abs,
		SystemDir:    systemDir,
		Extension:    extension,
		Pattern:      pattern,
		MustExist:    mustExist,
		Watch:        watch,
		Debounce:     debounce,
		Buffer:       buffer,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})

	// Register Custom Serializers
	for ext, s := range o.serializers {
		serializer, ok := s.(fs.Serializer)
		if !ok {
			if o.logger != nil {
				o.logger.Warn("invalid serializer type ignored", "ext", ext, "expected", "fs.Serializer")
			}
			return nil, fmt.Errorf("serializer for %s must implement fs.Serializer", ext)
		}
		backend.RegisterSerializer(ext, serializer)
	}

	// Run Initialization
	if err := backend.Initialize(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}
	return backend, nil
}
