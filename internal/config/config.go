// Package config loads the notetaker.toml file used by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "notetaker.toml"

// Config is the resolved CLI configuration.
type Config struct {
	Adapter string
	URI     string

	FS         FSConfig
	GraphQL    GraphQLConfig
	Reconciler ReconcilerConfig
	Serve      ServeConfig

	// Path is the file the configuration was read from, empty for defaults.
	Path string
}

// FSConfig tunes the filesystem adapter.
type FSConfig struct {
	SystemDir string
	Extension string
	Pattern   string
	Debounce  time.Duration
	MustExist bool
}

// GraphQLConfig holds the managed service credentials.
type GraphQLConfig struct {
	APIKey string
	Token  string
}

// ReconcilerConfig tunes the client-side reconciler.
type ReconcilerConfig struct {
	Buffer         int
	CommandTimeout time.Duration
}

// ServeConfig configures the emulator started by `notetaker serve`.
type ServeConfig struct {
	Addr   string
	APIKey string
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Adapter: "fs",
		URI:     "notes",
		FS: FSConfig{
			SystemDir: ".notetaker",
			Extension: ".md",
			Pattern:   "*",
			Debounce:  50 * time.Millisecond,
		},
		Reconciler: ReconcilerConfig{
			Buffer:         100,
			CommandTimeout: 30 * time.Second,
		},
		Serve: ServeConfig{
			Addr: "localhost:8080",
		},
	}
}

type fileConfig struct {
	Adapter string `toml:"adapter"`
	URI     string `toml:"uri"`
	FS      struct {
		SystemDir string `toml:"system_dir"`
		Extension string `toml:"extension"`
		Pattern   string `toml:"pattern"`
		Debounce  string `toml:"debounce"`
		MustExist bool   `toml:"must_exist"`
	} `toml:"fs"`
	GraphQL struct {
		APIKey string `toml:"api_key"`
		Token  string `toml:"token"`
	} `toml:"graphql"`
	Reconciler struct {
		Buffer         int    `toml:"buffer"`
		CommandTimeout string `toml:"command_timeout"`
	} `toml:"reconciler"`
	Serve struct {
		Addr   string `toml:"addr"`
		APIKey string `toml:"api_key"`
	} `toml:"serve"`
}

// Load reads path on top of the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	cfg.Path = path

	if meta.IsDefined("adapter") {
		cfg.Adapter = strings.TrimSpace(raw.Adapter)
	}
	if meta.IsDefined("uri") {
		cfg.URI = strings.TrimSpace(raw.URI)
	}

	if meta.IsDefined("fs", "system_dir") {
		cfg.FS.SystemDir = strings.TrimSpace(raw.FS.SystemDir)
	}
	if meta.IsDefined("fs", "extension") {
		ext := strings.TrimSpace(raw.FS.Extension)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.FS.Extension = ext
	}
	if meta.IsDefined("fs", "pattern") {
		cfg.FS.Pattern = strings.TrimSpace(raw.FS.Pattern)
	}
	if meta.IsDefined("fs", "debounce") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.FS.Debounce))
		if err != nil {
			return Config{}, fmt.Errorf("parse fs.debounce: %w", err)
		}
		cfg.FS.Debounce = d
	}
	if meta.IsDefined("fs", "must_exist") {
		cfg.FS.MustExist = raw.FS.MustExist
	}

	if meta.IsDefined("graphql", "api_key") {
		cfg.GraphQL.APIKey = strings.TrimSpace(raw.GraphQL.APIKey)
	}
	if meta.IsDefined("graphql", "token") {
		cfg.GraphQL.Token = strings.TrimSpace(raw.GraphQL.Token)
	}

	if meta.IsDefined("reconciler", "buffer") {
		if raw.Reconciler.Buffer <= 0 {
			return Config{}, fmt.Errorf("reconciler.buffer must be positive, got %d", raw.Reconciler.Buffer)
		}
		cfg.Reconciler.Buffer = raw.Reconciler.Buffer
	}
	if meta.IsDefined("reconciler", "command_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconciler.CommandTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse reconciler.command_timeout: %w", err)
		}
		cfg.Reconciler.CommandTimeout = d
	}

	if meta.IsDefined("serve", "addr") {
		cfg.Serve.Addr = strings.TrimSpace(raw.Serve.Addr)
	}
	if meta.IsDefined("serve", "api_key") {
		cfg.Serve.APIKey = strings.TrimSpace(raw.Serve.APIKey)
	}

	return cfg, nil
}

// Resolve loads the file at path, or the nearest notetaker.toml above
// startDir when path is empty. With neither it returns the defaults.
func Resolve(path, startDir string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	found, err := Find(startDir)
	if err != nil {
		return Default(), nil
	}
	return Load(found)
}

// Location returns the URI to open. Relative paths of local adapters are
// taken from the directory of the configuration file.
func (c Config) Location() string {
	if c.Path == "" || c.URI == "" || filepath.IsAbs(c.URI) {
		return c.URI
	}
	switch c.Adapter {
	case "fs", "sqlite":
		return filepath.Join(filepath.Dir(c.Path), c.URI)
	}
	return c.URI
}

// Write stores cfg at path as TOML. It fails when the file already exists.
func Write(path string, cfg Config) error {
	var raw fileConfig
	raw.Adapter = cfg.Adapter
	raw.URI = cfg.URI
	raw.FS.SystemDir = cfg.FS.SystemDir
	raw.FS.Extension = cfg.FS.Extension
	raw.FS.Pattern = cfg.FS.Pattern
	raw.FS.Debounce = cfg.FS.Debounce.String()
	raw.FS.MustExist = cfg.FS.MustExist
	raw.GraphQL.APIKey = cfg.GraphQL.APIKey
	raw.GraphQL.Token = cfg.GraphQL.Token
	raw.Reconciler.Buffer = cfg.Reconciler.Buffer
	raw.Reconciler.CommandTimeout = cfg.Reconciler.CommandTimeout.String()
	raw.Serve.Addr = cfg.Serve.Addr
	raw.Serve.APIKey = cfg.Serve.APIKey

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
