package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/notetaker/internal/broker"
	"github.com/aretw0/notetaker/pkg/core"
)

// Backend implements core.Backend on a directory of note files.
//
// Every note is one file named {ID}{ext}. Changes are turned into events by
// comparing the file with the index, whether they come from this process or
// from another program editing the directory.
type Backend struct {
	Path        string
	config      Config
	cache       *cache
	broker      *broker.Broker
	serializers map[string]Serializer
	newID       func() string

	settleMu sync.Mutex

	mu            sync.RWMutex
	worker        *watchWorker
	watcherActive bool
	lastReconcile *time.Time
}

// Config holds the configuration for the filesystem backend.
type Config struct {
	Path         string
	SystemDir    string        // e.g. ".notetaker"; holds the index
	Extension    string        // format of new notes, e.g. ".md"
	Pattern      string        // doublestar pattern a file name must match to count as a note
	MustExist    bool          // fail instead of creating Path
	Watch        *bool         // nil means true
	Debounce     time.Duration // quiet period before a file change becomes an event
	Buffer       int           // per-subscription buffer
	Logger       *slog.Logger
	ErrorHandler func(error) // receives watcher failures
}

// NewBackend creates a new filesystem-backed backend. Call Initialize before use.
func NewBackend(config Config) *Backend {
	if config.SystemDir == "" {
		config.SystemDir = ".notetaker"
	}
	if config.Extension == "" {
		config.Extension = ".md"
	}
	if config.Pattern == "" {
		config.Pattern = "*"
	}
	if config.Debounce <= 0 {
		config.Debounce = 50 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backend{
		Path:        config.Path,
		config:      config,
		cache:       newCache(config.Path, config.SystemDir),
		broker:      broker.New(config.Buffer),
		serializers: DefaultSerializers(),
		newID:       uuid.NewString,
	}
}

// RegisterSerializer adds or replaces the serializer for an extension.
func (b *Backend) RegisterSerializer(ext string, s Serializer) {
	b.serializers[ext] = s
}

// Initialize prepares the directory, loads the index, reconciles it with the
// files on disk and starts the watcher.
func (b *Backend) Initialize(ctx context.Context) error {
	if _, ok := b.serializers[b.config.Extension]; !ok {
		return fmt.Errorf("no serializer for extension %q", b.config.Extension)
	}
	if !doublestar.ValidatePattern(b.config.Pattern) {
		return fmt.Errorf("invalid pattern %q", b.config.Pattern)
	}

	if b.config.MustExist {
		info, err := os.Stat(b.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("notes path does not exist: %s", b.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("notes path is not a directory: %s", b.Path)
		}
	} else if err := os.MkdirAll(b.Path, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	if err := b.cache.Load(); err != nil {
		return err
	}
	if _, err := b.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile failed: %w", err)
	}

	if b.config.Watch != nil && !*b.config.Watch {
		return nil
	}

	w := newWatchWorker(b)
	if err := w.Start(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.worker = w
	b.mu.Unlock()
	return nil
}

// List returns every note file in creation order.
func (b *Backend) List(ctx context.Context) ([]core.Note, error) {
	entries, err := os.ReadDir(b.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}

	type listed struct {
		note    core.Note
		created time.Time
	}
	var out []listed
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !b.isNoteFile(entry.Name()) {
			continue
		}
		rec, err := b.readFile(filepath.Join(b.Path, entry.Name()))
		if err != nil {
			b.config.Logger.Warn("skipping unreadable note", "file", entry.Name(), "error", err)
			continue
		}
		created := rec.Created
		if created.IsZero() {
			if info, err := entry.Info(); err == nil {
				created = info.ModTime()
			}
		}
		out = append(out, listed{
			note:    core.Note{ID: idFromName(entry.Name()), Text: rec.Text},
			created: created,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].created.Equal(out[j].created) {
			return out[i].created.Before(out[j].created)
		}
		return out[i].note.ID < out[j].note.ID
	})

	notes := make([]core.Note, 0, len(out))
	for _, l := range out {
		notes = append(notes, l.note)
	}
	return notes, nil
}

// Get reads one note.
func (b *Backend) Get(ctx context.Context, id string) (core.Note, error) {
	path, ok := b.existingPath(id)
	if !ok {
		return core.Note{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	rec, err := b.readFile(path)
	if err != nil {
		return core.Note{}, err
	}
	return core.Note{ID: id, Text: rec.Text}, nil
}

// Create writes a new note file under a fresh ID.
func (b *Backend) Create(ctx context.Context, text string) error {
	id := b.newID()
	now := time.Now().UTC()
	path := filepath.Join(b.Path, id+b.config.Extension)
	if err := b.writeFile(path, record{Text: text, Created: now, Updated: now}); err != nil {
		return err
	}
	b.config.Logger.Debug("note created", "id", id, "path", path)
	_, err := b.settle(ctx, id, false)
	return err
}

// Update rewrites the text of an existing note, keeping its format and creation time.
func (b *Backend) Update(ctx context.Context, id, text string) error {
	path, ok := b.existingPath(id)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	rec, err := b.readFile(path)
	if err != nil {
		return err
	}
	rec.Text = text
	rec.Updated = time.Now().UTC()
	if err := b.writeFile(path, rec); err != nil {
		return err
	}
	b.config.Logger.Debug("note updated", "id", id, "path", path)
	// An accepted update is always echoed, even when the text is unchanged.
	_, err = b.settle(ctx, id, true)
	return err
}

// Delete removes the note file.
func (b *Backend) Delete(ctx context.Context, id string) error {
	path, ok := b.existingPath(id)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", core.ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}
	b.config.Logger.Debug("note deleted", "id", id, "path", path)
	_, err := b.settle(ctx, id, false)
	return err
}

// Subscribe opens a feed for one kind of event.
func (b *Backend) Subscribe(ctx context.Context, kind core.EventKind) (core.Subscription, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return b.broker.Subscribe(kind), nil
}

// Reconcile compares the directory with the index and publishes an event for
// every difference. It returns the events it published.
func (b *Backend) Reconcile(ctx context.Context) ([]core.Event, error) {
	entries, err := os.ReadDir(b.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !b.isNoteFile(entry.Name()) {
			continue
		}
		id := idFromName(entry.Name())
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range b.cache.IDs() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var events []core.Event
	for _, id := range ids {
		e, err := b.settle(ctx, id, false)
		if err != nil {
			b.config.Logger.Warn("reconcile skipped note", "id", id, "error", err)
			continue
		}
		if e != nil {
			events = append(events, *e)
		}
	}
	b.recordReconcile()
	return events, nil
}

// Close stops the watcher, persists the index and releases every feed.
func (b *Backend) Close() error {
	b.mu.Lock()
	w := b.worker
	b.worker = nil
	b.mu.Unlock()

	var errs []error
	if w != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, w.Stop(ctx))
		cancel()
	}
	errs = append(errs, b.cache.Save())
	b.broker.Close()
	return errors.Join(errs...)
}

// settle brings the index in line with the file of one note and publishes
// the resulting event, if any. An unchanged text publishes nothing unless
// force is set.
func (b *Backend) settle(ctx context.Context, id string, force bool) (*core.Event, error) {
	b.settleMu.Lock()
	defer b.settleMu.Unlock()

	entry, known := b.cache.Get(id)
	path, exists := b.existingPath(id)
	if !exists {
		if !known {
			return nil, nil
		}
		b.cache.Delete(id)
		e := core.Deleted(id)
		b.broker.Publish(ctx, e)
		return &e, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	rec, err := b.readFile(path)
	if err != nil {
		return nil, err
	}

	b.cache.Set(indexEntry{
		ID:           id,
		Name:         filepath.Base(path),
		Text:         rec.Text,
		LastModified: info.ModTime(),
	})
	if known && entry.Text == rec.Text && !force {
		return nil, nil
	}

	e := core.Created(core.Note{ID: id, Text: rec.Text})
	if known {
		e = core.Updated(core.Note{ID: id, Text: rec.Text})
	}
	b.broker.Publish(ctx, e)
	return &e, nil
}

// existingPath finds the file currently holding note id.
func (b *Backend) existingPath(id string) (string, bool) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", false
	}
	if entry, ok := b.cache.Get(id); ok {
		path := filepath.Join(b.Path, entry.Name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	candidates := []string{b.config.Extension}
	for ext := range b.serializers {
		if ext != b.config.Extension {
			candidates = append(candidates, ext)
		}
	}
	for _, ext := range candidates {
		path := filepath.Join(b.Path, id+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() && b.isNoteFile(id+ext) {
			return path, true
		}
	}
	return "", false
}

func (b *Backend) isNoteFile(name string) bool {
	base := filepath.Base(name)
	if isTempFile(base) || strings.HasPrefix(base, ".") {
		return false
	}
	if _, ok := b.serializers[filepath.Ext(base)]; !ok {
		return false
	}
	ok, err := doublestar.Match(b.config.Pattern, base)
	return err == nil && ok
}

func (b *Backend) readFile(path string) (record, error) {
	s, ok := b.serializers[filepath.Ext(path)]
	if !ok {
		return record{}, fmt.Errorf("no serializer for %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return record{}, err
	}
	rec, err := s.Parse(data)
	if err != nil {
		return record{}, fmt.Errorf("failed to parse note %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

func (b *Backend) writeFile(path string, rec record) error {
	s, ok := b.serializers[filepath.Ext(path)]
	if !ok {
		return fmt.Errorf("no serializer for %s", path)
	}
	data, err := s.Serialize(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize note: %w", err)
	}
	return writeFileAtomic(path, data, 0644)
}

func idFromName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var _ core.Backend = (*Backend)(nil)
