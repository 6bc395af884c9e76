package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// indexEntry is what the backend last observed for a note file.
type indexEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"` // file name relative to the notes directory
	Text         string    `json:"text"`
	LastModified time.Time `json:"lastModified"`
}

// index represents the persistent cache state.
type index struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // Key is the note ID
	dirty   bool
	mu      sync.RWMutex
}

// cache manages the loading, updating, and saving of the index.
// The index decides whether a file change is a creation, an update or a
// deletion, and lets a rescan report changes made while nobody was watching.
type cache struct {
	Path  string // Path to {systemDir}/index.json
	index *index
}

// newCache initializes a cache at the given path.
func newCache(dir, systemDir string) *cache {
	return &cache{
		Path: filepath.Join(dir, systemDir, "index.json"),
		index: &index{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the cache from disk. If not found or invalid, returns empty index (no error).
func (c *cache) Load() error {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if err := json.Unmarshal(data, c.index); err != nil || c.index.Entries == nil {
		// A corrupted index only costs a full rescan.
		c.index.Entries = make(map[string]*indexEntry)
		return nil
	}

	c.index.dirty = false
	return nil
}

// Save persists the cache to disk if it's dirty.
func (c *cache) Save() error {
	c.index.mu.RLock()
	if !c.index.dirty {
		c.index.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.index, "", "  ")
	c.index.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.index.mu.Lock()
	c.index.dirty = false
	c.index.mu.Unlock()
	return nil
}

// Get returns a copy of the entry for id.
func (c *cache) Get(id string) (indexEntry, bool) {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	entry, ok := c.index.Entries[id]
	if !ok {
		return indexEntry{}, false
	}
	return *entry, true
}

// Set updates an entry in the cache.
func (c *cache) Set(entry indexEntry) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	c.index.Entries[entry.ID] = &entry
	c.index.dirty = true
}

// Delete removes a single entry from the cache.
func (c *cache) Delete(id string) {
	c.index.mu.Lock()
	defer c.index.mu.Unlock()
	if _, ok := c.index.Entries[id]; ok {
		delete(c.index.Entries, id)
		c.index.dirty = true
	}
}

// IDs returns every indexed note ID.
func (c *cache) IDs() []string {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	ids := make([]string, 0, len(c.index.Entries))
	for id := range c.index.Entries {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of entries in the cache.
func (c *cache) Len() int {
	c.index.mu.RLock()
	defer c.index.mu.RUnlock()
	return len(c.index.Entries)
}
