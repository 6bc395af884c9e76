package fs

import (
	"sort"
	"time"

	"github.com/aretw0/introspection"
)

// BackendState exposes internal state for observability.
type BackendState struct {
	Path          string     `json:"path"`
	SystemDir     string     `json:"system_dir"`
	Extension     string     `json:"extension"`
	Pattern       string     `json:"pattern"`
	IndexSize     int        `json:"index_size"`
	Serializers   []string   `json:"serializers"`
	Subscriptions int        `json:"subscriptions"`
	WatcherActive bool       `json:"watcher_active"`
	LastReconcile *time.Time `json:"last_reconcile,omitempty"`
}

// State implements introspection.Introspectable.
func (b *Backend) State() any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	serializers := make([]string, 0, len(b.serializers))
	for ext := range b.serializers {
		serializers = append(serializers, ext)
	}
	sort.Strings(serializers)

	return BackendState{
		Path:          b.Path,
		SystemDir:     b.config.SystemDir,
		Extension:     b.config.Extension,
		Pattern:       b.config.Pattern,
		IndexSize:     b.cache.Len(),
		Serializers:   serializers,
		Subscriptions: b.broker.Subscribers(),
		WatcherActive: b.watcherActive,
		LastReconcile: b.lastReconcile,
	}
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Backend)(nil)
var _ introspection.Component = (*Backend)(nil)

func (b *Backend) setWatcherActive(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watcherActive = active
}

func (b *Backend) recordReconcile() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.lastReconcile = &now
}
