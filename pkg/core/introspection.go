package core

import (
	"github.com/aretw0/introspection"
)

// ReconcilerState exposes internal state for observability.
type ReconcilerState struct {
	Notes         int       `json:"notes"`
	DraftMode     DraftMode `json:"draft_mode"`
	EditingID     string    `json:"editing_id,omitempty"`
	Subscriptions int       `json:"subscriptions"`
	BufferSize    int       `json:"buffer_size"`
	Pending       int       `json:"pending_actions"`
	Started       bool      `json:"started"`
	Closed        bool      `json:"closed"`
	LastError     string    `json:"last_error,omitempty"`
	BackendType   string    `json:"backend_type"`
}

// State implements introspection.Introspectable.
func (r *Reconciler) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backendType := "unknown"
	if r.backend != nil {
		backendType = "backend"
		if comp, ok := r.backend.(introspection.Component); ok {
			backendType = comp.ComponentType()
		}
	}

	st := ReconcilerState{
		Notes:         len(r.state.Notes),
		DraftMode:     r.state.Draft.Mode(),
		EditingID:     r.state.Draft.EditingID,
		Subscriptions: len(r.subs),
		BufferSize:    r.bufferSize,
		Pending:       len(r.inbox),
		Started:       r.started,
		Closed:        r.closed,
		BackendType:   backendType,
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

// ComponentType implements introspection.Component.
func (r *Reconciler) ComponentType() string {
	return "reconciler"
}

var _ introspection.Introspectable = (*Reconciler)(nil)
var _ introspection.Component = (*Reconciler)(nil)
