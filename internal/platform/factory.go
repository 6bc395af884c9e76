package platform

import (
	"context"
	"errors"

	"github.com/aretw0/notetaker/pkg/core"
)

// Session is a started reconciler together with the backend it owns.
type Session struct {
	*core.Reconciler
	Backend core.Backend
	owned   bool
}

// New opens the backend, starts a reconciler on it and returns both.
//
//	s, err := notetaker.New(ctx, "./notes", notetaker.WithAdapter("fs"))
func New(ctx context.Context, uri string, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	backend, err := open(ctx, uri, o)
	if err != nil {
		return nil, err
	}

	ropts := o.reconciler
	if o.logger != nil {
		ropts = append([]core.ReconcilerOption{core.WithLogger(o.logger)}, ropts...)
	}
	r := core.NewReconciler(backend, ropts...)
	owned := o.backend == nil
	if err := r.Start(ctx); err != nil {
		_ = r.Close()
		if owned {
			_ = backend.Close()
		}
		return nil, err
	}

	return &Session{Reconciler: r, Backend: backend, owned: owned}, nil
}

// Close stops the reconciler and, unless it was injected with WithBackend,
// closes the backend.
func (s *Session) Close() error {
	err := s.Reconciler.Close()
	if s.owned {
		err = errors.Join(err, s.Backend.Close())
	}
	return err
}
