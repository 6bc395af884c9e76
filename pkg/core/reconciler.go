package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"
)

const (
	defaultBufferSize     = 100
	defaultCommandTimeout = 30 * time.Second
)

// Snapshot is a point-in-time copy of the reconciled state.
// LastError carries the most recent failure so a UI can surface it.
type Snapshot struct {
	State
	LastError string `json:"last_error,omitempty"`
}

// Reconciler owns the note list and the draft. It merges the three backend
// feeds and local actions into a single consistent state.
//
// Every mutation runs on one goroutine, so Reduce never sees concurrent input.
type Reconciler struct {
	backend        Backend
	logger         *slog.Logger
	bufferSize     int
	commandTimeout time.Duration
	onError        func(error)

	mu      sync.RWMutex
	state   State
	lastErr error
	started bool
	closed  bool

	subs      []Subscription
	released  atomic.Bool
	inbox     chan request
	updates   chan Snapshot
	cancel    context.CancelFunc
	loopDone  chan struct{}
	pumps     sync.WaitGroup
	commands  sync.WaitGroup
	closeOnce sync.Once
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger used for event and command tracing.
func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBufferSize sets the size of the action queue. Zero means default (100).
func WithBufferSize(size int) ReconcilerOption {
	return func(r *Reconciler) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

// WithCommandTimeout bounds each backend mutation.
func WithCommandTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.commandTimeout = d
		}
	}
}

// WithErrorHandler registers a callback for failures that happen off the
// caller's goroutine: rejected mutations and malformed events.
func WithErrorHandler(fn func(error)) ReconcilerOption {
	return func(r *Reconciler) {
		r.onError = fn
	}
}

type request struct {
	action Action
	done   chan struct{}
}

// failure is an internal action recording an error in the snapshot.
type failure struct{ err error }

func (failure) action() {}

// NewReconciler creates a Reconciler for the given backend. Call Start to load
// the initial snapshot and open the feeds.
func NewReconciler(backend Backend, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		backend:        backend,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		bufferSize:     defaultBufferSize,
		commandTimeout: defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.inbox = make(chan request, r.bufferSize)
	r.updates = make(chan Snapshot, 1)
	r.loopDone = make(chan struct{})
	return r
}

// Start subscribes to the Created, Updated and Deleted feeds, fetches the
// current notes and starts processing. Failures are returned as is; nothing is
// retried and subscriptions already opened are released.
//
// Cancelling ctx stops processing; Close must still be called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already started")
	}
	r.started = true
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	subs := make([]Subscription, 0, len(EventKinds))
	for _, kind := range EventKinds {
		sub, err := r.backend.Subscribe(runCtx, kind)
		if err != nil {
			r.abort(subs, cancel)
			return fmt.Errorf("failed to subscribe to %s events: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	notes, err := r.backend.List(runCtx)
	if err != nil {
		r.abort(subs, cancel)
		return fmt.Errorf("failed to list notes: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		// Close ran while the snapshot was loading and found no loop to stop.
		r.mu.Unlock()
		_ = releaseAll(subs)
		cancel()
		return ErrClosed
	}
	r.state, _ = Reduce(r.state, Loaded{Notes: notes})
	r.subs = subs
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Debug("initial snapshot loaded", "notes", len(notes))
	r.publish()

	go r.loop(runCtx)
	for _, sub := range subs {
		r.pump(runCtx, sub)
	}
	return nil
}

// abort undoes a failed Start. The reconciler stays closed afterwards.
func (r *Reconciler) abort(subs []Subscription, cancel context.CancelFunc) {
	_ = releaseAll(subs)
	cancel()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Dispatch applies an action and returns once it has been reduced. Backend
// commands it produces are sent asynchronously.
func (r *Reconciler) Dispatch(ctx context.Context, a Action) error {
	r.mu.RLock()
	started, closed := r.started, r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !started {
		return ErrNotStarted
	}

	req := request{action: a, done: make(chan struct{})}
	select {
	case r.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.loopDone:
		return ErrClosed
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.loopDone:
		return ErrClosed
	}
}

// SetText changes the draft text.
func (r *Reconciler) SetText(ctx context.Context, text string) error {
	return r.Dispatch(ctx, SetText{Text: text})
}

// Select loads a note into the draft for editing.
func (r *Reconciler) Select(ctx context.Context, n Note) error {
	return r.Dispatch(ctx, Select{Note: n})
}

// Cancel discards the draft.
func (r *Reconciler) Cancel(ctx context.Context) error {
	return r.Dispatch(ctx, Cancel{})
}

// Submit sends the draft as an update of the edited note, or as a new note.
func (r *Reconciler) Submit(ctx context.Context) error {
	return r.Dispatch(ctx, Submit{})
}

// Remove asks the backend to delete a note. The list changes when the
// Deleted event arrives.
func (r *Reconciler) Remove(ctx context.Context, id string) error {
	return r.Dispatch(ctx, Remove{ID: id})
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{State: r.state.Clone()}
	if r.lastErr != nil {
		snap.LastError = r.lastErr.Error()
	}
	return snap
}

// Updates delivers the latest snapshot after each change. Intermediate
// snapshots are dropped when the reader is slow. The channel is closed when
// the reconciler stops.
func (r *Reconciler) Updates() <-chan Snapshot {
	return r.updates
}

// Close stops accepting actions, waits for in-flight commands, releases the
// subscriptions and stops the event loop. It is safe to call more than once.
func (r *Reconciler) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		wasStarted := r.started
		r.closed = true
		subs := r.subs
		cancel := r.cancel
		r.mu.Unlock()

		if !wasStarted || cancel == nil {
			// The loop never ran.
			close(r.loopDone)
			close(r.updates)
			return
		}

		r.commands.Wait()

		r.released.Store(true)
		err = releaseAll(subs)
		r.pumps.Wait()

		cancel()
		<-r.loopDone
		r.logger.Debug("reconciler closed")
	})
	return err
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.updates)
	defer close(r.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-r.inbox:
			r.apply(ctx, req.action)
			if req.done != nil {
				close(req.done)
			}
		}
	}
}

func (r *Reconciler) apply(ctx context.Context, a Action) {
	switch a := a.(type) {
	case failure:
		r.fail(a.err)
		return
	case Received:
		if r.released.Load() {
			return
		}
		r.logger.Debug("event received", "kind", a.Event.Kind, "id", a.Event.Note.ID)
	}

	r.mu.Lock()
	next, cmds := Reduce(r.state, a)
	r.state = next
	r.mu.Unlock()
	r.publish()

	for _, cmd := range cmds {
		r.execute(ctx, cmd)
	}
}

// execute runs a command against the backend without blocking the loop.
func (r *Reconciler) execute(ctx context.Context, cmd Command) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.fail(fmt.Errorf("%s dropped: %w", cmd.Kind, ErrClosed))
		return
	}
	r.commands.Add(1)
	r.mu.Unlock()

	r.logger.Debug("sending command", "kind", cmd.Kind, "id", cmd.ID)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer r.commands.Done()

		cmdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.commandTimeout)
		defer cancel()

		var err error
		switch cmd.Kind {
		case CommandCreate:
			err = r.backend.Create(cmdCtx, cmd.Text)
		case CommandUpdate:
			err = r.backend.Update(cmdCtx, cmd.ID, cmd.Text)
		case CommandDelete:
			err = r.backend.Delete(cmdCtx, cmd.ID)
		}
		if err != nil {
			r.logger.Error("command failed", "kind", cmd.Kind, "id", cmd.ID, "error", err)
			r.record(ctx, fmt.Errorf("%s %s: %w", cmd.Kind, cmd.ID, err))
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		r.logger.Error("command panic", "kind", cmd.Kind, "error", err)
	}))
}

// pump forwards one feed into the loop, dropping events that fail validation.
func (r *Reconciler) pump(ctx context.Context, sub Subscription) {
	r.pumps.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer r.pumps.Done()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-sub.Events():
				if !ok {
					return nil
				}
				if err := e.Validate(); err != nil {
					r.logger.Warn("dropping event", "error", err)
					r.record(ctx, err)
					continue
				}
				select {
				case r.inbox <- request{action: Received{Event: e}}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		r.logger.Error("subscription pump panic", "error", err)
	}))
}

// fail stores err as the visible error. It runs on the loop goroutine.
func (r *Reconciler) fail(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	if r.onError != nil {
		r.onError(err)
	}
	r.publish()
}

// record queues an error for the loop; it gives up once the loop is gone.
func (r *Reconciler) record(ctx context.Context, err error) {
	select {
	case r.inbox <- request{action: failure{err: err}}:
	case <-ctx.Done():
	case <-r.loopDone:
	}
}

// publish offers the current snapshot to Updates, replacing an unread one.
func (r *Reconciler) publish() {
	snap := r.Snapshot()
	select {
	case <-r.updates:
	default:
	}
	select {
	case r.updates <- snap:
	default:
	}
}

func releaseAll(subs []Subscription) error {
	var first error
	for _, sub := range subs {
		if err := sub.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
