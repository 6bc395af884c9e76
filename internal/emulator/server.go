// Package emulator serves the notes GraphQL API on top of any core.Backend.
//
// It speaks the same wire format as the managed service the graphql adapter
// targets, which makes it a local stand-in for development and the peer the
// adapter is tested against.
package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/aretw0/notetaker/pkg/adapters/graphql"
	"github.com/aretw0/notetaker/pkg/core"
)

// Server exposes a backend as a GraphQL endpoint at /graphql.
type Server struct {
	backend  core.Backend
	apiKey   string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   *mux.Router

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires every request to carry this x-api-key.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds a server around backend.
func New(backend core.Backend, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{graphql.Subprotocol},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodPost).Path("/graphql").HandlerFunc(s.query)
	r.Methods(http.MethodGet).Path("/graphql").HandlerFunc(s.subscribe)
	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down and drops every
// open subscription socket.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info("emulator listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.closeConns()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return err
}

func (s *Server) authorized(r *http.Request) bool {
	return s.apiKey == "" || r.Header.Get("x-api-key") == s.apiKey
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req graphql.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, nil, *validationError("malformed request: "+err.Error()))
		return
	}

	data, gqlErr := s.execute(r.Context(), req)
	if gqlErr != nil {
		s.writeResponse(w, http.StatusOK, nil, *gqlErr)
		return
	}
	s.writeResponse(w, http.StatusOK, data, graphql.GraphQLError{})
}

func (s *Server) execute(ctx context.Context, req graphql.Request) (map[string]any, *graphql.GraphQLError) {
	switch req.OperationName {
	case graphql.OpListNotes:
		notes, err := s.backend.List(ctx)
		if err != nil {
			return nil, backendError("listNotes", err)
		}
		items := make([]graphql.NotePayload, 0, len(notes))
		for _, n := range notes {
			items = append(items, graphql.Payload(n))
		}
		return map[string]any{"listNotes": map[string]any{"items": items}}, nil

	case graphql.OpCreateNote:
		in, gqlErr := decodeInput(req.Variables)
		if gqlErr != nil {
			return nil, gqlErr
		}
		if in.Note == nil {
			return nil, validationError("createNote: input.note is required")
		}
		if a, ok := s.backend.(adder); ok {
			n, err := a.Add(ctx, *in.Note)
			if err != nil {
				return nil, backendError("createNote", err)
			}
			return map[string]any{"createNote": graphql.Payload(n)}, nil
		}
		if err := s.backend.Create(ctx, *in.Note); err != nil {
			return nil, backendError("createNote", err)
		}
		return map[string]any{"createNote": graphql.NotePayload{Note: in.Note}}, nil

	case graphql.OpUpdateNote:
		in, gqlErr := decodeInput(req.Variables)
		if gqlErr != nil {
			return nil, gqlErr
		}
		n, err := graphql.NotePayload{ID: in.ID, Note: in.Note}.Decode()
		if err != nil || in.Note == nil {
			return nil, validationError("updateNote: input.id and input.note are required")
		}
		if err := s.backend.Update(ctx, n.ID, n.Text); err != nil {
			return nil, backendError("updateNote", err)
		}
		return map[string]any{"updateNote": graphql.Payload(n)}, nil

	case graphql.OpDeleteNote:
		in, gqlErr := decodeInput(req.Variables)
		if gqlErr != nil {
			return nil, gqlErr
		}
		n, err := graphql.NotePayload{ID: in.ID}.Decode()
		if err != nil {
			return nil, validationError("deleteNote: input.id is required")
		}
		if err := s.backend.Delete(ctx, n.ID); err != nil {
			return nil, backendError("deleteNote", err)
		}
		return map[string]any{"deleteNote": graphql.NotePayload{ID: in.ID}}, nil

	case "":
		return nil, validationError("operationName is required")
	}
	return nil, validationError(fmt.Sprintf("unknown operation %q", req.OperationName))
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data map[string]any, gqlErr graphql.GraphQLError) {
	var resp graphql.Response
	if gqlErr.Message != "" {
		resp.Errors = []graphql.GraphQLError{gqlErr}
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.logger.Error("failed to encode response", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp.Data = raw
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// adder is implemented by backends that can report the note they created.
type adder interface {
	Add(ctx context.Context, text string) (core.Note, error)
}

type noteInput struct {
	ID   *string `json:"id"`
	Note *string `json:"note"`
}

func decodeInput(vars map[string]any) (noteInput, *graphql.GraphQLError) {
	var in noteInput
	raw, ok := vars["input"]
	if !ok {
		return in, validationError("variable input is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return in, validationError(err.Error())
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, validationError("invalid input: " + err.Error())
	}
	return in, nil
}

func validationError(msg string) *graphql.GraphQLError {
	return &graphql.GraphQLError{Message: msg, ErrorType: graphql.ErrorTypeValidation}
}

func backendError(field string, err error) *graphql.GraphQLError {
	kind := graphql.ErrorTypeInternal
	if errors.Is(err, core.ErrNotFound) {
		kind = graphql.ErrorTypeNotFound
	}
	return &graphql.GraphQLError{Message: err.Error(), Path: []string{field}, ErrorType: kind}
}
