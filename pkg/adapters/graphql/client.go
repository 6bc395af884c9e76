// Package graphql is a core.Backend talking to a managed GraphQL notes API.
//
// Queries and mutations are JSON POSTs. Each subscription runs on its own
// websocket using the graphql-transport-ws protocol.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/notetaker/pkg/core"
)

// Config holds the connection settings for the API.
type Config struct {
	Endpoint   string // e.g. https://example.com/graphql
	APIKey     string // sent as x-api-key
	Token      string // sent as Authorization
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
	Buffer     int           // per-subscription buffer
	AckTimeout time.Duration // how long to wait for connection_ack
}

// Client implements core.Backend over HTTP and websockets.
type Client struct {
	endpoint   string
	wsEndpoint string
	config     Config

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewClient validates cfg and returns a client. No connection is made until
// the first call.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	ws := *u
	switch u.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid endpoint scheme %q", u.Scheme)
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}

	return &Client{
		endpoint:   u.String(),
		wsEndpoint: ws.String(),
		config:     cfg,
		subs:       make(map[*subscription]struct{}),
	}, nil
}

// List runs the listNotes query.
func (c *Client) List(ctx context.Context) ([]core.Note, error) {
	var data struct {
		ListNotes struct {
			Items []NotePayload `json:"items"`
		} `json:"listNotes"`
	}
	if err := c.do(ctx, OpListNotes, ListNotesQuery, nil, &data); err != nil {
		return nil, err
	}

	notes := make([]core.Note, 0, len(data.ListNotes.Items))
	for _, item := range data.ListNotes.Items {
		n, err := item.Decode()
		if err != nil {
			return nil, fmt.Errorf("listNotes: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// Create runs the createNote mutation.
func (c *Client) Create(ctx context.Context, text string) error {
	return c.do(ctx, OpCreateNote, CreateNoteMutation, map[string]any{
		"input": map[string]any{"note": text},
	}, nil)
}

// Update runs the updateNote mutation.
func (c *Client) Update(ctx context.Context, id, text string) error {
	return c.do(ctx, OpUpdateNote, UpdateNoteMutation, map[string]any{
		"input": map[string]any{"id": id, "note": text},
	}, nil)
}

// Delete runs the deleteNote mutation.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, OpDeleteNote, DeleteNoteMutation, map[string]any{
		"input": map[string]any{"id": id},
	}, nil)
}

// Close releases every open subscription.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	var errs []error
	for _, s := range subs {
		errs = append(errs, s.Release())
	}
	return errors.Join(errs...)
}

// ComponentType implements introspection.Component.
func (c *Client) ComponentType() string {
	return "graphql"
}

// State implements introspection.Introspectable.
func (c *Client) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{
		"endpoint":      c.endpoint,
		"subscriptions": len(c.subs),
		"closed":        c.closed,
	}
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(Request{Query: query, OperationName: op, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.authHeaders() {
		req.Header[k] = v
	}

	start := time.Now()
	res, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	c.config.Logger.Debug("graphql request", "operation", op, "status", res.StatusCode, "duration", time.Since(start))

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return &Error{Operation: op, Errors: []GraphQLError{{
			Message:   http.StatusText(res.StatusCode),
			ErrorType: ErrorTypeUnauthorized,
		}}}
	}

	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: unexpected status %d", op, res.StatusCode)
		}
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	if len(resp.Errors) > 0 {
		return &Error{Operation: op, Errors: resp.Errors}
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", op, res.StatusCode)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", op, err)
	}
	return nil
}

func (c *Client) authHeaders() http.Header {
	h := http.Header{}
	if c.config.APIKey != "" {
		h.Set("x-api-key", c.config.APIKey)
	}
	if c.config.Token != "" {
		h.Set("Authorization", c.config.Token)
	}
	return h
}

var _ core.Backend = (*Client)(nil)
