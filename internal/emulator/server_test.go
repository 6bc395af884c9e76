package emulator_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/internal/emulator"
	"github.com/aretw0/notetaker/pkg/adapters/graphql"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
)

func post(t *testing.T, url, key string, req graphql.Request) (int, graphql.Response) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, url+"/graphql", bytes.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		httpReq.Header.Set("x-api-key", key)
	}
	res, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer res.Body.Close()

	var resp graphql.Response
	if res.StatusCode != http.StatusUnauthorized {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	}
	return res.StatusCode, resp
}

func newServer(t *testing.T, opts ...emulator.Option) (*httptest.Server, *memory.Backend) {
	t.Helper()
	n := 0
	b := memory.New(memory.WithIDGenerator(func() string {
		n++
		return "id" + string(rune('0'+n))
	}))
	srv := httptest.NewServer(emulator.New(b, opts...).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = b.Close()
	})
	return srv, b
}

func TestServer_Mutations(t *testing.T) {
	srv, _ := newServer(t)

	status, resp := post(t, srv.URL, "", graphql.Request{
		Query:         graphql.CreateNoteMutation,
		OperationName: graphql.OpCreateNote,
		Variables:     map[string]any{"input": map[string]any{"note": "hello"}},
	})
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"createNote":{"id":"id1","note":"hello"}}`, string(resp.Data))

	_, resp = post(t, srv.URL, "", graphql.Request{
		OperationName: graphql.OpUpdateNote,
		Variables:     map[string]any{"input": map[string]any{"id": "id1", "note": "changed"}},
	})
	require.Empty(t, resp.Errors)

	_, resp = post(t, srv.URL, "", graphql.Request{OperationName: graphql.OpListNotes})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"listNotes":{"items":[{"id":"id1","note":"changed"}]}}`, string(resp.Data))

	_, resp = post(t, srv.URL, "", graphql.Request{
		OperationName: graphql.OpDeleteNote,
		Variables:     map[string]any{"input": map[string]any{"id": "id1"}},
	})
	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"deleteNote":{"id":"id1","note":null}}`, string(resp.Data))
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name     string
		req      graphql.Request
		wantType string
	}{
		{"missing operation", graphql.Request{Query: "{ listNotes { items { id } } }"}, graphql.ErrorTypeValidation},
		{"unknown operation", graphql.Request{OperationName: "DropTables"}, graphql.ErrorTypeValidation},
		{"missing input", graphql.Request{OperationName: graphql.OpCreateNote}, graphql.ErrorTypeValidation},
		{"update without id", graphql.Request{
			OperationName: graphql.OpUpdateNote,
			Variables:     map[string]any{"input": map[string]any{"note": "x"}},
		}, graphql.ErrorTypeValidation},
		{"update unknown note", graphql.Request{
			OperationName: graphql.OpUpdateNote,
			Variables:     map[string]any{"input": map[string]any{"id": "nope", "note": "x"}},
		}, graphql.ErrorTypeNotFound},
		{"delete unknown note", graphql.Request{
			OperationName: graphql.OpDeleteNote,
			Variables:     map[string]any{"input": map[string]any{"id": "nope"}},
		}, graphql.ErrorTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := post(t, srv.URL, "", tt.req)
			assert.Equal(t, http.StatusOK, status)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.wantType, resp.Errors[0].ErrorType)
		})
	}
}

func TestServer_APIKey(t *testing.T) {
	srv, _ := newServer(t, emulator.WithAPIKey("secret"))

	status, _ := post(t, srv.URL, "", graphql.Request{OperationName: graphql.OpListNotes})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, resp := post(t, srv.URL, "secret", graphql.Request{OperationName: graphql.OpListNotes})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Errors)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{Subprotocols: []string{graphql.Subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/graphql", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) graphql.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg graphql.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_SubscriptionProtocol(t *testing.T) {
	srv, b := newServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgConnectionInit}))
	assert.Equal(t, graphql.MsgConnectionAck, readMsg(t, conn).Type)

	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgPing}))
	assert.Equal(t, graphql.MsgPong, readMsg(t, conn).Type)

	payload, err := json.Marshal(graphql.Request{Query: graphql.OnCreateNoteSubscription, OperationName: graphql.OpOnCreateNote})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(graphql.Message{ID: "a", Type: graphql.MsgSubscribe, Payload: payload}))

	// Messages are handled in order, so the pong means the subscription is live.
	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgPing}))
	assert.Equal(t, graphql.MsgPong, readMsg(t, conn).Type)

	require.NoError(t, b.Create(context.Background(), "pushed"))
	msg := readMsg(t, conn)
	assert.Equal(t, graphql.MsgNext, msg.Type)
	assert.Equal(t, "a", msg.ID)
	assert.Contains(t, string(msg.Payload), `"onCreateNote"`)
	assert.Contains(t, string(msg.Payload), `"pushed"`)
}

func TestServer_SubscriptionUnknownOperation(t *testing.T) {
	srv, _ := newServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgConnectionInit}))
	readMsg(t, conn)

	payload, err := json.Marshal(graphql.Request{OperationName: "OnEverything"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(graphql.Message{ID: "x", Type: graphql.MsgSubscribe, Payload: payload}))

	msg := readMsg(t, conn)
	assert.Equal(t, graphql.MsgError, msg.Type)
	assert.Equal(t, "x", msg.ID)
}

func TestServer_SubscriptionForbidden(t *testing.T) {
	srv, _ := newServer(t, emulator.WithAPIKey("secret"))
	conn := dial(t, srv)

	init, err := json.Marshal(map[string]string{"x-api-key": "wrong"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(graphql.Message{Type: graphql.MsgConnectionInit, Payload: init}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, 4403, closeErr.Code)
}

func TestServer_ServeStopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- emulator.New(memory.New()).Serve(ctx, ln)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
}
