package emulator

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/notetaker/pkg/adapters/graphql"
	"github.com/aretw0/notetaker/pkg/core"
)

// session is one graphql-transport-ws connection.
type session struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex
	mu      sync.Mutex
	ops     map[string]core.Subscription
	wg      sync.WaitGroup
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}
	s.track(conn)
	defer s.untrack(conn)
	defer conn.Close()

	if conn.Subprotocol() != graphql.Subprotocol {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4406, "subprotocol not acceptable"), time.Now().Add(time.Second))
		return
	}

	sess := &session{server: s, conn: conn, ops: make(map[string]core.Subscription)}
	defer sess.releaseAll()

	if !sess.init(r) {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sess.serve(ctx)
}

func (sess *session) init(r *http.Request) bool {
	_ = sess.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var msg graphql.Message
	if err := sess.conn.ReadJSON(&msg); err != nil || msg.Type != graphql.MsgConnectionInit {
		sess.close(4408, "connection initialisation timeout")
		return false
	}
	_ = sess.conn.SetReadDeadline(time.Time{})

	if !sess.server.authorized(r) {
		var payload map[string]string
		_ = json.Unmarshal(msg.Payload, &payload)
		if payload["x-api-key"] != sess.server.apiKey {
			sess.close(4403, "forbidden")
			return false
		}
	}
	return sess.write(graphql.Message{Type: graphql.MsgConnectionAck}) == nil
}

func (sess *session) serve(ctx context.Context) {
	logger := sess.server.logger
	for {
		var msg graphql.Message
		if err := sess.conn.ReadJSON(&msg); err != nil {
			logger.Debug("subscription socket closed", "error", err)
			return
		}

		switch msg.Type {
		case graphql.MsgSubscribe:
			sess.start(ctx, msg)
		case graphql.MsgComplete:
			sess.stop(msg.ID)
		case graphql.MsgPing:
			_ = sess.write(graphql.Message{Type: graphql.MsgPong})
		case graphql.MsgPong:
		default:
			sess.close(4400, "unexpected message "+msg.Type)
			return
		}
	}
}

func (sess *session) start(ctx context.Context, msg graphql.Message) {
	var req graphql.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		sess.fail(msg.ID, "invalid subscribe payload")
		return
	}
	kind, ok := graphql.KindForSubscription(req.OperationName)
	if !ok {
		sess.fail(msg.ID, "unknown subscription "+req.OperationName)
		return
	}
	_, field, _, _ := graphql.SubscriptionFor(kind)

	sess.mu.Lock()
	if _, exists := sess.ops[msg.ID]; exists {
		sess.mu.Unlock()
		sess.close(4409, "subscriber for "+msg.ID+" already exists")
		return
	}
	sub, err := sess.server.backend.Subscribe(ctx, kind)
	if err != nil {
		sess.mu.Unlock()
		sess.fail(msg.ID, err.Error())
		return
	}
	sess.ops[msg.ID] = sub
	sess.mu.Unlock()

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		for e := range sub.Events() {
			payload, err := json.Marshal(map[string]any{
				"data": map[string]graphql.NotePayload{field: graphql.Payload(e.Note)},
			})
			if err != nil {
				continue
			}
			if err := sess.write(graphql.Message{ID: msg.ID, Type: graphql.MsgNext, Payload: payload}); err != nil {
				return
			}
		}
	}()
}

func (sess *session) stop(id string) {
	sess.mu.Lock()
	sub, ok := sess.ops[id]
	delete(sess.ops, id)
	sess.mu.Unlock()
	if ok {
		_ = sub.Release()
	}
}

func (sess *session) releaseAll() {
	sess.mu.Lock()
	ops := sess.ops
	sess.ops = make(map[string]core.Subscription)
	sess.mu.Unlock()
	for _, sub := range ops {
		_ = sub.Release()
	}
	sess.wg.Wait()
}

func (sess *session) fail(id, message string) {
	payload, _ := json.Marshal([]graphql.GraphQLError{{Message: message, ErrorType: graphql.ErrorTypeValidation}})
	_ = sess.write(graphql.Message{ID: id, Type: graphql.MsgError, Payload: payload})
}

func (sess *session) close(code int, reason string) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = sess.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (sess *session) write(msg graphql.Message) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = sess.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return sess.conn.WriteJSON(msg)
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
