package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aretw0/notetaker/pkg/core"
)

const subscriptionID = "1"

// Subscribe opens a websocket, completes the connection handshake and starts
// the feed for kind.
func (c *Client) Subscribe(ctx context.Context, kind core.EventKind) (core.Subscription, error) {
	op, field, query, err := SubscriptionFor(kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, core.ErrClosed
	}
	c.mu.Unlock()

	dialer := *c.config.Dialer
	dialer.Subprotocols = []string{Subprotocol}
	conn, res, err := dialer.DialContext(ctx, c.wsEndpoint, c.authHeaders())
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("subscribe %s: handshake status %d: %w", op, res.StatusCode, err)
		}
		return nil, fmt.Errorf("subscribe %s: %w", op, err)
	}

	s := &subscription{
		client: c,
		conn:   conn,
		kind:   kind,
		field:  field,
		events: make(chan core.Event, c.config.Buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	if err := s.handshake(op, query); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", op, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, core.ErrClosed
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	go s.read()
	return s, nil
}

// subscription is one graphql-transport-ws operation on a dedicated socket.
type subscription struct {
	client *Client
	conn   *websocket.Conn
	kind   core.EventKind
	field  string

	writeMu sync.Mutex
	pending []core.Event // received while subscribing
	events  chan core.Event
	done    chan struct{} // closed by Release
	exited  chan struct{} // closed when read returns
	once    sync.Once
}

func (s *subscription) Events() <-chan core.Event {
	return s.events
}

// Release completes the operation and closes the socket. After it returns
// the feed delivers nothing more.
func (s *subscription) Release() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.write(Message{ID: subscriptionID, Type: MsgComplete})
		err = s.conn.Close()
		<-s.exited

		s.client.mu.Lock()
		delete(s.client.subs, s)
		s.client.mu.Unlock()
	})
	return err
}

// closeEvents ends the feed. After a Release, buffered events are discarded
// so nothing is read once Release returns.
func (s *subscription) closeEvents() {
	select {
	case <-s.done:
		for {
			select {
			case <-s.events:
				continue
			default:
			}
			break
		}
	default:
	}
	close(s.events)
}

func (s *subscription) handshake(op, query string) error {
	init, err := json.Marshal(map[string]string{
		"x-api-key":     s.client.config.APIKey,
		"Authorization": s.client.config.Token,
	})
	if err != nil {
		return err
	}
	if err := s.write(Message{Type: MsgConnectionInit, Payload: init}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(s.client.config.AckTimeout))
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("await connection_ack: %w", err)
		}
		if msg.Type == MsgConnectionAck {
			break
		}
		if msg.Type == MsgPing {
			if err := s.write(Message{Type: MsgPong}); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
	}
	payload, err := json.Marshal(Request{Query: query, OperationName: op})
	if err != nil {
		return err
	}
	if err := s.write(Message{ID: subscriptionID, Type: MsgSubscribe, Payload: payload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	// The protocol has no subscribe acknowledgement. Messages are handled in
	// order, so a pong means the operation is registered and no mutation made
	// after Subscribe returns can be missed.
	if err := s.write(Message{Type: MsgPing}); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.client.config.AckTimeout))
	defer s.conn.SetReadDeadline(time.Time{})
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("await subscription: %w", err)
		}
		switch msg.Type {
		case MsgPong:
			return nil
		case MsgPing:
			if err := s.write(Message{Type: MsgPong}); err != nil {
				return err
			}
		case MsgNext:
			if e, err := s.decode(msg.Payload); err == nil {
				s.pending = append(s.pending, e)
			}
		case MsgError:
			return fmt.Errorf("subscription rejected: %s", msg.Payload)
		default:
			return fmt.Errorf("unexpected %q while subscribing", msg.Type)
		}
	}
}

func (s *subscription) read() {
	defer close(s.exited)
	defer s.closeEvents()
	logger := s.client.config.Logger

	for _, e := range s.pending {
		select {
		case s.events <- e:
		case <-s.done:
			return
		}
	}
	s.pending = nil

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				logger.Warn("subscription closed", "kind", s.kind, "error", err)
			}
			return
		}

		switch msg.Type {
		case MsgNext:
			e, err := s.decode(msg.Payload)
			if err != nil {
				logger.Warn("dropping invalid subscription payload", "kind", s.kind, "error", err)
				continue
			}
			select {
			case s.events <- e:
			case <-s.done:
				return
			}
		case MsgPing:
			if err := s.write(Message{Type: MsgPong}); err != nil {
				logger.Warn("failed to answer ping", "error", err)
			}
		case MsgPong:
		case MsgError:
			logger.Error("subscription rejected", "kind", s.kind, "payload", string(msg.Payload))
			return
		case MsgComplete:
			logger.Debug("subscription completed by server", "kind", s.kind)
			return
		default:
			logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (s *subscription) decode(raw json.RawMessage) (core.Event, error) {
	var resp struct {
		Data   map[string]NotePayload `json:"data"`
		Errors []GraphQLError         `json:"errors"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return core.Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(resp.Errors) > 0 {
		return core.Event{}, &Error{Operation: s.field, Errors: resp.Errors}
	}
	p, ok := resp.Data[s.field]
	if !ok {
		return core.Event{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, s.field)
	}
	n, err := p.Decode()
	if err != nil {
		return core.Event{}, err
	}
	if s.kind == core.EventDeleted {
		return core.Deleted(n.ID), nil
	}
	return core.Event{Kind: s.kind, Note: n}, nil
}

func (s *subscription) write(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(msg)
}
