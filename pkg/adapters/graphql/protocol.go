package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/notetaker/pkg/core"
)

// Operation names understood by the notes API.
const (
	OpListNotes    = "ListNotes"
	OpCreateNote   = "CreateNote"
	OpUpdateNote   = "UpdateNote"
	OpDeleteNote   = "DeleteNote"
	OpOnCreateNote = "OnCreateNote"
	OpOnUpdateNote = "OnUpdateNote"
	OpOnDeleteNote = "OnDeleteNote"
)

// Documents sent with each operation.
const (
	ListNotesQuery = `query ListNotes {
  listNotes { items { id note } }
}`
	CreateNoteMutation = `mutation CreateNote($input: CreateNoteInput!) {
  createNote(input: $input) { id note }
}`
	UpdateNoteMutation = `mutation UpdateNote($input: UpdateNoteInput!) {
  updateNote(input: $input) { id note }
}`
	DeleteNoteMutation = `mutation DeleteNote($input: DeleteNoteInput!) {
  deleteNote(input: $input) { id note }
}`
	OnCreateNoteSubscription = `subscription OnCreateNote { onCreateNote { id note } }`
	OnUpdateNoteSubscription = `subscription OnUpdateNote { onUpdateNote { id note } }`
	OnDeleteNoteSubscription = `subscription OnDeleteNote { onDeleteNote { id note } }`
)

// Subprotocol is the websocket sub-protocol spoken on the subscription endpoint.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Error types reported in GraphQLError.ErrorType.
const (
	ErrorTypeNotFound     = "NotFound"
	ErrorTypeValidation   = "ValidationError"
	ErrorTypeUnauthorized = "Unauthorized"
	ErrorTypeInternal     = "InternalError"
)

// Request is the body of a query or mutation POST, and the payload of a
// subscribe message.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Response is the body returned for a Request.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is one entry of a response's errors array.
type GraphQLError struct {
	Message   string   `json:"message"`
	Path      []string `json:"path,omitempty"`
	ErrorType string   `json:"errorType,omitempty"`
}

// Message is one frame on the subscription websocket.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NotePayload is a note as it travels on the wire. Fields are pointers so a
// missing field can be told apart from an empty one.
type NotePayload struct {
	ID   *string `json:"id"`
	Note *string `json:"note"`
}

// ErrInvalidPayload reports a note payload that fails boundary validation.
var ErrInvalidPayload = errors.New("invalid note payload")

// Decode validates p and converts it to a core.Note.
func (p NotePayload) Decode() (core.Note, error) {
	if p.ID == nil || strings.TrimSpace(*p.ID) == "" {
		return core.Note{}, fmt.Errorf("%w: missing id", ErrInvalidPayload)
	}
	n := core.Note{ID: *p.ID}
	if p.Note != nil {
		n.Text = *p.Note
	}
	return n, nil
}

// Payload converts a core.Note to its wire form.
func Payload(n core.Note) NotePayload {
	id, text := n.ID, n.Text
	return NotePayload{ID: &id, Note: &text}
}

// SubscriptionFor returns the operation name, field and document of the feed
// carrying kind.
func SubscriptionFor(kind core.EventKind) (op, field, query string, err error) {
	switch kind {
	case core.EventCreated:
		return OpOnCreateNote, "onCreateNote", OnCreateNoteSubscription, nil
	case core.EventUpdated:
		return OpOnUpdateNote, "onUpdateNote", OnUpdateNoteSubscription, nil
	case core.EventDeleted:
		return OpOnDeleteNote, "onDeleteNote", OnDeleteNoteSubscription, nil
	}
	return "", "", "", fmt.Errorf("unknown event kind %q", kind)
}

// KindForSubscription is the inverse of SubscriptionFor.
func KindForSubscription(op string) (core.EventKind, bool) {
	switch op {
	case OpOnCreateNote:
		return core.EventCreated, true
	case OpOnUpdateNote:
		return core.EventUpdated, true
	case OpOnDeleteNote:
		return core.EventDeleted, true
	}
	return "", false
}

// Error is returned when the service answers with a non-empty errors array.
type Error struct {
	Operation string
	Errors    []GraphQLError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return fmt.Sprintf("graphql %s: %s", e.Operation, strings.Join(msgs, "; "))
}

// Is maps service error types onto core sentinels.
func (e *Error) Is(target error) bool {
	if target != core.ErrNotFound {
		return false
	}
	for _, ge := range e.Errors {
		if ge.ErrorType == ErrorTypeNotFound {
			return true
		}
	}
	return false
}
