package core

// State is the client-side view: the note list in arrival order plus the form draft.
// Invariant: Notes never holds two entries with the same ID.
type State struct {
	Notes []Note `json:"notes"`
	Draft Draft  `json:"draft"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{Draft: s.Draft}
	if s.Notes != nil {
		out.Notes = make([]Note, len(s.Notes))
		copy(out.Notes, s.Notes)
	}
	return out
}

// IndexOf returns the position of the note with the given id, or -1.
func (s State) IndexOf(id string) int {
	for i, n := range s.Notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the note with the given id.
func (s State) Find(id string) (Note, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Notes[i], true
	}
	return Note{}, false
}

// HasExistingNote reports whether the draft edits a note that is still listed.
// It guards against submitting an update for a note deleted by another client.
func (s State) HasExistingNote() bool {
	return s.Draft.EditingID != "" && s.IndexOf(s.Draft.EditingID) >= 0
}

// CommandKind identifies the mutation a reduction asks the backend for.
type CommandKind string

const (
	CommandCreate CommandKind = "create"
	CommandUpdate CommandKind = "update"
	CommandDelete CommandKind = "delete"
)

// Command is a side effect produced by Reduce, executed against the Backend.
type Command struct {
	Kind CommandKind
	ID   string
	Text string
}

// Action is an input to the reducer: a local user action, a remote event or
// the initial snapshot. The set is closed.
type Action interface {
	action()
}

// Loaded replaces the list with the initial snapshot.
type Loaded struct{ Notes []Note }

// Received applies an event from a subscription feed.
type Received struct{ Event Event }

// SetText changes the draft text.
type SetText struct{ Text string }

// Select loads an existing note into the draft for editing.
type Select struct{ Note Note }

// Cancel discards the draft.
type Cancel struct{}

// Submit sends the draft as a create or an update.
type Submit struct{}

// Remove asks the backend to delete a note.
type Remove struct{ ID string }

func (Loaded) action()   {}
func (Received) action() {}
func (SetText) action()  {}
func (Select) action()   {}
func (Cancel) action()   {}
func (Submit) action()   {}
func (Remove) action()   {}

// Reduce computes the next state for an action. It is pure: s is never
// modified and the returned commands are the only side effects requested.
//
// List changes are driven by backend events only. Local actions never insert,
// replace or remove list entries; they emit commands whose echo does.
func Reduce(s State, a Action) (State, []Command) {
	switch a := a.(type) {
	case Loaded:
		return State{Notes: dedupe(a.Notes), Draft: s.Draft}, nil

	case Received:
		return applyEvent(s, a.Event), nil

	case SetText:
		next := s.Clone()
		next.Draft.Text = a.Text
		return next, nil

	case Select:
		next := s.Clone()
		next.Draft = Draft{Text: a.Note.Text, EditingID: a.Note.ID}
		return next, nil

	case Cancel:
		next := s.Clone()
		next.Draft = Draft{}
		return next, nil

	case Submit:
		if s.HasExistingNote() {
			// The draft is cleared when the Updated echo arrives.
			return s.Clone(), []Command{{Kind: CommandUpdate, ID: s.Draft.EditingID, Text: s.Draft.Text}}
		}
		next := s.Clone()
		next.Draft = Draft{}
		return next, []Command{{Kind: CommandCreate, Text: s.Draft.Text}}

	case Remove:
		if a.ID == "" {
			return s, nil
		}
		return s.Clone(), []Command{{Kind: CommandDelete, ID: a.ID}}
	}
	return s, nil
}

func applyEvent(s State, e Event) State {
	switch e.Kind {
	case EventCreated:
		next := State{Draft: s.Draft, Notes: without(s.Notes, e.Note.ID)}
		next.Notes = append(next.Notes, e.Note)
		return next

	case EventDeleted:
		if s.IndexOf(e.Note.ID) < 0 {
			return s
		}
		return State{Draft: s.Draft, Notes: without(s.Notes, e.Note.ID)}

	case EventUpdated:
		i := s.IndexOf(e.Note.ID)
		if i < 0 {
			return s
		}
		next := s.Clone()
		next.Notes[i] = e.Note
		if next.Draft.EditingID == e.Note.ID {
			next.Draft = Draft{}
		}
		return next
	}
	return s
}

// without returns a fresh slice holding every note except the one with id.
func without(notes []Note, id string) []Note {
	out := make([]Note, 0, len(notes)+1)
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

// dedupe keeps one entry per id; a later entry replaces an earlier one in place.
func dedupe(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	pos := make(map[string]int, len(notes))
	for _, n := range notes {
		if i, ok := pos[n.ID]; ok {
			out[i] = n
			continue
		}
		pos[n.ID] = len(out)
		out = append(out, n)
	}
	return out
}
