package core

// Note is the central entity of the domain.
// It represents a user-authored piece of text identified by an ID.
// The ID is assigned by the backend on creation; an empty ID marks an unsaved draft.
type Note struct {
	ID   string `json:"id"`
	Text string `json:"note"`
}

// DraftMode describes what a submit of the current draft will do.
type DraftMode string

const (
	DraftIdle     DraftMode = "idle"
	DraftCreating DraftMode = "creating"
	DraftEditing  DraftMode = "editing"
)

// Draft is the in-progress form content.
// An empty EditingID means a new note is being composed.
type Draft struct {
	Text      string `json:"text"`
	EditingID string `json:"editing_id,omitempty"`
}

// Mode reports the state of the draft.
func (d Draft) Mode() DraftMode {
	switch {
	case d.EditingID != "":
		return DraftEditing
	case d.Text != "":
		return DraftCreating
	default:
		return DraftIdle
	}
}

// IsZero reports whether the draft is empty.
func (d Draft) IsZero() bool {
	return d.Text == "" && d.EditingID == ""
}
