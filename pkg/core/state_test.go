package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
)

func notes(pairs ...string) []core.Note {
	out := make([]core.Note, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.Note{ID: pairs[i], Text: pairs[i+1]})
	}
	return out
}

func TestReduce_UpdatedReplacesInPlaceAndClearsDraft(t *testing.T) {
	s := core.State{
		Notes: notes("1", "a"),
		Draft: core.Draft{Text: "b", EditingID: "1"},
	}

	next, cmds := core.Reduce(s, core.Received{Event: core.Updated(core.Note{ID: "1", Text: "b"})})

	assert.Empty(t, cmds)
	assert.Equal(t, notes("1", "b"), next.Notes)
	assert.True(t, next.Draft.IsZero())
	// input untouched
	assert.Equal(t, "a", s.Notes[0].Text)
}

func TestReduce_UpdatedKeepsPosition(t *testing.T) {
	s := core.State{Notes: notes("1", "a", "2", "b", "3", "c")}

	next, _ := core.Reduce(s, core.Received{Event: core.Updated(core.Note{ID: "2", Text: "B"})})

	assert.Equal(t, notes("1", "a", "2", "B", "3", "c"), next.Notes)
}

func TestReduce_UpdatedForOtherNoteKeepsDraft(t *testing.T) {
	s := core.State{
		Notes: notes("1", "a", "2", "b"),
		Draft: core.Draft{Text: "mine", EditingID: "1"},
	}

	next, _ := core.Reduce(s, core.Received{Event: core.Updated(core.Note{ID: "2", Text: "theirs"})})

	assert.Equal(t, core.Draft{Text: "mine", EditingID: "1"}, next.Draft)
	assert.Equal(t, notes("1", "a", "2", "theirs"), next.Notes)

	creating := core.State{Notes: notes("2", "b"), Draft: core.Draft{Text: "new"}}
	next, _ = core.Reduce(creating, core.Received{Event: core.Updated(core.Note{ID: "2", Text: "x"})})
	assert.Equal(t, core.Draft{Text: "new"}, next.Draft)
}

func TestReduce_UpdatedForAbsentNoteIsDropped(t *testing.T) {
	s := core.State{
		Notes: notes("1", "a"),
		Draft: core.Draft{Text: "edit", EditingID: "9"},
	}

	next, cmds := core.Reduce(s, core.Received{Event: core.Updated(core.Note{ID: "9", Text: "z"})})

	assert.Empty(t, cmds)
	assert.Equal(t, s, next)
}

func TestReduce_DeletedRemovesEntry(t *testing.T) {
	s := core.State{Notes: notes("1", "a", "2", "b")}

	next, _ := core.Reduce(s, core.Received{Event: core.Deleted("1")})

	assert.Equal(t, notes("2", "b"), next.Notes)
}

func TestReduce_DeletedIsIdempotent(t *testing.T) {
	s := core.State{Notes: notes("2", "b")}

	next, _ := core.Reduce(s, core.Received{Event: core.Deleted("1")})
	assert.Equal(t, s, next)

	again, _ := core.Reduce(next, core.Received{Event: core.Deleted("1")})
	assert.Equal(t, s, again)
}

func TestReduce_CreatedReplacesDuplicate(t *testing.T) {
	s := core.State{Notes: notes("1", "a", "2", "b")}

	next, _ := core.Reduce(s, core.Received{Event: core.Created(core.Note{ID: "1", Text: "a2"})})

	assert.Equal(t, notes("2", "b", "1", "a2"), next.Notes)
}

func TestReduce_LoadedCollapsesDuplicates(t *testing.T) {
	next, _ := core.Reduce(core.State{}, core.Loaded{Notes: notes("1", "a", "2", "b", "1", "c")})

	assert.Equal(t, notes("1", "c", "2", "b"), next.Notes)
}

func TestReduce_SelectThenSubmitSendsOneUpdate(t *testing.T) {
	n := core.Note{ID: "1", Text: "a"}
	s := core.State{Notes: []core.Note{n}}

	s, cmds := core.Reduce(s, core.Select{Note: n})
	require.Empty(t, cmds)
	assert.Equal(t, core.Draft{Text: "a", EditingID: "1"}, s.Draft)
	assert.Equal(t, core.DraftEditing, s.Draft.Mode())

	s, _ = core.Reduce(s, core.SetText{Text: "a edited"})
	s, cmds = core.Reduce(s, core.Submit{})

	require.Len(t, cmds, 1)
	assert.Equal(t, core.Command{Kind: core.CommandUpdate, ID: "1", Text: "a edited"}, cmds[0])
	// Edit flow waits for the Updated echo before clearing the draft.
	assert.Equal(t, core.Draft{Text: "a edited", EditingID: "1"}, s.Draft)
	// List is event-driven: the local update is not applied optimistically.
	assert.Equal(t, "a", s.Notes[0].Text)
}

func TestReduce_SubmitNewClearsDraftImmediately(t *testing.T) {
	s := core.State{Notes: notes("1", "a")}
	s, _ = core.Reduce(s, core.SetText{Text: "hello"})
	require.Equal(t, core.DraftCreating, s.Draft.Mode())

	next, cmds := core.Reduce(s, core.Submit{})

	require.Len(t, cmds, 1)
	assert.Equal(t, core.Command{Kind: core.CommandCreate, Text: "hello"}, cmds[0])
	assert.True(t, next.Draft.IsZero())
	// List is event-driven: nothing is inserted until Created arrives.
	assert.Equal(t, notes("1", "a"), next.Notes)
}

func TestReduce_SubmitForConcurrentlyDeletedNoteCreates(t *testing.T) {
	s := core.State{
		Notes: notes("2", "b"),
		Draft: core.Draft{Text: "orphan", EditingID: "1"},
	}
	require.False(t, s.HasExistingNote())

	next, cmds := core.Reduce(s, core.Submit{})

	require.Len(t, cmds, 1)
	assert.Equal(t, core.CommandCreate, cmds[0].Kind)
	assert.Equal(t, "orphan", cmds[0].Text)
	assert.True(t, next.Draft.IsZero())
}

func TestReduce_RemoveIsEventDriven(t *testing.T) {
	s := core.State{Notes: notes("1", "a")}

	next, cmds := core.Reduce(s, core.Remove{ID: "1"})

	require.Len(t, cmds, 1)
	assert.Equal(t, core.Command{Kind: core.CommandDelete, ID: "1"}, cmds[0])
	assert.Equal(t, notes("1", "a"), next.Notes)

	_, cmds = core.Reduce(s, core.Remove{})
	assert.Empty(t, cmds)
}

func TestReduce_Cancel(t *testing.T) {
	s := core.State{Notes: notes("1", "a"), Draft: core.Draft{Text: "a", EditingID: "1"}}

	next, cmds := core.Reduce(s, core.Cancel{})

	assert.Empty(t, cmds)
	assert.Equal(t, core.DraftIdle, next.Draft.Mode())
}

func TestEvent_Validate(t *testing.T) {
	assert.NoError(t, core.Created(core.Note{ID: "1"}).Validate())
	assert.NoError(t, core.Deleted("1").Validate())

	err := core.Updated(core.Note{Text: "no id"}).Validate()
	assert.ErrorIs(t, err, core.ErrInvalidEvent)

	err = core.Event{Kind: "RENAMED", Note: core.Note{ID: "1"}}.Validate()
	assert.ErrorIs(t, err, core.ErrInvalidEvent)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, `CREATED 1 "a"`, core.Created(core.Note{ID: "1", Text: "a"}).String())
	assert.Equal(t, "DELETED 1", core.Deleted("1").String())
}
