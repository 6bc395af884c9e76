package core_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/aretw0/notetaker/pkg/core"
)

func idGenerator() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{"1", "2", "3", "4", "5"})
}

func noteGenerator() *rapid.Generator[core.Note] {
	return rapid.Custom(func(t *rapid.T) core.Note {
		return core.Note{
			ID:   idGenerator().Draw(t, "id"),
			Text: rapid.StringMatching(`[a-z]{0,8}`).Draw(t, "text"),
		}
	})
}

func eventGenerator() *rapid.Generator[core.Event] {
	return rapid.Custom(func(t *rapid.T) core.Event {
		switch rapid.IntRange(0, 2).Draw(t, "kind") {
		case 0:
			return core.Created(noteGenerator().Draw(t, "note"))
		case 1:
			return core.Updated(noteGenerator().Draw(t, "note"))
		default:
			return core.Deleted(idGenerator().Draw(t, "id"))
		}
	})
}

func actionGenerator() *rapid.Generator[core.Action] {
	return rapid.Custom(func(t *rapid.T) core.Action {
		switch rapid.IntRange(0, 6).Draw(t, "action") {
		case 0:
			return core.SetText{Text: rapid.StringMatching(`[a-z]{0,8}`).Draw(t, "text")}
		case 1:
			return core.Select{Note: noteGenerator().Draw(t, "note")}
		case 2:
			return core.Submit{}
		case 3:
			return core.Remove{ID: idGenerator().Draw(t, "id")}
		case 4:
			return core.Cancel{}
		default:
			return core.Received{Event: eventGenerator().Draw(t, "event")}
		}
	})
}

func assertUniqueIDs(t *rapid.T, s core.State) {
	seen := make(map[string]bool, len(s.Notes))
	for _, n := range s.Notes {
		if seen[n.ID] {
			t.Fatalf("duplicate id %q in %v", n.ID, s.Notes)
		}
		seen[n.ID] = true
	}
}

func testUniqueIDs_Properties(t *rapid.T) {
	s := core.State{}
	actions := rapid.SliceOf(actionGenerator()).Draw(t, "actions")
	for _, a := range actions {
		s, _ = core.Reduce(s, a)
		assertUniqueIDs(t, s)
	}
}

func TestReduce_UniqueIDs(t *testing.T) {
	rapid.Check(t, testUniqueIDs_Properties)
}

func TestReduce_LocalActionsNeverTouchList(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := core.State{}
		for _, e := range rapid.SliceOf(eventGenerator()).Draw(t, "seed") {
			s, _ = core.Reduce(s, core.Received{Event: e})
		}

		var a core.Action
		switch rapid.IntRange(0, 4).Draw(t, "local") {
		case 0:
			a = core.SetText{Text: "x"}
		case 1:
			a = core.Select{Note: noteGenerator().Draw(t, "note")}
		case 2:
			a = core.Submit{}
		case 3:
			a = core.Remove{ID: idGenerator().Draw(t, "id")}
		default:
			a = core.Cancel{}
		}

		next, cmds := core.Reduce(s, a)
		if len(next.Notes) != len(s.Notes) {
			t.Fatalf("local action %T changed the list: %v -> %v", a, s.Notes, next.Notes)
		}
		for i := range s.Notes {
			if next.Notes[i] != s.Notes[i] {
				t.Fatalf("local action %T changed entry %d", a, i)
			}
		}
		if len(cmds) > 1 {
			t.Fatalf("local action %T produced %d commands", a, len(cmds))
		}
	})
}

func TestReduce_EventsAreIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := core.State{}
		for _, e := range rapid.SliceOf(eventGenerator()).Draw(t, "seed") {
			s, _ = core.Reduce(s, core.Received{Event: e})
		}

		e := eventGenerator().Draw(t, "replayed")
		once, _ := core.Reduce(s, core.Received{Event: e})
		twice, _ := core.Reduce(once, core.Received{Event: e})

		if len(once.Notes) != len(twice.Notes) {
			t.Fatalf("replaying %v changed the list size: %d -> %d", e, len(once.Notes), len(twice.Notes))
		}
		if e.Kind != core.EventCreated {
			for i := range once.Notes {
				if once.Notes[i] != twice.Notes[i] {
					t.Fatalf("replaying %v changed entry %d", e, i)
				}
			}
		}
	})
}

func FuzzReduce_UniqueIDs(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testUniqueIDs_Properties))
}
