package notetaker_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
)

// Example_basic creates a note and waits for the backend to echo it.
func Example_basic() {
	ctx := context.Background()

	s, err := notetaker.New(ctx, "", notetaker.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	if err := s.SetText(ctx, "buy milk"); err != nil {
		log.Fatal(err)
	}
	if err := s.Submit(ctx); err != nil {
		log.Fatal(err)
	}

	// The draft is cleared at once; the note shows up with the Created event.
	fmt.Printf("draft: %q\n", s.Snapshot().Draft.Text)

	deadline := time.After(time.Second)
	for len(s.Snapshot().Notes) == 0 {
		select {
		case <-s.Updates():
		case <-deadline:
			log.Fatal("note never arrived")
		}
	}
	fmt.Println("note:", s.Snapshot().Notes[0].Text)
	// Output:
	// draft: ""
	// note: buy milk
}

// Example_edit selects a note, changes it and submits.
func Example_edit() {
	ctx := context.Background()
	backend := memory.New(memory.WithNotes(notetaker.Note{ID: "1", Text: "a"}))

	s, err := notetaker.New(ctx, "", notetaker.WithBackend(backend))
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	note := s.Snapshot().Notes[0]
	_ = s.Select(ctx, note)
	_ = s.SetText(ctx, "b")
	_ = s.Submit(ctx)

	deadline := time.After(time.Second)
	for s.Snapshot().Notes[0].Text != "b" {
		select {
		case <-s.Updates():
		case <-deadline:
			log.Fatal("update never arrived")
		}
	}
	fmt.Println(s.Snapshot().Notes, s.Snapshot().Draft.IsZero())
	// Output:
	// [{1 b}] true
}
