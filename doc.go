// Package notetaker is the Composition Root for the notes client.
//
// It connects the reconciler (pkg/core) with a storage backend
// (pkg/adapters/...) chosen by name.
//
// Philosophy:
//
// The list of notes is owned by the backend. The client never edits it
// directly: it sends commands (create, update, delete) and waits for the
// backend to echo them on its Created, Updated and Deleted feeds. Every change
// reaches the list the same way, whether it came from this process or from
// another client.
//
// Features:
//
//   - **Event-driven list**: notes change only when a feed event arrives.
//   - **Single writer**: one goroutine applies every action, so the list never
//     holds two notes with the same ID.
//   - **Pluggable backends**: Markdown files (fs), SQLite, a managed GraphQL
//     service, or memory.
//   - **Local emulator**: `notetaker serve` exposes any backend over the same
//     GraphQL protocol the graphql adapter speaks.
//
// Usage:
//
//	s, err := notetaker.New(ctx, "./notes", notetaker.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	_ = s.SetText(ctx, "buy milk")
//	_ = s.Submit(ctx)
//
//	for snap := range s.Updates() {
//		fmt.Println(snap.Notes)
//	}
package notetaker
