package main

import (
	"fmt"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notetaker"
	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/core"
)

// componentNode is the shape introspection.TreeDiagram renders.
// Status must match a class in introspection.DefaultStyles().
type componentNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []componentNode
}

// sessionDiagram renders the session as a Mermaid tree.
func sessionDiagram(s *notetaker.Session) string {
	config := introspection.DefaultDiagramConfig()
	config.SecondaryID = "session"
	config.SecondaryLabel = "Session Topology"
	return introspection.TreeDiagram(sessionTree(s), config)
}

func sessionTree(s *notetaker.Session) componentNode {
	rs, _ := s.State().(core.ReconcilerState)

	status := "running"
	switch {
	case rs.Closed:
		status = "stopped"
	case !rs.Started:
		status = "created"
	case rs.LastError != "":
		status = "failed"
	}

	backend := componentNode{
		Name:     "Backend",
		Status:   "running",
		Metadata: map[string]string{"type": rs.BackendType},
	}
	if st, ok := backendState(s.Backend).(fs.BackendState); ok {
		watcher := "suspended"
		if st.WatcherActive {
			watcher = "running"
		}
		backend.Metadata["path"] = st.Path
		backend.Metadata["index"] = fmt.Sprintf("%d", st.IndexSize)
		backend.Children = append(backend.Children, componentNode{
			Name:     "Watcher",
			Status:   watcher,
			Metadata: map[string]string{"type": "goroutine", "pattern": st.Pattern},
		})
	}

	return componentNode{
		Name:   "Reconciler",
		Status: status,
		Metadata: map[string]string{
			"type":          "process",
			"notes":         fmt.Sprintf("%d", rs.Notes),
			"draft":         string(rs.DraftMode),
			"subscriptions": fmt.Sprintf("%d", rs.Subscriptions),
		},
		Children: []componentNode{backend},
	}
}

func backendState(b core.Backend) any {
	if intro, ok := b.(introspection.Introspectable); ok {
		return intro.State()
	}
	return nil
}
