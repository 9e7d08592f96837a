package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentflow/pkg/fsm"
)

// Overlay contains dynamic state data to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// Mermaid produces a Mermaid flowchart for the machine.
// The initial state is drawn as a circle. Hidden transitions use a dotted
// arrow. Self-loops are kept so every action appears once per state.
func Mermaid(m *fsm.Machine, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	initial := m.Initial().Name
	for _, name := range m.StateNames() {
		opener, closer := "[", "]"
		if name == initial {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeID(name), opener, name, closer)
	}

	for _, e := range m.Edges() {
		arrow := fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.Action))
		if e.Hidden {
			arrow = fmt.Sprintf("-. \"%s\" .->", escapeLabel(e.Action))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeID(e.From), arrow, sanitizeID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Visited {
			id := sanitizeID(name)
			if id == "" || seen[id] {
				continue
			}
			if _, ok := m.Lookup(name); !ok {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", id)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeID(overlay.Current))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
