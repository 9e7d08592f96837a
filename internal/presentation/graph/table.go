package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentflow/pkg/fsm"
)

// Table lists every state with its transitions, one per line, marking the
// current state with an asterisk. Hidden transitions carry a "(hidden)" tag.
func Table(m *fsm.Machine) string {
	var sb strings.Builder
	current := m.CurrentName()

	sb.WriteString("State Machine Configuration:\n")
	for _, s := range m.States() {
		marker := ""
		if s.Name == current {
			marker = " *"
		}
		fmt.Fprintf(&sb, "\nState: %s%s\n", s.Name, marker)
		for _, action := range s.Actions() {
			target, _ := s.Target(action)
			line := fmt.Sprintf("  %s -> %s", action, target.Name)
			if s.IsHidden(action) {
				line += " (hidden)"
			}
			sb.WriteString(line + "\n")
		}
	}
	return sb.String()
}
