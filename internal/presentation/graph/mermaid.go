package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
)

// Overlay marks execution state on the diagram.
type Overlay struct {
	Completed []string
	Current   string
}

// OverlayFor derives the overlay of an execution.
func OverlayFor(e *domain.Execution) *Overlay {
	o := &Overlay{Completed: e.CompletedSteps()}
	if next := e.PeekStep(); next != nil {
		o.Current = next.ID
	}
	return o
}

// GenerateMermaid draws a protocol as a top-down flowchart.
// Steps run in order; a conditional step gets a diamond gate whose "no" edge skips it.
// Shapes:
// - Start/End: ((Circle))
// - Step with command: [[Subroutine]]
// - Manual step: [Rectangle]
func GenerateMermaid(p *domain.Protocol, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    start((\"%s\"))\n", escape(p.Name))

	prev := "start"
	var pendingSkip string
	for i, step := range p.Steps {
		id := nodeID(step.ID)
		opener, closer := "[", "]"
		if step.Command != "" {
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%d. %s\"%s\n", id, opener, i+1, escape(step.Name), closer)

		entry := id
		if step.Condition != nil {
			gate := id + "_if"
			fmt.Fprintf(&sb, "    %s{\"%s\"}\n", gate, escape(step.Condition.Expr()))
			fmt.Fprintf(&sb, "    %s -- yes --> %s\n", gate, id)
			entry = gate
		}

		fmt.Fprintf(&sb, "    %s --> %s\n", prev, entry)
		if pendingSkip != "" {
			fmt.Fprintf(&sb, "    %s -. no .-> %s\n", pendingSkip, entry)
			pendingSkip = ""
		}
		if step.Condition != nil {
			pendingSkip = entry
		}
		prev = id
	}

	sb.WriteString("    done((\"done\"))\n")
	fmt.Fprintf(&sb, "    %s --> done\n", prev)
	if pendingSkip != "" {
		fmt.Fprintf(&sb, "    %s -. no .-> done\n", pendingSkip)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, stepID := range overlay.Completed {
			id := nodeID(stepID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s completed;\n", id)
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.Current))
		}
	}

	return sb.String()
}

// nodeID prefixes step IDs so they never collide with the start/done nodes
// or Mermaid keywords like "end".
func nodeID(id string) string {
	if id == "" {
		return ""
	}
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return "s_" + r.Replace(id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
