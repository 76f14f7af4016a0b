package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/stepgraph/pkg/domain"
)

// Overlay carries node states to paint over the graph.
type Overlay struct {
	States map[string]domain.NodeState
}

// OverlayFromReport builds an overlay from a finished run.
func OverlayFromReport(r *domain.Report) *Overlay {
	if r == nil {
		return nil
	}
	o := &Overlay{States: make(map[string]domain.NodeState, len(r.Nodes))}
	for _, n := range r.Nodes {
		o.States[n.ID] = n.State
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart for the graph, nodes in step order.
// Shapes follow the request kind:
// - File: [Rectangle]
// - Shell: [[Subroutine]]
// - Container: [(Cylinder)]
// - Interpreter: [/Parallelogram/]
// - Composite: {{Hexagon}}
// Edges out of an allow_failure node are dotted.
func GenerateMermaid(g *domain.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if g == nil {
		return sb.String()
	}

	nodes := g.Nodes()
	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		if node.Request != nil {
			switch node.Request.Kind() {
			case domain.KindShell:
				opener, closer = "[[", "]]"
			case domain.KindContainer:
				opener, closer = "[(", ")]"
			case domain.KindInterpreter:
				opener, closer = "[/", "/]"
			case domain.KindComposite:
				opener, closer = "{{", "}}"
			}
		}

		label := node.ID + " <br/> " + escapeLabel(domain.Describe(node.Request))
		if d := timeoutOf(node.Request); d > 0 {
			label += " <br/> ⏱️ " + d.String()
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	for _, node := range nodes {
		for _, dep := range node.DependsOn {
			arrow := "-->"
			if from, ok := g.Node(dep); ok && from.Request != nil && from.Request.Meta().AllowFailure {
				arrow = "-.->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(dep), arrow, sanitizeMermaidID(node.ID))
		}
	}

	if overlay != nil && len(overlay.States) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef succeeded fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#c62828,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, node := range nodes {
			class := stateClass(overlay.States[node.ID])
			if class == "" {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(node.ID), class)
		}
	}

	return sb.String()
}

func stateClass(s domain.NodeState) string {
	switch s {
	case domain.NodeSucceeded:
		return "succeeded"
	case domain.NodeFailed:
		return "failed"
	case domain.NodeSkipped:
		return "skipped"
	case domain.NodeRunning:
		return "running"
	}
	return ""
}

func timeoutOf(r domain.Request) time.Duration {
	switch v := r.(type) {
	case *domain.ShellRequest:
		return v.Timeout
	case *domain.InterpreterRequest:
		return v.Timeout
	case *domain.ContainerRequest:
		return v.Timeout
	}
	return 0
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
