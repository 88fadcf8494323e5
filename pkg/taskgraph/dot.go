package taskgraph

import (
	"bytes"
	"fmt"
)

// DOT renders the current task graph in Graphviz DOT format, one node per
// task and one edge per declared dependency. Node fill reflects the task's
// state at the time of the call, so the export is useful both for dry-run
// previews and post-mortems.
func (g *Graph) DOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph tasks {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	tasks := g.Tasks()
	for _, t := range tasks {
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", t.name, t.name, stateAttrs(t.State()))
	}

	buf.WriteString("\n")
	for _, t := range tasks {
		for _, d := range t.deps {
			fmt.Fprintf(&buf, "  %q -> %q;\n", d.name, t.name)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func stateAttrs(s State) string {
	switch s {
	case StateDone:
		return ", fillcolor=palegreen"
	case StateFailed:
		return ", fillcolor=lightcoral"
	case StateSkipped:
		return ", fillcolor=lightgrey, style=\"rounded,filled,dashed\""
	case StateRunning:
		return ", fillcolor=lightyellow"
	}
	return ""
}
