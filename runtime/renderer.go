package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warriorguo/graphflow/types"
	"github.com/warriorguo/graphflow/utils"
)

// renderDOT renders g in graphviz DOT. With a state, nodes are filled by
// their status and frontier nodes are drawn bold.
func renderDOT(g *types.Graph, state *types.ExecutionState) (string, error) {
	renderer := newGraphRenderer()
	return renderer.generateDOT(g, state)
}

func newGraphRenderer() *graphRenderer {
	return &graphRenderer{nil, nil, &strings.Builder{}}
}

type graphRenderer struct {
	status   map[string]types.NodeStatus
	frontier map[string]bool
	sb       *strings.Builder
}

func (d *graphRenderer) setState(state *types.ExecutionState) {
	d.frontier = make(map[string]bool)
	if state == nil {
		d.status = make(map[string]types.NodeStatus)
		return
	}
	d.status = utils.CloneMap(state.NodeStatus)
	for _, id := range state.Frontier {
		d.frontier[id] = true
	}
}

func (d *graphRenderer) generateDOT(g *types.Graph, state *types.ExecutionState) (string, error) {
	d.setState(state)

	name := g.Metadata.Name
	if name == "" {
		name = g.ID
	}

	d.write("digraph D {")
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d.drawNode(g.Nodes[id])
	}
	d.drawEdges(g)
	d.write("label=%s", quoteString(name))
	d.write("}")
	return d.sb.String(), nil
}

func shapeOf(kind types.NodeKind) string {
	switch kind {
	case types.NodeStart, types.NodeEnd:
		return "doublecircle"
	case types.NodeCondition:
		return "diamond"
	case types.NodeWait:
		return "octagon"
	default:
		return "record"
	}
}

func colorOf(status types.NodeStatus) string {
	switch status {
	case types.NodePending:
		return "white"
	case types.NodeRunning:
		return "yellow"
	case types.NodeCompleted:
		return "green"
	case types.NodeFailed:
		return "red"
	case types.NodeSkipped:
		return "lightgrey"
	default:
		return ""
	}
}

func (d *graphRenderer) calcAttr(id string) string {
	attr := ""
	if color := colorOf(d.status[id]); color != "" {
		attr += fmt.Sprintf(" style=\"filled\" fillcolor=\"%s\" comment=\"%s\"", color, d.status[id])
	}
	if d.frontier[id] {
		attr += " penwidth=\"3\""
	}
	return attr
}

func (d *graphRenderer) drawNode(n *types.Node) {
	label := n.ID
	if n.Name != "" {
		label = n.Name
	}
	d.write("%s [label=%s shape=\"%s\"%s]", idString(n.ID), quoteString(label), shapeOf(n.Kind), d.calcAttr(n.ID))
}

func (d *graphRenderer) drawEdges(g *types.Graph) {
	for _, e := range g.Edges {
		switch e.Kind {
		case types.EdgeConditional:
			d.write("%s -> %s [label=%s]", idString(e.Source), idString(e.Target), quoteString(e.Condition))
		case types.EdgeFlexibleConditional:
			label := e.Condition
			if label == "" {
				label = "?"
			}
			d.write("%s -> %s [label=%s style=\"dashed\"]", idString(e.Source), idString(e.Target), quoteString(label))
		default:
			d.write("%s -> %s", idString(e.Source), idString(e.Target))
		}
	}
}

func (d *graphRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", ".", "-"}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
