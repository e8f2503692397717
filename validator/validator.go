package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warriorguo/graphflow/types"
)

type ValidationResult struct {
	IsValid  bool
	Errors   []error
	Warnings []string
}

// Err folds every error into a single InvalidGraphStructure error, or
// returns nil for a valid graph.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return types.NewInvalidGraphStructureErrorf("", "%d problem(s): %s", len(r.Errors), strings.Join(msgs, "; "))
}

/**
 * Validate checks that g can be executed. It reports every problem it finds
 * instead of stopping at the first one, in this order:
 *  1. edges referring to unknown nodes (NodeNotFound)
 *  2. edges of unknown kind or conditional edges without an expression
 *  3. missing Start or End node (InvalidGraphStructure)
 *  4. Start nodes that cannot reach any End node (InvalidGraphStructure)
 * Empty graphs, graphs without edges and orphan nodes are warnings.
 * Validate does not modify g.
 */
func Validate(g *types.Graph) *ValidationResult {
	r := &ValidationResult{
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	for _, e := range g.Edges {
		if _, exists := g.Node(e.Source); !exists {
			r.Errors = append(r.Errors, types.NewNodeNotFoundErrorf(e.Source, "edge %s: source node %s does not exist", e.ID, e.Source))
		}
		if _, exists := g.Node(e.Target); !exists {
			r.Errors = append(r.Errors, types.NewNodeNotFoundErrorf(e.Target, "edge %s: target node %s does not exist", e.ID, e.Target))
		}
	}

	for _, e := range g.Edges {
		switch e.Kind {
		case types.EdgeSimple, types.EdgeFlexibleConditional:
		case types.EdgeConditional:
			if strings.TrimSpace(e.Condition) == "" {
				r.Errors = append(r.Errors, types.NewInvalidGraphStructureErrorf("", "conditional edge %s has no condition", e.ID))
			}
		default:
			r.Errors = append(r.Errors, types.NewInvalidGraphStructureErrorf("", "edge %s has unknown kind %q", e.ID, e.Kind))
		}
	}

	starts := g.NodesOfKind(types.NodeStart)
	if len(starts) == 0 {
		r.Errors = append(r.Errors, types.NewInvalidGraphStructureErrorf("", "graph has no start node"))
	}
	if len(g.NodesOfKind(types.NodeEnd)) == 0 {
		r.Errors = append(r.Errors, types.NewInvalidGraphStructureErrorf("", "graph has no end node"))
	}

	for _, start := range starts {
		if !canReachEnd(g, start) {
			r.Errors = append(r.Errors, types.NewInvalidGraphStructureErrorf(start, "start node %s cannot reach any end node", start))
		}
	}

	if len(g.Nodes) == 0 {
		r.Warnings = append(r.Warnings, "graph has no nodes")
	}
	if len(g.Edges) == 0 {
		r.Warnings = append(r.Warnings, "graph has no edges")
	}
	for _, id := range orphanNodes(g) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("node %s is not connected to any edge", id))
	}

	r.IsValid = len(r.Errors) == 0
	return r
}

func canReachEnd(g *types.Graph, start string) bool {
	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		if n, exists := g.Node(current); exists && n.Kind == types.NodeEnd {
			return true
		}
		for _, e := range g.EdgesFrom(current) {
			stack = append(stack, e.Target)
		}
	}
	return false
}

func orphanNodes(g *types.Graph) []string {
	connected := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}
	orphans := make([]string, 0)
	for id := range g.Nodes {
		if !connected[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}
