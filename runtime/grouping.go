package runtime

import (
	"github.com/warriorguo/graphflow/types"
)

/**
 * groupFrontier splits a frontier into ordered, disjoint groups.
 * A candidate joins the current group when no other remaining candidate has
 * an edge pointing at it. A group is cut to maxConcurrent members, the rest
 * stay candidates. When nothing qualifies (the candidates form a cycle) the
 * first remaining candidate runs alone, which only guarantees progress, not a
 * sensible order for a malformed graph.
 */
func groupFrontier(g *types.Graph, frontier []string, maxConcurrent int) [][]string {
	remaining := append([]string(nil), frontier...)
	groups := make([][]string, 0)

	for len(remaining) > 0 {
		group := make([]string, 0, len(remaining))
		for _, id := range remaining {
			if !dependsOnCandidate(g, id, remaining) {
				group = append(group, id)
			}
		}
		if maxConcurrent > 0 && len(group) > maxConcurrent {
			group = group[:maxConcurrent]
		}
		if len(group) == 0 {
			group = append(group, remaining[0])
		}

		remaining = subtract(remaining, group)
		groups = append(groups, group)
	}
	return groups
}

func dependsOnCandidate(g *types.Graph, id string, candidates []string) bool {
	for _, c := range candidates {
		if c != id && g.HasEdge(c, id) {
			return true
		}
	}
	return false
}

func subtract(from, removed []string) []string {
	drop := make(map[string]bool, len(removed))
	for _, id := range removed {
		drop[id] = true
	}
	kept := make([]string, 0, len(from))
	for _, id := range from {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

// singleGroups is the grouping of sequential mode, one node per group.
func singleGroups(frontier []string) [][]string {
	groups := make([][]string, 0, len(frontier))
	for _, id := range frontier {
		groups = append(groups, []string{id})
	}
	return groups
}
