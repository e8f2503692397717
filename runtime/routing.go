package runtime

import (
	"strings"
	"sync"

	"github.com/warriorguo/graphflow/condition"
	"github.com/warriorguo/graphflow/types"
	"github.com/warriorguo/graphflow/utils"
)

// DefaultEdgeDecider evaluates the edge condition when there is one and
// traverses otherwise.
var DefaultEdgeDecider types.EdgeDecider = types.EdgeDeciderFunc(
	func(edge *types.Edge, result *types.NodeExecutionResult, execCtx *types.ExecutionContext) bool {
		if strings.TrimSpace(edge.Condition) == "" {
			return true
		}
		return condition.Evaluate(edge.Condition, result, execCtx)
	})

type router struct {
	mu      sync.RWMutex
	decider types.EdgeDecider
}

func newRouter() *router {
	return &router{decider: DefaultEdgeDecider}
}

func (r *router) setDecider(decider types.EdgeDecider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if decider == nil {
		decider = DefaultEdgeDecider
	}
	r.decider = decider
}

func (r *router) getDecider() types.EdgeDecider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.decider
}

func (r *router) fires(edge *types.Edge, result *types.NodeExecutionResult, execCtx *types.ExecutionContext) bool {
	switch edge.Kind {
	case types.EdgeConditional:
		return condition.Evaluate(edge.Condition, result, execCtx)
	case types.EdgeFlexibleConditional:
		return r.getDecider().ShouldTraverse(edge, result, execCtx)
	default:
		return true
	}
}

/**
 * nextNodes walks the outgoing edges of nodeID in graph order.
 * fired holds the targets of edges that fire, without duplicates.
 * notFired holds the targets of edges that did not fire.
 */
func (r *router) nextNodes(g *types.Graph, nodeID string, result *types.NodeExecutionResult,
	execCtx *types.ExecutionContext) (fired []string, notFired []string) {
	for _, edge := range g.EdgesFrom(nodeID) {
		if !r.fires(edge, result, execCtx) {
			notFired = append(notFired, edge.Target)
			continue
		}
		fired = append(fired, edge.Target)
	}
	return utils.UniqueSlice(fired), notFired
}
