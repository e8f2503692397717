package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/types"
)

// Executor runs a graph from its Start nodes until the frontier is empty.
type Executor interface {
	Execute(ctx context.Context, g *types.Graph, variables types.Data) (*types.ExecutionResult, error)
}

// levelHook runs after every completed level. Returning anything other than
// StatusRunning halts the run with that status.
type levelHook func(ctx context.Context, state *types.ExecutionState) (types.ExecutionStatus, error)

type nodeOutcome struct {
	nodeID string
	result *types.NodeExecutionResult
	err    error
}

/**
 * levelRunner is the traversal shared by both executors and the coordinator.
 * A nil pool runs one node at a time in frontier order, otherwise every
 * level is grouped and each group runs concurrently on the pool.
 * The execution context is only written between groups.
 */
type levelRunner struct {
	registry *NodeRegistry
	router   *router
	metrics  *engineMetrics
	pool     *workerpool.WorkerPool

	nodeTimeout   time.Duration
	maxConcurrent int
	maxLevels     int
}

func newLevelRunner(registry *NodeRegistry, r *router, metrics *engineMetrics, opts *types.EngineOptions) *levelRunner {
	lr := &levelRunner{
		registry:      registry,
		router:        r,
		metrics:       metrics,
		nodeTimeout:   opts.NodeTimeout,
		maxConcurrent: opts.MaxConcurrentNodes,
		maxLevels:     opts.MaxLevels,
	}
	if opts.Mode != types.ModeSequential {
		concurrency := opts.MaxConcurrentNodes
		if concurrency <= 0 {
			concurrency = 1
		}
		lr.pool = workerpool.New(concurrency)
	}
	return lr
}

func (lr *levelRunner) parallel() bool {
	return lr.pool != nil
}

func (lr *levelRunner) stop() {
	if lr.pool != nil {
		lr.pool.StopWait()
	}
}

// seedState creates the state of a fresh run, the frontier is every Start node.
func seedState(g *types.Graph, variables types.Data) *types.ExecutionState {
	state := types.NewExecutionState()
	state.Context.Merge(variables)
	for _, id := range g.StartNodes() {
		state.AddFrontier(id)
		state.SetNodeStatus(id, types.NodePending)
	}
	return state
}

/**
 * run drives state level by level until the frontier is empty, a node fails,
 * or hook halts it. It returns the status the run ended with.
 */
func (lr *levelRunner) run(ctx context.Context, g *types.Graph, state *types.ExecutionState,
	rt *runTrace, hook levelHook) (types.ExecutionStatus, error) {
	for len(state.Frontier) > 0 {
		if lr.maxLevels > 0 && state.Levels >= lr.maxLevels {
			return types.StatusFailed, types.NewExecutionLimitError(lr.maxLevels)
		}
		if err := ctx.Err(); err != nil {
			return types.StatusFailed, errors.Annotatef(err, "level %d", state.Levels)
		}

		if err := lr.runLevel(ctx, g, state, rt); err != nil {
			return types.StatusFailed, errors.Trace(err)
		}

		if hook != nil {
			status, err := hook(ctx, state)
			if err != nil {
				return types.StatusFailed, errors.Trace(err)
			}
			if status != types.StatusRunning {
				return status, nil
			}
		}
	}
	return types.StatusCompleted, nil
}

func (lr *levelRunner) runLevel(ctx context.Context, g *types.Graph, state *types.ExecutionState, rt *runTrace) (retErr error) {
	frontier := append([]string(nil), state.Frontier...)
	ctx, span := startLevelSpan(ctx, state.Levels, frontier)
	defer func() { endSpan(span, retErr) }()

	var groups [][]string
	if lr.parallel() {
		groups = groupFrontier(g, frontier, lr.maxConcurrent)
	} else {
		groups = singleGroups(frontier)
	}

	next := types.NewExecutionState()
	notFired := make([]string, 0)

	for gi, group := range groups {
		rt.addGroup(group)
		if lr.parallel() {
			lr.metrics.observeGroup(len(group))
		}
		for _, id := range group {
			state.SetNodeStatus(id, types.NodeRunning)
		}

		outcomes := lr.runGroup(ctx, g, group, state.Context)

		var failure error
		for _, o := range outcomes {
			rt.addExecuted(o.nodeID, o.result)
			if o.err != nil && failure == nil {
				failure = o.err
			}
		}
		if failure != nil {
			lr.failLevel(state, outcomes, groups[gi:], next.Frontier)
			return failure
		}

		// merge the whole group before routing any of its members
		for _, o := range outcomes {
			state.Context.Merge(o.result.Output)
			state.SetNodeStatus(o.nodeID, types.NodeCompleted)
			if n, _ := g.Node(o.nodeID); n.Kind == types.NodeEnd {
				rt.setFinal(o.result)
			}
		}
		for _, o := range outcomes {
			fired, skipped := lr.router.nextNodes(g, o.nodeID, o.result, state.Context)
			for _, id := range fired {
				next.AddFrontier(id)
			}
			notFired = append(notFired, skipped...)
		}
	}

	for _, id := range next.Frontier {
		state.SetNodeStatus(id, types.NodePending)
	}
	for _, id := range notFired {
		if _, exists := state.GetNodeStatus(id); !exists {
			state.SetNodeStatus(id, types.NodeSkipped)
		}
	}
	state.Frontier = next.Frontier
	state.Levels++
	return nil
}

/**
 * failLevel leaves state resumable: nothing of the failed group is merged,
 * its successful members go back to pending, and the frontier becomes the
 * unfinished part of the level followed by what earlier groups scheduled.
 */
func (lr *levelRunner) failLevel(state *types.ExecutionState, outcomes []nodeOutcome, unfinished [][]string, scheduled []string) {
	for _, o := range outcomes {
		if o.err != nil {
			state.SetNodeStatus(o.nodeID, types.NodeFailed)
		} else {
			state.SetNodeStatus(o.nodeID, types.NodePending)
		}
	}

	frontier := types.NewExecutionState()
	for _, group := range unfinished {
		for _, id := range group {
			frontier.AddFrontier(id)
		}
	}
	for _, id := range scheduled {
		if frontier.AddFrontier(id) {
			state.SetNodeStatus(id, types.NodePending)
		}
	}
	state.Frontier = frontier.Frontier
}

func (lr *levelRunner) runGroup(ctx context.Context, g *types.Graph, group []string, execCtx *types.ExecutionContext) []nodeOutcome {
	outcomes := make([]nodeOutcome, len(group))
	if !lr.parallel() || len(group) == 1 {
		for i, id := range group {
			outcomes[i] = lr.executeNode(ctx, g, id, execCtx.Clone())
		}
		return outcomes
	}

	var wg sync.WaitGroup
	for i, id := range group {
		i, id := i, id
		snapshot := execCtx.Clone()
		wg.Add(1)
		lr.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = lr.executeNode(ctx, g, id, snapshot)
		})
	}
	wg.Wait()
	return outcomes
}

// executeNode always returns a result, failed nodes get one describing the error.
func (lr *levelRunner) executeNode(ctx context.Context, g *types.Graph, nodeID string, snapshot *types.ExecutionContext) nodeOutcome {
	node, exists := g.Node(nodeID)
	if !exists {
		err := types.NewNodeNotFoundErrorf(nodeID, "node %s scheduled but not in graph", nodeID)
		return nodeOutcome{nodeID: nodeID, result: failedResult(err, 0), err: err}
	}

	start := time.Now()
	result, err := lr.callExecutor(ctx, node, snapshot)
	elapsed := time.Since(start)
	lr.metrics.observeNode(node.Kind, outcomeOf(err), elapsed)

	if err != nil {
		log.Errorf("node %s (%s) failed after %v: %v", node.ID, node.Kind, elapsed, err)
		return nodeOutcome{nodeID: nodeID, result: failedResult(err, elapsed), err: err}
	}
	log.Debugf("node %s (%s) completed in %v", node.ID, node.Kind, elapsed)

	r := *result
	r.Elapsed = elapsed
	if r.Output == nil {
		r.Output = types.Data{}
	}
	return nodeOutcome{nodeID: nodeID, result: &r}
}

func failedResult(err error, elapsed time.Duration) *types.NodeExecutionResult {
	return &types.NodeExecutionResult{
		Success:      false,
		Output:       types.Data{},
		ErrorMessage: err.Error(),
		Elapsed:      elapsed,
	}
}

/**
 * callExecutor runs the executor registered for node.Kind under the node
 * timeout. The executor call races a timer, a late executor keeps running
 * in its goroutine but its result is dropped.
 */
func (lr *levelRunner) callExecutor(ctx context.Context, node *types.Node, snapshot *types.ExecutionContext) (result *types.NodeExecutionResult, retErr error) {
	executor, exists := lr.registry.Get(node.Kind)
	if !exists {
		return nil, types.NewUnsupportedNodeTypeError(node.ID, node.Kind)
	}

	ctx, span := startNodeSpan(ctx, node)
	defer func() { endSpan(span, retErr) }()

	nodeCtx := ctx
	cancel := func() {}
	if lr.nodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, lr.nodeTimeout)
	}
	defer cancel()

	ch := make(chan nodeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- nodeOutcome{err: types.NewNodeExecutionError(node.ID, fmt.Errorf("panic: %v", r))}
			}
		}()
		res, err := executor.Execute(nodeCtx, node, snapshot)
		ch <- nodeOutcome{result: res, err: err}
	}()

	var o nodeOutcome
	select {
	case o = <-ch:
	case <-nodeCtx.Done():
		if ctx.Err() != nil {
			return nil, types.NewNodeExecutionError(node.ID, ctx.Err())
		}
		return nil, types.NewNodeTimeoutError(node.ID, lr.nodeTimeout)
	}

	if o.err != nil {
		if _, ok := types.KindOf(o.err); ok {
			return nil, errors.Trace(o.err)
		}
		return nil, types.NewNodeExecutionError(node.ID, o.err)
	}
	if o.result == nil {
		return types.NewSuccessResult(nil), nil
	}
	if !o.result.Success {
		msg := o.result.ErrorMessage
		if msg == "" {
			msg = "executor reported failure"
		}
		return nil, types.NewNodeExecutionErrorf(node.ID, "%s", msg)
	}
	return o.result, nil
}
