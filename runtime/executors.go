package runtime

import (
	"context"

	"github.com/juju/errors"

	"github.com/warriorguo/graphflow/types"
)

var (
	_ Executor = &SequentialExecutor{}
	_ Executor = &ParallelExecutor{}
)

// SequentialExecutor runs one node at a time, in frontier order.
type SequentialExecutor struct {
	lr *levelRunner
}

func NewSequentialExecutor(registry *NodeRegistry, opts ...types.EngineOption) *SequentialExecutor {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}
	options.Mode = types.ModeSequential
	metrics := newEngineMetrics(options.MetricsNamespace, options.MetricsRegisterer)
	return &SequentialExecutor{lr: newLevelRunner(registry, newRouter(), metrics, options)}
}

func (e *SequentialExecutor) SetEdgeDecider(decider types.EdgeDecider) {
	e.lr.router.setDecider(decider)
}

func (e *SequentialExecutor) Execute(ctx context.Context, g *types.Graph, variables types.Data) (*types.ExecutionResult, error) {
	return executeGraph(ctx, e.lr, g, variables)
}

// ParallelExecutor runs every level as dependency-free groups of at most
// MaxConcurrentNodes nodes executing concurrently.
type ParallelExecutor struct {
	lr *levelRunner
}

func NewParallelExecutor(registry *NodeRegistry, opts ...types.EngineOption) *ParallelExecutor {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}
	options.Mode = types.ModeParallel
	metrics := newEngineMetrics(options.MetricsNamespace, options.MetricsRegisterer)
	return &ParallelExecutor{lr: newLevelRunner(registry, newRouter(), metrics, options)}
}

func (e *ParallelExecutor) SetEdgeDecider(decider types.EdgeDecider) {
	e.lr.router.setDecider(decider)
}

func (e *ParallelExecutor) Execute(ctx context.Context, g *types.Graph, variables types.Data) (*types.ExecutionResult, error) {
	return executeGraph(ctx, e.lr, g, variables)
}

// Close waits for queued nodes and releases the worker pool.
func (e *ParallelExecutor) Close() {
	e.lr.stop()
}

func executeGraph(ctx context.Context, lr *levelRunner, g *types.Graph, variables types.Data) (*types.ExecutionResult, error) {
	if g == nil {
		return nil, types.NewGraphNotFoundError("")
	}
	state := seedState(g, variables)
	state.Status = types.StatusRunning
	rt := newRunTrace()

	status, err := lr.run(ctx, g, state, rt, nil)
	state.Status = status
	result := rt.result(g.ID, state, status, err)
	lr.metrics.observeRun(status)
	if err != nil {
		return result, errors.Trace(err)
	}
	return result, nil
}
