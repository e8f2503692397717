package types

import (
	"context"
)

// NodeExecutor runs one node. It receives a snapshot of the execution
// context and must not keep it after returning.
type NodeExecutor interface {
	Execute(ctx context.Context, node *Node, execCtx *ExecutionContext) (*NodeExecutionResult, error)
}

type NodeExecutorFunc func(ctx context.Context, node *Node, execCtx *ExecutionContext) (*NodeExecutionResult, error)

func (f NodeExecutorFunc) Execute(ctx context.Context, node *Node, execCtx *ExecutionContext) (*NodeExecutionResult, error) {
	return f(ctx, node, execCtx)
}

// GraphProvider resolves a workflow id to its graph.
// A nil graph with a nil error means the workflow does not exist.
type GraphProvider interface {
	GetWorkflowGraph(ctx context.Context, workflowID string) (*Graph, error)
}

type StateStore interface {
	SaveState(ctx context.Context, workflowID string, state *ExecutionState) error
	/**
	 * LoadState returns nil, nil when no state has been saved.
	 */
	LoadState(ctx context.Context, workflowID string) (*ExecutionState, error)
	/**
	 * clearing an absent state would NOT return error
	 */
	ClearState(ctx context.Context, workflowID string) error
}

// EdgeDecider decides whether a FlexibleConditional edge fires.
type EdgeDecider interface {
	ShouldTraverse(edge *Edge, result *NodeExecutionResult, execCtx *ExecutionContext) bool
}

type EdgeDeciderFunc func(edge *Edge, result *NodeExecutionResult, execCtx *ExecutionContext) bool

func (f EdgeDeciderFunc) ShouldTraverse(edge *Edge, result *NodeExecutionResult, execCtx *ExecutionContext) bool {
	return f(edge, result, execCtx)
}

type Engine interface {
	RegisterNodeExecutor(kind NodeKind, executor NodeExecutor) error
	SetEdgeDecider(decider EdgeDecider)

	/**
	 * CoordinateExecution runs the workflow until its frontier is empty,
	 * a node fails, or the run is paused or stopped.
	 * A paused or stopped run returns its partial result and a nil error.
	 */
	CoordinateExecution(ctx context.Context, workflowID string, variables Data) (*ExecutionResult, error)
	PauseExecution(ctx context.Context, workflowID string) error
	ResumeExecution(ctx context.Context, workflowID string) (*ExecutionResult, error)
	StopExecution(ctx context.Context, workflowID string) error
	GetExecutionStatus(ctx context.Context, workflowID string) (ExecutionStatus, error)

	RenderGraph(ctx context.Context, workflowID string) (string, error)
	RenderExecution(ctx context.Context, workflowID string) (string, error)

	Close(ctx context.Context) error
}
