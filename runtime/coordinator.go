package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/types"
	"github.com/warriorguo/graphflow/validator"
)

const (
	MetadataWorkflowID = "workflow_id"
	MetadataRunID      = "run_id"
)

var (
	_ types.Engine = &Coordinator{}
)

/**
 * Coordinator owns the run loop of every workflow. It resolves graphs through
 * a GraphProvider, checkpoints ExecutionState through a StateStore after the
 * seed and after every level, and serves pause/resume/stop requests.
 * Any node failure fails the whole run, Start and End nodes included.
 */
type Coordinator struct {
	opts *types.EngineOptions

	registry *NodeRegistry
	router   *router
	runner   *levelRunner
	metrics  *engineMetrics

	graphs types.GraphProvider
	states types.StateStore
	runs   *runRegistry
}

func NewCoordinator(graphs types.GraphProvider, states types.StateStore, opts *types.EngineOptions) *Coordinator {
	if opts == nil {
		opts = types.NewEngineOptions()
	}
	c := &Coordinator{
		opts:     opts,
		registry: NewNodeRegistry(),
		router:   newRouter(),
		metrics:  newEngineMetrics(opts.MetricsNamespace, opts.MetricsRegisterer),
		graphs:   graphs,
		states:   states,
		runs:     newRunRegistry(),
	}
	c.runner = newLevelRunner(c.registry, c.router, c.metrics, opts)
	return c
}

func (c *Coordinator) RegisterNodeExecutor(kind types.NodeKind, executor types.NodeExecutor) error {
	return errors.Trace(c.registry.Register(kind, executor))
}

// SetEdgeDecider replaces the decision of FlexibleConditional edges.
// nil restores DefaultEdgeDecider.
func (c *Coordinator) SetEdgeDecider(decider types.EdgeDecider) {
	c.router.setDecider(decider)
}

func (c *Coordinator) loadGraph(ctx context.Context, workflowID string) (*types.Graph, error) {
	g, err := c.graphs.GetWorkflowGraph(ctx, workflowID)
	if err != nil {
		return nil, errors.Annotatef(err, "load graph of %s", workflowID)
	}
	if g == nil {
		return nil, types.NewWorkflowNotFoundError(workflowID)
	}
	return g, nil
}

func (c *Coordinator) CoordinateExecution(ctx context.Context, workflowID string, variables types.Data) (*types.ExecutionResult, error) {
	// the run is registered before anything else so Close waits for it
	runID := uuid.NewString()
	h, err := c.runs.add(workflowID, runID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer c.runs.remove(workflowID)

	g, err := c.loadGraph(ctx, workflowID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if c.opts.ValidateBeforeRun {
		if err := validator.Validate(g).Err(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	state := seedState(g, variables)
	state.RunID = runID
	state.Status = types.StatusRunning
	state.Context.SetMetadata(MetadataWorkflowID, workflowID)
	state.Context.SetMetadata(MetadataRunID, runID)

	if err := c.states.SaveState(ctx, workflowID, state); err != nil {
		return nil, errors.Annotatef(err, "save initial state of %s", workflowID)
	}
	return c.drive(ctx, workflowID, g, state, h)
}

func (c *Coordinator) ResumeExecution(ctx context.Context, workflowID string) (*types.ExecutionResult, error) {
	h, err := c.runs.add(workflowID, "")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer c.runs.remove(workflowID)

	state, err := c.states.LoadState(ctx, workflowID)
	if err != nil {
		return nil, errors.Annotatef(err, "load state of %s", workflowID)
	}
	if state == nil {
		return nil, errors.NotFoundf("execution state of %s", workflowID)
	}
	g, err := c.loadGraph(ctx, workflowID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	h.setRunID(state.RunID)

	state.Status = types.StatusRunning
	state.LastError = ""
	if err := c.states.SaveState(ctx, workflowID, state); err != nil {
		return nil, errors.Annotatef(err, "save resumed state of %s", workflowID)
	}
	return c.drive(ctx, workflowID, g, state, h)
}

func (c *Coordinator) drive(ctx context.Context, workflowID string, g *types.Graph,
	state *types.ExecutionState, h *runHandle) (*types.ExecutionResult, error) {
	ctx, span := startRunSpan(ctx, workflowID, state.RunID)
	logger := log.WithFields(log.Fields{"workflow_id": workflowID, "run_id": state.RunID})
	logger.Debugf("run started with frontier %v", state.Frontier)

	rt := newRunTrace()
	status, runErr := c.runner.run(ctx, g, state, rt, func(ctx context.Context, state *types.ExecutionState) (types.ExecutionStatus, error) {
		if err := c.states.SaveState(ctx, workflowID, state); err != nil {
			return types.StatusFailed, errors.Annotatef(err, "save state of %s at level %d", workflowID, state.Levels)
		}
		// a pause has nothing left to hold once the frontier is empty, a stop
		// still discards the state
		status := h.takeNextStatus()
		if len(state.Frontier) == 0 && status != types.StatusStopped {
			return types.StatusRunning, nil
		}
		return status, nil
	})
	endSpan(span, runErr)

	// the caller's context may be gone, finishing bookkeeping must not depend on it
	saveCtx := context.WithoutCancel(ctx)
	state.Status = status
	switch status {
	case types.StatusStopped:
		if err := c.states.ClearState(saveCtx, workflowID); err != nil {
			logger.Errorf("failed to clear stopped state: %v", err)
			runErr = errors.Annotatef(err, "clear state of %s", workflowID)
		}
	default:
		if runErr != nil {
			state.LastError = runErr.Error()
		}
		if err := c.states.SaveState(saveCtx, workflowID, state); err != nil {
			logger.Errorf("failed to save final state: %v", err)
			if runErr == nil {
				runErr = errors.Annotatef(err, "save final state of %s", workflowID)
			}
		}
	}

	c.metrics.observeRun(status)
	logger.Debugf("run ended as %s after %d level(s) in %v, executed %v",
		status, state.Levels, time.Since(h.createTime), rt.executed)
	result := rt.result(workflowID, state, status, runErr)
	if runErr != nil {
		return result, errors.Trace(runErr)
	}
	return result, nil
}

// PauseExecution asks a running workflow to pause after its current level.
// An interrupted run that is no longer active is marked paused directly.
func (c *Coordinator) PauseExecution(ctx context.Context, workflowID string) error {
	if h := c.runs.get(workflowID); h != nil {
		return errors.Trace(h.setNextStatus(types.StatusPaused))
	}

	state, err := c.states.LoadState(ctx, workflowID)
	if err != nil {
		return errors.Trace(err)
	}
	if state == nil {
		return errors.NotFoundf("execution of %s", workflowID)
	}
	if state.DeriveStatus().IsTerminal() {
		return errors.Forbiddenf("execution of %s already %s", workflowID, state.DeriveStatus())
	}
	state.Status = types.StatusPaused
	return errors.Trace(c.states.SaveState(ctx, workflowID, state))
}

// StopExecution discards the execution state. A running workflow stops after
// its current level and clears the state itself.
func (c *Coordinator) StopExecution(ctx context.Context, workflowID string) error {
	if h := c.runs.get(workflowID); h != nil {
		return errors.Trace(h.setNextStatus(types.StatusStopped))
	}
	return errors.Trace(c.states.ClearState(ctx, workflowID))
}

func (c *Coordinator) GetExecutionStatus(ctx context.Context, workflowID string) (types.ExecutionStatus, error) {
	if c.runs.exists(workflowID) {
		return types.StatusRunning, nil
	}
	state, err := c.states.LoadState(ctx, workflowID)
	if err != nil {
		return "", errors.Trace(err)
	}
	if state == nil {
		return types.StatusNotStarted, nil
	}
	return state.DeriveStatus(), nil
}

/**
 * ReloadExecutions marks every persisted run that was interrupted while
 * running as paused, so it can be resumed. It returns their workflow ids.
 */
func (c *Coordinator) ReloadExecutions(ctx context.Context) ([]string, error) {
	lister, ok := c.states.(interface {
		ListStates(ctx context.Context, iterator func(workflowID string) bool) error
	})
	if !ok {
		return nil, errors.NotSupportedf("listing states")
	}

	ids := make([]string, 0)
	if err := lister.ListStates(ctx, func(workflowID string) bool {
		ids = append(ids, workflowID)
		return true
	}); err != nil {
		return nil, errors.Trace(err)
	}

	interrupted := make([]string, 0)
	for _, workflowID := range ids {
		if c.runs.exists(workflowID) {
			continue
		}
		state, err := c.states.LoadState(ctx, workflowID)
		if err != nil {
			return interrupted, errors.Trace(err)
		}
		if state == nil || state.DeriveStatus() != types.StatusRunning {
			continue
		}
		state.Status = types.StatusPaused
		if err := c.states.SaveState(ctx, workflowID, state); err != nil {
			return interrupted, errors.Trace(err)
		}
		interrupted = append(interrupted, workflowID)
	}
	return interrupted, nil
}

func (c *Coordinator) RenderGraph(ctx context.Context, workflowID string) (string, error) {
	g, err := c.loadGraph(ctx, workflowID)
	if err != nil {
		return "", errors.Trace(err)
	}
	return renderDOT(g, nil)
}

func (c *Coordinator) RenderExecution(ctx context.Context, workflowID string) (string, error) {
	g, err := c.loadGraph(ctx, workflowID)
	if err != nil {
		return "", errors.Trace(err)
	}
	state, err := c.states.LoadState(ctx, workflowID)
	if err != nil {
		return "", errors.Trace(err)
	}
	if state == nil {
		return "", errors.NotFoundf("execution state of %s", workflowID)
	}
	return renderDOT(g, state)
}

// Close refuses new runs, pauses every active run, waits for them to
// checkpoint and releases the worker pool. When ctx ends first the pool is
// released in the background once the last run returns.
func (c *Coordinator) Close(ctx context.Context) error {
	if !c.runs.close() {
		return nil
	}
	if err := c.runs.pauseAll(ctx); err != nil {
		go func() {
			c.runs.wait()
			c.runner.stop()
		}()
		return errors.Trace(err)
	}
	c.runner.stop()
	return nil
}
