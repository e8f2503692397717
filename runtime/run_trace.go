package runtime

import (
	"time"

	"github.com/warriorguo/graphflow/types"
)

// runTrace records what one call of the run loop did.
type runTrace struct {
	startTime time.Time

	executed []string
	groups   [][]string
	results  map[string]*types.NodeExecutionResult
	final    *types.NodeExecutionResult
}

func newRunTrace() *runTrace {
	return &runTrace{
		startTime: time.Now(),
		executed:  make([]string, 0),
		groups:    make([][]string, 0),
		results:   make(map[string]*types.NodeExecutionResult),
	}
}

func (t *runTrace) addGroup(group []string) {
	t.groups = append(t.groups, append([]string(nil), group...))
}

// addExecuted keeps the latest result of a node that ran more than once.
func (t *runTrace) addExecuted(nodeID string, result *types.NodeExecutionResult) {
	t.executed = append(t.executed, nodeID)
	t.results[nodeID] = result
}

func (t *runTrace) setFinal(result *types.NodeExecutionResult) {
	t.final = result
}

/**
 * result builds the ExecutionResult of a run that ended with status.
 * Output comes from the last End node reached. A completed run that never
 * reached an End node succeeds with an empty output.
 */
func (t *runTrace) result(workflowID string, state *types.ExecutionState, status types.ExecutionStatus, runErr error) *types.ExecutionResult {
	r := &types.ExecutionResult{
		WorkflowID:     workflowID,
		RunID:          state.RunID,
		Output:         types.Data{},
		Elapsed:        time.Since(t.startTime),
		ExecutedNodes:  t.executed,
		ParallelGroups: t.groups,
		NodeResults:    t.results,
		FinalContext:   state.Context.Clone(),
		Status:         status,
	}

	if t.final != nil {
		r.Output = t.final.Output.Clone()
		r.ErrorMessage = t.final.ErrorMessage
	}
	switch {
	case runErr != nil:
		r.Success = false
		r.ErrorMessage = runErr.Error()
	case status == types.StatusCompleted:
		r.Success = t.final == nil || t.final.Success
	}
	return r
}
