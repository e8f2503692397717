package types

import "time"

// NodeExecutionResult is produced once per node execution and never changed
// afterwards.
type NodeExecutionResult struct {
	Success      bool          `json:"success"`
	Output       Data          `json:"output,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

func NewSuccessResult(output Data) *NodeExecutionResult {
	if output == nil {
		output = Data{}
	}
	return &NodeExecutionResult{Success: true, Output: output}
}

type ExecutionResult struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	// Success, Output and ErrorMessage come from the last End node reached.
	Success      bool          `json:"success"`
	Output       Data          `json:"output,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`

	ExecutedNodes  []string                        `json:"executed_nodes"`
	ParallelGroups [][]string                      `json:"parallel_groups,omitempty"`
	NodeResults    map[string]*NodeExecutionResult `json:"node_results,omitempty"`
	FinalContext   *ExecutionContext               `json:"final_context,omitempty"`
	Status         ExecutionStatus                 `json:"status"`
}
