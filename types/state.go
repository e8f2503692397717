package types

import (
	"time"

	"github.com/warriorguo/graphflow/utils"
)

type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

type ExecutionStatus string

const (
	StatusNotStarted ExecutionStatus = "not_started"
	StatusRunning    ExecutionStatus = "running"
	StatusPaused     ExecutionStatus = "paused"
	StatusCompleted  ExecutionStatus = "completed"
	StatusFailed     ExecutionStatus = "failed"
	// StatusStopped is reported by a run that observed a stop request.
	// It is never persisted: stopping discards the state.
	StatusStopped ExecutionStatus = "stopped"
)

func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// ExecutionContext is the working memory of a run.
type ExecutionContext struct {
	Variables Data              `json:"variables,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{Variables: Data{}, Metadata: map[string]string{}}
}

func (c *ExecutionContext) SetVariable(key string, value any) {
	c.Variables.Set(key, value)
}

func (c *ExecutionContext) GetVariable(key string) (any, bool) {
	if c == nil || c.Variables == nil {
		return nil, false
	}
	return c.Variables.Get(key)
}

func (c *ExecutionContext) SetMetadata(key, value string) {
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	c.Metadata[key] = value
}

func (c *ExecutionContext) GetMetadata(key string) (string, bool) {
	v, exists := c.Metadata[key]
	return v, exists
}

// Merge folds node output variables into the context.
func (c *ExecutionContext) Merge(output Data) {
	c.Variables.Merge(output)
}

// Clone returns the snapshot handed to node executors. Executors never see
// the live context.
func (c *ExecutionContext) Clone() *ExecutionContext {
	return &ExecutionContext{
		Variables: c.Variables.Clone(),
		Metadata:  utils.CloneMap(c.Metadata),
	}
}

/**
 * ExecutionState is what the coordinator persists between levels.
 * The frontier, not NodeStatus, decides what runs next.
 */
type ExecutionState struct {
	RunID      string                `json:"run_id,omitempty"`
	Frontier   []string              `json:"frontier"`
	NodeStatus map[string]NodeStatus `json:"node_status"`
	Context    *ExecutionContext     `json:"context"`

	// Status is empty for states written before it existed.
	Status    ExecutionStatus `json:"status,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	Levels    int             `json:"levels,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		Frontier:   make([]string, 0),
		NodeStatus: make(map[string]NodeStatus),
		Context:    NewExecutionContext(),
	}
}

// AddFrontier appends nodeID unless it is already scheduled.
func (s *ExecutionState) AddFrontier(nodeID string) bool {
	for _, id := range s.Frontier {
		if id == nodeID {
			return false
		}
	}
	s.Frontier = append(s.Frontier, nodeID)
	return true
}

func (s *ExecutionState) RemoveFrontier(nodeID string) {
	kept := s.Frontier[:0]
	for _, id := range s.Frontier {
		if id != nodeID {
			kept = append(kept, id)
		}
	}
	s.Frontier = kept
}

func (s *ExecutionState) SetNodeStatus(nodeID string, status NodeStatus) {
	if s.NodeStatus == nil {
		s.NodeStatus = make(map[string]NodeStatus)
	}
	s.NodeStatus[nodeID] = status
}

func (s *ExecutionState) GetNodeStatus(nodeID string) (NodeStatus, bool) {
	status, exists := s.NodeStatus[nodeID]
	return status, exists
}

func (s *ExecutionState) HasNodeStatus(status NodeStatus) bool {
	for _, st := range s.NodeStatus {
		if st == status {
			return true
		}
	}
	return false
}

// DeriveStatus returns the explicit Status when present. Otherwise it infers
// one from the frontier and the node statuses, which cannot tell a paused run
// from a running one.
func (s *ExecutionState) DeriveStatus() ExecutionStatus {
	if s.Status != "" {
		return s.Status
	}
	if len(s.Frontier) > 0 {
		return StatusRunning
	}
	if s.HasNodeStatus(NodeCompleted) {
		return StatusCompleted
	}
	return StatusFailed
}
