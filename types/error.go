package types

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// Error kinds raised by the engine. Test with errors.Is(err, types.NodeTimeout).
const (
	NodeExecutionFailed    = errors.ConstError("node execution failed")
	NodeTimeout            = errors.ConstError("node timeout")
	UnsupportedNodeType    = errors.ConstError("unsupported node type")
	ContextError           = errors.ConstError("context error")
	WorkflowNotFound       = errors.ConstError("workflow not found")
	GraphNotFound          = errors.ConstError("graph not found")
	InvalidGraphStructure  = errors.ConstError("invalid graph structure")
	NodeNotFound           = errors.ConstError("node not found")
	ExecutionLimitExceeded = errors.ConstError("execution limit exceeded")
)

// every engine kind also answers to the closest generic juju kind
var genericKinds = map[errors.ConstError]errors.ConstError{
	NodeTimeout:            errors.Timeout,
	UnsupportedNodeType:    errors.NotSupported,
	ContextError:           errors.BadRequest,
	WorkflowNotFound:       errors.NotFound,
	GraphNotFound:          errors.NotFound,
	InvalidGraphStructure:  errors.NotValid,
	NodeNotFound:           errors.NotFound,
	ExecutionLimitExceeded: errors.QuotaLimitExceeded,
}

var (
	_ error = &EngineError{}
)

type EngineError struct {
	Kind   errors.ConstError
	NodeID string
	Err    error
}

func (e *EngineError) Error() string {
	msg := string(e.Kind)
	if e.NodeID != "" {
		msg += fmt.Sprintf(" [%s]", e.NodeID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	kind, ok := target.(errors.ConstError)
	if !ok {
		return false
	}
	if kind == e.Kind {
		return true
	}
	generic, exists := genericKinds[e.Kind]
	return exists && generic == kind
}

// KindOf returns the engine kind carried by err, if any.
func KindOf(err error) (errors.ConstError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind, true
	}
	return "", false
}

func newEngineError(kind errors.ConstError, nodeID string, err error) error {
	return &EngineError{Kind: kind, NodeID: nodeID, Err: err}
}

func NewNodeExecutionError(nodeID string, err error) error {
	return newEngineError(NodeExecutionFailed, nodeID, err)
}

func NewNodeExecutionErrorf(nodeID, format string, args ...any) error {
	return newEngineError(NodeExecutionFailed, nodeID, errors.Errorf(format, args...))
}

func NewNodeTimeoutError(nodeID string, timeout time.Duration) error {
	return newEngineError(NodeTimeout, nodeID, errors.Errorf("no result within %v", timeout))
}

func NewUnsupportedNodeTypeError(nodeID string, kind NodeKind) error {
	return newEngineError(UnsupportedNodeType, nodeID, errors.Errorf("no executor registered for kind %q", kind))
}

func NewContextErrorf(nodeID, format string, args ...any) error {
	return newEngineError(ContextError, nodeID, errors.Errorf(format, args...))
}

func NewWorkflowNotFoundError(workflowID string) error {
	return newEngineError(WorkflowNotFound, "", errors.Errorf("workflow %s", workflowID))
}

func NewGraphNotFoundError(graphID string) error {
	return newEngineError(GraphNotFound, "", errors.Errorf("graph %s", graphID))
}

func NewInvalidGraphStructureErrorf(nodeID, format string, args ...any) error {
	return newEngineError(InvalidGraphStructure, nodeID, errors.Errorf(format, args...))
}

func NewNodeNotFoundErrorf(nodeID, format string, args ...any) error {
	return newEngineError(NodeNotFound, nodeID, errors.Errorf(format, args...))
}

func NewExecutionLimitError(levels int) error {
	return newEngineError(ExecutionLimitExceeded, "", errors.Errorf("run exceeded %d levels", levels))
}
