package runtime

import (
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/warriorguo/graphflow/types"
)

// NodeRegistry maps node kinds to the executors that run them.
type NodeRegistry struct {
	mu        sync.RWMutex
	executors map[types.NodeKind]types.NodeExecutor
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{executors: make(map[types.NodeKind]types.NodeExecutor)}
}

func (r *NodeRegistry) Register(kind types.NodeKind, executor types.NodeExecutor) error {
	if kind == "" {
		return errors.BadRequestf("node kind is empty")
	}
	if executor == nil {
		return errors.BadRequestf("executor of %s is nil", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[kind]; exists {
		return errors.AlreadyExistsf("executor of %s", kind)
	}
	r.executors[kind] = executor
	return nil
}

func (r *NodeRegistry) RegisterFunc(kind types.NodeKind, fn types.NodeExecutorFunc) error {
	if fn == nil {
		return errors.BadRequestf("executor of %s is nil", kind)
	}
	return r.Register(kind, fn)
}

func (r *NodeRegistry) Get(kind types.NodeKind) (types.NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, exists := r.executors[kind]
	return executor, exists
}

func (r *NodeRegistry) Kinds() []types.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.NodeKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
