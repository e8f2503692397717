package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warriorguo/graphflow/store/mem"
	"github.com/warriorguo/graphflow/types"
)

func newOptions(opts ...types.EngineOption) *types.EngineOptions {
	options := types.NewEngineOptions()
	options.MemStore = true
	options.NodeTimeout = time.Second
	for _, opt := range opts {
		opt(options)
	}
	return options
}

type graphBuilder struct {
	t *testing.T
	g *types.Graph
	n int
}

func newGraphBuilder(t *testing.T) *graphBuilder {
	return &graphBuilder{t: t, g: types.NewGraph()}
}

func (b *graphBuilder) node(id string, kind types.NodeKind) *graphBuilder {
	require.NoError(b.t, b.g.AddNode(&types.Node{ID: id, Kind: kind, Config: types.Data{}}))
	return b
}

func (b *graphBuilder) edge(source, target string) *graphBuilder {
	return b.typedEdge(source, target, types.EdgeSimple, "")
}

func (b *graphBuilder) cond(source, target, expr string) *graphBuilder {
	return b.typedEdge(source, target, types.EdgeConditional, expr)
}

func (b *graphBuilder) typedEdge(source, target string, kind types.EdgeKind, expr string) *graphBuilder {
	b.n++
	require.NoError(b.t, b.g.AddEdge(&types.Edge{
		ID:        fmt.Sprintf("e%d", b.n),
		Source:    source,
		Target:    target,
		Kind:      kind,
		Condition: expr,
	}))
	return b
}

func (b *graphBuilder) build() *types.Graph {
	return b.g
}

/**
 * recorder is a node executor that records every call and emits the
 * configured outputs. Behaviour per node id can be overridden with hooks.
 */
type recorder struct {
	mu      sync.Mutex
	calls   []string
	counts  map[string]int
	outputs map[string]types.Data
	hooks   map[string]types.NodeExecutorFunc

	running    int
	maxRunning int
}

func newRecorder() *recorder {
	return &recorder{
		counts:  make(map[string]int),
		outputs: make(map[string]types.Data),
		hooks:   make(map[string]types.NodeExecutorFunc),
	}
}

func (r *recorder) output(nodeID string, data types.Data) *recorder {
	r.outputs[nodeID] = data
	return r
}

func (r *recorder) hook(nodeID string, fn types.NodeExecutorFunc) *recorder {
	r.hooks[nodeID] = fn
	return r
}

func (r *recorder) Execute(ctx context.Context, node *types.Node, execCtx *types.ExecutionContext) (*types.NodeExecutionResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, node.ID)
	r.counts[node.ID]++
	r.running++
	if r.running > r.maxRunning {
		r.maxRunning = r.running
	}
	hook := r.hooks[node.ID]
	output := r.outputs[node.ID].Clone()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running--
		r.mu.Unlock()
	}()

	if hook != nil {
		return hook(ctx, node, execCtx)
	}
	return types.NewSuccessResult(output), nil
}

func (r *recorder) count(nodeID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[nodeID]
}

func (r *recorder) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var allKinds = []types.NodeKind{
	types.NodeStart,
	types.NodeEnd,
	types.NodeModelCall,
	types.NodeToolCall,
	types.NodeCondition,
	types.NodeWait,
}

func registerAll(t *testing.T, registry *NodeRegistry, executor types.NodeExecutor) {
	for _, kind := range allKinds {
		require.NoError(t, registry.Register(kind, executor))
	}
}

// memGraphs serves graphs from a map, it is the GraphProvider of most tests.
type memGraphs struct {
	mu     sync.Mutex
	graphs map[string]*types.Graph
}

func newMemGraphs() *memGraphs {
	return &memGraphs{graphs: make(map[string]*types.Graph)}
}

func (m *memGraphs) put(workflowID string, g *types.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[workflowID] = g
}

func (m *memGraphs) GetWorkflowGraph(ctx context.Context, workflowID string) (*types.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graphs[workflowID], nil
}

func newTestCoordinator(t *testing.T, opts ...types.EngineOption) (*Coordinator, *memGraphs, *StateStore, *recorder) {
	graphs := newMemGraphs()
	states := NewStateStore(mem.NewMemStore())
	c := NewCoordinator(graphs, states, newOptions(opts...))
	rec := newRecorder()
	for _, kind := range allKinds {
		require.NoError(t, c.RegisterNodeExecutor(kind, rec))
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, graphs, states, rec
}
