package runtime

import (
	"context"
	"sort"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warriorguo/graphflow/store/mem"
	"github.com/warriorguo/graphflow/types"
)

func TestStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(mem.NewMemStore())

	state, err := s.LoadState(ctx, "wf")
	require.NoError(t, err)
	assert.Nil(t, state)

	state = types.NewExecutionState()
	state.RunID = "run-1"
	state.Status = types.StatusPaused
	state.Levels = 2
	state.AddFrontier("b")
	state.SetNodeStatus("a", types.NodeCompleted)
	state.SetNodeStatus("b", types.NodePending)
	state.Context.SetVariable("quote", "show me the money")
	state.Context.SetMetadata(MetadataWorkflowID, "wf")
	require.NoError(t, s.SaveState(ctx, "wf", state))
	assert.False(t, state.UpdatedAt.IsZero())

	loaded, err := s.LoadState(ctx, "wf")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, types.StatusPaused, loaded.Status)
	assert.Equal(t, 2, loaded.Levels)
	assert.Equal(t, []string{"b"}, loaded.Frontier)
	assert.Equal(t, types.NodeCompleted, loaded.NodeStatus["a"])
	v, _ := loaded.Context.GetVariable("quote")
	assert.Equal(t, "show me the money", v)
	workflowID, _ := loaded.Context.GetMetadata(MetadataWorkflowID)
	assert.Equal(t, "wf", workflowID)

	require.NoError(t, s.ClearState(ctx, "wf"))
	require.NoError(t, s.ClearState(ctx, "wf"))
	loaded, err = s.LoadState(ctx, "wf")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStateStoreList(t *testing.T) {
	ctx := context.Background()
	backend := mem.NewMemStore()
	s := NewStateStore(backend)
	repo := NewGraphRepository(backend)

	for _, id := range []string{"wf1", "wf2"} {
		require.NoError(t, s.SaveState(ctx, id, types.NewExecutionState()))
	}
	require.NoError(t, repo.SaveGraph(ctx, "wf3", chainGraph(t)))

	ids := make([]string, 0)
	require.NoError(t, s.ListStates(ctx, func(workflowID string) bool {
		ids = append(ids, workflowID)
		return true
	}))
	sort.Strings(ids)
	assert.Equal(t, []string{"wf1", "wf2"}, ids)

	graphs, err := repo.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wf3"}, graphs)
}

func TestStateStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(mem.NewMemStoreWithErrHandler(func() error {
		return errors.New("disk on fire")
	}))

	err := s.SaveState(ctx, "wf", types.NewExecutionState())
	assert.ErrorContains(t, err, "disk on fire")
	_, err = s.LoadState(ctx, "wf")
	assert.ErrorContains(t, err, "disk on fire")
}

func TestGraphRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGraphRepository(mem.NewMemStore())

	g, err := repo.GetWorkflowGraph(ctx, "wf")
	require.NoError(t, err)
	assert.Nil(t, g)

	err = repo.SaveGraph(ctx, "wf", nil)
	assert.True(t, errors.Is(err, errors.BadRequest))

	invalid := newGraphBuilder(t).node("a", types.NodeToolCall).build()
	err = repo.SaveGraph(ctx, "wf", invalid)
	assert.True(t, errors.Is(err, types.InvalidGraphStructure))

	original := chainGraph(t)
	original.Metadata.Name = "chain"
	original.Nodes["a"].Config = types.Data{"tool": "search"}
	require.NoError(t, repo.SaveGraph(ctx, "wf", original))

	g, err = repo.GetWorkflowGraph(ctx, "wf")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, original.ID, g.ID)
	assert.Equal(t, "chain", g.Metadata.Name)
	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 3)
	assert.Equal(t, "search", g.Nodes["a"].Config["tool"])
	assert.True(t, g.HasEdge("a", "b"))

	require.NoError(t, repo.RemoveGraph(ctx, "wf"))
	g, err = repo.GetWorkflowGraph(ctx, "wf")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGraphRepositoryServesCoordinator(t *testing.T) {
	ctx := context.Background()
	backend := mem.NewMemStore()
	repo := NewGraphRepository(backend)
	require.NoError(t, repo.SaveGraph(ctx, "wf", chainGraph(t)))

	c := NewCoordinator(repo, NewStateStore(backend), newOptions())
	defer c.Close(ctx)
	registerAll(t, c.registry, newRecorder())

	result, err := c.CoordinateExecution(ctx, "wf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "a", "b", "end"}, result.ExecutedNodes)
}
