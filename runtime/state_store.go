package runtime

import (
	"context"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/store"
	"github.com/warriorguo/graphflow/types"
	"github.com/warriorguo/graphflow/utils"
	"github.com/warriorguo/graphflow/validator"
)

const (
	StatePath = "/state/"
	GraphPath = "/graph/"
)

var (
	_ types.StateStore    = &StateStore{}
	_ types.GraphProvider = &GraphRepository{}
)

// StateStore keeps execution states in a store.Store, keyed by workflow id.
type StateStore struct {
	store store.Store
}

func NewStateStore(s store.Store) *StateStore {
	return &StateStore{store: s}
}

func (s *StateStore) SaveState(ctx context.Context, workflowID string, state *types.ExecutionState) error {
	state.UpdatedAt = time.Now().UTC()
	b, err := utils.Serialize(state)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.store.Set(ctx, StatePath, workflowID, b))
}

func (s *StateStore) LoadState(ctx context.Context, workflowID string) (*types.ExecutionState, error) {
	b, err := s.store.Get(ctx, StatePath, workflowID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, nil
	}

	state := types.NewExecutionState()
	if err := utils.Unserialize(b, state); err != nil {
		return nil, errors.Annotatef(err, "unserialize state of %s", workflowID)
	}
	if state.Context == nil {
		state.Context = types.NewExecutionContext()
	}
	return state, nil
}

func (s *StateStore) ClearState(ctx context.Context, workflowID string) error {
	return errors.Trace(s.store.Remove(ctx, StatePath, workflowID))
}

// ListStates calls iterator with the id of every workflow that has a saved state.
func (s *StateStore) ListStates(ctx context.Context, iterator func(workflowID string) bool) error {
	return errors.Trace(s.store.List(ctx, StatePath, iterator))
}

// GraphRepository keeps graphs in a store.Store and serves them to the coordinator.
type GraphRepository struct {
	store store.Store
}

func NewGraphRepository(s store.Store) *GraphRepository {
	return &GraphRepository{store: s}
}

// SaveGraph validates g and stores it under workflowID. Invalid graphs are
// rejected with every problem found.
func (r *GraphRepository) SaveGraph(ctx context.Context, workflowID string, g *types.Graph) error {
	if g == nil {
		return errors.BadRequestf("graph of %s is nil", workflowID)
	}
	result := validator.Validate(g)
	for _, w := range result.Warnings {
		log.Debugf("graph %s: %s", workflowID, w)
	}
	if err := result.Err(); err != nil {
		return errors.Trace(err)
	}

	b, err := utils.Serialize(g)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(r.store.Set(ctx, GraphPath, workflowID, b))
}

func (r *GraphRepository) GetWorkflowGraph(ctx context.Context, workflowID string) (*types.Graph, error) {
	b, err := r.store.Get(ctx, GraphPath, workflowID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, nil
	}

	g := &types.Graph{}
	if err := utils.Unserialize(b, g); err != nil {
		return nil, errors.Annotatef(err, "unserialize graph of %s", workflowID)
	}
	return g, nil
}

func (r *GraphRepository) RemoveGraph(ctx context.Context, workflowID string) error {
	return errors.Trace(r.store.Remove(ctx, GraphPath, workflowID))
}

func (r *GraphRepository) ListGraphs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := r.store.List(ctx, GraphPath, func(workflowID string) bool {
		ids = append(ids, workflowID)
		return true
	})
	return ids, errors.Trace(err)
}
