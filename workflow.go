package graphflow

import (
	"context"
	"io"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/graphdef"
	"github.com/warriorguo/graphflow/runtime"
	"github.com/warriorguo/graphflow/store"
	"github.com/warriorguo/graphflow/store/mem"
	"github.com/warriorguo/graphflow/store/postgres"
	"github.com/warriorguo/graphflow/store/redis"
	"github.com/warriorguo/graphflow/types"
)

var (
	_ types.Engine = &Engine{}
)

/**
 * Engine is a Coordinator whose graphs and execution states live in the
 * same store.Store, picked from the options.
 */
type Engine struct {
	*runtime.Coordinator

	store  store.Store
	graphs *runtime.GraphRepository
}

// NewEngine creates a new engine with the given options
func NewEngine(opts ...types.EngineOption) (*Engine, error) {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	s, err := openStore(context.Background(), options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewEngineWithStore(s, options), nil
}

// NewEngineWithStore creates an engine over an already opened store.
func NewEngineWithStore(s store.Store, options *types.EngineOptions) *Engine {
	graphs := runtime.NewGraphRepository(s)
	return &Engine{
		Coordinator: runtime.NewCoordinator(graphs, runtime.NewStateStore(s), options),
		store:       s,
		graphs:      graphs,
	}
}

// openStore follows the precedence PostgresConfig, RedisConfig, MemStore.
func openStore(ctx context.Context, options *types.EngineOptions) (store.Store, error) {
	switch {
	case options.PostgresConfig != nil:
		s, err := postgres.NewPostgresStore(ctx, postgres.FromEngineConfig(options.PostgresConfig))
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
		return s, nil
	case options.RedisConfig != nil:
		s, err := redis.NewRedisStore(ctx, options.RedisConfig)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create Redis store")
		}
		return s, nil
	default:
		if !options.MemStore {
			log.Warnf("no store configured, execution state is kept in memory only")
		}
		return mem.NewMemStore(), nil
	}
}

// SaveGraph validates g and registers it as workflowID, replacing any
// previous graph.
func (e *Engine) SaveGraph(ctx context.Context, workflowID string, g *types.Graph) error {
	return errors.Trace(e.graphs.SaveGraph(ctx, workflowID, g))
}

// SaveDefinition compiles def and registers it under its id.
func (e *Engine) SaveDefinition(ctx context.Context, def *graphdef.Definition) (string, error) {
	g, err := def.Compile()
	if err != nil {
		return "", errors.Trace(err)
	}
	return g.ID, errors.Trace(e.SaveGraph(ctx, g.ID, g))
}

func (e *Engine) RemoveGraph(ctx context.Context, workflowID string) error {
	return errors.Trace(e.graphs.RemoveGraph(ctx, workflowID))
}

func (e *Engine) ListWorkflows(ctx context.Context) ([]string, error) {
	ids, err := e.graphs.ListGraphs(ctx)
	return ids, errors.Trace(err)
}

// Close pauses active runs and then releases the store.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Coordinator.Close(ctx)
	if closer, ok := e.store.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return errors.Trace(err)
}
