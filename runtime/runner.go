package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/graphflow/types"
)

// runRegistry tracks the runs active in this process, one per workflow.
// Once closed it admits no new run.
type runRegistry struct {
	mu     sync.Mutex
	runs   map[string]*runHandle
	closed bool
	wg     sync.WaitGroup
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*runHandle)}
}

func (b *runRegistry) exists(workflowID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, exists := b.runs[workflowID]
	return exists
}

func (b *runRegistry) get(workflowID string) *runHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.runs[workflowID]
}

func (b *runRegistry) add(workflowID, runID string) (*runHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.MethodNotAllowedf("coordinator closed")
	}
	if _, exists := b.runs[workflowID]; exists {
		return nil, errors.AlreadyExistsf("running execution of %s", workflowID)
	}
	h := newRunHandle(workflowID, runID)
	b.runs[workflowID] = h
	b.wg.Add(1)
	return h, nil
}

func (b *runRegistry) remove(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, exists := b.runs[workflowID]
	if !exists {
		return
	}
	close(h.doneCh)
	delete(b.runs, workflowID)
	b.wg.Done()
}

// close stops admitting runs. It returns false when already closed.
func (b *runRegistry) close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.closed = true
	return true
}

// wait blocks until every admitted run was removed.
func (b *runRegistry) wait() {
	b.wg.Wait()
}

// pauseAll asks every active run to pause and waits for them to return.
func (b *runRegistry) pauseAll(ctx context.Context) error {
	b.mu.Lock()
	handles := make([]*runHandle, 0, len(b.runs))
	for _, h := range b.runs {
		handles = append(handles, h)
	}
	b.mu.Unlock()

	var retErr error
	for _, h := range handles {
		if err := h.setNextStatus(types.StatusPaused); err != nil {
			log.Errorf("%s run %s failed to request pause: %v", h.workflowID, h.getRunID(), err)
		}
	}
	for _, h := range handles {
		select {
		case <-h.doneCh:
		case <-ctx.Done():
			retErr = errors.Annotatef(ctx.Err(), "wait for %s run %s", h.workflowID, h.getRunID())
		}
	}
	return retErr
}

/**
 * runHandle carries control requests to a run. The run loop only looks at
 * them between levels, so a level that already started always finishes.
 */
type runHandle struct {
	workflowID string
	createTime time.Time
	doneCh     chan struct{}

	mu         sync.Mutex
	runID      string
	nextStatus types.ExecutionStatus
}

func newRunHandle(workflowID, runID string) *runHandle {
	return &runHandle{
		workflowID: workflowID,
		runID:      runID,
		createTime: time.Now(),
		doneCh:     make(chan struct{}),
	}
}

// setRunID names the run once it is known, resumed runs learn it from their state.
func (h *runHandle) setRunID(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runID = runID
}

func (h *runHandle) getRunID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runID
}

func (h *runHandle) setNextStatus(status types.ExecutionStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !canSetStatus(h.nextStatus, status) {
		return errors.Forbiddenf("unsupport to set status from %v to %v", h.nextStatus, status)
	}
	h.nextStatus = status
	return nil
}

// canSetStatus tells whether a pending request may be replaced. Stop wins
// over pause and cannot be taken back.
func canSetStatus(current, status types.ExecutionStatus) bool {
	switch status {
	case types.StatusPaused:
		return current == "" || current == types.StatusPaused
	case types.StatusStopped:
		return true
	default:
		return false
	}
}

// takeNextStatus returns the pending request, StatusRunning when there is none.
func (h *runHandle) takeNextStatus() types.ExecutionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.nextStatus
	h.nextStatus = ""
	if status == "" {
		return types.StatusRunning
	}
	return status
}
