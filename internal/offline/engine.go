package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// State is the resync engine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDraining
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the engine for display.
type Status struct {
	State     State
	LastError error
	LastSync  time.Time // last fully successful drain
	Replayed  int       // operations replayed by that drain
}

// Engine drains the pending queue against the remote store.
//
// A drain replays every queued operation in enqueue order and clears the
// queue only when all of them succeeded. Any failure aborts the drain and
// leaves the whole queue in place, so the next drain starts again from
// the first operation. Delivery is at-least-once: operations that
// succeeded before the failure are replayed again, and the remote store's
// id-keyed upserts are what keep that harmless.
type Engine struct {
	queue  *Storage
	remote domain.RemoteStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	status Status
}

// NewEngine creates an idle engine.
func NewEngine(queue *Storage, remote domain.RemoteStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{queue: queue, remote: remote, logger: logger, now: time.Now}
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.Status().State
}

// Drain replays the pending queue. It returns the number of operations
// replayed, or ErrDrainInProgress if another drain is running.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	e.mu.Lock()
	if e.status.State == StateDraining {
		e.mu.Unlock()
		return 0, domain.ErrDrainInProgress
	}
	e.status.State = StateDraining
	e.mu.Unlock()

	batch := e.queue.GetPendingSync()
	if len(batch) == 0 {
		e.finish(StateIdle, nil, 0)
		return 0, nil
	}

	e.logger.Info("syncing offline data", "pending", len(batch))

	for i, op := range batch {
		if err := e.apply(ctx, op); err != nil {
			e.logger.Error("error syncing offline data",
				"error", err, "index", i, "id", op.ID, "table", op.Collection, "operation", op.Kind)
			e.finish(StateFailed, err, 0)
			return 0, err
		}
	}

	e.queue.completeBatch(batch)
	e.logger.Info("offline data synced successfully", "count", len(batch))
	e.finish(StateIdle, nil, len(batch))
	return len(batch), nil
}

func (e *Engine) finish(state State, err error, replayed int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.status.State = state
	switch {
	case err != nil:
		e.status.LastError = err
	case state == StateIdle && replayed > 0:
		e.status.LastError = nil
		e.status.LastSync = e.now()
		e.status.Replayed = replayed
	case state == StateIdle:
		e.status.LastError = nil
	}
}

// apply dispatches one operation. Malformed operations are logged and
// skipped so they cannot block the queue forever. An update whose row is
// gone counts as applied: a later queued delete may already have run.
func (e *Engine) apply(ctx context.Context, op domain.PendingOperation) error {
	if !op.Kind.Valid() {
		e.logger.Warn("skipping queued operation", "id", op.ID, "table", op.Collection,
			"error", fmt.Errorf("%w: %q", domain.ErrUnknownOperation, op.Kind))
		return nil
	}

	switch op.Kind {
	case domain.OperationInsert:
		_, err := e.remote.Insert(ctx, op.Collection, op.Payload)
		return wrapOp(op, err)

	case domain.OperationUpdate:
		id := op.TargetID()
		if id == "" {
			e.logger.Warn("skipping update without id", "id", op.ID, "table", op.Collection)
			return nil
		}
		_, err := e.remote.Update(ctx, op.Collection, id, op.Payload)
		if errors.Is(err, domain.ErrNoMatch) {
			e.logger.Debug("update matched no row", "id", op.ID, "table", op.Collection, "target", id)
			return nil
		}
		return wrapOp(op, err)

	case domain.OperationDelete:
		id := op.TargetID()
		if id == "" {
			e.logger.Warn("skipping delete without id", "id", op.ID, "table", op.Collection)
			return nil
		}
		return wrapOp(op, e.remote.Delete(ctx, op.Collection, id))
	}
	return nil
}

func wrapOp(op domain.PendingOperation, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w", op.Kind, op.Collection, err)
}

// IsDrainInProgress reports whether err came from an overlapping drain.
func IsDrainInProgress(err error) bool {
	return errors.Is(err, domain.ErrDrainInProgress)
}
