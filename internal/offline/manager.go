package offline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/lifetrack/internal/connectivity"
	"github.com/mmcdole/lifetrack/internal/domain"
)

// Manager is the surface the UI layer talks to: connectivity, the
// snapshot cache, the pending queue, and resync.
type Manager struct {
	monitor *connectivity.Monitor
	storage *Storage
	engine  *Engine
	userID  string
	logger  *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewManager wires the components together. userID identifies the
// signed-in session; with an empty userID the queue is never drained
// automatically.
func NewManager(
	monitor *connectivity.Monitor,
	storage *Storage,
	engine *Engine,
	userID string,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		monitor: monitor,
		storage: storage,
		engine:  engine,
		userID:  userID,
		logger:  logger,
	}
}

// Start begins draining on every offline->online edge, and drains right
// away when already online.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.unsubscribe = m.monitor.Subscribe(func(online bool) {
		if online {
			m.trigger()
		}
	})
	m.mu.Unlock()

	if m.monitor.IsOnline() {
		m.trigger()
	}
}

// Wait blocks until every automatically triggered drain has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops reacting to connectivity and waits for running drains.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub, cancel := m.unsubscribe, m.cancel
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.wg.Wait()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) trigger() {
	if m.userID == "" {
		m.logger.Debug("skipping resync without a signed-in session")
		return
	}

	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.engine.Drain(ctx); err != nil && !IsDrainInProgress(err) {
			// Already logged by the engine; the queue is retried on the next edge
			m.logger.Debug("resync did not complete", "error", err)
		}
	}()
}

// IsOnline returns the current connectivity signal.
func (m *Manager) IsOnline() bool {
	return m.monitor.IsOnline()
}

// SetForceOffline toggles the manual offline override.
func (m *Manager) SetForceOffline(force bool) {
	m.monitor.SetForceOffline(force)
}

// PendingSync returns the queue mirror for indicators.
func (m *Manager) PendingSync() []domain.PendingOperation {
	return m.storage.PendingSync()
}

// SaveOfflineData replaces the cached snapshot for dataset.
func (m *Manager) SaveOfflineData(dataset string, records []domain.Record) {
	m.storage.SaveOfflineData(dataset, records)
}

// GetOfflineData returns the cached snapshot for dataset.
func (m *Manager) GetOfflineData(dataset string) ([]domain.Record, bool) {
	return m.storage.GetOfflineData(dataset)
}

// AddToPendingSync enqueues a deferred write.
func (m *Manager) AddToPendingSync(op domain.PendingOperation) domain.PendingOperation {
	return m.storage.AddToPendingSync(op)
}

// ClearPendingSync empties the queue.
func (m *Manager) ClearPendingSync() {
	m.storage.ClearPendingSync()
}

// GetPendingSync returns the durable queue contents.
func (m *Manager) GetPendingSync() []domain.PendingOperation {
	return m.storage.GetPendingSync()
}

// MarkPreloaded records a completed full preload.
func (m *Manager) MarkPreloaded(at time.Time) {
	m.storage.MarkPreloaded(at)
}

// PreloadedAt returns the time of the last full preload.
func (m *Manager) PreloadedAt() (time.Time, bool) {
	return m.storage.PreloadedAt()
}

// SyncPendingData drains the queue now and waits for the result.
func (m *Manager) SyncPendingData(ctx context.Context) (int, error) {
	return m.engine.Drain(ctx)
}

// Status returns the resync engine status.
func (m *Manager) Status() Status {
	return m.engine.Status()
}

// UserID returns the signed-in user, or "".
func (m *Manager) UserID() string {
	return m.userID
}

// ForceOffline reports whether the manual offline override is set.
func (m *Manager) ForceOffline() bool {
	return m.monitor.ForceOffline()
}
