// Package connectivity tracks whether the remote store is expected to be
// reachable, based on the runtime's notion of network state.
package connectivity

import (
	"log/slog"
	"sync"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// Monitor turns a ConnectivitySource into an edge-triggered online signal.
// Listeners only hear about real transitions; repeated signals with the
// same value are dropped.
type Monitor struct {
	src    domain.ConnectivitySource
	logger *slog.Logger

	// notifyMu serializes transitions so listeners hear them in order.
	notifyMu sync.Mutex

	mu           sync.Mutex
	online       bool // last value reported by the source
	forceOffline bool
	listeners    map[int]func(online bool)
	nextID       int
	unsubscribe  func()
}

// NewMonitor subscribes to src and starts tracking its signal.
func NewMonitor(src domain.ConnectivitySource, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		src:       src,
		logger:    logger,
		online:    src.Online(),
		listeners: make(map[int]func(bool)),
	}
	m.unsubscribe = src.Subscribe(m.handle)
	return m
}

// IsOnline returns the current signal.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effective()
}

// Subscribe registers fn for online/offline transitions. fn runs on the
// goroutine that delivered the signal, must not block, and must not call
// SetForceOffline.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetForceOffline overrides the source and reports offline while set.
func (m *Monitor) SetForceOffline(force bool) {
	m.update(func() { m.forceOffline = force })
}

// ForceOffline reports whether the offline override is active.
func (m *Monitor) ForceOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forceOffline
}

// Close stops listening to the source.
func (m *Monitor) Close() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *Monitor) handle(online bool) {
	m.update(func() { m.online = online })
}

func (m *Monitor) update(mutate func()) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	before := m.effective()
	mutate()
	after := m.effective()
	if before == after {
		m.mu.Unlock()
		return
	}
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	if after {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Info("connectivity lost")
	}
	for _, fn := range listeners {
		fn(after)
	}
}

func (m *Monitor) effective() bool {
	return m.online && !m.forceOffline
}
