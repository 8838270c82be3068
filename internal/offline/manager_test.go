package offline

import (
	"context"
	"testing"

	"github.com/mmcdole/lifetrack/internal/connectivity"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/remote/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	src     *connectivity.Manual
	storage *Storage
	remote  *memory.Store
	manager *Manager
}

func newHarness(t *testing.T, online bool, userID string) *harness {
	t.Helper()
	src := connectivity.NewManual(online)
	monitor := connectivity.NewMonitor(src, nil)
	storage := NewStorage(newMemoryKV(t), nil)
	remote := memory.New()
	engine := NewEngine(storage, remote, nil)
	m := NewManager(monitor, storage, engine, userID, nil)
	t.Cleanup(func() {
		m.Close()
		monitor.Close()
	})
	return &harness{src: src, storage: storage, remote: remote, manager: m}
}

func TestManager_DrainsOnReconnect(t *testing.T) {
	h := newHarness(t, false, "user-1")
	h.manager.Start(context.Background())

	op := h.manager.AddToPendingSync(domain.PendingOperation{
		Collection: domain.DatasetStudySessions,
		Kind:       domain.OperationInsert,
		Payload:    domain.Record{"id": "s1", "subject": "Math", "duration": 1.5, "date": "2024-03-01"},
	})
	assert.False(t, h.manager.IsOnline())
	require.Len(t, h.manager.PendingSync(), 1)
	assert.Equal(t, op.ID, h.manager.PendingSync()[0].ID)
	assert.Empty(t, h.remote.Calls())

	h.src.Set(true)
	h.manager.Wait()

	assert.True(t, h.manager.IsOnline())
	assert.Empty(t, h.manager.PendingSync())
	rows := h.remote.Rows(domain.DatasetStudySessions)
	require.Len(t, rows, 1)
	assert.Equal(t, "Math", rows[0]["subject"])
	assert.Equal(t, 1.5, rows[0]["duration"])
	assert.Equal(t, "2024-03-01", rows[0]["date"])
}

func TestManager_DrainsOnStartWhenOnline(t *testing.T) {
	h := newHarness(t, true, "user-1")
	enqueueSessions(h.storage, 2)

	h.manager.Start(context.Background())
	h.manager.Wait()

	assert.Empty(t, h.manager.GetPendingSync())
	assert.Len(t, h.remote.Rows(domain.DatasetStudySessions), 2)
}

func TestManager_NoSessionNoAutoDrain(t *testing.T) {
	h := newHarness(t, false, "")
	h.manager.Start(context.Background())
	enqueueSessions(h.storage, 1)

	h.src.Set(true)
	h.manager.Wait()
	assert.Len(t, h.manager.GetPendingSync(), 1)

	// Manual trigger still works
	n, err := h.manager.SyncPendingData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.manager.GetPendingSync())
}

func TestManager_OnlyOfflineToOnlineEdgeTriggers(t *testing.T) {
	h := newHarness(t, true, "user-1")
	h.manager.Start(context.Background())
	h.manager.Wait()
	before := len(h.remote.Calls())

	enqueueSessions(h.storage, 1)
	h.src.Set(true) // still online, no edge
	h.manager.Wait()
	assert.Len(t, h.remote.Calls(), before)
	assert.Len(t, h.manager.GetPendingSync(), 1)

	h.manager.SetForceOffline(true)
	h.manager.SetForceOffline(false)
	h.manager.Wait()
	assert.Empty(t, h.manager.GetPendingSync())
}

func TestManager_FailedDrainRetriedOnNextEdge(t *testing.T) {
	h := newHarness(t, false, "user-1")
	h.manager.Start(context.Background())
	enqueueSessions(h.storage, 3)

	h.remote.FailOn = func(c memory.Call, n int) error { return domain.ErrRemoteUnreachable }
	h.src.Set(true)
	h.manager.Wait()
	assert.Len(t, h.manager.PendingSync(), 3)
	assert.Equal(t, StateFailed, h.manager.Status().State)

	h.remote.FailOn = nil
	h.src.Set(false)
	h.src.Set(true)
	h.manager.Wait()
	assert.Empty(t, h.manager.PendingSync())
	assert.Equal(t, StateIdle, h.manager.Status().State)
	assert.Len(t, h.remote.Rows(domain.DatasetStudySessions), 3)
}
