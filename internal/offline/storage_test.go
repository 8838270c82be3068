package offline

import (
	"errors"
	"testing"
	"time"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryKV(t *testing.T) *store.KVStore {
	t.Helper()
	kv, err := store.NewKVStore("")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

// failingKV fails every write and optionally every read.
type failingKV struct {
	*store.KVStore
	failReads bool
}

var errDiskFull = errors.New("quota exceeded")

func (f failingKV) Get(key string) (string, bool, error) {
	if f.failReads {
		return "", false, errDiskFull
	}
	return f.KVStore.Get(key)
}

func (f failingKV) Set(string, string) error { return errDiskFull }

func TestStorage_OfflineDataRoundTrip(t *testing.T) {
	s := NewStorage(newMemoryKV(t), nil)

	_, ok := s.GetOfflineData("study_sessions")
	assert.False(t, ok)

	rows := []domain.Record{
		{"id": "a", "subject": "Math", "duration": 1.5},
		{"id": "b", "subject": "Physics", "duration": 2.0},
	}
	s.SaveOfflineData("study_sessions", rows)
	s.SaveOfflineData("exams", nil)

	got, ok := s.GetOfflineData("study_sessions")
	require.True(t, ok)
	assert.Equal(t, rows, got)

	exams, ok := s.GetOfflineData("exams")
	require.True(t, ok)
	assert.Empty(t, exams)

	// Overwritten wholesale, other datasets untouched
	s.SaveOfflineData("study_sessions", rows[:1])
	got, _ = s.GetOfflineData("study_sessions")
	assert.Len(t, got, 1)
	_, ok = s.GetOfflineData("exams")
	assert.True(t, ok)
}

func TestStorage_AddToPendingSyncAppendsInOrder(t *testing.T) {
	s := NewStorage(newMemoryKV(t), nil)
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	for _, subject := range []string{"Math", "Physics", "Chemistry"} {
		s.AddToPendingSync(domain.PendingOperation{
			Collection: "study_sessions",
			Kind:       domain.OperationInsert,
			Payload:    domain.Record{"subject": subject},
		})
	}

	pending := s.GetPendingSync()
	require.Len(t, pending, 3)
	assert.Equal(t, "Math", pending[0].Payload["subject"])
	assert.Equal(t, "Chemistry", pending[2].Payload["subject"])
	assert.Less(t, pending[0].EnqueuedAt, pending[1].EnqueuedAt)
	for _, op := range pending {
		assert.NotEmpty(t, op.ID)
	}
	assert.Equal(t, pending, s.PendingSync())

	s.ClearPendingSync()
	assert.Empty(t, s.GetPendingSync())
	assert.Empty(t, s.PendingSync())
}

func TestStorage_MirrorSeededFromPersistedQueue(t *testing.T) {
	kv := newMemoryKV(t)
	// Layout written by earlier clients
	require.NoError(t, kv.Set("pending_sync",
		`[{"table":"habits","operation":"update","data":{"id":"h1","streak":3},"timestamp":1700000000000}]`))

	s := NewStorage(kv, nil)
	pending := s.PendingSync()
	require.Len(t, pending, 1)
	assert.Equal(t, "habits", pending[0].Collection)
	assert.Equal(t, domain.OperationUpdate, pending[0].Kind)
	assert.Equal(t, "h1", pending[0].TargetID())
	assert.Equal(t, int64(1700000000000), pending[0].EnqueuedAt)
}

func TestStorage_FailsSoft(t *testing.T) {
	t.Run("write failure leaves state untouched", func(t *testing.T) {
		s := NewStorage(failingKV{KVStore: newMemoryKV(t)}, nil)

		s.SaveOfflineData("exams", []domain.Record{{"id": "e1"}})
		_, ok := s.GetOfflineData("exams")
		assert.False(t, ok)

		op := s.AddToPendingSync(domain.PendingOperation{Collection: "exams", Kind: domain.OperationInsert})
		assert.NotEmpty(t, op.ID)
		assert.Empty(t, s.PendingSync())
	})

	t.Run("read failure returns nothing", func(t *testing.T) {
		s := NewStorage(failingKV{KVStore: newMemoryKV(t), failReads: true}, nil)
		assert.Empty(t, s.GetPendingSync())
		_, ok := s.GetOfflineData("exams")
		assert.False(t, ok)
	})

	t.Run("corrupt queue blob is not overwritten", func(t *testing.T) {
		kv := newMemoryKV(t)
		require.NoError(t, kv.Set("pending_sync", "{not json"))
		s := NewStorage(kv, nil)

		s.AddToPendingSync(domain.PendingOperation{Collection: "exams", Kind: domain.OperationInsert})
		raw, _, _ := kv.Get("pending_sync")
		assert.Equal(t, "{not json", raw)
	})
}

func TestStorage_CompleteBatchKeepsLaterOperations(t *testing.T) {
	s := NewStorage(newMemoryKV(t), nil)
	s.AddToPendingSync(domain.PendingOperation{Collection: "exams", Kind: domain.OperationInsert, Payload: domain.Record{"id": "1"}})
	batch := s.GetPendingSync()

	late := s.AddToPendingSync(domain.PendingOperation{Collection: "exams", Kind: domain.OperationDelete, Payload: domain.Record{"id": "1"}})
	s.completeBatch(batch)

	pending := s.GetPendingSync()
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)
	assert.Len(t, s.PendingSync(), 1)

	s.completeBatch(pending)
	assert.Empty(t, s.GetPendingSync())
}

func TestStorage_PreloadedAt(t *testing.T) {
	s := NewStorage(newMemoryKV(t), nil)

	_, ok := s.PreloadedAt()
	assert.False(t, ok)

	at := time.UnixMilli(1710000000123)
	s.MarkPreloaded(at)

	got, ok := s.PreloadedAt()
	require.True(t, ok)
	assert.True(t, got.Equal(at))
}
