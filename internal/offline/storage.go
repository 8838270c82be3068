// Package offline keeps the app usable without the remote store: a local
// snapshot cache per dataset, a durable queue of deferred writes, and the
// engine that replays that queue once connectivity returns.
package offline

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/lifetrack/internal/domain"
)

// Persisted layout: one key for the cache blob, one for the queue blob.
const (
	keyOfflineData = "offline_data"
	keyPendingSync = "pending_sync"
	keyPreloadedAt = "data_preloaded" // epoch ms of the last full preload
)

// Storage is the local durable queue and snapshot cache.
// Storage errors are logged and never returned: the cache and queue
// degrade to "did not happen" rather than failing the caller.
type Storage struct {
	kv     domain.KeyValueStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex // serializes read-modify-write of the blobs
	pending []domain.PendingOperation
}

// NewStorage creates a Storage over kv. The in-memory queue mirror is
// seeded from whatever an earlier session left behind.
func NewStorage(kv domain.KeyValueStore, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Storage{kv: kv, logger: logger, now: time.Now}
	if ops, ok := s.readPending(); ok {
		s.pending = ops
	}
	return s
}

// SaveOfflineData replaces the cached snapshot for dataset.
func (s *Storage) SaveOfflineData(dataset string, records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, ok := s.readCache()
	if !ok {
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	all[dataset] = records

	data, err := json.Marshal(all)
	if err != nil {
		s.logger.Error("error saving offline data", "error", err, "dataset", dataset)
		return
	}
	if err := s.kv.Set(keyOfflineData, string(data)); err != nil {
		s.logger.Error("error saving offline data", "error", err, "dataset", dataset)
	}
}

// GetOfflineData returns the cached snapshot for dataset, if any.
func (s *Storage) GetOfflineData(dataset string) ([]domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, ok := s.readCache()
	if !ok {
		return nil, false
	}
	records, ok := all[dataset]
	return records, ok
}

// AddToPendingSync appends op to the end of the queue and persists it.
// EnqueuedAt is always stamped here; an ID is generated when missing.
func (s *Storage) AddToPendingSync(op domain.PendingOperation) domain.PendingOperation {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	op.EnqueuedAt = s.now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.readPending()
	if !ok {
		// Keep the unreadable blob as is; this operation is lost
		s.logger.Error("dropping pending operation", "id", op.ID, "table", op.Collection, "operation", op.Kind)
		return op
	}
	pending = append(pending, op)
	if !s.writePending(pending) {
		return op
	}
	s.pending = pending
	s.logger.Debug("queued pending operation", "id", op.ID, "table", op.Collection, "operation", op.Kind, "pending", len(pending))
	return op
}

// ClearPendingSync empties the durable queue and its mirror.
func (s *Storage) ClearPendingSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// GetPendingSync returns the durable queue contents in enqueue order.
func (s *Storage) GetPendingSync() []domain.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, _ := s.readPending()
	return pending
}

// PendingSync returns the in-memory mirror of the queue, for indicators.
func (s *Storage) PendingSync() []domain.PendingOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PendingOperation(nil), s.pending...)
}

// completeBatch removes a fully replayed batch. Operations queued after
// the batch was read stay in the queue.
func (s *Storage) completeBatch(batch []domain.PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.readPending()
	if !ok || len(current) <= len(batch) || !samePrefix(current, batch) {
		s.clearLocked()
		return
	}
	rest := append([]domain.PendingOperation(nil), current[len(batch):]...)
	if s.writePending(rest) {
		s.pending = rest
	}
}

// MarkPreloaded records when every dataset was last fetched together.
func (s *Storage) MarkPreloaded(at time.Time) {
	if err := s.kv.Set(keyPreloadedAt, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		s.logger.Error("error saving preload time", "error", err)
	}
}

// PreloadedAt returns the time of the last full preload.
func (s *Storage) PreloadedAt() (time.Time, bool) {
	raw, found, err := s.kv.Get(keyPreloadedAt)
	if err != nil {
		s.logger.Error("error reading preload time", "error", err)
		return time.Time{}, false
	}
	if !found {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (s *Storage) clearLocked() {
	if err := s.kv.Delete(keyPendingSync); err != nil {
		s.logger.Error("error clearing pending sync", "error", err)
		return
	}
	s.pending = nil
}

func (s *Storage) readCache() (map[string][]domain.Record, bool) {
	raw, found, err := s.kv.Get(keyOfflineData)
	if err != nil {
		s.logger.Error("error reading offline data", "error", err)
		return nil, false
	}
	all := make(map[string][]domain.Record)
	if !found || raw == "" {
		return all, true
	}
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		s.logger.Error("error parsing offline data", "error", err)
		return nil, false
	}
	return all, true
}

func (s *Storage) readPending() ([]domain.PendingOperation, bool) {
	raw, found, err := s.kv.Get(keyPendingSync)
	if err != nil {
		s.logger.Error("error reading pending sync", "error", err)
		return nil, false
	}
	if !found || raw == "" {
		return nil, true
	}
	var pending []domain.PendingOperation
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		s.logger.Error("error parsing pending sync", "error", err)
		return nil, false
	}
	return pending, true
}

func (s *Storage) writePending(pending []domain.PendingOperation) bool {
	data, err := json.Marshal(pending)
	if err != nil {
		s.logger.Error("error saving pending sync", "error", err)
		return false
	}
	if err := s.kv.Set(keyPendingSync, string(data)); err != nil {
		s.logger.Error("error saving pending sync", "error", err)
		return false
	}
	return true
}

func samePrefix(current, batch []domain.PendingOperation) bool {
	for i := range batch {
		if current[i].ID != batch[i].ID || current[i].EnqueuedAt != batch[i].EnqueuedAt {
			return false
		}
	}
	return true
}
