// Package tracker implements the trackers' reads and writes on top of the
// remote store and the offline layer.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/lifetrack/internal/domain"
)

const preloadConcurrency = 4

// Offline is the part of the offline manager the trackers use.
type Offline interface {
	IsOnline() bool
	UserID() string
	SaveOfflineData(dataset string, records []domain.Record)
	GetOfflineData(dataset string) ([]domain.Record, bool)
	AddToPendingSync(op domain.PendingOperation) domain.PendingOperation
	PendingSync() []domain.PendingOperation
	MarkPreloaded(at time.Time)
}

// Commands provides operations that may hit the network.
//
// While online, writes go straight to the remote store and the snapshot
// cache is updated from the stored row. While offline, the cache is
// updated optimistically and the write is queued for resync. A failed
// online write is returned to the caller and never queued.
type Commands struct {
	remote  domain.RemoteStore
	offline Offline
	logger  *slog.Logger
	now     func() time.Time

	mu sync.Mutex // serializes cache read-modify-write per process
}

// NewCommands creates a new Commands instance.
func NewCommands(remote domain.RemoteStore, offline Offline, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{remote: remote, offline: offline, logger: logger, now: time.Now}
}

// Create inserts a row. Rows get a client-generated id so a queued
// insert replays onto the same row.
func (c *Commands) Create(ctx context.Context, dataset string, rec domain.Record) (domain.Record, error) {
	if _, ok := domain.LookupDataset(dataset); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDataset, dataset)
	}

	row := rec.Clone()
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}
	if row.UserID() == "" && c.offline.UserID() != "" && dataset != domain.DatasetProfiles {
		row["user_id"] = c.offline.UserID()
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = c.now().UTC().Format(time.RFC3339)
	}

	if c.offline.IsOnline() {
		saved, err := c.remote.Insert(ctx, dataset, row)
		if err != nil {
			c.logger.Error("failed to create record", "error", err, "dataset", dataset)
			return nil, err
		}
		c.upsertCached(dataset, saved)
		c.logger.Debug("created record", "dataset", dataset, "id", saved.ID())
		return saved, nil
	}

	c.upsertCached(dataset, row)
	c.offline.AddToPendingSync(domain.PendingOperation{
		Collection: dataset,
		Kind:       domain.OperationInsert,
		Payload:    row,
	})
	c.logger.Info("queued offline create", "dataset", dataset, "id", row.ID())
	return row, nil
}

// Update patches the row with the given id.
func (c *Commands) Update(ctx context.Context, dataset, id string, patch domain.Record) (domain.Record, error) {
	if _, ok := domain.LookupDataset(dataset); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDataset, dataset)
	}
	if id == "" {
		return nil, fmt.Errorf("update %s: missing id", dataset)
	}

	changes := patch.Clone()
	delete(changes, "id")

	if c.offline.IsOnline() {
		saved, err := c.remote.Update(ctx, dataset, id, changes)
		if err != nil {
			c.logger.Error("failed to update record", "error", err, "dataset", dataset, "id", id)
			return nil, err
		}
		c.upsertCached(dataset, saved)
		return saved, nil
	}

	merged := c.mergeCached(dataset, id, changes)
	payload := changes.Clone()
	payload["id"] = id
	c.offline.AddToPendingSync(domain.PendingOperation{
		Collection: dataset,
		Kind:       domain.OperationUpdate,
		Payload:    payload,
	})
	c.logger.Info("queued offline update", "dataset", dataset, "id", id)
	return merged, nil
}

// Delete removes the row with the given id.
func (c *Commands) Delete(ctx context.Context, dataset, id string) error {
	if _, ok := domain.LookupDataset(dataset); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownDataset, dataset)
	}
	if id == "" {
		return fmt.Errorf("delete %s: missing id", dataset)
	}

	if c.offline.IsOnline() {
		if err := c.remote.Delete(ctx, dataset, id); err != nil {
			c.logger.Error("failed to delete record", "error", err, "dataset", dataset, "id", id)
			return err
		}
		c.removeCached(dataset, id)
		return nil
	}

	c.removeCached(dataset, id)
	c.offline.AddToPendingSync(domain.PendingOperation{
		Collection: dataset,
		Kind:       domain.OperationDelete,
		Payload:    domain.Record{"id": id},
	})
	c.logger.Info("queued offline delete", "dataset", dataset, "id", id)
	return nil
}

// ToggleHabit checks or unchecks a habit for today and adjusts its streak.
func (c *Commands) ToggleHabit(ctx context.Context, id string) (domain.Record, error) {
	cached, _ := c.offline.GetOfflineData(domain.DatasetHabits)
	for _, rec := range cached {
		if rec.ID() != id {
			continue
		}
		habits, err := domain.DecodeRecords[domain.Habit]([]domain.Record{rec})
		if err != nil {
			return nil, err
		}
		return c.Update(ctx, domain.DatasetHabits, id, ToggleHabit(habits[0], c.now()))
	}
	return nil, fmt.Errorf("%w: habits/%s", domain.ErrNotFound, id)
}

// Refresh fetches a dataset for the signed-in user and replaces the
// cached snapshot. When offline, or when the fetch fails, the cached
// snapshot is returned instead.
func (c *Commands) Refresh(ctx context.Context, dataset string) ([]domain.Record, domain.RefreshResult) {
	ds, ok := domain.LookupDataset(dataset)
	if !ok {
		return nil, domain.RefreshResult{Dataset: dataset, Error: fmt.Errorf("%w: %s", domain.ErrUnknownDataset, dataset)}
	}

	if !c.offline.IsOnline() {
		cached, _ := c.offline.GetOfflineData(dataset)
		c.logger.Debug("offline, serving cached snapshot", "dataset", dataset, "count", len(cached))
		return cached, domain.RefreshResult{Dataset: dataset, FromCache: true, Count: len(cached)}
	}

	var filter domain.Filter
	if user := c.offline.UserID(); user != "" {
		if dataset == domain.DatasetProfiles {
			filter = filter.Eq("id", user)
		} else {
			filter = filter.Eq("user_id", user)
		}
	}

	rows, err := c.remote.Query(ctx, dataset, filter, ds.Order)
	if err != nil {
		c.logger.Error("failed to refresh dataset", "error", err, "dataset", dataset)
		cached, _ := c.offline.GetOfflineData(dataset)
		return cached, domain.RefreshResult{Dataset: dataset, FromCache: true, Count: len(cached), Error: err}
	}

	c.mu.Lock()
	rows = overlayPending(rows, dataset, c.offline.PendingSync())
	c.offline.SaveOfflineData(dataset, rows)
	c.mu.Unlock()

	c.logger.Debug("refreshed dataset", "dataset", dataset, "count", len(rows))
	return rows, domain.RefreshResult{Dataset: dataset, Count: len(rows)}
}

// PreloadAll refreshes every dataset in parallel so the app can start
// offline with a full cache.
func (c *Commands) PreloadAll(ctx context.Context, onProgress domain.ProgressFunc) []domain.RefreshResult {
	datasets := domain.Datasets()
	results := make([]domain.RefreshResult, len(datasets))

	var (
		mu     sync.Mutex
		loaded int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)
	for i, ds := range datasets {
		g.Go(func() error {
			_, results[i] = c.Refresh(ctx, ds.Name)

			mu.Lock()
			loaded++
			if onProgress != nil {
				onProgress(loaded, len(datasets))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != nil || r.FromCache {
			failed++
		}
	}
	if failed == 0 {
		c.offline.MarkPreloaded(c.now())
	}
	c.logger.Info("preload finished", "datasets", len(datasets), "from_cache", failed)
	return results
}

// --- Private helpers ---

func (c *Commands) upsertCached(dataset string, row domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, _ := c.offline.GetOfflineData(dataset)
	out := make([]domain.Record, 0, len(cached)+1)
	replaced := false
	for _, rec := range cached {
		if rec.ID() == row.ID() {
			out = append(out, rec.Merge(row))
			replaced = true
			continue
		}
		out = append(out, rec)
	}
	if !replaced {
		// Newest first, matching the remote ordering of most datasets
		out = append([]domain.Record{row}, out...)
	}
	c.offline.SaveOfflineData(dataset, out)
}

func (c *Commands) mergeCached(dataset, id string, patch domain.Record) domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := patch.Clone()
	merged["id"] = id
	cached, _ := c.offline.GetOfflineData(dataset)
	for i, rec := range cached {
		if rec.ID() == id {
			merged = rec.Merge(patch)
			cached[i] = merged
			c.offline.SaveOfflineData(dataset, cached)
			break
		}
	}
	return merged
}

func (c *Commands) removeCached(dataset, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.offline.GetOfflineData(dataset)
	if !ok {
		return
	}
	out := cached[:0]
	for _, rec := range cached {
		if rec.ID() != id {
			out = append(out, rec)
		}
	}
	c.offline.SaveOfflineData(dataset, out)
}

// overlayPending applies queued writes for dataset on top of freshly
// fetched rows, so a refresh does not hide edits that have not been
// replayed yet.
func overlayPending(rows []domain.Record, dataset string, pending []domain.PendingOperation) []domain.Record {
	for _, op := range pending {
		if op.Collection != dataset {
			continue
		}
		id := op.TargetID()
		switch op.Kind {
		case domain.OperationInsert:
			found := false
			for i, rec := range rows {
				if id != "" && rec.ID() == id {
					rows[i] = rec.Merge(op.Payload)
					found = true
					break
				}
			}
			if !found {
				rows = append([]domain.Record{op.Payload.Clone()}, rows...)
			}
		case domain.OperationUpdate:
			for i, rec := range rows {
				if rec.ID() == id {
					rows[i] = rec.Merge(op.Payload)
					break
				}
			}
		case domain.OperationDelete:
			out := rows[:0]
			for _, rec := range rows {
				if rec.ID() != id {
					out = append(out, rec)
				}
			}
			rows = out
		}
	}
	return rows
}
