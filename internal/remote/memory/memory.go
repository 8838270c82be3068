// Package memory is an in-process RemoteStore. Rows are keyed by id, so
// inserts behave as upserts the way the hosted backend is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// Call records one remote invocation.
type Call struct {
	Verb       string // insert, update, delete, query
	Collection string
	ID         string
}

// Store is a thread-safe in-memory remote store.
type Store struct {
	mu     sync.Mutex
	tables map[string]map[string]domain.Record
	order  map[string][]string // insertion order per table
	calls  []Call

	// FailOn, when set, is consulted before every call; a non-nil error
	// is returned instead of performing the call.
	FailOn func(call Call, n int) error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[string]map[string]domain.Record),
		order:  make(map[string][]string),
	}
}

func (s *Store) record(c Call) error {
	s.calls = append(s.calls, c)
	if s.FailOn != nil {
		return s.FailOn(c, len(s.calls))
	}
	return nil
}

// Calls returns every call made so far.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Rows returns the rows of a collection in first-insert order.
func (s *Store) Rows(collection string) []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsLocked(collection)
}

func (s *Store) rowsLocked(collection string) []domain.Record {
	table := s.tables[collection]
	out := make([]domain.Record, 0, len(table))
	for _, id := range s.order[collection] {
		if rec, ok := table[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (s *Store) Insert(ctx context.Context, collection string, rec domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := rec.ID()
	if err := s.record(Call{Verb: "insert", Collection: collection, ID: id}); err != nil {
		return nil, err
	}
	if id == "" {
		id = fmt.Sprintf("mem-%d", len(s.calls))
		rec = rec.Merge(domain.Record{"id": id})
	}
	table := s.table(collection)
	if _, exists := table[id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	table[id] = rec.Clone()
	return rec.Clone(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Verb: "update", Collection: collection, ID: id}); err != nil {
		return nil, err
	}
	table := s.table(collection)
	existing, ok := table[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoMatch, collection, id)
	}
	updated := existing.Merge(patch)
	updated["id"] = id
	table[id] = updated
	return updated.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Verb: "delete", Collection: collection, ID: id}); err != nil {
		return err
	}
	delete(s.table(collection), id)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter, order domain.Order) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Verb: "query", Collection: collection}); err != nil {
		return nil, err
	}

	var out []domain.Record
	for _, rec := range s.rowsLocked(collection) {
		if matches(rec, filter) {
			out = append(out, rec)
		}
	}
	if order.Column != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].String(order.Column), out[j].String(order.Column)
			if order.Descending {
				return a > b
			}
			return a < b
		})
	}
	return out, nil
}

func (s *Store) table(collection string) map[string]domain.Record {
	t, ok := s.tables[collection]
	if !ok {
		t = make(map[string]domain.Record)
		s.tables[collection] = t
	}
	return t
}

func matches(rec domain.Record, filter domain.Filter) bool {
	for _, c := range filter {
		v := rec.String(c.Column)
		want := fmt.Sprint(c.Value)
		switch c.Op {
		case domain.OpEq:
			if v != want {
				return false
			}
		case domain.OpGte:
			if v < want {
				return false
			}
		case domain.OpLte:
			if v > want {
				return false
			}
		}
	}
	return true
}
