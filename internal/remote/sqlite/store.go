// Package sqlite is an embedded remote store. Each dataset is a table of
// JSON documents keyed by id, so rows keep whatever columns the client
// sends without a schema migration.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// Store implements domain.RemoteStore on a SQLite database
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]bool // collections known to exist
}

// Open opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers; one connection also keeps
	// an in-memory database alive for the life of the store
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	return &Store{db: db, logger: logger, tables: make(map[string]bool)}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureTable creates the document table for collection on first use
func (s *Store) ensureTable(ctx context.Context, collection string) (string, error) {
	if err := domain.ValidateIdentifier(collection); err != nil {
		return "", err
	}
	table := `"` + collection + `"`

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[collection] {
		return table, nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data TEXT NOT NULL)`, table))
	if err != nil {
		return "", fmt.Errorf("failed to create table %s: %w", collection, err)
	}
	s.tables[collection] = true
	return table, nil
}

// Insert stores a row, merging into an existing row with the same id.
// Rows without an id get a generated one.
func (s *Store) Insert(ctx context.Context, collection string, rec domain.Record) (domain.Record, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	row := rec.Clone()
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}
	data, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, data) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = json_patch(data, excluded.data)
		 RETURNING data`, table),
		row.ID(), string(data)).Scan(&stored)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	return decode(stored)
}

// Update patches the row with the given id
func (s *Store) Update(ctx context.Context, collection, id string, patch domain.Record) (domain.Record, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	changes := patch.Clone()
	delete(changes, "id")
	data, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	var stored string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`UPDATE %s SET data = json_patch(data, ?) WHERE id = ? RETURNING data`, table),
		string(data), id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoMatch, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return decode(stored)
}

// Delete removes the row with the given id. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

var comparison = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpGte: ">=",
	domain.OpLte: "<=",
}

// Query returns the rows matching filter, sorted by order. Without an
// order, rows come back in insertion order.
func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter, order domain.Order) ([]domain.Record, error) {
	table, err := s.ensureTable(ctx, collection)
	if err != nil {
		return nil, err
	}

	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "SELECT data FROM %s", table)
	for i, cond := range filter {
		if err := domain.ValidateIdentifier(cond.Column); err != nil {
			return nil, err
		}
		op, ok := comparison[cond.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator: %s", cond.Op)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "json_extract(data, '$.%s') %s ?", cond.Column, op)
		args = append(args, cond.Value)
	}
	if order.Column != "" {
		if err := domain.ValidateIdentifier(order.Column); err != nil {
			return nil, err
		}
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY json_extract(data, '$.%s') %s, rowid", order.Column, dir)
	} else {
		b.WriteString(" ORDER BY rowid")
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decode(data string) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return rec, nil
}
