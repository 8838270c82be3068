// Package postgres stores datasets directly in PostgreSQL tables that
// mirror the hosted schema (one table per dataset, primary key "id").
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// Store implements domain.RemoteStore on a pgx connection pool
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnreachable, err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases every pooled connection
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Insert creates a row, updating it in place when the id already exists
func (s *Store) Insert(ctx context.Context, collection string, rec domain.Record) (domain.Record, error) {
	sql, args, err := buildInsert(collection, rec)
	if err != nil {
		return nil, err
	}
	return s.queryRow(ctx, collection, sql, args)
}

// Update patches the row with the given id
func (s *Store) Update(ctx context.Context, collection, id string, patch domain.Record) (domain.Record, error) {
	sql, args, err := buildUpdate(collection, id, patch)
	if err != nil {
		return nil, err
	}
	row, err := s.queryRow(ctx, collection, sql, args)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNoMatch, collection, id)
	}
	return row, err
}

// Delete removes the row with the given id. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	sql, args, err := buildDelete(collection, id)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return classify(err)
	}
	return nil
}

// Query returns the rows matching filter, sorted by order
func (s *Store) Query(ctx context.Context, collection string, filter domain.Filter, order domain.Order) ([]domain.Record, error) {
	sql, args, err := buildSelect(collection, filter, order)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, classify(err)
	}

	out := make([]domain.Record, 0, len(raw))
	for _, data := range raw {
		rec, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) queryRow(ctx context.Context, collection, sql string, args []any) (domain.Record, error) {
	var data []byte
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		s.logger.Error("postgres write failed", "collection", collection, "error", err)
		return nil, classify(err)
	}
	return decodeRow(data)
}

func decodeRow(data []byte) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return rec, nil
}

// classify maps connection-level failures to ErrRemoteUnreachable.
// Errors reported by the server itself are returned unchanged.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "42501" || pgErr.Code == "28000" || pgErr.Code == "28P01" {
			return fmt.Errorf("%w: %s", domain.ErrAuthFailed, pgErr.Message)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrRemoteUnreachable, err)
}

func ident(name string) (string, error) {
	if err := domain.ValidateIdentifier(name); err != nil {
		return "", err
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// sortedColumns returns the record's columns in a stable order
func sortedColumns(rec domain.Record) ([]string, error) {
	cols := make([]string, 0, len(rec))
	for col := range rec {
		if err := domain.ValidateIdentifier(col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

func buildInsert(collection string, rec domain.Record) (string, []any, error) {
	table, err := ident(collection)
	if err != nil {
		return "", nil, err
	}
	if len(rec) == 0 {
		return "", nil, fmt.Errorf("insert into %s: empty record", collection)
	}
	cols, err := sortedColumns(rec)
	if err != nil {
		return "", nil, err
	}

	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	var updates []string
	for i, col := range cols {
		names[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rec[col]
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", names[i], names[i]))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) VALUES (%s)", table,
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if _, hasID := rec["id"]; hasID {
		if len(updates) > 0 {
			fmt.Fprintf(&b, ` ON CONFLICT ("id") DO UPDATE SET %s`, strings.Join(updates, ", "))
		} else {
			b.WriteString(` ON CONFLICT ("id") DO UPDATE SET "id" = EXCLUDED."id"`)
		}
	}
	b.WriteString(" RETURNING to_jsonb(t)")
	return b.String(), args, nil
}

func buildUpdate(collection, id string, patch domain.Record) (string, []any, error) {
	table, err := ident(collection)
	if err != nil {
		return "", nil, err
	}
	cols, err := sortedColumns(patch)
	if err != nil {
		return "", nil, err
	}

	var (
		sets []string
		args []any
	)
	for _, col := range cols {
		if col == "id" {
			continue
		}
		args = append(args, patch[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), len(args)))
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("update %s/%s: nothing to change", collection, id)
	}
	args = append(args, id)

	sql := fmt.Sprintf(`UPDATE %s AS t SET %s WHERE "id" = $%d RETURNING to_jsonb(t)`,
		table, strings.Join(sets, ", "), len(args))
	return sql, args, nil
}

func buildDelete(collection, id string) (string, []any, error) {
	table, err := ident(collection)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE "id" = $1`, table), []any{id}, nil
}

var comparison = map[domain.FilterOp]string{
	domain.OpEq:  "=",
	domain.OpGte: ">=",
	domain.OpLte: "<=",
}

func buildSelect(collection string, filter domain.Filter, order domain.Order) (string, []any, error) {
	table, err := ident(collection)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT to_jsonb(t) FROM %s AS t", table)

	var args []any
	for i, cond := range filter {
		col, err := ident(cond.Column)
		if err != nil {
			return "", nil, err
		}
		op, ok := comparison[cond.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator: %s", cond.Op)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, cond.Value)
		fmt.Fprintf(&b, "%s %s $%d", col, op, len(args))
	}

	if order.Column != "" {
		col, err := ident(order.Column)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if order.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", col, dir)
	}
	return b.String(), args, nil
}
