package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres implements the store contract over a single jsonb-backed table,
// so self-hosted deployments can swap it in for Airtable without touching the
// workflow. Unlike Airtable it has a real conditional write: CreateIfAbsent
// runs under a transaction-scoped advisory lock derived from the guard.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a pool with sane defaults.
func NewPostgres(connString string) (*Postgres, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &Postgres{db: db}, nil
}

// EnsureSchema creates the backing table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_records (
			id         TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			fields     JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS store_records_collection_idx ON store_records (collection);
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying pool.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) Query(ctx context.Context, table string, opts QueryOptions) ([]Record, error) {
	query, args := buildSelect(table, opts)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, table, id string) (Record, bool, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT fields FROM store_records WHERE collection = $1 AND id = $2", table, id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Record{ID: id, Fields: fields}, true, nil
}

func (p *Postgres) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	rec, err := insertRecord(ctx, p.db, table, fields)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *Postgres) DeleteRecords(ctx context.Context, table string, ids []string) error {
	for _, batch := range chunkIDs(ids) {
		placeholders := make([]string, len(batch))
		args := []any{table}
		for i, id := range batch {
			placeholders[i] = "$" + strconv.Itoa(i+2)
			args = append(args, id)
		}
		_, err := p.db.ExecContext(ctx,
			"DELETE FROM store_records WHERE collection = $1 AND id IN ("+strings.Join(placeholders, ",")+")",
			args...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// CreateIfAbsent serializes same-guard writers with pg_advisory_xact_lock, so
// the guard check and the insert are atomic with respect to each other.
func (p *Postgres) CreateIfAbsent(ctx context.Context, table string, fields map[string]any, guard Filter) (Record, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", lockKey(table, guard)); err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	query, args := buildSelect(table, QueryOptions{Filter: guard, MaxRecords: 1})
	row := tx.QueryRowContext(ctx, query, args...)
	var id string
	var raw []byte
	scanErr := row.Scan(&id, &raw)
	if scanErr == nil {
		existing := map[string]any{}
		if err := json.Unmarshal(raw, &existing); err != nil {
			return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return Record{ID: id, Fields: existing}, false, nil
	}
	if !errors.Is(scanErr, sql.ErrNoRows) {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, scanErr)
	}

	rec, err := insertRecord(ctx, tx, table, fields)
	if err != nil {
		return Record{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, true, nil
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertRecord(ctx context.Context, db execer, table string, fields map[string]any) (Record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return Record{}, err
	}
	id := "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	row := db.QueryRowContext(ctx,
		"INSERT INTO store_records (id, collection, fields) VALUES ($1, $2, $3) RETURNING id",
		id, table, raw)
	if err := row.Scan(&id); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return Record{ID: id, Fields: fields}, nil
}

func buildSelect(table string, opts QueryOptions) (string, []any) {
	args := []any{table}
	query := "SELECT id, fields FROM store_records WHERE collection = $1"
	if opts.Filter != nil {
		clause := renderSQL(opts.Filter, &args)
		if clause != "" {
			query += " AND " + clause
		}
	}
	if opts.SortField != "" {
		args = append(args, opts.SortField)
		query += " ORDER BY fields->>$" + strconv.Itoa(len(args))
		if opts.SortDesc {
			query += " DESC"
		}
	}
	if opts.MaxRecords > 0 {
		args = append(args, opts.MaxRecords)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	return query, args
}

func renderSQL(f Filter, args *[]any) string {
	switch f := f.(type) {
	case EqFilter:
		*args = append(*args, f.Field, f.Value)
		return "fields->>$" + strconv.Itoa(len(*args)-1) + " = $" + strconv.Itoa(len(*args))
	case AndFilter:
		var parts []string
		for _, term := range f.Terms {
			if clause := renderSQL(term, args); clause != "" {
				parts = append(parts, clause)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	case AtOrAfterFilter:
		*args = append(*args, f.Field, f.Instant)
		return "(fields->>$" + strconv.Itoa(len(*args)-1) + ")::timestamptz >= $" + strconv.Itoa(len(*args))
	case BeforeFilter:
		*args = append(*args, f.Field, f.Instant)
		return "(fields->>$" + strconv.Itoa(len(*args)-1) + ")::timestamptz < $" + strconv.Itoa(len(*args))
	default:
		return ""
	}
}

// lockKey is a stable fingerprint of the guard's equality terms. Two writers
// with the same subject and scope land on the same advisory lock; the time
// bounds are deliberately excluded so a window rollover mid-write cannot
// split the key.
func lockKey(table string, guard Filter) string {
	terms := collectEq(guard, nil)
	sort.Strings(terms)
	return table + "|" + strings.Join(terms, "|")
}

func collectEq(f Filter, acc []string) []string {
	switch f := f.(type) {
	case EqFilter:
		acc = append(acc, f.Field+"="+f.Value)
	case AndFilter:
		for _, term := range f.Terms {
			acc = collectEq(term, acc)
		}
	}
	return acc
}
