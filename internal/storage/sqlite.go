package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTimeFormat is fixed width so that text comparison orders instants
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLite is a Collection stored in a SQLite table
type SQLite[T any] struct {
	db     *sql.DB
	schema Schema[T]
}

// NewSQLite binds schema to a table reachable through db
func NewSQLite[T any](db *sql.DB, schema Schema[T]) (*SQLite[T], error) {
	if err := schema.check(); err != nil {
		return nil, err
	}
	return &SQLite[T]{db: db, schema: schema}, nil
}

// MapSQLiteError converts driver errors into storage sentinels
func MapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func sqliteBind(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(sqliteTimeFormat), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC().Format(sqliteTimeFormat), nil
	case []string:
		if x == nil {
			x = []string{}
		}
		raw, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	return v, nil
}

// sqliteTime reads the text timestamps written by sqliteBind
type sqliteTime struct{ dst *time.Time }

func (s sqliteTime) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*s.dst = time.Time{}
		return nil
	case time.Time:
		*s.dst = x.UTC()
		return nil
	case []byte:
		return s.parse(string(x))
	case string:
		return s.parse(x)
	}
	return fmt.Errorf("storage: cannot scan %T into time", src)
}

func (s sqliteTime) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("storage: parse time %q: %w", v, err)
	}
	*s.dst = t.UTC()
	return nil
}

// sqliteStrings reads string lists stored as JSON text
type sqliteStrings struct{ dst *[]string }

func (s sqliteStrings) Scan(src any) error {
	var raw []byte
	switch x := src.(type) {
	case nil:
		*s.dst = nil
		return nil
	case []byte:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return fmt.Errorf("storage: cannot scan %T into []string", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("storage: decode string list: %w", err)
	}
	*s.dst = out
	return nil
}

var (
	_ sql.Scanner = sqliteTime{}
	_ sql.Scanner = sqliteStrings{}
)

func sqliteScanDest(dest []any) []any {
	wrapped := make([]any, len(dest))
	for i, d := range dest {
		switch x := d.(type) {
		case *time.Time:
			wrapped[i] = sqliteTime{dst: x}
		case *[]string:
			wrapped[i] = sqliteStrings{dst: x}
		default:
			wrapped[i] = d
		}
	}
	return wrapped
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite[T]) builder() *sqlBuilder {
	return &sqlBuilder{d: sqliteDialect}
}

func (s *SQLite[T]) Store(ctx context.Context, rec T) error {
	b := s.builder()
	query, err := b.upsertSQL(s.schema.Name, s.schema.Key, s.schema.Fields, s.schema.Values(rec))
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, b.args...); err != nil {
		return MapSQLiteError(err)
	}
	return nil
}

func (s *SQLite[T]) Insert(ctx context.Context, rec T) error {
	return s.insert(ctx, s.db, rec)
}

func (s *SQLite[T]) insert(ctx context.Context, db sqlExecer, rec T) error {
	b := s.builder()
	query, err := b.insertSQL(s.schema.Name, s.schema.Fields, s.schema.Values(rec))
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, query, b.args...); err != nil {
		return MapSQLiteError(err)
	}
	return nil
}

func (s *SQLite[T]) Get(ctx context.Context, q Query) ([]T, error) {
	if err := s.schema.validateQuery(q); err != nil {
		return nil, err
	}
	b := s.builder()
	query, err := b.selectSQL(s.schema.Name, s.schema.Fields, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, MapSQLiteError(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		rec, err := s.schema.Scan(func(dest ...any) error {
			return rows.Scan(sqliteScanDest(dest)...)
		})
		if err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", s.schema.Name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, MapSQLiteError(err)
	}
	return out, nil
}

func (s *SQLite[T]) Delete(ctx context.Context, f Filter) (int64, error) {
	if err := s.schema.validateFilter(f); err != nil {
		return 0, err
	}
	return s.delete(ctx, s.db, f)
}

func (s *SQLite[T]) delete(ctx context.Context, db sqlExecer, f Filter) (int64, error) {
	b := s.builder()
	query, err := b.deleteSQL(s.schema.Name, f)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, b.args...)
	if err != nil {
		return 0, MapSQLiteError(err)
	}
	return res.RowsAffected()
}

func (s *SQLite[T]) Count(ctx context.Context, f Filter) (int64, error) {
	if err := s.schema.validateFilter(f); err != nil {
		return 0, err
	}
	b := s.builder()
	query, err := b.countSQL(s.schema.Name, f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, MapSQLiteError(err)
	}
	return n, nil
}

func (s *SQLite[T]) Rename(ctx context.Context, oldKey any, rec T) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MapSQLiteError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	n, err := s.delete(ctx, tx, Eq(s.schema.Key, oldKey))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %v", ErrNotFound, s.schema.Name, oldKey)
	}
	if err = s.insert(ctx, tx, rec); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return MapSQLiteError(err)
	}
	return nil
}
