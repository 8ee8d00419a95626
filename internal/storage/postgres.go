package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/csm/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres is a Collection stored in a PostgreSQL table
type Postgres[T any] struct {
	db     *database.DB
	schema Schema[T]
}

// NewPostgres binds schema to a table reachable through db
func NewPostgres[T any](db *database.DB, schema Schema[T]) (*Postgres[T], error) {
	if err := schema.check(); err != nil {
		return nil, err
	}
	return &Postgres[T]{db: db, schema: schema}, nil
}

// MapPostgresError converts driver errors into storage sentinels
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "42703": // undefined_column
			return fmt.Errorf("%w: %s", ErrUnknownField, pgErr.Message)
		}
	}

	return err
}

func (p *Postgres[T]) builder() *sqlBuilder {
	return &sqlBuilder{d: postgresDialect}
}

func (p *Postgres[T]) Store(ctx context.Context, rec T) error {
	b := p.builder()
	query, err := b.upsertSQL(p.schema.Name, p.schema.Key, p.schema.Fields, p.schema.Values(rec))
	if err != nil {
		return err
	}
	if _, err := p.db.Pool.Exec(ctx, query, b.args...); err != nil {
		return MapPostgresError(err)
	}
	return nil
}

func (p *Postgres[T]) Insert(ctx context.Context, rec T) error {
	return p.insert(ctx, p.db.Pool, rec)
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (p *Postgres[T]) insert(ctx context.Context, db pgExecer, rec T) error {
	b := p.builder()
	query, err := b.insertSQL(p.schema.Name, p.schema.Fields, p.schema.Values(rec))
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, query, b.args...); err != nil {
		return MapPostgresError(err)
	}
	return nil
}

func (p *Postgres[T]) Get(ctx context.Context, q Query) ([]T, error) {
	if err := p.schema.validateQuery(q); err != nil {
		return nil, err
	}
	b := p.builder()
	query, err := b.selectSQL(p.schema.Name, p.schema.Fields, q)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, MapPostgresError(err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		rec, err := p.schema.Scan(func(dest ...any) error { return rows.Scan(dest...) })
		if err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", p.schema.Name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, MapPostgresError(err)
	}
	return out, nil
}

func (p *Postgres[T]) Delete(ctx context.Context, f Filter) (int64, error) {
	if err := p.schema.validateFilter(f); err != nil {
		return 0, err
	}
	return p.delete(ctx, p.db.Pool, f)
}

func (p *Postgres[T]) delete(ctx context.Context, db pgExecer, f Filter) (int64, error) {
	b := p.builder()
	query, err := b.deleteSQL(p.schema.Name, f)
	if err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, query, b.args...)
	if err != nil {
		return 0, MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres[T]) Count(ctx context.Context, f Filter) (int64, error) {
	if err := p.schema.validateFilter(f); err != nil {
		return 0, err
	}
	b := p.builder()
	query, err := b.countSQL(p.schema.Name, f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := p.db.Pool.QueryRow(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, MapPostgresError(err)
	}
	return n, nil
}

func (p *Postgres[T]) Rename(ctx context.Context, oldKey any, rec T) error {
	return p.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		n, err := p.delete(ctx, tx, Eq(p.schema.Key, oldKey))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %v", ErrNotFound, p.schema.Name, oldKey)
		}
		return p.insert(ctx, tx, rec)
	})
}
