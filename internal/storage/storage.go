// Package storage provides generic record collections over several database
// backends together with a small filter language for selecting records.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by every backend
var (
	ErrDuplicate    = errors.New("storage: duplicate key")
	ErrNotFound     = errors.New("storage: record not found")
	ErrUnknownField = errors.New("storage: unknown field")
	ErrInvalidQuery = errors.New("storage: invalid query")
)

// Collection stores records of a single type keyed by a primary key
type Collection[T any] interface {
	// Store inserts rec or replaces the record with the same key
	Store(ctx context.Context, rec T) error
	// Insert adds rec and fails with ErrDuplicate when its key is taken
	Insert(ctx context.Context, rec T) error
	Get(ctx context.Context, q Query) ([]T, error)
	// Delete removes matching records and reports how many were removed
	Delete(ctx context.Context, f Filter) (int64, error)
	// Count reports the number of matching records. A nil filter counts all.
	Count(ctx context.Context, f Filter) (int64, error)
	// Rename atomically removes the record stored under oldKey and inserts
	// rec under its own key.
	Rename(ctx context.Context, oldKey any, rec T) error
}

// Schema describes how a record type maps onto a backend collection
type Schema[T any] struct {
	// Name is the table or collection name
	Name string
	// Key is the primary key field; it must appear in Fields
	Key string
	// Fields lists every stored field in column order
	Fields []string
	// Values returns the field values of rec in Fields order
	Values func(rec T) []any
	// Scan builds a record from values delivered in Fields order
	Scan func(scan func(dest ...any) error) (T, error)
}

func (s Schema[T]) fieldIndex(name string) int {
	for i, f := range s.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

func (s Schema[T]) keyIndex() int {
	return s.fieldIndex(s.Key)
}

func (s Schema[T]) keyOf(rec T) any {
	return s.Values(rec)[s.keyIndex()]
}

// check validates the schema itself. Backends call it on construction.
func (s Schema[T]) check() error {
	if s.Name == "" || s.Values == nil || s.Scan == nil {
		return fmt.Errorf("storage: incomplete schema %q", s.Name)
	}
	if s.keyIndex() < 0 {
		return fmt.Errorf("storage: schema %q key %q is not a field", s.Name, s.Key)
	}
	return nil
}

// validateFilter rejects filters naming fields outside the schema or using
// unknown operators.
func (s Schema[T]) validateFilter(f Filter) error {
	return walkFields(f, func(field string, op Op) error {
		if s.fieldIndex(field) < 0 {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.Name, field)
		}
		if !op.Valid() {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, op)
		}
		return nil
	})
}

func (s Schema[T]) validateQuery(q Query) error {
	if err := s.validateFilter(q.Where()); err != nil {
		return err
	}
	if sort := q.Sort(); sort != nil && s.fieldIndex(sort.Field) < 0 {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.Name, sort.Field)
	}
	return nil
}
