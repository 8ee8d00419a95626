package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Collection used by tests and ephemeral agents.
// Records are held as value rows so callers never share state with the store.
type Memory[T any] struct {
	schema Schema[T]

	mu   sync.RWMutex
	rows map[any][]any
	seq  map[any]uint64
	next uint64
}

// NewMemory creates an empty in-memory collection
func NewMemory[T any](schema Schema[T]) (*Memory[T], error) {
	if err := schema.check(); err != nil {
		return nil, err
	}
	return &Memory[T]{
		schema: schema,
		rows:   make(map[any][]any),
		seq:    make(map[any]uint64),
	}, nil
}

func (m *Memory[T]) row(rec T) ([]any, any) {
	vals := m.schema.Values(rec)
	row := make([]any, len(vals))
	for i, v := range vals {
		row[i] = normalize(v)
	}
	return row, row[m.schema.keyIndex()]
}

func (m *Memory[T]) put(key any, row []any) {
	if _, ok := m.rows[key]; !ok {
		m.next++
		m.seq[key] = m.next
	}
	m.rows[key] = row
}

func (m *Memory[T]) remove(key any) {
	delete(m.rows, key)
	delete(m.seq, key)
}

func (m *Memory[T]) Store(_ context.Context, rec T) error {
	row, key := m.row(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, row)
	return nil
}

func (m *Memory[T]) Insert(_ context.Context, rec T) error {
	row, key := m.row(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[key]; exists {
		return fmt.Errorf("%w: %s %v", ErrDuplicate, m.schema.Name, key)
	}
	m.put(key, row)
	return nil
}

func (m *Memory[T]) Get(_ context.Context, q Query) ([]T, error) {
	if err := m.schema.validateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := make([][]any, 0, len(m.rows))
	keys := make([]any, 0, len(m.rows))
	for key, row := range m.rows {
		if m.match(row, q.Where()) {
			matched = append(matched, row)
			keys = append(keys, key)
		}
	}
	order := make([]uint64, len(keys))
	for i, key := range keys {
		order[i] = m.seq[key]
	}
	m.mu.RUnlock()

	idx := make([]int, len(matched))
	for i := range idx {
		idx[i] = i
	}
	sortBy := q.Sort()
	slices.SortStableFunc(idx, func(a, b int) int {
		if sortBy != nil {
			fi := m.schema.fieldIndex(sortBy.Field)
			cmp, _ := compareValues(matched[a][fi], matched[b][fi])
			if sortBy.Order == Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		// insertion order is the provider default
		return compareOrdered(int64(order[a]), int64(order[b]))
	})

	offset, limit := q.Page()
	if offset >= len(idx) {
		return []T{}, nil
	}
	idx = idx[offset:]
	if limit > 0 && limit < len(idx) {
		idx = idx[:limit]
	}

	out := make([]T, 0, len(idx))
	for _, i := range idx {
		rec, err := m.schema.Scan(scanValues(matched[i]))
		if err != nil {
			return nil, fmt.Errorf("storage: scan %s: %w", m.schema.Name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory[T]) Delete(_ context.Context, f Filter) (int64, error) {
	if err := m.schema.validateFilter(f); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, row := range m.rows {
		if m.match(row, f) {
			m.remove(key)
			n++
		}
	}
	return n, nil
}

func (m *Memory[T]) Count(_ context.Context, f Filter) (int64, error) {
	if err := m.schema.validateFilter(f); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, row := range m.rows {
		if m.match(row, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory[T]) Rename(_ context.Context, oldKey any, rec T) error {
	row, key := m.row(rec)
	oldKey = normalize(oldKey)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[oldKey]; !ok {
		return fmt.Errorf("%w: %s %v", ErrNotFound, m.schema.Name, oldKey)
	}
	if !equalValues(key, oldKey) {
		if _, taken := m.rows[key]; taken {
			return fmt.Errorf("%w: %s %v", ErrDuplicate, m.schema.Name, key)
		}
		m.remove(oldKey)
	}
	m.put(key, row)
	return nil
}

func (m *Memory[T]) match(row []any, f Filter) bool {
	switch node := f.(type) {
	case nil:
		return true
	case Compare:
		v := row[m.schema.fieldIndex(node.Field)]
		switch node.Op {
		case OpEq:
			return equalValues(v, node.Value)
		case OpNe:
			return !equalValues(v, node.Value)
		case OpLike:
			s, ok := v.(string)
			sub, subOK := node.Value.(string)
			return ok && subOK && strings.Contains(s, sub)
		}
		cmp, ok := compareValues(v, node.Value)
		if !ok {
			return false
		}
		switch node.Op {
		case OpLt:
			return cmp < 0
		case OpLe:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		case OpGe:
			return cmp >= 0
		}
		return false
	case And:
		for _, child := range node.Filters {
			if !m.match(row, child) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range node.Filters {
			if m.match(row, child) {
				return true
			}
		}
		return false
	}
	return false
}
