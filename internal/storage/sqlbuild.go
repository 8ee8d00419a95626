package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the relational backends
type dialect struct {
	// placeholder renders the n-th (1-based) bind parameter
	placeholder func(n int) string
	// contains renders a substring test of column against a bound value
	contains func(column, value string) string
	// noLimit is emitted as LIMIT when only an offset is requested; empty
	// means the LIMIT clause may be omitted
	noLimit string
	// bind converts a Go value into a driver value
	bind func(v any) (any, error)
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	contains:    func(column, value string) string { return "strpos(" + column + ", " + value + ") > 0" },
	bind:        func(v any) (any, error) { return v, nil },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	contains:    func(column, value string) string { return "instr(" + column + ", " + value + ") > 0" },
	noLimit:     "-1",
	bind:        sqliteBind,
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var sqlOps = map[Op]string{
	OpEq: "=",
	OpNe: "<>",
	OpLt: "<",
	OpLe: "<=",
	OpGt: ">",
	OpGe: ">=",
}

// sqlBuilder accumulates a statement's bind arguments while rendering
type sqlBuilder struct {
	d    dialect
	args []any
}

func (b *sqlBuilder) arg(v any) (string, error) {
	bound, err := b.d.bind(v)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, bound)
	return b.d.placeholder(len(b.args)), nil
}

func (b *sqlBuilder) where(f Filter) (string, error) {
	switch node := f.(type) {
	case Compare:
		col := quoteIdent(node.Field)
		if node.Value == nil {
			switch node.Op {
			case OpEq:
				return col + " IS NULL", nil
			case OpNe:
				return col + " IS NOT NULL", nil
			}
		}
		ph, err := b.arg(node.Value)
		if err != nil {
			return "", err
		}
		if node.Op == OpLike {
			return b.d.contains(col, ph), nil
		}
		op, ok := sqlOps[node.Op]
		if !ok {
			return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, node.Op)
		}
		return col + " " + op + " " + ph, nil
	case And:
		return b.join(node.Filters, " AND ", "1=1")
	case Or:
		return b.join(node.Filters, " OR ", "1=0")
	}
	return "", fmt.Errorf("%w: unsupported filter node %T", ErrInvalidQuery, f)
}

func (b *sqlBuilder) join(filters []Filter, sep, empty string) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(filters))
	for _, child := range filters {
		part, err := b.where(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *sqlBuilder) whereClause(f Filter) (string, error) {
	if f == nil {
		return "", nil
	}
	cond, err := b.where(f)
	if err != nil {
		return "", err
	}
	return " WHERE " + cond, nil
}

func columnList(fields []string) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
	}
	return strings.Join(cols, ", ")
}

func (b *sqlBuilder) selectSQL(table string, fields []string, q Query) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + columnList(fields) + " FROM " + quoteIdent(table))

	where, err := b.whereClause(q.Where())
	if err != nil {
		return "", err
	}
	sb.WriteString(where)

	if sort := q.Sort(); sort != nil {
		dir := "ASC"
		if sort.Order == Desc {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY " + quoteIdent(sort.Field) + " " + dir)
	}

	offset, limit := q.Page()
	switch {
	case limit > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(limit))
	case offset > 0 && b.d.noLimit != "":
		sb.WriteString(" LIMIT " + b.d.noLimit)
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(offset))
	}
	return sb.String(), nil
}

func (b *sqlBuilder) insertSQL(table string, fields []string, values []any) (string, error) {
	phs := make([]string, len(values))
	for i, v := range values {
		ph, err := b.arg(v)
		if err != nil {
			return "", err
		}
		phs[i] = ph
	}
	return "INSERT INTO " + quoteIdent(table) + " (" + columnList(fields) + ") VALUES (" +
		strings.Join(phs, ", ") + ")", nil
}

func (b *sqlBuilder) upsertSQL(table, key string, fields []string, values []any) (string, error) {
	insert, err := b.insertSQL(table, fields, values)
	if err != nil {
		return "", err
	}
	sets := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == key {
			continue
		}
		sets = append(sets, quoteIdent(f)+" = excluded."+quoteIdent(f))
	}
	if len(sets) == 0 {
		return insert + " ON CONFLICT (" + quoteIdent(key) + ") DO NOTHING", nil
	}
	return insert + " ON CONFLICT (" + quoteIdent(key) + ") DO UPDATE SET " + strings.Join(sets, ", "), nil
}

func (b *sqlBuilder) deleteSQL(table string, f Filter) (string, error) {
	where, err := b.whereClause(f)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + quoteIdent(table) + where, nil
}

func (b *sqlBuilder) countSQL(table string, f Filter) (string, error) {
	where, err := b.whereClause(f)
	if err != nil {
		return "", err
	}
	return "SELECT COUNT(*) FROM " + quoteIdent(table) + where, nil
}
