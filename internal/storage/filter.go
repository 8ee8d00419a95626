package storage

import "fmt"

// Op is a comparison operator used by Compare filters
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "!="
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "like" // substring match on string fields
)

// Valid reports whether op is a known operator
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
		return true
	}
	return false
}

// Filter is a node of a record selection expression.
// The concrete node types are Compare, And and Or.
type Filter interface {
	isFilter()
}

// Compare selects records whose Field compares to Value with Op
type Compare struct {
	Field string
	Op    Op
	Value any
}

// And matches when every child matches. An empty And matches everything.
type And struct {
	Filters []Filter
}

// Or matches when any child matches. An empty Or matches nothing.
type Or struct {
	Filters []Filter
}

func (Compare) isFilter() {}
func (And) isFilter()     {}
func (Or) isFilter()      {}

// Eq is shorthand for Compare{field, OpEq, value}
func Eq(field string, value any) Compare {
	return Compare{Field: field, Op: OpEq, Value: value}
}

// Cmp builds a Compare node
func Cmp(field string, op Op, value any) Compare {
	return Compare{Field: field, Op: op, Value: value}
}

// AllOf combines filters with And, skipping nil entries
func AllOf(filters ...Filter) And {
	return And{Filters: compact(filters)}
}

// AnyOf combines filters with Or, skipping nil entries
func AnyOf(filters ...Filter) Or {
	return Or{Filters: compact(filters)}
}

func compact(filters []Filter) []Filter {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// walkFields calls fn for every field referenced by f
func walkFields(f Filter, fn func(field string, op Op) error) error {
	switch node := f.(type) {
	case nil:
		return nil
	case Compare:
		return fn(node.Field, node.Op)
	case And:
		for _, child := range node.Filters {
			if err := walkFields(child, fn); err != nil {
				return err
			}
		}
		return nil
	case Or:
		for _, child := range node.Filters {
			if err := walkFields(child, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported filter node %T", f)
	}
}
