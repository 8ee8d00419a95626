package storage

import (
	"fmt"
	"strings"
	"time"
)

// normalize folds the numeric kinds onto int64/float64 and times onto UTC so
// that values coming from callers and from backends compare consistently.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return x
			}
			out = append(out, s)
		}
		return out
	}
	return v
}

// compareValues orders a and b. ok is false when the values are not
// comparable with each other.
func compareValues(a, b any) (cmp int, ok bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, y), true
		case float64:
			return compareOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return compareOrdered(x, y), true
		case int64:
			return compareOrdered(x, float64(y)), true
		}
	case string:
		if y, isStr := b.(string); isStr {
			return strings.Compare(x, y), true
		}
	case time.Time:
		if y, isTime := b.(time.Time); isTime {
			return x.Compare(y), true
		}
	case bool:
		if y, isBool := b.(bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func compareOrdered[V int64 | float64](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	as, aok := normalize(a).([]string)
	bs, bok := normalize(b).([]string)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// assign stores a normalized backend value into a Scan destination
func assign(dest, v any) error {
	v = normalize(v)
	switch d := dest.(type) {
	case *string:
		switch x := v.(type) {
		case nil:
			*d = ""
		case string:
			*d = x
		default:
			return scanTypeError(dest, v)
		}
	case *int64:
		switch x := v.(type) {
		case nil:
			*d = 0
		case int64:
			*d = x
		case float64:
			*d = int64(x)
		default:
			return scanTypeError(dest, v)
		}
	case *int:
		switch x := v.(type) {
		case nil:
			*d = 0
		case int64:
			*d = int(x)
		case float64:
			*d = int(x)
		default:
			return scanTypeError(dest, v)
		}
	case *bool:
		switch x := v.(type) {
		case nil:
			*d = false
		case bool:
			*d = x
		case int64:
			*d = x != 0
		default:
			return scanTypeError(dest, v)
		}
	case *time.Time:
		switch x := v.(type) {
		case nil:
			*d = time.Time{}
		case time.Time:
			*d = x
		default:
			return scanTypeError(dest, v)
		}
	case *[]string:
		switch x := v.(type) {
		case nil:
			*d = nil
		case []string:
			*d = x
		default:
			return scanTypeError(dest, v)
		}
	case *any:
		*d = v
	default:
		return fmt.Errorf("storage: unsupported scan destination %T", dest)
	}
	return nil
}

func scanTypeError(dest, v any) error {
	return fmt.Errorf("storage: cannot scan %T into %T", v, dest)
}

// scanValues returns a scan function reading from vals in order
func scanValues(vals []any) func(dest ...any) error {
	return func(dest ...any) error {
		if len(dest) != len(vals) {
			return fmt.Errorf("storage: expected %d scan destinations, got %d", len(vals), len(dest))
		}
		for i := range dest {
			if err := assign(dest[i], vals[i]); err != nil {
				return err
			}
		}
		return nil
	}
}
