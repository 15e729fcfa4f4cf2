package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Item is a single record. Values are limited to string, int64, bool and
// nested Item; Normalize converts the looser shapes backends decode into.
type Item map[string]any

// String returns a string attribute or ""
func (i Item) String(name string) string {
	s, _ := i[name].(string)
	return s
}

// Int returns an integer attribute or 0
func (i Item) Int(name string) int64 {
	n, _ := i[name].(int64)
	return n
}

// Bool returns a boolean attribute or false
func (i Item) Bool(name string) bool {
	b, _ := i[name].(bool)
	return b
}

// Map returns a nested item or nil
func (i Item) Map(name string) Item {
	m, _ := i[name].(Item)
	return m
}

// StringMap returns a nested item whose values are all strings
func (i Item) StringMap(name string) map[string]string {
	m := i.Map(name)
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Clone returns a deep copy
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		if nested, ok := v.(Item); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// NormalizeItem normalizes every value of a decoded item in place and returns it
func NormalizeItem(i Item) Item {
	for k, v := range i {
		i[k] = Normalize(v)
	}
	return i
}

// Normalize converts a decoded value into one of the Item value types
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, int64, bool:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint32:
		return int64(x)
	case float64:
		if x == math.Trunc(x) {
			return int64(x)
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		return x.String()
	case Item:
		return NormalizeItem(x)
	case map[string]any:
		return NormalizeItem(Item(x))
	case map[string]string:
		out := make(Item, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	default:
		return fmt.Sprint(x)
	}
}

// Equal compares two normalized values
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case Item:
		y, ok := b.(Item)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			if !Equal(v, y[k]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// IndexValue renders an index key the way it is compared by backends that
// store it as text
func IndexValue(v any) string {
	switch x := Normalize(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
