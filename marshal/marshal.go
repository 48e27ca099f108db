// Package marshal converts field values between their logical in-memory
// representation and the storage representation relsource writes to the
// store: scalars for plain columns, JSON text for JSONB-backed kinds.
//
// Round-trip guarantee: Decode(Value(v)) reproduces v under the kind's own
// equality: element order for lists, membership for sets (order is not
// preserved, duplicates collapse), and the designated init key for
// struct-backed values.
package marshal

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/syssam/relsource/schema"
)

// Value converts a logical field value to its storage representation.
// JSON-backed kinds return serialized JSON text; scalars pass through with
// narrow coercion.
func Value(f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("field %q: expected bool, got %T", f.Name, v)
		}
		return b, nil
	case schema.KindInt:
		return toInt64(f, v)
	case schema.KindFloat:
		return toFloat64(f, v)
	case schema.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: expected string, got %T", f.Name, v)
		}
		return s, nil
	case schema.KindUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u.String(), nil
		case string:
			id, err := uuid.Parse(u)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			return id.String(), nil
		default:
			return nil, fmt.Errorf("field %q: expected uuid, got %T", f.Name, v)
		}
	case schema.KindList, schema.KindDict:
		return jsonText(f, v)
	case schema.KindSet:
		l, ok := Slice(v)
		if !ok {
			return nil, fmt.Errorf("field %q: expected a set slice, got %T", f.Name, v)
		}
		return jsonText(f, SortedSet(l))
	case schema.KindStruct:
		if f.Attr == nil {
			return jsonText(f, v)
		}
		attrs, err := f.Attr(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return jsonText(f, attrs)
	}
	return nil, fmt.Errorf("field %q: unhandled kind %s", f.Name, f.Kind)
}

// Decode converts a raw row value back to the logical value and, for
// JSON-backed kinds, the decoded stored form the virtual-column
// projections descend into. For plain kinds both are the same value.
func Decode(f *schema.Field, raw any) (logical, stored any, err error) {
	if raw == nil {
		return nil, nil, nil
	}
	switch f.Kind {
	case schema.KindBool:
		switch b := raw.(type) {
		case bool:
			return b, b, nil
		case int64:
			// 0/1 domain of stores without a native boolean.
			v := b != 0
			return v, v, nil
		}
		return nil, nil, fmt.Errorf("field %q: cannot scan %T into bool", f.Name, raw)
	case schema.KindInt:
		v, err := toInt64(f, raw)
		return v, v, err
	case schema.KindFloat:
		v, err := toFloat64(f, raw)
		return v, v, err
	case schema.KindString:
		s, err := toString(f, raw)
		return s, s, err
	case schema.KindUUID:
		s, err := toString(f, raw)
		if err != nil {
			return nil, nil, err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return id, id.String(), nil
	case schema.KindList, schema.KindDict:
		v, err := decodeJSON(f, raw)
		return v, v, err
	case schema.KindSet:
		v, err := decodeJSON(f, raw)
		if err != nil {
			return nil, nil, err
		}
		l, ok := v.([]any)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: stored set is not an array", f.Name)
		}
		set := SortedSet(l)
		return set, set, nil
	case schema.KindStruct:
		v, err := decodeJSON(f, raw)
		if err != nil {
			return nil, nil, err
		}
		if f.Init == "" {
			return v, v, nil
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("field %q: stored struct is not an object", f.Name)
		}
		logical := m[f.Init]
		if f.Restore != nil {
			logical, err = f.Restore(logical)
			if err != nil {
				return nil, nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		return logical, v, nil
	}
	return nil, nil, fmt.Errorf("field %q: unhandled kind %s", f.Name, f.Kind)
}

// Record marshals a full logical value map into storage values keyed by
// column name. Inject transforms run first, writing each injected field's
// current value into the target path of its target field's JSON; injected
// fields then contribute no column of their own.
func Record(m *schema.Model, values map[string]any) (map[string]any, error) {
	logical := make(map[string]any, len(values))
	for k, v := range values {
		logical[k] = v
	}
	for _, f := range m.Fields {
		if !f.Injects() {
			continue
		}
		target, path := f.InjectTarget()
		tf, _ := m.Field(target)
		logical[tf.Name] = path.Set(deepCopy(logical[tf.Name]), logical[f.Name])
	}
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		if f.Injects() {
			continue
		}
		v, err := Value(f, logical[f.Name])
		if err != nil {
			return nil, err
		}
		out[f.Store] = v
	}
	return out, nil
}

// SortedSet returns the canonical form of a set: elements deduplicated and
// ordered by their JSON encoding, so storage comparison is deterministic.
func SortedSet(l []any) []any {
	type elem struct {
		key string
		v   any
	}
	elems := make([]elem, 0, len(l))
	seen := make(map[string]struct{}, len(l))
	for _, v := range l {
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte(fmt.Sprint(v))
		}
		k := string(b)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		elems = append(elems, elem{key: k, v: v})
	}
	sort.Slice(elems, func(i, j int) bool { return elems[i].key < elems[j].key })
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = e.v
	}
	return out
}

func jsonText(f *schema.Field, v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return string(b), nil
}

func decodeJSON(f *schema.Field, raw any) (any, error) {
	var b []byte
	switch r := raw.(type) {
	case []byte:
		b = r
	case string:
		b = []byte(r)
	default:
		return nil, fmt.Errorf("field %q: cannot scan %T as JSON", f.Name, raw)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return v, nil
}

func toInt64(f *schema.Field, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	case []byte:
		var i int64
		if _, err := fmt.Sscan(string(n), &i); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("field %q: expected int, got %T", f.Name, v)
}

func toFloat64(f *schema.Field, v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case []byte:
		var x float64
		if _, err := fmt.Sscan(string(n), &x); err == nil {
			return x, nil
		}
	}
	return 0, fmt.Errorf("field %q: expected float, got %T", f.Name, v)
}

func toString(f *schema.Field, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("field %q: expected string, got %T", f.Name, v)
}

// Slice widens the common concrete slice types to []any.
func Slice(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

// deepCopy clones a decoded JSON tree so inject never mutates the caller's
// value in place.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = deepCopy(e)
		}
		return l
	default:
		return v
	}
}
