// Package filter compiles keyword-style filter expressions into
// parameterized SQL predicates. A filter is a mapping from
// separator-joined path strings to values; each path resolves against a
// model's descriptor set to a plain column, a virtual (extract) column,
// or a JSON path descent, with an optional trailing operator keyword.
// Conditions combine by logical AND; no OR is expressible at this layer.
//
// Unresolvable paths fail compilation before any statement executes.
package filter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/marshal"
	"github.com/syssam/relsource/schema"
)

// Map is a filter expression: filter-path strings to operand values.
type Map map[string]any

// Error reports a filter path that does not resolve against the model.
type Error struct {
	Model string // Model name
	Path  string // Offending filter path
	Err   error  // Underlying cause
}

// Error returns the error string.
func (e *Error) Error() string {
	return fmt.Sprintf("relsource: %s: filter %q: %v", e.Model, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an Error for the given model and path.
func NewError(model, path string, err error) *Error {
	return &Error{Model: model, Path: path, Err: err}
}

// Op is a terminal comparison operator.
type Op int

const (
	OpEQ Op = iota // no trailing keyword
	OpNE
	OpIn
	OpGT
	OpGTE
	OpLT
	OpLTE
	OpLike
	OpNotLike
	OpNull
	OpHas
	OpAny
	OpAll
)

// operator keyword table: terminal path segment to semantics.
var ops = map[string]Op{
	"ne":      OpNE,
	"in":      OpIn,
	"gt":      OpGT,
	"gte":     OpGTE,
	"lt":      OpLT,
	"lte":     OpLTE,
	"like":    OpLike,
	"notlike": OpNotLike,
	"null":    OpNull,
	"has":     OpHas,
	"any":     OpAny,
	"all":     OpAll,
}

var compare = map[Op]string{
	OpEQ:  "=",
	OpGT:  ">",
	OpGTE: ">=",
	OpLT:  "<",
	OpLTE: "<=",
}

// Resolved is a filter path validated against a model: a concrete column
// (plain or virtual) or a JSON descent, plus the terminal operator. SQL
// emission matches over the variant; nothing is re-interpreted at query
// time.
type Resolved struct {
	Field  *schema.Field
	Column string      // column the condition addresses
	JSON   schema.Path // non-empty: descent inside Column's JSONB value
	Op     Op
}

// Resolve validates one filter path against the model.
func Resolve(m *schema.Model, key string) (*Resolved, error) {
	parts := strings.Split(key, schema.Separator)
	op := OpEQ
	if len(parts) > 1 {
		if o, ok := ops[parts[len(parts)-1]]; ok {
			op = o
			parts = parts[:len(parts)-1]
		}
	}
	f, ok := m.Field(parts[0])
	if !ok {
		return nil, &Error{Model: m.Name, Path: key, Err: fmt.Errorf("no field %q", parts[0])}
	}
	if f.Injects() {
		return nil, &Error{Model: m.Name, Path: key, Err: fmt.Errorf("injected field %q has no column", f.Name)}
	}
	r := &Resolved{Field: f, Column: f.Store, Op: op}
	if len(parts) == 1 {
		return r, nil
	}
	rest := strings.Join(parts[1:], schema.Separator)
	if e, ok := f.Extracted(rest); ok {
		r.Column = e.Column(f.Store)
		return r, nil
	}
	if !f.Kind.JSON() {
		return nil, &Error{Model: m.Name, Path: key, Err: fmt.Errorf("field %q is not JSON-stored, cannot descend %q", f.Name, rest)}
	}
	p, err := schema.ParsePath(rest)
	if err != nil {
		return nil, &Error{Model: m.Name, Path: key, Err: err}
	}
	r.JSON = p
	return r, nil
}

// Compile resolves every path of the filter and appends the AND-joined
// predicate to the builder. Keys compile in sorted order so statement
// text is deterministic.
func Compile(m *schema.Model, f Map, b *sql.Builder) error {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		r, err := Resolve(m, k)
		if err != nil {
			return err
		}
		if i > 0 {
			b.WriteString(" AND ")
		}
		if err := r.Condition(b, f[k]); err != nil {
			return &Error{Model: m.Name, Path: k, Err: err}
		}
	}
	return nil
}

// Condition appends this path's comparison against the operand value.
func (r *Resolved) Condition(b *sql.Builder, value any) error {
	if len(r.JSON) > 0 {
		return r.jsonCondition(b, value)
	}
	switch r.Op {
	case OpEQ, OpGT, OpGTE, OpLT, OpLTE:
		b.Column(r.Column).WriteString(compare[r.Op]).Arg(value)
	case OpIn, OpNE:
		l, ok := marshal.Slice(value)
		if !ok {
			return fmt.Errorf("operator needs a sequence operand, got %T", value)
		}
		r.membership(b, l)
	case OpLike, OpNotLike:
		r.pattern(b, func(b *sql.Builder) { b.Column(r.Column) }, value)
	case OpNull:
		null, ok := value.(bool)
		if !ok {
			return fmt.Errorf("null operator needs a bool operand, got %T", value)
		}
		b.Column(r.Column)
		if null {
			b.WriteString(" IS NULL")
		} else {
			b.WriteString(" IS NOT NULL")
		}
	case OpHas, OpAny, OpAll:
		if !r.Field.Kind.JSON() {
			return fmt.Errorf("containment needs a JSON-stored field")
		}
		return containment(b, func(b *sql.Builder) { b.Column(r.Column) }, r.Op, value)
	}
	return nil
}

// jsonCondition compares a JSON path descent, casting the extracted
// scalar to the type implied by the operand.
func (r *Resolved) jsonCondition(b *sql.Builder, value any) error {
	text := func(b *sql.Builder) {
		b.WriteString("(").Column(r.Column).WriteString("#>>").Arg(r.JSON.TextPath()).WriteString(")")
	}
	tree := func(b *sql.Builder) {
		b.WriteString("(").Column(r.Column).WriteString("#>").Arg(r.JSON.TextPath()).WriteString(")")
	}
	switch r.Op {
	case OpEQ, OpGT, OpGTE, OpLT, OpLTE:
		cast, jsonOperand := castFor(value)
		if jsonOperand {
			operand, err := json.Marshal(value)
			if err != nil {
				return err
			}
			text(b)
			b.WriteString("::JSONB" + compare[r.Op]).Arg(string(operand)).WriteString("::JSONB")
			return nil
		}
		text(b)
		b.WriteString("::" + cast + compare[r.Op]).Arg(value)
	case OpIn, OpNE:
		l, ok := marshal.Slice(value)
		if !ok {
			return fmt.Errorf("operator needs a sequence operand, got %T", value)
		}
		if len(l) == 0 {
			if r.Op == OpIn {
				b.WriteString("FALSE")
			} else {
				b.WriteString("TRUE")
			}
			return nil
		}
		cast, _ := castFor(l[0])
		text(b)
		b.WriteString("::" + cast)
		if r.Op == OpNE {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (").Args(l...).WriteString(")")
	case OpLike, OpNotLike:
		r.pattern(b, text, value)
	case OpNull:
		null, ok := value.(bool)
		if !ok {
			return fmt.Errorf("null operator needs a bool operand, got %T", value)
		}
		text(b)
		if null {
			b.WriteString(" IS NULL")
		} else {
			b.WriteString(" IS NOT NULL")
		}
	case OpHas, OpAny, OpAll:
		return containment(b, tree, r.Op, value)
	}
	return nil
}

// pattern appends a (negated) case-insensitive substring match.
func (r *Resolved) pattern(b *sql.Builder, expr func(*sql.Builder), value any) {
	expr(b)
	b.WriteString("::VARCHAR(255)")
	if r.Op == OpNotLike {
		b.WriteString(" NOT")
	}
	b.WriteString(" ILIKE ").Arg("%" + fmt.Sprint(value) + "%")
}

// containment appends JSONB @> conditions: has checks one element, all
// checks the whole sequence at once, any ORs one check per element.
func containment(b *sql.Builder, expr func(*sql.Builder), op Op, value any) error {
	contains := func(v any) error {
		operand, err := json.Marshal([]any{v})
		if err != nil {
			return err
		}
		expr(b)
		b.WriteString(" @> ").Arg(string(operand)).WriteString("::JSONB")
		return nil
	}
	switch op {
	case OpHas:
		return contains(value)
	case OpAll:
		l, ok := marshal.Slice(value)
		if !ok {
			return fmt.Errorf("all operator needs a sequence operand, got %T", value)
		}
		operand, err := json.Marshal(l)
		if err != nil {
			return err
		}
		expr(b)
		b.WriteString(" @> ").Arg(string(operand)).WriteString("::JSONB")
	case OpAny:
		l, ok := marshal.Slice(value)
		if !ok {
			return fmt.Errorf("any operator needs a sequence operand, got %T", value)
		}
		if len(l) == 0 {
			b.WriteString("FALSE")
			return nil
		}
		b.WriteString("(")
		for i, v := range l {
			if i > 0 {
				b.WriteString(" OR ")
			}
			if err := contains(v); err != nil {
				return err
			}
		}
		b.WriteString(")")
	}
	return nil
}

// membership appends an IN / NOT IN list. Empty sequences collapse to a
// constant truth value instead of invalid SQL.
func (r *Resolved) membership(b *sql.Builder, l []any) {
	if len(l) == 0 {
		if r.Op == OpIn {
			b.WriteString("FALSE")
		} else {
			b.WriteString("TRUE")
		}
		return
	}
	b.Column(r.Column)
	if r.Op == OpNE {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN (").Args(l...).WriteString(")")
}

// castFor maps an operand's Go type to the SQL cast applied to an
// extracted JSON scalar before comparing. Sequence and object operands
// compare as JSONB trees.
func castFor(v any) (cast string, jsonOperand bool) {
	switch v.(type) {
	case bool:
		return "BOOLEAN", false
	case int, int32, int64:
		return "INT", false
	case float32, float64:
		return "FLOAT", false
	case string:
		return "VARCHAR(255)", false
	default:
		if _, ok := marshal.Slice(v); ok {
			return "JSONB", true
		}
		if _, ok := v.(map[string]any); ok {
			return "JSONB", true
		}
		return "VARCHAR(255)", false
	}
}
