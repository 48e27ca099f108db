package relsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/filter"
	"github.com/syssam/relsource/schema"
)

// defaultChunk caps how many parent rows a bare pattern match fetches when
// it descends a relationship edge.
const defaultChunk = 255

// Cursor reports the pagination state of a retrieval.
type Cursor struct {
	Offset int
	Limit  int

	// Overflow is true when at least one more row matched beyond the
	// returned page. It is exact: the retrieval fetches one row past the
	// limit and truncates, so a full final page does not report overflow.
	Overflow bool
}

// Query is a buffered retrieval against one model. Methods mutate and
// return the query for chaining; nothing executes until a terminal call.
type Query struct {
	src   *Source
	model *schema.Model

	where    filter.Map
	match    string
	hasMatch bool
	sort     []string
	limit    int
	limited  bool
	offset   int
	chunk    int

	err error
}

// Query starts a retrieval of the named model.
func (s *Source) Query(model string) *Query {
	q := &Query{src: s}
	m, ok := s.models[model]
	if !ok {
		q.err = &schema.DefinitionError{Model: model, Err: fmt.Errorf("not registered")}
		return q
	}
	q.model = m
	return q
}

// Where adds filter conditions. Conditions accumulate across calls and
// combine by AND.
func (q *Query) Where(f filter.Map) *Query {
	if q.where == nil {
		q.where = make(filter.Map, len(f))
	}
	for k, v := range f {
		q.where[k] = v
	}
	return q
}

// Match adds a bare pattern condition: a case-insensitive substring match
// ORed across the model's label paths. A label naming the linking key of a
// parent edge descends to the parent model's labels instead.
func (q *Query) Match(pattern string) *Query {
	q.match = pattern
	q.hasMatch = true
	return q
}

// Sort sets the sort order, replacing the model default. Entries are field
// paths with an optional +/- prefix; bare names sort ascending.
func (q *Query) Sort(fields ...string) *Query {
	q.sort = fields
	return q
}

// Limit caps the page size. The retrieval fetches one extra row to detect
// overflow and truncates it from the result.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	q.limited = true
	return q
}

// Offset skips the first n matching rows.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Chunk overrides the parent-row cap used when a pattern match descends a
// relationship edge.
func (q *Query) Chunk(n int) *Query {
	q.chunk = n
	return q
}

// All executes the retrieval and returns the matching records with a
// cursor describing the page.
func (q *Query) All(ctx context.Context) ([]*Record, *Cursor, error) {
	if q.err != nil {
		return nil, nil, q.err
	}
	cur := &Cursor{Offset: q.offset, Limit: q.limit}
	b := &sql.Builder{}
	b.WriteString("SELECT * FROM " + q.src.Table(q.model))
	if err := q.whereInto(ctx, b, cur); err != nil {
		return nil, nil, err
	}
	if err := q.orderInto(b); err != nil {
		return nil, nil, err
	}
	if q.limited {
		b.WriteString(fmt.Sprintf(" LIMIT %d", q.limit+1))
	}
	if q.offset > 0 {
		b.WriteString(fmt.Sprintf(" OFFSET %d", q.offset))
	}
	rows, err := q.src.query(ctx, q.model, "retrieve", b)
	if err != nil {
		return nil, nil, err
	}
	if q.limited && len(rows) > q.limit {
		cur.Overflow = true
		rows = rows[:q.limit]
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		r, err := decode(q.model, row)
		if err != nil {
			return nil, nil, NewStoreError(q.model.Name, "retrieve", err)
		}
		records = append(records, r)
	}
	return records, cur, nil
}

// First returns the first matching record, or nil when none match.
func (q *Query) First(ctx context.Context) (*Record, error) {
	c := q.clone()
	c.limit, c.limited = 1, true
	records, _, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Only returns the single matching record. It fails with NotFoundError
// when none match and NotSingularError when more than one does. A query
// with no conditions on a model without a primary field cannot identify
// one row and fails before executing.
func (q *Query) Only(ctx context.Context) (*Record, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.where) == 0 && !q.hasMatch && q.model.ID() == "" {
		return nil, NewStateError(q.model.Table, "retrieve")
	}
	c := q.clone()
	c.limit, c.limited = 2, true
	records, _, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, NewNotFoundError(q.model.Table)
	case 1:
		return records[0], nil
	default:
		return nil, NewNotSingularError(q.model.Table)
	}
}

// Count returns the number of matching rows, ignoring limit and offset.
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	b := &sql.Builder{}
	b.WriteString(`SELECT COUNT(*) AS "count" FROM ` + q.src.Table(q.model))
	if err := q.whereInto(ctx, b, &Cursor{}); err != nil {
		return 0, err
	}
	rows, err := q.src.query(ctx, q.model, "count", b)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, NewStoreError(q.model.Name, "count", fmt.Errorf("no count row"))
	}
	switch n := rows[0]["count"].(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case []byte:
		var i int
		if _, err := fmt.Sscan(string(n), &i); err == nil {
			return i, nil
		}
	}
	return 0, NewStoreError(q.model.Name, "count", fmt.Errorf("cannot scan count %T", rows[0]["count"]))
}

// ids returns the primary key values of the matching rows.
func (q *Query) ids(ctx context.Context) ([]any, error) {
	pf := q.model.Primary()
	if pf == nil {
		return nil, &schema.DefinitionError{Model: q.model.Name, Err: fmt.Errorf("no primary field")}
	}
	b := &sql.Builder{}
	b.WriteString("SELECT ").Column(pf.Store).WriteString(" FROM " + q.src.Table(q.model))
	if err := q.whereInto(ctx, b, &Cursor{}); err != nil {
		return nil, err
	}
	if q.limited {
		b.WriteString(fmt.Sprintf(" LIMIT %d", q.limit))
	}
	rows, err := q.src.query(ctx, q.model, "retrieve", b)
	if err != nil {
		return nil, err
	}
	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row[pf.Store])
	}
	return ids, nil
}

func (q *Query) clone() *Query {
	c := *q
	if q.where != nil {
		c.where = make(filter.Map, len(q.where))
		for k, v := range q.where {
			c.where[k] = v
		}
	}
	return &c
}

// whereInto appends the WHERE clause: the AND-joined filter conditions,
// then the pattern-match disjunction when one is set.
func (q *Query) whereInto(ctx context.Context, b *sql.Builder, cur *Cursor) error {
	if len(q.where) == 0 && !q.hasMatch {
		return nil
	}
	b.WriteString(" WHERE ")
	if len(q.where) > 0 {
		if err := filter.Compile(q.model, q.where, b); err != nil {
			return err
		}
	}
	if q.hasMatch {
		if len(q.where) > 0 {
			b.WriteString(" AND ")
		}
		if err := q.matchInto(ctx, b, cur); err != nil {
			return err
		}
	}
	return nil
}

// matchInto appends the label disjunction for a bare pattern. Labels that
// name the linking key of an edge this model is the child of resolve by
// matching the parent model's labels and constraining the key to the
// matched parent ids; parent-side overflow propagates to the cursor.
func (q *Query) matchInto(ctx context.Context, b *sql.Builder, cur *Cursor) error {
	if len(q.model.Label) == 0 {
		return filter.NewError(q.model.Name, q.match, fmt.Errorf("model has no label paths"))
	}
	b.WriteString("(")
	for i, label := range q.model.Label {
		if i > 0 {
			b.WriteString(" OR ")
		}
		if e := q.parentEdge(label); e != nil {
			if err := q.parentMatch(ctx, b, e, cur); err != nil {
				return err
			}
			continue
		}
		r, err := filter.Resolve(q.model, label)
		if err != nil {
			return err
		}
		r.Op = filter.OpLike
		if err := r.Condition(b, q.match); err != nil {
			return filter.NewError(q.model.Name, label, err)
		}
	}
	b.WriteString(")")
	return nil
}

// parentEdge returns the edge whose child key the label names, if this
// model is the child of one.
func (q *Query) parentEdge(label string) *schema.Edge {
	if strings.Contains(label, schema.Separator) {
		return nil
	}
	f, ok := q.model.Field(label)
	if !ok {
		return nil
	}
	for _, e := range q.src.edges {
		if e.Child == q.model.Name && e.ChildKey == f.Name {
			return e
		}
	}
	return nil
}

// parentMatch constrains the child key to the ids of parent rows whose
// labels match the pattern.
func (q *Query) parentMatch(ctx context.Context, b *sql.Builder, e *schema.Edge, cur *Cursor) error {
	chunk := q.chunk
	if chunk <= 0 {
		chunk = defaultChunk
	}
	parent := q.src.Query(e.Parent).Match(q.match).Chunk(chunk)
	parent.limit, parent.limited = chunk, true
	records, pcur, err := parent.All(ctx)
	if err != nil {
		return err
	}
	if pcur.Overflow {
		cur.Overflow = true
	}
	cf, _ := q.model.Field(e.ChildKey)
	if len(records) == 0 {
		b.WriteString("FALSE")
		return nil
	}
	ids := make([]any, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Get(e.ParentKey))
	}
	b.Column(cf.Store).WriteString(" IN (").Args(ids...).WriteString(")")
	return nil
}

// orderInto appends the ORDER BY clause from the query sort or the model
// default. Entries resolve to plain or virtual columns only.
func (q *Query) orderInto(b *sql.Builder) error {
	entries := q.sort
	if len(entries) == 0 {
		entries = q.model.Order
	}
	if len(entries) == 0 {
		return nil
	}
	b.WriteString(" ORDER BY ")
	for i, entry := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		dir := " ASC"
		switch {
		case strings.HasPrefix(entry, "-"):
			dir = " DESC"
			entry = entry[1:]
		case strings.HasPrefix(entry, "+"):
			entry = entry[1:]
		}
		col, err := q.model.Resolve(entry)
		if err != nil {
			return filter.NewError(q.model.Name, entry, fmt.Errorf("cannot sort: %w", err))
		}
		b.Column(col).WriteString(dir)
	}
	return nil
}
