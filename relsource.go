// Package relsource compiles a declarative relational model (fields,
// JSON-backed values, virtual columns and relationship edges) into
// PostgreSQL statements, and marshals values both ways between typed
// in-memory records and their JSON-in-column storage form.
//
// A Source is the explicit context every operation runs against: it holds
// the caller-supplied driver and the registered descriptor set. There is
// no process-wide registry. Descriptors are immutable once registered;
// per-call state (arguments, cursors) is local to each call, so a Source
// is safe for concurrent read-only use on independent connections.
//
// The caller owns transaction scope. Tx binds a Source to a transaction
// so cascaded child statements share the parent operation's boundary.
package relsource

import (
	"context"
	"fmt"

	"github.com/syssam/relsource/dialect"
	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/dialect/sqlschema"
	"github.com/syssam/relsource/schema"
)

// Source binds a driver to a set of registered models and their
// relationship edges.
type Source struct {
	drv    dialect.Driver
	conn   dialect.ExecQuerier
	schema string

	models map[string]*schema.Model
	order  []string
	edges  []*schema.Edge
}

// Option configures a Source.
type Option func(*Source)

// WithSchema sets the default namespace used for models that declare none.
func WithSchema(name string) Option {
	return func(s *Source) { s.schema = name }
}

// New returns a Source operating on the given driver.
func New(drv dialect.Driver, opts ...Option) *Source {
	s := &Source{
		drv:    drv,
		conn:   drv,
		models: make(map[string]*schema.Model),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register initializes and registers models. Registration order is the
// order Define emits DDL in.
func (s *Source) Register(models ...*schema.Model) error {
	for _, m := range models {
		if err := m.Init(); err != nil {
			return err
		}
		if _, dup := s.models[m.Name]; dup {
			return &schema.DefinitionError{Model: m.Name, Err: fmt.Errorf("already registered")}
		}
		s.models[m.Name] = m
		s.order = append(s.order, m.Name)
	}
	return nil
}

// Model returns a registered model by name.
func (s *Source) Model(name string) (*schema.Model, bool) {
	m, ok := s.models[name]
	return m, ok
}

// Edge registers an explicit relationship edge.
func (s *Source) Edge(e *schema.Edge) error {
	parent, ok := s.models[e.Parent]
	if !ok {
		return &schema.DefinitionError{Model: e.Parent, Err: fmt.Errorf("edge parent not registered")}
	}
	child, ok := s.models[e.Child]
	if !ok {
		return &schema.DefinitionError{Model: e.Child, Err: fmt.Errorf("edge child not registered")}
	}
	if e.Kind == schema.O2O {
		// One-to-one implies a uniqueness constraint on the child key.
		if cf, ok := child.Field(e.ChildKey); ok {
			cf.Unique = true
		}
	}
	if err := e.Validate(parent, child); err != nil {
		return &schema.DefinitionError{Model: e.Parent, Err: err}
	}
	s.edges = append(s.edges, e)
	return nil
}

// OneToMany relates one parent row to many child rows. The parent key is
// the parent's primary field; the child key defaults to "<parent table>_id".
func (s *Source) OneToMany(parent, child string) error {
	return s.relate(parent, child, schema.O2M)
}

// OneToOne relates one parent row to at most one child row and marks the
// child key unique.
func (s *Source) OneToOne(parent, child string) error {
	return s.relate(parent, child, schema.O2O)
}

func (s *Source) relate(parent, child string, kind schema.EdgeKind) error {
	p, ok := s.models[parent]
	if !ok {
		return &schema.DefinitionError{Model: parent, Err: fmt.Errorf("edge parent not registered")}
	}
	if p.ID() == "" {
		return &schema.DefinitionError{Model: parent, Err: fmt.Errorf("edge parent has no primary field")}
	}
	return s.Edge(&schema.Edge{
		Parent:    parent,
		Child:     child,
		Kind:      kind,
		ParentKey: p.ID(),
		ChildKey:  p.Table + "_id",
	})
}

// children returns the outgoing edges of a model.
func (s *Source) children(model string) []*schema.Edge {
	var out []*schema.Edge
	for _, e := range s.edges {
		if e.Parent == model {
			out = append(out, e)
		}
	}
	return out
}

// Table returns the quoted, schema-qualified table reference for a model.
func (s *Source) Table(m *schema.Model) string {
	return sqlschema.TableName(m, s.schema)
}

// Define compiles and executes the DDL for the named models, or for every
// registered model in registration order when none are named. Statements
// are IF NOT EXISTS guarded and safe to re-run.
func (s *Source) Define(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = s.order
	}
	for _, name := range names {
		m, ok := s.models[name]
		if !ok {
			return &schema.DefinitionError{Model: name, Err: fmt.Errorf("not registered")}
		}
		statements, err := sqlschema.Define(m, s.schema)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if err := s.conn.Exec(ctx, stmt, []any{}, nil); err != nil {
				return NewStoreError(m.Name, "define", err)
			}
		}
	}
	return nil
}

// Tx starts a transaction on the underlying driver and returns a Source
// bound to it. Commit and rollback stay with the caller; every cascaded
// statement issued through the returned Source shares the transaction.
func (s *Source) Tx(ctx context.Context) (*Source, dialect.Tx, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, nil, err
	}
	bound := *s
	bound.conn = tx
	return &bound, tx, nil
}

// exec runs a statement and returns the affected-row count.
func (s *Source) exec(ctx context.Context, m *schema.Model, op string, b *sql.Builder) (int, error) {
	if err := b.Err(); err != nil {
		return 0, NewStoreError(m.Name, op, err)
	}
	stmt, args := b.Query()
	var res sql.Result
	if err := s.conn.Exec(ctx, stmt, args, &res); err != nil {
		return 0, NewStoreError(m.Name, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewStoreError(m.Name, op, err)
	}
	return int(n), nil
}

// query runs a statement and scans every row into a column-keyed map.
func (s *Source) query(ctx context.Context, m *schema.Model, op string, b *sql.Builder) ([]map[string]any, error) {
	if err := b.Err(); err != nil {
		return nil, NewStoreError(m.Name, op, err)
	}
	stmt, args := b.Query()
	var rows sql.Rows
	if err := s.conn.Query(ctx, stmt, args, &rows); err != nil {
		return nil, NewStoreError(m.Name, op, err)
	}
	out, err := sql.ScanMaps(rows)
	if err != nil {
		return nil, NewStoreError(m.Name, op, err)
	}
	return out, nil
}
