// Package schema holds the read-only descriptor model relsource compiles
// statements from: models, their fields, virtual-column extractions and
// relationship edges. Descriptors are immutable once registered against a
// source.
package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"
)

// DefinitionError reports a malformed descriptor at compile time, before
// any statement is built.
type DefinitionError struct {
	Model string // Model name
	Err   error  // Underlying cause
}

// Error returns the error string.
func (e *DefinitionError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("relsource: %s: definition: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("relsource: definition: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Model describes one relational model: its table, ordered fields, title
// fields and declared indexes.
type Model struct {
	Name   string
	Schema string // namespace; falls back to the source default
	Table  string // derived from Name when empty

	Fields []*Field

	// Label lists the title/display filter paths a bare pattern match
	// resolves against.
	Label []string

	// Order is the default sort applied when a retrieval declares none.
	// Entries use the +name / -name form.
	Order []string

	// Unique and Index declare named multi-column indexes.
	Unique map[string][]string
	Index  map[string][]string

	// Definition overrides the generated DDL entirely when set.
	Definition []string

	id     string
	byName map[string]*Field
}

// Init validates the model and fills in derived attributes: the table
// name, field stores, and the primary key markers. It must be called (once)
// before the model is used; Source.Register does so.
func (m *Model) Init() error {
	if m.Name == "" {
		return &DefinitionError{Err: fmt.Errorf("model without a name")}
	}
	if m.Table == "" {
		m.Table = inflect.Underscore(m.Name)
	}
	m.byName = make(map[string]*Field, len(m.Fields))
	m.id = ""
	for _, f := range m.Fields {
		if err := f.init(); err != nil {
			return &DefinitionError{Model: m.Name, Err: err}
		}
		if _, dup := m.byName[f.Name]; dup {
			return &DefinitionError{Model: m.Name, Err: fmt.Errorf("duplicate field %q", f.Name)}
		}
		m.byName[f.Name] = f
		if f.Store != f.Name {
			m.byName[f.Store] = f
		}
		if f.PrimaryKey {
			if m.id != "" {
				return &DefinitionError{Model: m.Name, Err: fmt.Errorf("more than one primary field: %q and %q", m.id, f.Name)}
			}
			m.id = f.Name
		}
	}
	for _, f := range m.Fields {
		if !f.Injects() {
			continue
		}
		target, _ := f.InjectTarget()
		tf, ok := m.byName[target]
		if !ok {
			return &DefinitionError{Model: m.Name, Err: fmt.Errorf("field %q: inject target %q not a field", f.Name, target)}
		}
		if !tf.Kind.JSON() {
			return &DefinitionError{Model: m.Name, Err: fmt.Errorf("field %q: inject target %q is not JSON-stored", f.Name, target)}
		}
	}
	for _, paths := range [2]map[string][]string{m.Unique, m.Index} {
		for name, fields := range paths {
			if len(fields) == 0 {
				return &DefinitionError{Model: m.Name, Err: fmt.Errorf("index %q without fields", name)}
			}
			for _, fn := range fields {
				if _, err := m.Resolve(fn); err != nil {
					return &DefinitionError{Model: m.Name, Err: fmt.Errorf("index %q: %w", name, err)}
				}
			}
		}
	}
	for _, l := range m.Label {
		if _, err := m.Resolve(l); err != nil {
			return &DefinitionError{Model: m.Name, Err: fmt.Errorf("label: %w", err)}
		}
	}
	return nil
}

// ID returns the primary field name, or "" if the model has none. Models
// without a primary field support no by-id retrieval, update or delete.
func (m *Model) ID() string {
	return m.id
}

// Primary returns the primary field, or nil.
func (m *Model) Primary() *Field {
	if m.id == "" {
		return nil
	}
	return m.byName[m.id]
}

// Field returns the field with the given name or store name.
func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Resolve maps a separator-joined path with no operator to a concrete
// column: a plain column, or a virtual (extract) column of a JSON field.
// Paths descending into raw JSON do not resolve here; callers that accept
// JSON descent fall back to their own handling.
func (m *Model) Resolve(path string) (string, error) {
	if f, ok := m.byName[path]; ok {
		if f.Injects() {
			return "", fmt.Errorf("path %q names an injected field with no column", path)
		}
		return f.Store, nil
	}
	p, err := ParsePath(path)
	if err != nil {
		return "", err
	}
	if len(p) < 2 || p[0].Kind != SegmentKey {
		return "", fmt.Errorf("path %q does not resolve to a column", path)
	}
	f, ok := m.byName[p[0].Key]
	if !ok {
		return "", fmt.Errorf("path %q: no field %q", path, p[0].Key)
	}
	rest := Path(p[1:]).String()
	if e, ok := f.Extracted(rest); ok {
		return e.Column(f.Store), nil
	}
	return "", fmt.Errorf("path %q: no extracted column %q on field %q", path, rest, f.Name)
}
