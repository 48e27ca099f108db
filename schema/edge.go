package schema

import "fmt"

// EdgeKind is the cardinality of a relationship edge.
type EdgeKind int

const (
	// O2M relates one parent row to many child rows.
	O2M EdgeKind = iota
	// O2O relates one parent row to at most one child row; the child key
	// carries a uniqueness constraint.
	O2O
)

// String returns the cardinality name.
func (k EdgeKind) String() string {
	if k == O2O {
		return "one-to-one"
	}
	return "one-to-many"
}

// Edge is one directed relationship between two models. Edges are held as
// an edge list over model names, never as embedded object references, so
// cascade traversal can guard against cycles explicitly.
type Edge struct {
	Parent    string   // parent model name
	Child     string   // child model name
	Kind      EdgeKind
	ParentKey string // parent field the relation hangs off; the primary field
	ChildKey  string // plain column field on the child holding the parent key
}

// Validate checks the edge against its registered endpoint models.
func (e *Edge) Validate(parent, child *Model) error {
	if e.ParentKey == "" || e.ChildKey == "" {
		return fmt.Errorf("edge %s->%s: missing keys", e.Parent, e.Child)
	}
	if _, ok := parent.Field(e.ParentKey); !ok {
		return fmt.Errorf("edge %s->%s: parent key %q not a field", e.Parent, e.Child, e.ParentKey)
	}
	cf, ok := child.Field(e.ChildKey)
	if !ok {
		return fmt.Errorf("edge %s->%s: child key %q not a field", e.Parent, e.Child, e.ChildKey)
	}
	if cf.Kind.JSON() || cf.Injects() {
		return fmt.Errorf("edge %s->%s: child key %q must be a plain column", e.Parent, e.Child, e.ChildKey)
	}
	if e.Kind == O2O && !cf.Unique {
		return fmt.Errorf("edge %s->%s: one-to-one child key %q must be unique", e.Parent, e.Child, e.ChildKey)
	}
	return nil
}
