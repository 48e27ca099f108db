package relsource

import (
	"context"
	"fmt"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/marshal"
)

// Update writes the records back by primary key. Only changed fields are
// written; a record with no changed fields rewrites every writable column.
// Attached children cascade after the parent row: persisted children
// update, unpersisted ones create with the linking key filled, detached
// ones delete.
func (s *Source) Update(ctx context.Context, records ...*Record) (int, error) {
	visited := make(map[*Record]bool)
	total := 0
	for _, r := range records {
		n, err := s.update(ctx, r, visited)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Source) update(ctx context.Context, r *Record, visited map[*Record]bool) (int, error) {
	if visited[r] {
		return 0, nil
	}
	visited[r] = true
	if r.err != nil {
		return 0, r.err
	}
	m := r.model
	if m.ID() == "" || r.ID() == nil {
		return 0, NewStateError(m.Table, "update")
	}
	stores := r.changedStores()
	stored, err := marshal.Record(m, r.values)
	if err != nil {
		return 0, NewStoreError(m.Name, "update", err)
	}
	pf := m.Primary()
	b := &sql.Builder{}
	b.WriteString("UPDATE " + s.Table(m) + " SET ")
	n := 0
	for _, f := range m.Fields {
		if f.Injects() || !stores[f.Store] {
			continue
		}
		if n > 0 {
			b.WriteString(",")
		}
		b.Column(f.Store).WriteString("=").Arg(stored[f.Store])
		n++
	}
	b.WriteString(" WHERE ").Column(pf.Store).WriteString("=").Arg(stored[pf.Store])
	affected, err := s.exec(ctx, m, "update", b)
	if err != nil {
		return 0, err
	}
	r.settle()
	if err := s.updateChildren(ctx, r, visited); err != nil {
		return affected, err
	}
	return affected, nil
}

// changedStores maps the changed field set to the columns an UPDATE must
// write: a changed injected field dirties its target's column. With no
// changes recorded every writable non-primary column is rewritten.
func (r *Record) changedStores() map[string]bool {
	m := r.model
	stores := make(map[string]bool, len(r.changed))
	for name := range r.changed {
		f, ok := m.Field(name)
		if !ok {
			continue
		}
		switch {
		case f.Injects():
			target, _ := f.InjectTarget()
			tf, _ := m.Field(target)
			stores[tf.Store] = true
		case !f.ReadOnly:
			stores[f.Store] = true
		}
	}
	if len(stores) > 0 {
		return stores
	}
	for _, f := range m.Fields {
		if f.ReadOnly || f.Injects() || f.PrimaryKey {
			continue
		}
		stores[f.Store] = true
	}
	return stores
}

// updateChildren cascades the write to attached and detached children.
func (s *Source) updateChildren(ctx context.Context, r *Record, visited map[*Record]bool) error {
	for _, e := range s.children(r.model.Name) {
		for _, child := range r.children[e.Child] {
			child.Set(e.ChildKey, r.values[e.ParentKey])
			if child.ID() != nil {
				if _, err := s.update(ctx, child, visited); err != nil {
					return err
				}
				continue
			}
			if err := s.create(ctx, child, make(map[*Record]bool)); err != nil {
				return err
			}
		}
		for _, child := range r.removed[e.Child] {
			if child.ID() == nil {
				continue
			}
			if _, err := s.Delete(ctx, child); err != nil {
				return err
			}
		}
		delete(r.removed, e.Child)
	}
	return nil
}

// Update applies one shared SET to every matching row. The value map is
// keyed by field name. Injected fields cannot take part in a filtered
// update; write those through a record instead. An update with no filter
// conditions fails rather than touching the whole table.
func (q *Query) Update(ctx context.Context, set map[string]any) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	m := q.model
	if len(q.where) == 0 && !q.hasMatch {
		return 0, NewStateError(m.Table, "update")
	}
	if len(set) == 0 {
		return 0, NewStateError(m.Table, "update")
	}
	stored := make(map[string]any, len(set))
	stores := make(map[string]bool, len(set))
	for name, v := range set {
		f, ok := m.Field(name)
		if !ok {
			return 0, NewFilterError(m.Name, name, fmt.Errorf("no field %q", name))
		}
		if f.Injects() {
			return 0, NewFilterError(m.Name, name, fmt.Errorf("injected field %q cannot join a filtered update", f.Name))
		}
		if f.ReadOnly {
			return 0, NewFilterError(m.Name, name, fmt.Errorf("field %q is read-only", f.Name))
		}
		sv, err := marshal.Value(f, v)
		if err != nil {
			return 0, NewStoreError(m.Name, "update", err)
		}
		stored[f.Store] = sv
		stores[f.Store] = true
	}
	b := &sql.Builder{}
	b.WriteString("UPDATE " + q.src.Table(m) + " SET ")
	n := 0
	for _, f := range m.Fields {
		if !stores[f.Store] {
			continue
		}
		if n > 0 {
			b.WriteString(",")
		}
		b.Column(f.Store).WriteString("=").Arg(stored[f.Store])
		n++
	}
	if err := q.whereInto(ctx, b, &Cursor{}); err != nil {
		return 0, err
	}
	return q.src.exec(ctx, m, "update", b)
}
