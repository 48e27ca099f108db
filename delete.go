package relsource

import (
	"context"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/marshal"
	"github.com/syssam/relsource/schema"
)

// Delete removes the records by primary key, descendants first. The
// returned count covers the records' own rows; cascaded child rows are
// removed but not counted.
func (s *Source) Delete(ctx context.Context, records ...*Record) (int, error) {
	grouped := make(map[*schema.Model][]any)
	var order []*schema.Model
	for _, r := range records {
		if r.err != nil {
			return 0, r.err
		}
		m := r.model
		if m.ID() == "" || r.ID() == nil {
			return 0, NewStateError(m.Table, "delete")
		}
		if _, ok := grouped[m]; !ok {
			order = append(order, m)
		}
		grouped[m] = append(grouped[m], r.ID())
	}
	total := 0
	for _, m := range order {
		ids := grouped[m]
		if err := s.deleteDescendants(ctx, m, ids, map[string]bool{m.Name: true}); err != nil {
			return total, err
		}
		pf := m.Primary()
		b := &sql.Builder{}
		b.WriteString("DELETE FROM " + s.Table(m) + " WHERE ").Column(pf.Store)
		b.WriteString(" IN (").Args(storedIDs(pf, ids)...).WriteString(")")
		n, err := s.exec(ctx, m, "delete", b)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// deleteDescendants removes every child row linked to the given parent
// ids, deepest level first. The seen set breaks relationship cycles: each
// model's subtree is walked at most once per delete.
func (s *Source) deleteDescendants(ctx context.Context, m *schema.Model, ids []any, seen map[string]bool) error {
	if len(ids) == 0 {
		return nil
	}
	pf := m.Primary()
	for _, e := range s.children(m.Name) {
		child, ok := s.models[e.Child]
		if !ok || seen[child.Name] {
			continue
		}
		seen[child.Name] = true
		cf, _ := child.Field(e.ChildKey)
		if child.ID() != "" && len(s.children(child.Name)) > 0 {
			b := &sql.Builder{}
			cpf := child.Primary()
			b.WriteString("SELECT ").Column(cpf.Store).WriteString(" FROM " + s.Table(child))
			b.WriteString(" WHERE ").Column(cf.Store).WriteString(" IN (").Args(storedIDs(pf, ids)...).WriteString(")")
			rows, err := s.query(ctx, child, "delete", b)
			if err != nil {
				return err
			}
			cids := make([]any, 0, len(rows))
			for _, row := range rows {
				cids = append(cids, row[cpf.Store])
			}
			if err := s.deleteDescendants(ctx, child, cids, seen); err != nil {
				return err
			}
		}
		b := &sql.Builder{}
		b.WriteString("DELETE FROM " + s.Table(child) + " WHERE ").Column(cf.Store)
		b.WriteString(" IN (").Args(storedIDs(pf, ids)...).WriteString(")")
		if _, err := s.exec(ctx, child, "delete", b); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every matching row and its descendants. A delete with no
// filter conditions fails rather than clearing the whole table.
func (q *Query) Delete(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	m := q.model
	if len(q.where) == 0 && !q.hasMatch {
		return 0, NewStateError(m.Table, "delete")
	}
	// Cascade needs concrete parent ids; models without a primary field
	// delete flat.
	if m.ID() != "" && len(q.src.children(m.Name)) > 0 {
		ids, err := q.ids(ctx)
		if err != nil {
			return 0, err
		}
		if err := q.src.deleteDescendants(ctx, m, ids, map[string]bool{m.Name: true}); err != nil {
			return 0, err
		}
	}
	b := &sql.Builder{}
	b.WriteString("DELETE FROM " + q.src.Table(m))
	if err := q.whereInto(ctx, b, &Cursor{}); err != nil {
		return 0, err
	}
	return q.src.exec(ctx, m, "delete", b)
}

// storedIDs marshals primary values to their storage form so uuid.UUID
// and other logical key types bind as the column's scalar type.
func storedIDs(pf *schema.Field, ids []any) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		if v, err := marshal.Value(pf, id); err == nil {
			out[i] = v
		} else {
			out[i] = id
		}
	}
	return out
}
