package relsource

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/marshal"
	"github.com/syssam/relsource/schema"
)

// Create persists the records, parents before children. Attached child
// records have their linking key filled from the parent after the parent
// row exists, then persist depth-first. Serial primary values come back
// through RETURNING; non-serial UUID primaries are generated client-side
// when unset.
func (s *Source) Create(ctx context.Context, records ...*Record) error {
	visited := make(map[*Record]bool)
	for _, r := range records {
		if err := s.create(ctx, r, visited); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) create(ctx context.Context, r *Record, visited map[*Record]bool) error {
	if visited[r] {
		return nil
	}
	visited[r] = true
	if r.err != nil {
		return r.err
	}
	m := r.model
	s.fillDefaults(r)
	stored, err := marshal.Record(m, r.values)
	if err != nil {
		return NewStoreError(m.Name, "create", err)
	}
	b := &sql.Builder{}
	b.WriteString("INSERT INTO " + s.Table(m) + " (")
	n := 0
	var written []*schema.Field
	for _, f := range m.Fields {
		if f.ReadOnly || f.Injects() {
			continue
		}
		if n > 0 {
			b.WriteString(",")
		}
		b.Column(f.Store)
		written = append(written, f)
		n++
	}
	b.WriteString(") VALUES (")
	for i, f := range written {
		if i > 0 {
			b.WriteString(",")
		}
		b.Arg(stored[f.Store])
	}
	b.WriteString(")")
	pf := m.Primary()
	if pf != nil && pf.Serial {
		b.WriteString(" RETURNING ").Column(pf.Store)
		rows, err := s.query(ctx, m, "create", b)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return NewStoreError(m.Name, "create", fmt.Errorf("no returned key"))
		}
		id, _, err := marshal.Decode(pf, rows[0][pf.Store])
		if err != nil {
			return NewStoreError(m.Name, "create", err)
		}
		r.values[pf.Name] = id
	} else {
		if _, err := s.exec(ctx, m, "create", b); err != nil {
			return err
		}
	}
	r.settle()
	return s.createChildren(ctx, r, visited)
}

// createChildren persists attached child records, filling each one's
// linking key from the now-persisted parent.
func (s *Source) createChildren(ctx context.Context, r *Record, visited map[*Record]bool) error {
	for _, e := range s.children(r.model.Name) {
		for _, child := range r.children[e.Child] {
			child.Set(e.ChildKey, r.values[e.ParentKey])
			if err := s.create(ctx, child, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateBulk persists records of one model in a single multi-row INSERT.
// Bulk rows carry no cascade and no returned keys.
func (s *Source) CreateBulk(ctx context.Context, records ...*Record) error {
	if len(records) == 0 {
		return nil
	}
	m := records[0].model
	b := &sql.Builder{}
	b.WriteString("INSERT INTO " + s.Table(m) + " (")
	n := 0
	var written []*schema.Field
	for _, f := range m.Fields {
		if f.ReadOnly || f.Injects() {
			continue
		}
		if n > 0 {
			b.WriteString(",")
		}
		b.Column(f.Store)
		written = append(written, f)
		n++
	}
	b.WriteString(") VALUES ")
	for i, r := range records {
		if r.model != m {
			return NewStoreError(m.Name, "create", fmt.Errorf("mixed models in bulk create: %s and %s", m.Name, r.model.Name))
		}
		if r.err != nil {
			return r.err
		}
		s.fillDefaults(r)
		stored, err := marshal.Record(m, r.values)
		if err != nil {
			return NewStoreError(m.Name, "create", err)
		}
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for j, f := range written {
			if j > 0 {
				b.WriteString(",")
			}
			b.Arg(stored[f.Store])
		}
		b.WriteString(")")
	}
	if _, err := s.exec(ctx, m, "create", b); err != nil {
		return err
	}
	for _, r := range records {
		r.settle()
	}
	return nil
}

// fillDefaults assigns declared defaults and empty JSON containers to
// unset writable fields, and generates unset non-serial UUID primaries.
func (s *Source) fillDefaults(r *Record) {
	for _, f := range r.model.Fields {
		if f.ReadOnly || f.Injects() {
			continue
		}
		if _, set := r.values[f.Name]; set {
			continue
		}
		switch {
		case f.PrimaryKey && f.Kind == schema.KindUUID:
			r.values[f.Name] = uuid.New()
		case f.Default != nil:
			r.values[f.Name] = f.Default
		case f.Kind == schema.KindList || f.Kind == schema.KindSet:
			r.values[f.Name] = []any{}
		case f.Kind == schema.KindDict:
			r.values[f.Name] = map[string]any{}
		}
	}
}
