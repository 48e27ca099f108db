package relsource

import (
	"fmt"

	"github.com/syssam/relsource/marshal"
	"github.com/syssam/relsource/schema"
)

// Record is one materialized instance of a model: logical field values,
// the virtual attributes computed from them, and any attached child
// records awaiting a cascaded write.
type Record struct {
	model    *schema.Model
	values   map[string]any
	virtuals map[string]any
	changed  map[string]struct{}
	children map[string][]*Record
	removed  map[string][]*Record
	err      error
}

// NewRecord returns an empty record of the named model.
func (s *Source) NewRecord(model string) (*Record, error) {
	m, ok := s.models[model]
	if !ok {
		return nil, &schema.DefinitionError{Model: model, Err: fmt.Errorf("not registered")}
	}
	return newRecord(m), nil
}

func newRecord(m *schema.Model) *Record {
	return &Record{
		model:   m,
		values:  make(map[string]any),
		changed: make(map[string]struct{}),
	}
}

// Model returns the record's model descriptor.
func (r *Record) Model() *schema.Model {
	return r.model
}

// Set assigns a logical field value and marks the field changed. Unknown
// field names record an error surfaced by the next executing operation.
func (r *Record) Set(name string, v any) *Record {
	f, ok := r.model.Field(name)
	if !ok {
		if r.err == nil {
			r.err = &schema.DefinitionError{Model: r.model.Name, Err: fmt.Errorf("no field %q", name)}
		}
		return r
	}
	r.values[f.Name] = v
	r.changed[f.Name] = struct{}{}
	return r
}

// Get returns a logical field value, or a virtual attribute when name is a
// virtual column of a retrieved record.
func (r *Record) Get(name string) any {
	if f, ok := r.model.Field(name); ok {
		return r.values[f.Name]
	}
	if v, ok := r.virtuals[name]; ok {
		return v
	}
	return nil
}

// Values returns a copy of the logical field values.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// ID returns the primary field value, or nil when the model has no primary
// field or the record is not yet persisted.
func (r *Record) ID() any {
	if r.model.ID() == "" {
		return nil
	}
	return r.values[r.model.ID()]
}

// Changed returns the names of fields assigned since the record was
// created or last persisted.
func (r *Record) Changed() []string {
	out := make([]string, 0, len(r.changed))
	for name := range r.changed {
		out = append(out, name)
	}
	return out
}

// Attach adds a child record for the cascaded phase of the next create or
// update. The child's linking key is filled from this record when the
// parent statement has executed.
func (r *Record) Attach(child *Record) *Record {
	if r.children == nil {
		r.children = make(map[string][]*Record)
	}
	name := child.model.Name
	r.children[name] = append(r.children[name], child)
	return r
}

// Detach marks a previously attached child for deletion on the next
// update cascade.
func (r *Record) Detach(child *Record) *Record {
	name := child.model.Name
	recs := r.children[name]
	for i, c := range recs {
		if c == child {
			r.children[name] = append(recs[:i:i], recs[i+1:]...)
			break
		}
	}
	if r.removed == nil {
		r.removed = make(map[string][]*Record)
	}
	r.removed[name] = append(r.removed[name], child)
	return r
}

// Children returns the attached child records of the named model.
func (r *Record) Children(model string) []*Record {
	return r.children[model]
}

// settle clears the changed markers after a successful write.
func (r *Record) settle() {
	r.changed = make(map[string]struct{})
}

// decode materializes a record from a scanned row. Plain and JSON-backed
// columns decode through the field transforms; injected fields read back
// from their target path; virtual attributes are recomputed from the
// decoded JSON so they agree with the stored generated columns.
func decode(m *schema.Model, row map[string]any) (*Record, error) {
	r := newRecord(m)
	stored := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		if f.Injects() {
			continue
		}
		raw, ok := row[f.Store]
		if !ok {
			continue
		}
		logical, sv, err := marshal.Decode(f, raw)
		if err != nil {
			return nil, err
		}
		r.values[f.Name] = logical
		stored[f.Name] = sv
		for col, v := range f.Virtuals(sv) {
			if r.virtuals == nil {
				r.virtuals = make(map[string]any)
			}
			r.virtuals[col] = v
		}
	}
	for _, f := range m.Fields {
		if !f.Injects() {
			continue
		}
		target, path := f.InjectTarget()
		tf, _ := m.Field(target)
		if v, ok := path.Get(stored[tf.Name]); ok {
			r.values[f.Name] = v
		}
	}
	return r, nil
}
