package schema

import (
	"fmt"
	"sort"
)

// Kind is the logical type of a field. Storage mapping: Bool, Int, Float,
// String and UUID are plain columns; List, Set, Dict and Struct are stored
// inside a single JSONB column.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindUUID
	KindList
	KindSet
	KindDict
	KindStruct
)

var kindNames = map[Kind]string{
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindUUID:   "uuid",
	KindList:   "list",
	KindSet:    "set",
	KindDict:   "dict",
	KindStruct: "struct",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// JSON reports whether values of this kind live inside a JSONB column.
func (k Kind) JSON() bool {
	switch k {
	case KindList, KindSet, KindDict, KindStruct:
		return true
	}
	return false
}

// AttrFunc derives the storage-key map of a struct-backed field from its
// logical value. Every key becomes a sibling member of the field's JSONB
// column; all but the designated init key exist only for indexing and
// filtering.
type AttrFunc func(value any) (map[string]any, error)

// InitFunc rebuilds the logical value from the designated init key.
type InitFunc func(stored any) (any, error)

// Extract declares a virtual column: an indexable projection of a path
// inside the owning field's JSONB column. It exists only in storage,
// written through the owning column's value.
type Extract struct {
	Path string // separator-joined path inside the field
	Kind Kind   // value type of the projection

	path Path
}

// Column returns the virtual column name for the owning field.
func (e *Extract) Column(owner string) string {
	return owner + Separator + e.Path
}

// Field describes one field of a model: its storage column, logical kind,
// and the transforms applied when marshalling values in and out of the
// store.
type Field struct {
	Name       string
	Store      string // column name, defaults to Name
	Kind       Kind
	Length     int    // VARCHAR length, defaults to 255
	NotNull    bool
	Default    any    // literal default, rendered into the DDL
	PrimaryKey bool
	Serial     bool   // auto-incrementing; implies ReadOnly
	Unique     bool
	ReadOnly   bool   // never written by create/update
	Definition string // raw column DDL override

	// Extract entries each add a generated virtual column over a path in
	// this field's JSONB value.
	Extract []Extract

	// Inject names a path (field first segment) inside another field's
	// stored JSON that receives this field's current value at write time.
	// Injected fields have no column of their own.
	Inject string

	// Attr and Init carry the struct-backed transform pair; only
	// meaningful for KindStruct.
	Attr    AttrFunc
	Init    string   // designated storage key holding the canonical form
	Restore InitFunc // optional rebuild from the init key; identity when nil

	injectField string
	injectPath  Path
}

// init validates and normalizes the field in place.
func (f *Field) init() error {
	if f.Name == "" {
		return fmt.Errorf("field without a name")
	}
	if f.Store == "" {
		f.Store = f.Name
	}
	if f.Kind == KindString && f.Length == 0 {
		f.Length = 255
	}
	if f.Serial {
		f.ReadOnly = true
	}
	if f.Kind == KindStruct && f.Attr != nil && f.Init == "" {
		return fmt.Errorf("field %q: struct attr transform requires an init key", f.Name)
	}
	if len(f.Extract) > 0 && !f.Kind.JSON() {
		return fmt.Errorf("field %q: extract requires a JSON-stored kind, got %s", f.Name, f.Kind)
	}
	sort.Slice(f.Extract, func(i, j int) bool { return f.Extract[i].Path < f.Extract[j].Path })
	for i := range f.Extract {
		p, err := ParsePath(f.Extract[i].Path)
		if err != nil {
			return fmt.Errorf("field %q: extract %q: %w", f.Name, f.Extract[i].Path, err)
		}
		f.Extract[i].path = p
	}
	if f.Inject != "" {
		p, err := ParsePath(f.Inject)
		if err != nil {
			return fmt.Errorf("field %q: inject %q: %w", f.Name, f.Inject, err)
		}
		if len(p) < 2 || p[0].Kind != SegmentKey {
			return fmt.Errorf("field %q: inject %q: need a target field and a path inside it", f.Name, f.Inject)
		}
		f.injectField = p[0].Key
		f.injectPath = p[1:]
	}
	return nil
}

// Injects reports whether this field writes into another field's JSON
// instead of owning a column.
func (f *Field) Injects() bool {
	return f.Inject != ""
}

// InjectTarget returns the target field name and the path inside it.
func (f *Field) InjectTarget() (string, Path) {
	return f.injectField, f.injectPath
}

// Extracted returns the extract entry matching the given separator-joined
// path, if declared.
func (f *Field) Extracted(path string) (*Extract, bool) {
	for i := range f.Extract {
		if f.Extract[i].Path == path {
			return &f.Extract[i], true
		}
	}
	return nil, false
}

// Virtuals computes the virtual attribute map for a materialized logical
// value: one entry per extract entry, keyed by virtual column name.
// Unresolvable paths yield nil entries, matching an SQL NULL projection.
func (f *Field) Virtuals(value any) map[string]any {
	if len(f.Extract) == 0 {
		return nil
	}
	out := make(map[string]any, len(f.Extract))
	for i := range f.Extract {
		v, ok := f.Extract[i].path.Get(value)
		if !ok {
			v = nil
		}
		out[f.Extract[i].Column(f.Store)] = v
	}
	return out
}
