package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Separator joins path segments in the string form of a path
// ("things__a__b__0"). A segment prefixed with a single extra underscore
// ("things___4") forces a string key even when it looks numeric.
const Separator = "__"

// SegmentKind tags a parsed path segment.
type SegmentKind int

const (
	// SegmentKey is a JSON object member access.
	SegmentKey SegmentKind = iota
	// SegmentIndex is a JSON array index access. Negative indexes count
	// from the end, -1 being the last element.
	SegmentIndex
)

// Segment is one step of a parsed path: either an object key or an array
// index. The variant is fixed at parse time so downstream SQL emission can
// match exhaustively instead of re-interpreting strings.
type Segment struct {
	Kind   SegmentKind
	Key    string
	Index  int
	forced bool // key was written in the forced ___key form
}

// Path is an ordered list of parsed segments.
type Path []Segment

// ParsePath parses the separator-joined form into a typed Path.
// "a__b__0___1" parses to [Key(a), Key(b), Index(0), Key("1")].
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	parts := strings.Split(s, Separator)
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	return path, nil
}

func parseSegment(part string) (Segment, error) {
	switch {
	case part == "":
		return Segment{}, fmt.Errorf("empty path segment")
	case strings.HasPrefix(part, "_"):
		key := part[1:]
		if key == "" {
			return Segment{}, fmt.Errorf("empty forced key segment")
		}
		if strings.ContainsAny(key, `"{},`) {
			return Segment{}, fmt.Errorf("invalid key segment %q", key)
		}
		return Segment{Kind: SegmentKey, Key: key, forced: true}, nil
	default:
		if i, err := strconv.Atoi(part); err == nil {
			return Segment{Kind: SegmentIndex, Index: i}, nil
		}
		if strings.ContainsAny(part, `"{},`) {
			return Segment{}, fmt.Errorf("invalid key segment %q", part)
		}
		return Segment{Kind: SegmentKey, Key: part}, nil
	}
}

// String returns the separator-joined form of the path.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		switch seg.Kind {
		case SegmentIndex:
			parts[i] = strconv.Itoa(seg.Index)
		default:
			if seg.forced {
				parts[i] = "_" + seg.Key
			} else {
				parts[i] = seg.Key
			}
		}
	}
	return strings.Join(parts, Separator)
}

// TextPath renders the path as a Postgres text-array literal for use with
// the #> and #>> operators: {a,b,0,"1"}.
func (p Path) TextPath() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		switch seg.Kind {
		case SegmentIndex:
			parts[i] = strconv.Itoa(seg.Index)
		default:
			if seg.forced || strings.ContainsAny(seg.Key, ". -") {
				parts[i] = `"` + seg.Key + `"`
			} else {
				parts[i] = seg.Key
			}
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Get descends the path over a materialized JSON value (maps, slices,
// scalars) and reports whether every step resolved.
func (p Path) Get(v any) (any, bool) {
	cur := v
	for _, seg := range p {
		switch seg.Kind {
		case SegmentKey:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[seg.Key]
			if !ok {
				return nil, false
			}
		case SegmentIndex:
			l, ok := cur.([]any)
			if !ok {
				return nil, false
			}
			i := seg.Index
			if i < 0 {
				i += len(l)
			}
			if i < 0 || i >= len(l) {
				return nil, false
			}
			cur = l[i]
		}
	}
	return cur, true
}

// Set writes val at the path inside root, creating intermediate containers
// as needed and overwriting only the target path. Containers of the wrong
// shape for the next segment are replaced. The possibly-new root is
// returned.
func (p Path) Set(root, val any) any {
	if len(p) == 0 {
		return val
	}
	seg, rest := p[0], p[1:]
	switch seg.Kind {
	case SegmentKey:
		m, ok := root.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		m[seg.Key] = rest.Set(m[seg.Key], val)
		return m
	default:
		l, ok := root.([]any)
		if !ok {
			l = nil
		}
		i := seg.Index
		if i < 0 {
			i += len(l)
			if i < 0 {
				i = 0
			}
		}
		for len(l) <= i {
			l = append(l, nil)
		}
		l[i] = rest.Set(l[i], val)
		return l
	}
}
