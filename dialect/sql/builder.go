package sql

import (
	"fmt"
	"strconv"
	"strings"
)

// Builder accumulates a single parameterized statement. Identifiers are
// double-quoted and arguments are numbered Postgres placeholders ($1..$n).
// The zero value is ready to use.
type Builder struct {
	sb   strings.Builder
	args []any
	errs []error
}

// Quote returns the double-quoted form of a single identifier.
func Quote(ident string) string {
	return `"` + ident + `"`
}

// WriteString appends raw SQL text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier. Dotted names quote each segment
// (schema.table).
func (b *Builder) Ident(name string) *Builder {
	if !isValidIdentifier(name) {
		b.errs = append(b.errs, fmt.Errorf("invalid identifier %q", name))
		return b
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if i > 0 {
			b.sb.WriteByte('.')
		}
		b.sb.WriteString(Quote(p))
	}
	return b
}

// Column appends a quoted column identifier. Unlike Ident it never splits
// on dots: virtual column names may embed dotted JSON keys.
func (b *Builder) Column(name string) *Builder {
	if name == "" || strings.ContainsRune(name, '"') {
		b.errs = append(b.errs, fmt.Errorf("invalid column %q", name))
		return b
	}
	b.sb.WriteString(Quote(name))
	return b
}

// Arg appends a placeholder for the given argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	b.sb.WriteByte('$')
	b.sb.WriteString(strconv.Itoa(len(b.args)))
	return b
}

// Args appends a comma-separated placeholder list for the given arguments.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteByte(',')
		}
		b.Arg(v)
	}
	return b
}

// Wrap wraps the output of f in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	f(b)
	b.sb.WriteByte(')')
	return b
}

// Join appends each part produced by fs separated by sep.
func (b *Builder) Join(sep string, fs ...func(*Builder)) *Builder {
	for i, f := range fs {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		f(b)
	}
	return b
}

// Len returns the number of characters written so far.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// Err returns the first identifier error recorded while building, if any.
func (b *Builder) Err() error {
	if len(b.errs) > 0 {
		return b.errs[0]
	}
	return nil
}

// String returns the statement text built so far.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query returns the statement text and its arguments.
func (b *Builder) Query() (string, []any) {
	if b.args == nil {
		return b.sb.String(), []any{}
	}
	return b.sb.String(), b.args
}
