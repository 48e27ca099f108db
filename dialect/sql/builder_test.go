package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t.Run("ArgsNumbering", func(t *testing.T) {
		b := &Builder{}
		b.WriteString("SELECT * FROM ").Ident("meta").WriteString(" WHERE ")
		b.Ident("id").WriteString("=").Arg(1).WriteString(" AND ")
		b.Ident("name").WriteString(" IN (").Args("a", "b").WriteString(")")
		query, args := b.Query()
		assert.Equal(t, `SELECT * FROM "meta" WHERE "id"=$1 AND "name" IN ($2,$3)`, query)
		assert.Equal(t, []any{1, "a", "b"}, args)
	})

	t.Run("DottedIdent", func(t *testing.T) {
		b := &Builder{}
		b.Ident("public.meta")
		require.NoError(t, b.Err())
		assert.Equal(t, `"public"."meta"`, b.String())
	})

	t.Run("VirtualColumnIdent", func(t *testing.T) {
		b := &Builder{}
		b.Ident("things__for__0___1")
		require.NoError(t, b.Err())
		assert.Equal(t, `"things__for__0___1"`, b.String())
	})

	t.Run("InvalidIdent", func(t *testing.T) {
		b := &Builder{}
		b.Ident(`bad"name`)
		assert.Error(t, b.Err())
	})

	t.Run("EmptyArgs", func(t *testing.T) {
		b := &Builder{}
		b.WriteString("SELECT 1")
		query, args := b.Query()
		assert.Equal(t, "SELECT 1", query)
		assert.Empty(t, args)
	})

	t.Run("Wrap", func(t *testing.T) {
		b := &Builder{}
		b.Wrap(func(b *Builder) { b.WriteString("x").WriteString(" OR ").WriteString("y") })
		assert.Equal(t, "(x OR y)", b.String())
	})

	t.Run("Join", func(t *testing.T) {
		b := &Builder{}
		b.Join(",", func(b *Builder) { b.Ident("a") }, func(b *Builder) { b.Ident("b") })
		assert.Equal(t, `"a","b"`, b.String())
	})
}
