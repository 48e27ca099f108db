package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relsource/schema"
)

const declarations = `
name: Unit
fields:
  - name: id
    kind: int
    primary: true
    serial: true
  - name: name
    kind: string
    not_null: true
    unique: true
label: [name]
order: [name]
---
name: Test
fields:
  - name: id
    kind: int
    primary: true
    serial: true
  - name: unit_id
    kind: int
    not_null: true
  - name: name
    kind: string
    not_null: true
  - name: things
    kind: dict
    not_null: true
    extract:
      for__0___1: string
  - name: push
    kind: string
    inject: things__a__b
label: [unit_id, name]
index:
  by-for: [things__for__0___1]
`

func TestLoad(t *testing.T) {
	models, err := schema.Load(strings.NewReader(declarations))
	require.NoError(t, err)
	require.Len(t, models, 2)

	unit, test := models[0], models[1]
	assert.Equal(t, "Unit", unit.Name)
	assert.Equal(t, "unit", unit.Table)
	assert.Equal(t, []string{"name"}, unit.Order)

	assert.Equal(t, "Test", test.Name)
	f, ok := test.Field("things")
	require.True(t, ok)
	require.Len(t, f.Extract, 1)
	assert.Equal(t, "for__0___1", f.Extract[0].Path)
	assert.Equal(t, schema.KindString, f.Extract[0].Kind)

	push, ok := test.Field("push")
	require.True(t, ok)
	assert.True(t, push.Injects())
}

func TestLoadErrors(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := schema.Load(strings.NewReader(""))
		assert.Error(t, err)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := schema.Load(strings.NewReader("name: X\nfields:\n  - name: a\n    kind: whatever\n"))
		assert.Error(t, err)
	})

	t.Run("InvalidModel", func(t *testing.T) {
		// Two primary fields fail model initialization.
		doc := "name: X\nfields:\n  - name: a\n    kind: int\n    primary: true\n  - name: b\n    kind: int\n    primary: true\n"
		_, err := schema.Load(strings.NewReader(doc))
		assert.Error(t, err)
	})
}
