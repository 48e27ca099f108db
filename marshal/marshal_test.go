package marshal_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relsource/marshal"
	"github.com/syssam/relsource/schema"
)

func field(t *testing.T, f *schema.Field) *schema.Field {
	t.Helper()
	m := &schema.Model{Name: "M", Fields: []*schema.Field{f}}
	require.NoError(t, m.Init())
	return f
}

func TestValue(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		v, err := marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindBool}), true)
		require.NoError(t, err)
		assert.Equal(t, true, v)

		v, err = marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindInt}), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)

		v, err = marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindFloat}), 1.5)
		require.NoError(t, err)
		assert.Equal(t, 1.5, v)

		v, err = marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindString}), "yep")
		require.NoError(t, err)
		assert.Equal(t, "yep", v)
	})

	t.Run("Nil", func(t *testing.T) {
		v, err := marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindString}), nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("WrongType", func(t *testing.T) {
		_, err := marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindInt}), "nope")
		assert.Error(t, err)

		_, err = marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindBool}), 1)
		assert.Error(t, err)
	})

	t.Run("UUID", func(t *testing.T) {
		f := field(t, &schema.Field{Name: "f", Kind: schema.KindUUID})
		id := uuid.MustParse("9e9e0a2c-21c2-4e6d-8a4e-2f3a4b5c6d7e")

		v, err := marshal.Value(f, id)
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)

		v, err = marshal.Value(f, id.String())
		require.NoError(t, err)
		assert.Equal(t, id.String(), v)

		_, err = marshal.Value(f, "not-a-uuid")
		assert.Error(t, err)
	})

	t.Run("List", func(t *testing.T) {
		v, err := marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindList}), []any{1, "a", nil})
		require.NoError(t, err)
		assert.Equal(t, `[1,"a",null]`, v)
	})

	t.Run("Dict", func(t *testing.T) {
		v, err := marshal.Value(field(t, &schema.Field{Name: "f", Kind: schema.KindDict}), map[string]any{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, v)
	})

	t.Run("SetCanonical", func(t *testing.T) {
		f := field(t, &schema.Field{Name: "f", Kind: schema.KindSet})
		v, err := marshal.Value(f, []any{"b", "a", "b"})
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, v)

		// Same membership, different order and duplication: same storage.
		w, err := marshal.Value(f, []string{"a", "b", "a"})
		require.NoError(t, err)
		assert.Equal(t, v, w)
	})

	t.Run("StructAttr", func(t *testing.T) {
		f := field(t, &schema.Field{
			Name: "f",
			Kind: schema.KindStruct,
			Attr: func(v any) (map[string]any, error) {
				s := v.(string)
				return map[string]any{"value": s, "length": len(s)}, nil
			},
			Init: "value",
		})
		v, err := marshal.Value(f, "hello")
		require.NoError(t, err)
		assert.Equal(t, `{"length":5,"value":"hello"}`, v)
	})
}

func TestDecode(t *testing.T) {
	t.Run("BoolFromInt", func(t *testing.T) {
		logical, _, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindBool}), int64(1))
		require.NoError(t, err)
		assert.Equal(t, true, logical)
	})

	t.Run("Nil", func(t *testing.T) {
		logical, stored, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindString}), nil)
		require.NoError(t, err)
		assert.Nil(t, logical)
		assert.Nil(t, stored)
	})

	t.Run("StringFromBytes", func(t *testing.T) {
		logical, _, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindString}), []byte("yep"))
		require.NoError(t, err)
		assert.Equal(t, "yep", logical)
	})

	t.Run("UUID", func(t *testing.T) {
		id := uuid.MustParse("9e9e0a2c-21c2-4e6d-8a4e-2f3a4b5c6d7e")
		logical, stored, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindUUID}), id.String())
		require.NoError(t, err)
		assert.Equal(t, id, logical)
		assert.Equal(t, id.String(), stored)
	})

	t.Run("List", func(t *testing.T) {
		logical, stored, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindList}), []byte(`[1,"a"]`))
		require.NoError(t, err)
		assert.Equal(t, []any{float64(1), "a"}, logical)
		assert.Equal(t, logical, stored)
	})

	t.Run("SetCanonical", func(t *testing.T) {
		logical, _, err := marshal.Decode(field(t, &schema.Field{Name: "f", Kind: schema.KindSet}), []byte(`["b","a","b"]`))
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, logical)
	})

	t.Run("StructInitKey", func(t *testing.T) {
		f := field(t, &schema.Field{
			Name: "f",
			Kind: schema.KindStruct,
			Attr: func(v any) (map[string]any, error) {
				return map[string]any{"value": v}, nil
			},
			Init: "value",
		})
		logical, stored, err := marshal.Decode(f, []byte(`{"value":"hello","length":5}`))
		require.NoError(t, err)
		assert.Equal(t, "hello", logical)
		assert.Equal(t, map[string]any{"value": "hello", "length": float64(5)}, stored)
	})

	t.Run("StructRestore", func(t *testing.T) {
		f := field(t, &schema.Field{
			Name: "f",
			Kind: schema.KindStruct,
			Attr: func(v any) (map[string]any, error) {
				return map[string]any{"value": v}, nil
			},
			Init: "value",
			Restore: func(stored any) (any, error) {
				return "restored:" + stored.(string), nil
			},
		})
		logical, _, err := marshal.Decode(f, []byte(`{"value":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, "restored:x", logical)
	})
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		kind schema.Kind
		in   any
		out  any
	}{
		{"Bool", schema.KindBool, true, true},
		{"Int", schema.KindInt, 42, int64(42)},
		{"Float", schema.KindFloat, 2.25, 2.25},
		{"String", schema.KindString, "val", "val"},
		{"List", schema.KindList, []any{"a", float64(1)}, []any{"a", float64(1)}},
		{"Dict", schema.KindDict, map[string]any{"k": "v"}, map[string]any{"k": "v"}},
		{"Set", schema.KindSet, []any{"b", "a", "a"}, []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := field(t, &schema.Field{Name: "f", Kind: tt.kind})
			stored, err := marshal.Value(f, tt.in)
			require.NoError(t, err)
			logical, _, err := marshal.Decode(f, stored)
			require.NoError(t, err)
			assert.Equal(t, tt.out, logical)
		})
	}
}

func TestRecord(t *testing.T) {
	model := func(t *testing.T) *schema.Model {
		m := &schema.Model{
			Name: "Meta",
			Fields: []*schema.Field{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
				{Name: "name", Kind: schema.KindString},
				{Name: "stuff", Kind: schema.KindList, NotNull: true},
				{Name: "push", Kind: schema.KindString, Inject: "stuff__-1__relations.io___1"},
			},
		}
		require.NoError(t, m.Init())
		return m
	}

	t.Run("InjectAppends", func(t *testing.T) {
		m := model(t)
		values := map[string]any{
			"name":  "yep",
			"stuff": []any{float64(1), nil},
			"push":  "sure",
		}
		stored, err := marshal.Record(m, values)
		require.NoError(t, err)
		assert.Equal(t, "yep", stored["name"])
		assert.Equal(t, `[1,{"relations.io":{"1":"sure"}}]`, stored["stuff"])
		_, hasPush := stored["push"]
		assert.False(t, hasPush)
	})

	t.Run("CallerValueUntouched", func(t *testing.T) {
		m := model(t)
		stuff := []any{float64(1), nil}
		_, err := marshal.Record(m, map[string]any{"stuff": stuff, "push": "sure"})
		require.NoError(t, err)
		assert.Equal(t, []any{float64(1), nil}, stuff)
	})
}

func TestSlice(t *testing.T) {
	for _, tt := range []struct {
		in   any
		want []any
		ok   bool
	}{
		{[]any{1, "a"}, []any{1, "a"}, true},
		{[]string{"a"}, []any{"a"}, true},
		{[]int{1, 2}, []any{1, 2}, true},
		{[]int64{3}, []any{int64(3)}, true},
		{[]float64{1.5}, []any{1.5}, true},
		{"nope", nil, false},
		{5, nil, false},
	} {
		got, ok := marshal.Slice(tt.in)
		assert.Equal(t, tt.ok, ok)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
