package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relsource/schema"
)

func TestParsePath(t *testing.T) {
	t.Run("Segments", func(t *testing.T) {
		p, err := schema.ParsePath("a__b__0___1")
		require.NoError(t, err)
		require.Len(t, p, 4)
		assert.Equal(t, schema.SegmentKey, p[0].Kind)
		assert.Equal(t, "a", p[0].Key)
		assert.Equal(t, schema.SegmentKey, p[1].Kind)
		assert.Equal(t, "b", p[1].Key)
		assert.Equal(t, schema.SegmentIndex, p[2].Kind)
		assert.Equal(t, 0, p[2].Index)
		assert.Equal(t, schema.SegmentKey, p[3].Kind)
		assert.Equal(t, "1", p[3].Key)
	})

	t.Run("NegativeIndex", func(t *testing.T) {
		p, err := schema.ParsePath("a__-1")
		require.NoError(t, err)
		require.Len(t, p, 2)
		assert.Equal(t, schema.SegmentIndex, p[1].Kind)
		assert.Equal(t, -1, p[1].Index)
	})

	t.Run("Errors", func(t *testing.T) {
		for _, bad := range []string{"", "a____b", "_", `a__b"c`, "a__{b}", "a__b,c"} {
			_, err := schema.ParsePath(bad)
			assert.Error(t, err, bad)
		}
	})
}

func TestPathString(t *testing.T) {
	for _, s := range []string{"a", "a__b__0___1", "things__-2__sure"} {
		p, err := schema.ParsePath(s)
		require.NoError(t, err)
		assert.Equal(t, s, p.String())
	}
}

func TestPathTextPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a", "{a}"},
		{"a__b__0___1", `{a,b,0,"1"}`},
		{"things__-1", "{things,-1}"},
		{"a___has-dash", `{a,"has-dash"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := schema.ParsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.TextPath())
		})
	}
}

func TestPathGet(t *testing.T) {
	doc := map[string]any{
		"a": map[string]any{
			"b": []any{
				map[string]any{"1": "sure"},
				"last",
			},
		},
	}

	t.Run("Descend", func(t *testing.T) {
		p, err := schema.ParsePath("a__b__0___1")
		require.NoError(t, err)
		v, ok := p.Get(doc)
		require.True(t, ok)
		assert.Equal(t, "sure", v)
	})

	t.Run("NegativeIndex", func(t *testing.T) {
		p, err := schema.ParsePath("a__b__-1")
		require.NoError(t, err)
		v, ok := p.Get(doc)
		require.True(t, ok)
		assert.Equal(t, "last", v)
	})

	t.Run("Missing", func(t *testing.T) {
		for _, s := range []string{"a__c", "a__b__5", "a__b__-3", "a__b__0__deeper"} {
			p, err := schema.ParsePath(s)
			require.NoError(t, err)
			_, ok := p.Get(doc)
			assert.False(t, ok, s)
		}
	})
}

func TestPathSet(t *testing.T) {
	t.Run("CreateIntermediates", func(t *testing.T) {
		p, err := schema.ParsePath("a__b__1___1")
		require.NoError(t, err)
		root := p.Set(nil, "sure")
		want := map[string]any{
			"a": map[string]any{
				"b": []any{nil, map[string]any{"1": "sure"}},
			},
		}
		assert.Equal(t, want, root)
	})

	t.Run("ReplaceWrongShape", func(t *testing.T) {
		p, err := schema.ParsePath("a__0")
		require.NoError(t, err)
		root := p.Set(map[string]any{"a": map[string]any{"x": 1}}, "v")
		assert.Equal(t, map[string]any{"a": []any{"v"}}, root)
	})

	t.Run("NegativeIndex", func(t *testing.T) {
		p, err := schema.ParsePath("a__-1")
		require.NoError(t, err)
		root := p.Set(map[string]any{"a": []any{1, 2, 3}}, "v")
		assert.Equal(t, map[string]any{"a": []any{1, 2, "v"}}, root)
	})

	t.Run("NegativeIndexEmpty", func(t *testing.T) {
		p, err := schema.ParsePath("a__-1")
		require.NoError(t, err)
		root := p.Set(nil, "v")
		assert.Equal(t, map[string]any{"a": []any{"v"}}, root)
	})
}
