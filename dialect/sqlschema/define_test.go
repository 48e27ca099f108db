package sqlschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relsource/dialect/sqlschema"
	"github.com/syssam/relsource/schema"
)

func metaModel(t *testing.T) *schema.Model {
	t.Helper()
	m := &schema.Model{
		Name: "Meta",
		Fields: []*schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
			{Name: "name", Kind: schema.KindString, NotNull: true},
			{Name: "flag", Kind: schema.KindBool},
			{Name: "spend", Kind: schema.KindFloat},
			{Name: "stuff", Kind: schema.KindList, NotNull: true},
			{Name: "things", Kind: schema.KindDict, NotNull: true, Extract: []schema.Extract{
				{Path: "for__0___1", Kind: schema.KindString},
			}},
		},
		Unique: map[string][]string{"name": {"name"}},
		Index:  map[string][]string{"spend-flag": {"spend", "flag"}},
	}
	require.NoError(t, m.Init())
	return m
}

func TestDefine(t *testing.T) {
	statements, err := sqlschema.Define(metaModel(t), "")
	require.NoError(t, err)
	require.Len(t, statements, 3)

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "meta" (
  "id" SERIAL PRIMARY KEY,
  "name" VARCHAR(255) NOT NULL,
  "flag" BOOLEAN,
  "spend" FLOAT,
  "stuff" JSONB NOT NULL DEFAULT '[]',
  "things" JSONB NOT NULL DEFAULT '{}',
  "things__for__0___1" VARCHAR(255) GENERATED ALWAYS AS (("things"#>>'{for,0,"1"}')::VARCHAR(255)) STORED
)`, statements[0])
	assert.Equal(t, `CREATE UNIQUE INDEX "meta_name" ON "meta" ("name")`, statements[1])
	assert.Equal(t, `CREATE INDEX "meta_spend_flag" ON "meta" ("spend","flag")`, statements[2])
}

func TestDefineSchemaQualified(t *testing.T) {
	m := &schema.Model{
		Name:   "Unit",
		Schema: "test",
		Fields: []*schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
		},
	}
	require.NoError(t, m.Init())
	statements, err := sqlschema.Define(m, "fallback")
	require.NoError(t, err)
	assert.Contains(t, statements[0], `CREATE TABLE IF NOT EXISTS "test"."unit"`)

	m.Schema = ""
	require.NoError(t, m.Init())
	statements, err = sqlschema.Define(m, "fallback")
	require.NoError(t, err)
	assert.Contains(t, statements[0], `CREATE TABLE IF NOT EXISTS "fallback"."unit"`)
}

func TestDefineOverride(t *testing.T) {
	m := &schema.Model{
		Name:       "Raw",
		Definition: []string{"CREATE TABLE raw (id INT)"},
		Fields: []*schema.Field{
			{Name: "id", Kind: schema.KindInt, PrimaryKey: true},
		},
	}
	require.NoError(t, m.Init())
	statements, err := sqlschema.Define(m, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE raw (id INT)"}, statements)
}

func TestDefineFieldVariants(t *testing.T) {
	t.Run("UUIDAndDefaults", func(t *testing.T) {
		m := &schema.Model{
			Name: "Case",
			Fields: []*schema.Field{
				{Name: "id", Kind: schema.KindUUID, PrimaryKey: true, NotNull: true},
				{Name: "status", Kind: schema.KindString, Length: 32, Default: "opened"},
				{Name: "tries", Kind: schema.KindInt, Default: 3},
				{Name: "tags", Kind: schema.KindSet, NotNull: true},
			},
		}
		require.NoError(t, m.Init())
		statements, err := sqlschema.Define(m, "")
		require.NoError(t, err)
		assert.Contains(t, statements[0], `"id" UUID NOT NULL PRIMARY KEY`)
		assert.Contains(t, statements[0], `"status" VARCHAR(32) DEFAULT 'opened'`)
		assert.Contains(t, statements[0], `"tries" INT DEFAULT 3`)
		assert.Contains(t, statements[0], `"tags" JSONB NOT NULL DEFAULT '[]'`)
	})

	t.Run("FieldDefinitionOverride", func(t *testing.T) {
		m := &schema.Model{
			Name: "Case",
			Fields: []*schema.Field{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
				{Name: "special", Kind: schema.KindString, Definition: `"special" TEXT`},
			},
		}
		require.NoError(t, m.Init())
		statements, err := sqlschema.Define(m, "")
		require.NoError(t, err)
		assert.Contains(t, statements[0], `"special" TEXT`)
	})

	t.Run("UniqueField", func(t *testing.T) {
		m := &schema.Model{
			Name: "Case",
			Fields: []*schema.Field{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
				{Name: "slug", Kind: schema.KindString, Unique: true},
			},
		}
		require.NoError(t, m.Init())
		statements, err := sqlschema.Define(m, "")
		require.NoError(t, err)
		require.Len(t, statements, 2)
		assert.Equal(t, `CREATE UNIQUE INDEX "case_slug" ON "case" ("slug")`, statements[1])
	})

	t.Run("InjectedFieldHasNoColumn", func(t *testing.T) {
		m := &schema.Model{
			Name: "Case",
			Fields: []*schema.Field{
				{Name: "id", Kind: schema.KindInt, PrimaryKey: true, Serial: true},
				{Name: "stuff", Kind: schema.KindList, NotNull: true},
				{Name: "push", Kind: schema.KindString, Inject: "stuff__-1__sure"},
			},
		}
		require.NoError(t, m.Init())
		statements, err := sqlschema.Define(m, "")
		require.NoError(t, err)
		assert.NotContains(t, statements[0], "push")
	})
}
