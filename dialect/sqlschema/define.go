// Package sqlschema translates model descriptors into PostgreSQL DDL:
// tables, generated virtual columns over JSONB paths, and index
// statements. Output is deterministic for a fixed descriptor and safe to
// re-run (IF NOT EXISTS guarded).
package sqlschema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/relsource/dialect/sql"
	"github.com/syssam/relsource/schema"
)

// TableName returns the quoted, schema-qualified table reference. The
// model's own namespace wins over the source default.
func TableName(m *schema.Model, defaultSchema string) string {
	ns := m.Schema
	if ns == "" {
		ns = defaultSchema
	}
	if ns == "" {
		return sql.Quote(m.Table)
	}
	return sql.Quote(ns) + "." + sql.Quote(m.Table)
}

// Define compiles the ordered DDL statements for a model: one CREATE
// TABLE IF NOT EXISTS followed by its unique and plain index statements.
// A model-level Definition override is returned verbatim.
func Define(m *schema.Model, defaultSchema string) ([]string, error) {
	if len(m.Definition) > 0 {
		return m.Definition, nil
	}
	var defs []string
	for _, f := range m.Fields {
		fd, err := fieldDefine(f)
		if err != nil {
			return nil, &schema.DefinitionError{Model: m.Name, Err: err}
		}
		defs = append(defs, fd...)
	}
	table := TableName(m, defaultSchema)
	statements := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", table, strings.Join(defs, ",\n  ")),
	}
	for _, f := range m.Fields {
		if f.Unique && !f.PrimaryKey && !f.Injects() {
			statements = append(statements, indexStatement(m, table, true, f.Name, []string{f.Store}))
		}
	}
	unique, err := indexStatements(m, table, true, m.Unique)
	if err != nil {
		return nil, err
	}
	statements = append(statements, unique...)
	plain, err := indexStatements(m, table, false, m.Index)
	if err != nil {
		return nil, err
	}
	statements = append(statements, plain...)
	return statements, nil
}

// fieldDefine renders the column definition for one field, followed by
// one generated column per extract entry. Injected fields own no column.
func fieldDefine(f *schema.Field) ([]string, error) {
	if f.Injects() {
		return nil, nil
	}
	if f.Definition != "" {
		return []string{f.Definition}, nil
	}
	parts := []string{sql.Quote(f.Store)}
	var def string
	switch f.Kind {
	case schema.KindBool:
		parts = append(parts, "BOOLEAN")
		if f.Default != nil {
			def = fmt.Sprintf("DEFAULT %v", f.Default)
		}
	case schema.KindInt:
		if f.Serial {
			parts = append(parts, "SERIAL")
		} else {
			parts = append(parts, "INT")
		}
		if f.Default != nil {
			def = fmt.Sprintf("DEFAULT %v", f.Default)
		}
	case schema.KindFloat:
		parts = append(parts, "FLOAT")
		if f.Default != nil {
			def = fmt.Sprintf("DEFAULT %v", f.Default)
		}
	case schema.KindString:
		parts = append(parts, fmt.Sprintf("VARCHAR(%d)", f.Length))
		if f.Default != nil {
			def = fmt.Sprintf("DEFAULT '%s'", strings.ReplaceAll(fmt.Sprint(f.Default), "'", "''"))
		}
	case schema.KindUUID:
		parts = append(parts, "UUID")
	case schema.KindList, schema.KindSet, schema.KindDict, schema.KindStruct:
		parts = append(parts, "JSONB")
		switch {
		case f.Default != nil:
			b, err := json.Marshal(f.Default)
			if err != nil {
				return nil, fmt.Errorf("field %q: default: %w", f.Name, err)
			}
			def = fmt.Sprintf("DEFAULT '%s'", b)
		case f.Kind == schema.KindList || f.Kind == schema.KindSet:
			def = "DEFAULT '[]'"
		case f.Kind == schema.KindDict:
			def = "DEFAULT '{}'"
		}
	default:
		return nil, fmt.Errorf("field %q: no column type for kind %s", f.Name, f.Kind)
	}
	if f.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if f.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if def != "" {
		parts = append(parts, def)
	}
	out := []string{strings.Join(parts, " ")}
	// Generated columns are positioned right after the owning column.
	for i := range f.Extract {
		e := &f.Extract[i]
		cast, err := extractType(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %q: extract %q: %w", f.Name, e.Path, err)
		}
		p, err := schema.ParsePath(e.Path)
		if err != nil {
			return nil, fmt.Errorf("field %q: extract %q: %w", f.Name, e.Path, err)
		}
		out = append(out, fmt.Sprintf(
			"%s %s GENERATED ALWAYS AS ((%s#>>'%s')::%s) STORED",
			sql.Quote(e.Column(f.Store)), cast, sql.Quote(f.Store), p.TextPath(), cast,
		))
	}
	return out, nil
}

// extractType maps an extract value kind to the cast type of its
// generated column.
func extractType(k schema.Kind) (string, error) {
	switch k {
	case schema.KindBool:
		return "BOOLEAN", nil
	case schema.KindInt:
		return "INT", nil
	case schema.KindFloat:
		return "FLOAT", nil
	case schema.KindString:
		return "VARCHAR(255)", nil
	case schema.KindList, schema.KindSet, schema.KindDict:
		return "JSONB", nil
	}
	return "", fmt.Errorf("kind %s cannot back a generated column", k)
}

func indexStatements(m *schema.Model, table string, unique bool, indexes map[string][]string) ([]string, error) {
	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	var statements []string
	for _, name := range names {
		columns := make([]string, 0, len(indexes[name]))
		for _, path := range indexes[name] {
			col, err := m.Resolve(path)
			if err != nil {
				return nil, &schema.DefinitionError{Model: m.Name, Err: err}
			}
			columns = append(columns, col)
		}
		statements = append(statements, indexStatement(m, table, unique, name, columns))
	}
	return statements, nil
}

func indexStatement(m *schema.Model, table string, unique bool, name string, columns []string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = sql.Quote(c)
	}
	indexName := m.Table + "_" + strings.ReplaceAll(name, "-", "_")
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, sql.Quote(indexName), table, strings.Join(quoted, ","))
}
