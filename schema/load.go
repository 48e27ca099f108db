package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlModel mirrors the declarative YAML form of a model. Struct-backed
// transforms are code-only and cannot be declared in YAML.
type yamlModel struct {
	Name   string              `yaml:"name"`
	Schema string              `yaml:"schema"`
	Table  string              `yaml:"table"`
	Fields []yamlField         `yaml:"fields"`
	Label  []string            `yaml:"label"`
	Order  []string            `yaml:"order"`
	Unique map[string][]string `yaml:"unique"`
	Index  map[string][]string `yaml:"index"`
}

type yamlField struct {
	Name    string            `yaml:"name"`
	Store   string            `yaml:"store"`
	Kind    string            `yaml:"kind"`
	Length  int               `yaml:"length"`
	NotNull bool              `yaml:"not_null"`
	Default any               `yaml:"default"`
	Primary bool              `yaml:"primary"`
	Serial  bool              `yaml:"serial"`
	Unique  bool              `yaml:"unique"`
	Extract map[string]string `yaml:"extract"`
	Inject  string            `yaml:"inject"`
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// Load reads declarative YAML model documents from r. Each document is one
// model. The returned models are initialized.
func Load(r io.Reader) ([]*Model, error) {
	dec := yaml.NewDecoder(r)
	var models []*Model
	for {
		var ym yamlModel
		if err := dec.Decode(&ym); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &DefinitionError{Err: err}
		}
		m, err := ym.model()
		if err != nil {
			return nil, err
		}
		if err := m.Init(); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, &DefinitionError{Err: fmt.Errorf("no models declared")}
	}
	return models, nil
}

// LoadFile reads declarative YAML model documents from the named file.
func LoadFile(name string) ([]*Model, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (ym *yamlModel) model() (*Model, error) {
	m := &Model{
		Name:   ym.Name,
		Schema: ym.Schema,
		Table:  ym.Table,
		Label:  ym.Label,
		Order:  ym.Order,
		Unique: ym.Unique,
		Index:  ym.Index,
	}
	for _, yf := range ym.Fields {
		kind, ok := kindsByName[yf.Kind]
		if !ok {
			return nil, &DefinitionError{Model: ym.Name, Err: fmt.Errorf("field %q: unknown kind %q", yf.Name, yf.Kind)}
		}
		f := &Field{
			Name:       yf.Name,
			Store:      yf.Store,
			Kind:       kind,
			Length:     yf.Length,
			NotNull:    yf.NotNull,
			Default:    yf.Default,
			PrimaryKey: yf.Primary,
			Serial:     yf.Serial,
			Unique:     yf.Unique,
			Inject:     yf.Inject,
		}
		for path, kn := range yf.Extract {
			ek, ok := kindsByName[kn]
			if !ok {
				return nil, &DefinitionError{Model: ym.Name, Err: fmt.Errorf("field %q: extract %q: unknown kind %q", yf.Name, path, kn)}
			}
			f.Extract = append(f.Extract, Extract{Path: path, Kind: ek})
		}
		m.Fields = append(m.Fields, f)
	}
	return m, nil
}
