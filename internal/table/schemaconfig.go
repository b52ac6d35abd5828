package table

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaDocument is the YAML shape LoadSchemaYAML parses: a table id,
// name, and an ordered list of columns.
type schemaDocument struct {
	ID      int32            `yaml:"id"`
	Name    string           `yaml:"name"`
	Columns []columnDocument `yaml:"columns"`
}

type columnDocument struct {
	ID     int32  `yaml:"id"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	MaxLen uint16 `yaml:"max_len"`
}

// LoadSchemaYAML reads a YAML table definition from path and returns the
// Table it describes. Column "type" must be one of "int", "varchar", or
// "byte" (case-sensitive); "varchar" requires "max_len" > 0.
func LoadSchemaYAML(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("table: load schema %s: %w", path, err)
	}

	var doc schemaDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("table: parse schema %s: %w", path, err)
	}
	if len(doc.Columns) == 0 {
		return nil, fmt.Errorf("table: schema %s has no columns", path)
	}

	schema := make(Schema, 0, len(doc.Columns))
	for _, cd := range doc.Columns {
		switch cd.Type {
		case "int":
			schema = append(schema, NewIntColumn(cd.ID, cd.Name))
		case "varchar":
			if cd.MaxLen == 0 {
				return nil, fmt.Errorf("table: column %q in %s: varchar requires max_len > 0", cd.Name, path)
			}
			schema = append(schema, NewVarcharColumn(cd.ID, cd.Name, cd.MaxLen))
		case "byte":
			schema = append(schema, NewByteColumn(cd.ID, cd.Name))
		default:
			return nil, fmt.Errorf("table: column %q in %s: unknown type %q", cd.Name, path, cd.Type)
		}
	}

	return NewTable(doc.ID, doc.Name, schema), nil
}
