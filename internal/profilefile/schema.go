package profilefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NaN-tic/csvimport/internal/store"
)

type schemaDocument struct {
	Collections []store.Collection `yaml:"collections"`
}

// LoadSchema reads the record collections a store should expose from a
// YAML document:
//
//	collections:
//	  - name: party
//	    display: name
//	    fields:
//	      - name: name
//	        required: true
//	      - name: lines
//	        relation: sale_line
//	        backref: sale
func LoadSchema(path string) (*store.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file %s: %w", path, err)
	}
	return ParseSchema(data)
}

// ParseSchema converts YAML data into a schema.
func ParseSchema(data []byte) (*store.Schema, error) {
	var doc schemaDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	if len(doc.Collections) == 0 {
		return nil, fmt.Errorf("schema declares no collections")
	}
	schema := store.NewSchema()
	for _, c := range doc.Collections {
		if c.Name == "" {
			return nil, fmt.Errorf("schema collection without a name")
		}
		if _, dup := schema.Collection(c.Name); dup {
			return nil, fmt.Errorf("schema declares collection %q twice", c.Name)
		}
		schema.Register(c)
	}
	return schema, nil
}
