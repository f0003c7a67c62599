// Package profilefile reads import profiles from YAML documents, the
// format the CLI works with. The document shape is deliberately looser
// than the core type: cell lists can be scalars or sequences, selection
// pairs are written as "key: value" lines, and dialect settings default
// to the profile defaults when omitted.
package profilefile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NaN-tic/csvimport/internal/core"
)

// Document is the YAML shape of a profile.
type Document struct {
	Name         string   `yaml:"name"`
	Collection   string   `yaml:"collection"`
	Active       *bool    `yaml:"active"`
	Strategy     string   `yaml:"strategy"`
	Dialect      Dialect  `yaml:"dialect"`
	Columns      []Column `yaml:"columns"`
	Exclude      []Clause `yaml:"exclude"`
	SkipRepeated bool     `yaml:"skip_repeated"`
	UpdateRecord bool     `yaml:"update_record"`
	Notify       bool     `yaml:"notify"`
}

// Dialect is the YAML shape of the CSV dialect block. Nil and empty
// values fall back to the defaults.
type Dialect struct {
	Header    *bool  `yaml:"header"`
	Separator string `yaml:"separator"`
	Quote     string `yaml:"quote"`
	Encoding  string `yaml:"encoding"`
	Thousands string `yaml:"thousands"`
	Decimal   string `yaml:"decimal"`
}

// Column is the YAML shape of one column mapping.
type Column struct {
	Field       string `yaml:"field"`
	Cells       Cells  `yaml:"cells"`
	Constant    string `yaml:"constant"`
	Kind        string `yaml:"kind"`
	Precision   *int   `yaml:"precision"`
	DateFormat  string `yaml:"date_format"`
	Selection   string `yaml:"selection"` // "key: value" lines
	ChildOf     string `yaml:"child_of"`
	AddToDomain bool   `yaml:"add_to_domain"`
	Resolver    string `yaml:"resolver"`
}

// Clause is the YAML shape of one exclusion clause.
type Clause struct {
	Cell  int    `yaml:"cell"`
	Op    string `yaml:"op"`
	Value string `yaml:"value"`
}

// Cells accepts cell positions as a scalar ("0", "0,1", a bare number)
// or as a YAML sequence. Scalars are kept raw and parsed during
// conversion, where the column's field name is known for error messages.
type Cells struct {
	List []int
	Raw  string
}

func (c *Cells) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		c.Raw = node.Value
		return nil
	case yaml.SequenceNode:
		return node.Decode(&c.List)
	}
	return fmt.Errorf("cells: expected scalar or sequence, got %v", node.Kind)
}

// Load reads and converts a profile document from path.
func Load(path string) (*core.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse converts YAML data into a validated profile.
func Parse(data []byte) (*core.Profile, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile yaml: %w", err)
	}
	return doc.Profile()
}

// Profile converts the document into a core profile, applying defaults
// and running the profile validation.
func (d *Document) Profile() (*core.Profile, error) {
	p := core.NewProfile(d.Name, d.Collection)
	if d.Active != nil {
		p.Active = *d.Active
	}
	if d.Strategy != "" {
		p.Strategy = core.Strategy(d.Strategy)
	}
	if d.Dialect.Header != nil {
		p.Header = *d.Dialect.Header
	}
	if d.Dialect.Separator != "" {
		p.Separator = d.Dialect.Separator
	}
	if d.Dialect.Quote != "" {
		p.Quote = d.Dialect.Quote
	}
	if d.Dialect.Encoding != "" {
		p.CharacterEncoding = d.Dialect.Encoding
	}
	if d.Dialect.Thousands != "" {
		p.ThousandsSeparator = d.Dialect.Thousands
	}
	if d.Dialect.Decimal != "" {
		p.DecimalSeparator = d.Dialect.Decimal
	}
	p.SkipRepeated = d.SkipRepeated
	p.UpdateRecord = d.UpdateRecord
	p.Notify = d.Notify

	for _, col := range d.Columns {
		mapping, err := col.mapping()
		if err != nil {
			return nil, err
		}
		p.Columns = append(p.Columns, mapping)
	}
	for _, clause := range d.Exclude {
		p.Exclude = append(p.Exclude, core.FilterClause{
			Cell:  clause.Cell,
			Op:    clause.Op,
			Value: clause.Value,
		})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Column) mapping() (core.ColumnMapping, error) {
	cells := c.Cells.List
	if c.Cells.Raw != "" {
		parsed, err := core.ParseCells(c.Field, c.Cells.Raw)
		if err != nil {
			return core.ColumnMapping{}, err
		}
		cells = parsed
	}
	return core.ColumnMapping{
		Field:       c.Field,
		Cells:       cells,
		Constant:    c.Constant,
		Kind:        core.ValueKind(c.Kind),
		Precision:   c.Precision,
		DateFormat:  c.DateFormat,
		Selection:   core.ParseSelectionLines(c.Selection),
		ChildOf:     c.ChildOf,
		AddToDomain: c.AddToDomain,
		Resolver:    c.Resolver,
	}, nil
}
