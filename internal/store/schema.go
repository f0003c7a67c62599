// Package store describes the record collections an import can target
// and provides the backends that persist them. The schema is declared
// once at startup; both the in-memory store and the postgres store
// answer the pipeline's metadata queries from it.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/NaN-tic/csvimport/internal/core"
)

// Field declares one field of a collection as the import pipeline sees
// it: whether the target requires it, the digits for numeric rounding,
// and the relation target for relation fields. Backref names the column
// on the related collection that points back at the owner; relational
// backends need it to persist child entries.
type Field struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Digits   int32  `yaml:"digits"`
	Relation string `yaml:"relation"`
	Backref  string `yaml:"backref"`
}

// Collection declares one record collection: its fields and the display
// field relation resolvers match names against.
type Collection struct {
	Name    string  `yaml:"name"`
	Display string  `yaml:"display"`
	Fields  []Field `yaml:"fields"`
}

// Field returns the named field declaration.
func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Schema is the set of declared collections. Registration happens during
// startup wiring; lookups are safe for concurrent use afterwards.
type Schema struct {
	mu          sync.RWMutex
	collections map[string]Collection
}

func NewSchema() *Schema {
	return &Schema{collections: map[string]Collection{}}
}

// Register adds a collection to the schema. Registering a duplicate name
// panics, the same way registering a duplicate resolver does.
func (s *Schema) Register(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.collections[c.Name]; dup {
		panic(fmt.Sprintf("store: duplicate collection registration for %q", c.Name))
	}
	if c.Display == "" {
		c.Display = "name"
	}
	s.collections[c.Name] = c
}

// Collection returns the named collection declaration.
func (s *Schema) Collection(name string) (Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	return c, ok
}

// Names lists every registered collection, sorted.
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldMeta answers the pipeline's metadata query from the declared
// schema.
func (s *Schema) FieldMeta(collection, field string) (core.FieldMeta, error) {
	c, ok := s.Collection(collection)
	if !ok {
		return core.FieldMeta{}, fmt.Errorf("unknown collection %q", collection)
	}
	f, ok := c.Field(field)
	if !ok {
		return core.FieldMeta{}, fmt.Errorf("unknown field %q in collection %q", field, collection)
	}
	return core.FieldMeta{
		Name:     f.Name,
		Required: f.Required,
		Digits:   f.Digits,
		Relation: f.Relation,
	}, nil
}

// DisplayField returns the collection's display field.
func (s *Schema) DisplayField(collection string) (string, error) {
	c, ok := s.Collection(collection)
	if !ok {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return c.Display, nil
}
