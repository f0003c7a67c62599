// Package memory is the in-process record store backend. It keeps every
// collection as an ordered slice guarded by one mutex, which is plenty
// for CLI runs, the hot folder and tests; anything bigger belongs on the
// postgres backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/store"
)

type record struct {
	id     int64
	fields core.FieldMap
}

// Store implements core.RecordStore over plain maps.
type Store struct {
	schema *store.Schema

	mu   sync.RWMutex
	seq  map[string]int64
	rows map[string][]record
}

func New(schema *store.Schema) *Store {
	return &Store{
		schema: schema,
		seq:    map[string]int64{},
		rows:   map[string][]record{},
	}
}

func (s *Store) FieldMeta(collection, field string) (core.FieldMeta, error) {
	return s.schema.FieldMeta(collection, field)
}

func (s *Store) DisplayField(collection string) (string, error) {
	return s.schema.DisplayField(collection)
}

// Search scans the collection in insertion order and returns the rows
// matching every condition, up to limit when limit is positive.
func (s *Store) Search(ctx context.Context, collection string, domain []core.Condition, limit int) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.schema.Collection(collection); !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	var out []core.Record
	for _, r := range s.rows[collection] {
		ok, err := matches(r.fields, domain)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, core.Record{ID: r.id, Fields: copyFields(r.fields)})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Create inserts the given field maps and returns the records with their
// assigned ids, in input order. Child entries nested under a relation
// field are created in the relation's collection first and replaced by
// their ids; when the schema declares a backref the child rows also get
// the parent id written into it.
func (s *Store) Create(ctx context.Context, collection string, fields []core.FieldMap) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Record, 0, len(fields))
	for _, f := range fields {
		rec, err := s.create(collection, f)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Save merges each update into the stored row. Nested child entries are
// created the same way Create handles them and replace the previous ids
// on the parent field.
func (s *Store) Save(ctx context.Context, collection string, updates []core.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		rows := s.rows[collection]
		idx := -1
		for i := range rows {
			if rows[i].id == u.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("record %d not found in collection %q", u.ID, collection)
		}
		merged, err := s.expand(collection, u.ID, u.Fields)
		if err != nil {
			return err
		}
		for k, v := range merged {
			rows[idx].fields[k] = v
		}
	}
	return nil
}

// create assumes the write lock is held.
func (s *Store) create(collection string, fields core.FieldMap) (core.Record, error) {
	if _, ok := s.schema.Collection(collection); !ok {
		return core.Record{}, fmt.Errorf("unknown collection %q", collection)
	}
	s.seq[collection]++
	id := s.seq[collection]

	row, err := s.expand(collection, id, fields)
	if err != nil {
		return core.Record{}, err
	}
	s.rows[collection] = append(s.rows[collection], record{id: id, fields: row})
	return core.Record{ID: id, Fields: copyFields(row)}, nil
}

// expand copies the field map, creating any nested child entries in
// their own collection and substituting the resulting ids.
func (s *Store) expand(collection string, owner int64, fields core.FieldMap) (core.FieldMap, error) {
	c, _ := s.schema.Collection(collection)
	row := core.FieldMap{}
	for _, k := range sortedKeys(fields) {
		children, nested := fields[k].([]core.FieldMap)
		if !nested {
			row[k] = fields[k]
			continue
		}
		f, ok := c.Field(k)
		if !ok {
			return nil, fmt.Errorf("unknown field %q in collection %q", k, collection)
		}
		if f.Relation == "" {
			return nil, fmt.Errorf("field %q in collection %q is not a relation", k, collection)
		}
		ids := make([]int64, 0, len(children))
		for _, childFields := range children {
			cf := copyFields(childFields)
			if f.Backref != "" {
				cf[f.Backref] = owner
			}
			child, err := s.create(f.Relation, cf)
			if err != nil {
				return nil, err
			}
			ids = append(ids, child.ID)
		}
		row[k] = ids
	}
	return row, nil
}

func matches(fields core.FieldMap, domain []core.Condition) (bool, error) {
	for _, cond := range domain {
		v, ok := fields[cond.Field]
		if !ok {
			return false, nil
		}
		switch cond.Op {
		case core.OpEqual:
			if !equalValue(v, cond.Value) {
				return false, nil
			}
		case core.OpIn:
			if !inValue(v, cond.Value) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", cond.Op)
		}
	}
	return true, nil
}

// equalValue compares a stored value with a condition value, smoothing
// over representations plain equality gets wrong: decimals with
// different exponents, times in different locations, integer widths.
func equalValue(a, b any) bool {
	if ad, ok := a.(decimal.Decimal); ok {
		bd, ok := b.(decimal.Decimal)
		return ok && ad.Equal(bd)
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if ai, ok := asInt64(a); ok {
		bi, ok := asInt64(b)
		return ok && ai == bi
	}
	if as, ok := a.([]int64); ok {
		bs, ok := b.([]int64)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// inValue implements the membership operator: a scalar matches when it
// is one of the condition's values, a stored id list matches when it
// shares at least one id with them.
func inValue(stored, cond any) bool {
	want, ok := asInt64Slice(cond)
	if !ok {
		return false
	}
	if id, ok := asInt64(stored); ok {
		for _, w := range want {
			if id == w {
				return true
			}
		}
		return false
	}
	ids, ok := asInt64Slice(stored)
	if !ok {
		return false
	}
	for _, id := range ids {
		for _, w := range want {
			if id == w {
				return true
			}
		}
	}
	return false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func asInt64Slice(v any) ([]int64, bool) {
	switch s := v.(type) {
	case []int64:
		return s, true
	case []any:
		out := make([]int64, 0, len(s))
		for _, e := range s {
			n, ok := asInt64(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	return nil, false
}

func copyFields(fields core.FieldMap) core.FieldMap {
	out := make(core.FieldMap, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func sortedKeys(fields core.FieldMap) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
