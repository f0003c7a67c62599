package core

import (
	"context"
	"fmt"
	"testing"
)

// fakeStore is a scriptable RecordStore for decoder, matcher and runner
// tests. Field metadata is keyed "collection.field"; search behavior is
// injected per test through searchFn.
type fakeStore struct {
	meta     map[string]FieldMeta
	displays map[string]string

	searchFn  func(collection string, domain []Condition, limit int) ([]Record, error)
	createErr error
	saveErr   error

	searches    []searchCall
	created     map[string][]FieldMap
	saved       map[string][]Update
	createCalls int
	saveCalls   int
	nextID      int64
}

type searchCall struct {
	collection string
	domain     []Condition
	limit      int
}

var _ RecordStore = (*fakeStore)(nil)

func (s *fakeStore) Search(ctx context.Context, collection string, domain []Condition, limit int) ([]Record, error) {
	s.searches = append(s.searches, searchCall{collection: collection, domain: domain, limit: limit})
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(collection, domain, limit)
}

func (s *fakeStore) Create(ctx context.Context, collection string, fields []FieldMap) ([]Record, error) {
	s.createCalls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.created == nil {
		s.created = map[string][]FieldMap{}
	}
	records := make([]Record, len(fields))
	for i, f := range fields {
		s.nextID++
		records[i] = Record{ID: s.nextID, Fields: f}
		s.created[collection] = append(s.created[collection], f)
	}
	return records, nil
}

func (s *fakeStore) Save(ctx context.Context, collection string, updates []Update) error {
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.saved == nil {
		s.saved = map[string][]Update{}
	}
	s.saved[collection] = append(s.saved[collection], updates...)
	return nil
}

func (s *fakeStore) FieldMeta(collection, field string) (FieldMeta, error) {
	m, ok := s.meta[collection+"."+field]
	if !ok {
		return FieldMeta{}, fmt.Errorf("no field %s in collection %s", field, collection)
	}
	return m, nil
}

func (s *fakeStore) DisplayField(collection string) (string, error) {
	if d, ok := s.displays[collection]; ok {
		return d, nil
	}
	return "name", nil
}

// partnerStore returns a fakeStore with the partner/address/category
// metadata most tests decode against.
func partnerStore() *fakeStore {
	return &fakeStore{
		meta: map[string]FieldMeta{
			"res.partner.name":      {Name: "name", Required: true},
			"res.partner.lang":      {Name: "lang"},
			"res.partner.amount":    {Name: "amount", Digits: 2},
			"res.partner.active":    {Name: "active"},
			"res.partner.since":     {Name: "since", Required: false},
			"res.partner.category":  {Name: "category", Relation: "res.category"},
			"res.partner.addresses": {Name: "addresses", Relation: "res.address"},
			"res.address.street":    {Name: "street", Required: true},
			"res.address.zip":       {Name: "zip"},
			"res.category.name":     {Name: "name"},
		},
	}
}

// hitOn returns a searchFn that answers with the given record whenever
// the first domain condition's value equals want, and misses otherwise.
func hitOn(want any, record Record) func(string, []Condition, int) ([]Record, error) {
	return func(_ string, domain []Condition, _ int) ([]Record, error) {
		if len(domain) > 0 && domain[0].Value == want {
			return []Record{record}, nil
		}
		return nil, nil
	}
}

func mustDecodeRow(t *testing.T, d *Decoder, line int, row []string) *DecodedRow {
	t.Helper()
	out, err := d.DecodeRow(context.Background(), line, row)
	if err != nil {
		t.Fatalf("DecodeRow(%v) error = %v", row, err)
	}
	return out
}
