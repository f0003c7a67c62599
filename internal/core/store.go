package core

import "context"

// Operators accepted in domain conditions.
const (
	OpEqual = "="
	OpIn    = "in"
)

// Condition is one clause of a domain: field, operator, value. Conditions
// combine with AND when searching the record store.
type Condition struct {
	Field string
	Op    string
	Value any
}

// FieldMap carries the store-facing values of one record draft. Child
// collections ride inside the parent map under the parent's relation
// field, as a []FieldMap value.
type FieldMap map[string]any

// Record is a persisted record as returned by the store.
type Record struct {
	ID     int64
	Fields FieldMap
}

// Update pairs an existing record ID with the field values to write.
type Update struct {
	ID     int64
	Fields FieldMap
}

// FieldMeta is the per-field metadata the pipeline needs from the record
// store: whether the target field is required, the declared numeric
// precision, and the relation target for relation kinds.
type FieldMeta struct {
	Name     string
	Required bool
	Digits   int32  // numeric precision; 0 means unconstrained
	Relation string // target collection for relation fields
}

// RecordStore is the minimal contract of the external record store.
// Satisfied by the in-memory store and the Postgres adapter in
// internal/store.
type RecordStore interface {
	// Search returns records of the collection matching all conditions,
	// up to limit (0 means no limit).
	Search(ctx context.Context, collection string, domain []Condition, limit int) ([]Record, error)

	// Create persists one record per field map and returns them with IDs
	// assigned, in input order.
	Create(ctx context.Context, collection string, fields []FieldMap) ([]Record, error)

	// Save writes field values onto existing records.
	Save(ctx context.Context, collection string, updates []Update) error

	// FieldMeta returns the metadata of one field of a collection.
	FieldMeta(collection, field string) (FieldMeta, error)

	// DisplayField returns the field used as the human-readable name of a
	// collection; relation lookups match against it.
	DisplayField(collection string) (string, error)
}
