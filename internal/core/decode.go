package core

import (
	"context"
	"log/slog"
)

// DecodedField is the result of applying one column mapping to one row.
// Present records whether the source cells actually carried data: values
// fed from constants (or coerced from absence, as booleans are) persist
// normally but do not count when the assembler decides whether a row is a
// parent row, a child continuation or blank.
type DecodedField struct {
	Mapping  *ColumnMapping
	Value    Value
	Present  bool
	Required bool
}

// DecodedRow is one raw row pushed through every column mapping, in
// mapping order, plus anything the decoder had to note along the way
// (resolver failures are downgraded to warnings, never errors).
type DecodedRow struct {
	Line     int
	Raw      []string
	Fields   []DecodedField
	Warnings []error
}

// ParentPresent reports whether any non-child mapping got data from the
// row's cells.
func (r *DecodedRow) ParentPresent() bool {
	for _, f := range r.Fields {
		if f.Present && f.Mapping.ChildOf == "" {
			return true
		}
	}
	return false
}

// ChildPresent reports whether any child-marked mapping got data from the
// row's cells.
func (r *DecodedRow) ChildPresent() bool {
	for _, f := range r.Fields {
		if f.Present && f.Mapping.ChildOf != "" {
			return true
		}
	}
	return false
}

// boundMapping is a column mapping bound to the record store metadata it
// targets: the owning collection (the profile's collection, or the child
// relation target for child-marked mappings), the field metadata, and the
// resolver for relation kinds.
type boundMapping struct {
	mapping      *ColumnMapping
	collection   string
	meta         FieldMeta
	precision    *int32
	resolver     RelationResolver
	resolverName string
}

// Decoder converts raw rows into typed field values using the profile's
// column mappings. Binding store metadata happens once, at construction,
// so per-row decoding touches the store only for relation lookups.
type Decoder struct {
	profile *Profile
	store   RecordStore
	log     *slog.Logger
	bound   []boundMapping
}

// NewDecoder binds the profile's mappings against the store metadata.
// Unknown kinds and unresolvable child markers are configuration-level
// failures and abort before any row is read.
func NewDecoder(profile *Profile, store RecordStore, logger *slog.Logger) (*Decoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Decoder{profile: profile, store: store, log: logger}
	for i := range profile.Columns {
		m := &profile.Columns[i]
		if !m.Kind.Known() {
			return nil, &NotImplementedError{Field: m.Field, Kind: m.Kind}
		}

		collection := profile.Collection
		if m.ChildOf != "" {
			parentMeta, err := store.FieldMeta(profile.Collection, m.ChildOf)
			if err != nil {
				return nil, &ProfileConfigError{Field: m.Field, Reason: "unknown child marker " + m.ChildOf}
			}
			if parentMeta.Relation == "" {
				return nil, &ProfileConfigError{Field: m.Field, Reason: m.ChildOf + " is not a relation field"}
			}
			collection = parentMeta.Relation
		}

		meta, err := store.FieldMeta(collection, m.Field)
		if err != nil {
			return nil, &ProfileConfigError{Field: m.Field, Reason: "unknown field in collection " + collection}
		}

		b := boundMapping{mapping: m, collection: collection, meta: meta}
		if m.Kind == KindNumeric {
			b.precision = numericPrecision(m, meta)
		}
		if m.Kind.Relation() {
			if meta.Relation == "" {
				return nil, &ProfileConfigError{Field: m.Field, Reason: "field is not a relation in collection " + collection}
			}
			resolver, name, err := resolverFor(m)
			if err != nil {
				return nil, err
			}
			b.resolver = resolver
			b.resolverName = name
		}
		d.bound = append(d.bound, b)
	}
	return d, nil
}

// DecodeRow applies every bound mapping to one raw row. Coercion errors
// and dialect mismatches are returned to the caller; resolver failures
// are logged, recorded as warnings and replaced with absent values.
func (d *Decoder) DecodeRow(ctx context.Context, line int, row []string) (*DecodedRow, error) {
	out := &DecodedRow{Line: line, Raw: row}
	for i := range d.bound {
		b := &d.bound[i]
		field, err := d.decodeField(ctx, b, row, out)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, field)
	}
	return out, nil
}

// decodeField resolves the raw input for one mapping (cells, constant or
// absence) and dispatches on the declared kind.
func (d *Decoder) decodeField(ctx context.Context, b *boundMapping, row []string, out *DecodedRow) (DecodedField, error) {
	m := b.mapping

	for _, cell := range m.Cells {
		if cell >= len(row) {
			return DecodedField{}, &ColumnIndexError{Field: m.Field, Cell: cell, Width: len(row)}
		}
	}

	present := len(m.Cells) > 0 && row[m.Cells[0]] != ""
	var raw []string
	switch {
	case present:
		raw = make([]string, len(m.Cells))
		for i, cell := range m.Cells {
			raw[i] = row[cell]
		}
	case m.Constant != "":
		raw = []string{m.Constant}
	default:
		// Absent input: booleans coerce to false, everything else to
		// the absent value.
		if m.Kind == KindBoolean {
			return DecodedField{Mapping: m, Value: coerceBoolean(false), Required: b.meta.Required}, nil
		}
		return DecodedField{Mapping: m, Value: Absent(m.Kind), Required: b.meta.Required}, nil
	}

	v, err := d.coerce(ctx, b, raw, out)
	if err != nil {
		return DecodedField{}, err
	}
	return DecodedField{Mapping: m, Value: v, Present: present, Required: b.meta.Required}, nil
}

func (d *Decoder) coerce(ctx context.Context, b *boundMapping, raw []string, out *DecodedRow) (Value, error) {
	m := b.mapping
	switch m.Kind {
	case KindChar, KindText:
		return decodeText(m.Kind, m.Field, raw, d.profile.CharacterEncoding)
	case KindInteger:
		return parseInteger(m.Field, raw[0])
	case KindNumeric:
		return parseNumeric(m.Field, raw[0], d.profile.ThousandsSeparator, d.profile.DecimalSeparator, b.precision)
	case KindBoolean:
		return coerceBoolean(true), nil
	case KindDate, KindDatetime, KindTime, KindTimestamp:
		return parseTemporal(m.Kind, m.Field, raw, m.DateFormat)
	case KindSelection:
		return mapSelection(m.Field, raw, d.profile.CharacterEncoding, m.Selection)
	case KindRelationOne, KindRelationMany:
		return d.resolveRelation(ctx, b, raw, out)
	}
	return Value{}, &NotImplementedError{Field: m.Field, Kind: m.Kind}
}

// resolveRelation runs the mapping's resolver. Failures never propagate:
// they are logged, attached to the row as a warning, and the value comes
// back absent so the rest of the draft keeps importing.
func (d *Decoder) resolveRelation(ctx context.Context, b *boundMapping, raw []string, out *DecodedRow) (Value, error) {
	m := b.mapping
	values := raw[:0:0]
	for _, cell := range raw {
		if cell != "" {
			values = append(values, cell)
		}
	}

	ids, err := b.resolver.Resolve(ctx, ResolveRequest{
		Store:      d.store,
		Collection: b.meta.Relation,
		Field:      m.Field,
		Values:     values,
	})
	if err != nil {
		rerr := &ResolverError{Field: m.Field, Resolver: b.resolverName, Err: err}
		d.log.Warn("relation resolver failed",
			"field", m.Field,
			"resolver", b.resolverName,
			"error", err,
		)
		out.Warnings = append(out.Warnings, rerr)
		return Absent(m.Kind), nil
	}
	if len(ids) == 0 {
		return Absent(m.Kind), nil
	}
	if m.Kind == KindRelationOne {
		ids = ids[:1]
	}
	return Value{Kind: m.Kind, Valid: true, IDs: ids}, nil
}

// numericPrecision picks the rounding precision for a numeric mapping:
// the mapping's own override wins, then the store's declared digits.
func numericPrecision(m *ColumnMapping, meta FieldMeta) *int32 {
	if m.Precision != nil {
		p := int32(*m.Precision)
		return &p
	}
	if meta.Digits > 0 {
		p := meta.Digits
		return &p
	}
	return nil
}
