package core

import (
	"context"
	"io"
	"sort"
)

// Draft is one record candidate assembled from one or more rows: the
// decoded parent fields, any child entries keyed by their marker field,
// and the raw parent row for exclusion filters and log messages. Err is
// set when a row-level failure voided the draft; such drafts carry no
// fields and exist only so the failure reaches the run log.
type Draft struct {
	Line     int
	Row      []string
	Fields   []DecodedField
	Children map[string][][]DecodedField
	Warnings []error
	Err      error
}

// Empty reports whether the draft got no data from the source cells at
// all. Empty drafts are dropped without a log entry.
func (d *Draft) Empty() bool {
	for _, f := range d.Fields {
		if f.Present {
			return false
		}
	}
	return len(d.Children) == 0
}

// MissingRequired returns the first field whose target is required but
// whose decoded value is absent, checking parent fields first and then
// every child entry. An empty string means the draft is complete.
func (d *Draft) MissingRequired() string {
	for _, f := range d.Fields {
		if f.Required && !f.Value.Valid {
			return f.Mapping.Field
		}
	}
	for _, marker := range sortedMarkers(d.Children) {
		for _, entry := range d.Children[marker] {
			for _, f := range entry {
				if f.Required && !f.Value.Valid {
					return f.Mapping.Field
				}
			}
		}
	}
	return ""
}

// FieldMap shapes the draft for persistence: every valid parent field,
// plus child entries nested under their marker field as a list of field
// maps for the store to create alongside the parent.
func (d *Draft) FieldMap() FieldMap {
	fields := FieldMap{}
	for _, f := range d.Fields {
		if f.Value.Valid {
			fields[f.Mapping.Field] = f.Value.Any()
		}
	}
	for _, marker := range sortedMarkers(d.Children) {
		entries := make([]FieldMap, 0, len(d.Children[marker]))
		for _, entry := range d.Children[marker] {
			child := FieldMap{}
			for _, f := range entry {
				if f.Value.Valid {
					child[f.Mapping.Field] = f.Value.Any()
				}
			}
			entries = append(entries, child)
		}
		fields[marker] = entries
	}
	return fields
}

// Domain builds the duplicate-search conditions from the fields flagged
// for it: multi relations become membership tests over their ids, every
// other kind an equality test. Child rows folded into the draft
// contribute their flagged fields too, in arrival order after the
// parent's.
func (d *Draft) Domain() []Condition {
	var domain []Condition
	add := func(f DecodedField) {
		if !f.Mapping.AddToDomain || !f.Value.Valid {
			return
		}
		if f.Value.Kind == KindRelationMany {
			domain = append(domain, Condition{Field: f.Mapping.Field, Op: OpIn, Value: f.Value.IDs})
			return
		}
		domain = append(domain, Condition{Field: f.Mapping.Field, Op: OpEqual, Value: f.Value.Any()})
	}
	for _, f := range d.Fields {
		add(f)
	}
	for _, marker := range sortedMarkers(d.Children) {
		for _, entry := range d.Children[marker] {
			for _, f := range entry {
				add(f)
			}
		}
	}
	return domain
}

func sortedMarkers(children map[string][][]DecodedField) []string {
	if len(children) == 0 {
		return nil
	}
	markers := make([]string, 0, len(children))
	for marker := range children {
		markers = append(markers, marker)
	}
	sort.Strings(markers)
	return markers
}

// Assembler folds decoded rows into drafts. The default strategy maps
// each row to one draft; the grouped strategy opens a draft on every row
// with parent data and folds the following child-only rows into it until
// the next parent row closes it.
type Assembler struct {
	profile *Profile
	decoder *Decoder
	rows    [][]string
	next    int
	pending *Draft
	queue   []*Draft
	done    bool
}

// NewAssembler prepares a single pass over rows. When the profile
// declares a header the first row is skipped here.
func NewAssembler(profile *Profile, decoder *Decoder, rows [][]string) *Assembler {
	a := &Assembler{profile: profile, decoder: decoder, rows: rows}
	if profile.Header && len(rows) > 0 {
		a.next = 1
	}
	return a
}

// Next returns the next draft, or io.EOF once the rows are exhausted.
// Row-level failures come back as drafts with Err set; any other error
// is fatal to the whole run.
func (a *Assembler) Next(ctx context.Context) (*Draft, error) {
	for {
		if len(a.queue) > 0 {
			d := a.queue[0]
			a.queue = a.queue[1:]
			return d, nil
		}
		if a.done {
			return nil, io.EOF
		}
		if err := a.advance(ctx); err != nil {
			return nil, err
		}
	}
}

// advance consumes one row (or the end of input) and pushes whatever
// drafts that completes onto the queue.
func (a *Assembler) advance(ctx context.Context) error {
	if a.next >= len(a.rows) {
		a.done = true
		a.flush()
		return nil
	}

	row := a.rows[a.next]
	line := a.next + 1
	a.next++

	if len(row) == 0 {
		return nil
	}

	decoded, err := a.decoder.DecodeRow(ctx, line, row)
	if err != nil {
		if !IsRowError(err) {
			return err
		}
		a.queue = append(a.queue, &Draft{Line: line, Row: row, Err: err})
		return nil
	}

	if a.profile.Strategy == StrategyGrouped {
		a.advanceGrouped(decoded)
		return nil
	}

	draft := &Draft{Line: decoded.Line, Row: decoded.Raw, Warnings: decoded.Warnings}
	for _, f := range decoded.Fields {
		if f.Mapping.ChildOf != "" {
			if f.Present {
				appendChild(draft, decoded)
				break
			}
			continue
		}
		draft.Fields = append(draft.Fields, f)
	}
	if draft.Empty() {
		return nil
	}
	a.queue = append(a.queue, draft)
	return nil
}

// advanceGrouped routes one decoded row in grouped mode: parent data
// opens a new draft, child-only data folds into the open one, a child
// row with no open draft is an ordering failure.
func (a *Assembler) advanceGrouped(decoded *DecodedRow) {
	switch {
	case decoded.ParentPresent():
		a.flush()
		draft := &Draft{Line: decoded.Line, Row: decoded.Raw, Warnings: decoded.Warnings}
		for _, f := range decoded.Fields {
			if f.Mapping.ChildOf == "" {
				draft.Fields = append(draft.Fields, f)
			}
		}
		if decoded.ChildPresent() {
			appendChild(draft, decoded)
		}
		a.pending = draft
	case decoded.ChildPresent():
		if a.pending == nil {
			a.queue = append(a.queue, &Draft{
				Line: decoded.Line,
				Row:  decoded.Raw,
				Err:  &GroupOrderError{Line: decoded.Line},
			})
			return
		}
		appendChild(a.pending, decoded)
		a.pending.Warnings = append(a.pending.Warnings, decoded.Warnings...)
	}
}

// appendChild collects the row's child-marked fields into one entry per
// marker and appends them to the draft.
func appendChild(draft *Draft, decoded *DecodedRow) {
	byMarker := map[string][]DecodedField{}
	for _, f := range decoded.Fields {
		if f.Mapping.ChildOf == "" {
			continue
		}
		byMarker[f.Mapping.ChildOf] = append(byMarker[f.Mapping.ChildOf], f)
	}
	for marker, entry := range byMarker {
		present := false
		for _, f := range entry {
			if f.Present {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		if draft.Children == nil {
			draft.Children = map[string][][]DecodedField{}
		}
		draft.Children[marker] = append(draft.Children[marker], entry)
	}
}

func (a *Assembler) flush() {
	if a.pending == nil {
		return
	}
	a.queue = append(a.queue, a.pending)
	a.pending = nil
}
