package core

import (
	"fmt"
	"strings"
)

// Separators accepted by the CSV dialect. "tab" stands for the tabulator
// character, which cannot be stored literally in configuration.
const (
	SeparatorComma     = ","
	SeparatorSemicolon = ";"
	SeparatorTab       = "tab"
	SeparatorPipe      = "|"
)

// Character encodings accepted for source files.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// ThousandsNone disables thousands-separator stripping. Any other token is
// stripped literally before decimal parsing, so unusual separators (space,
// apostrophe) need no special casing.
const ThousandsNone = "none"

// Strategy selects how the assembler groups decoded rows into drafts.
type Strategy string

const (
	// StrategyDefault produces one draft per row.
	StrategyDefault Strategy = "default"
	// StrategyGrouped folds runs of child rows into the preceding
	// parent draft's child collections.
	StrategyGrouped Strategy = "grouped"
)

// Profile is the reusable import configuration: the CSV dialect, the
// ordered column mappings and the assembly strategy. Profiles are created
// and edited by operators and are read-only during a run.
type Profile struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Collection string `json:"collection"` // target collection in the record store
	Active     bool   `json:"active"`

	// Dialect.
	Header             bool   `json:"header"`
	Separator          string `json:"separator"` // one of the Separator constants
	Quote              string `json:"quote"`     // single character, empty disables quoting
	CharacterEncoding  string `json:"characterEncoding"`
	ThousandsSeparator string `json:"thousandsSeparator"` // ThousandsNone or a literal token
	DecimalSeparator   string `json:"decimalSeparator"`   // "." or ","

	Columns  []ColumnMapping `json:"columns"`
	Exclude  []FilterClause  `json:"exclude,omitempty"` // row-exclusion predicate, AND-combined
	Strategy Strategy        `json:"strategy"`

	// Duplicate handling. A draft whose domain matches an existing
	// record is skipped when SkipRepeated is set, unless UpdateRecord
	// turns the match into an update instead.
	SkipRepeated bool `json:"skipRepeated"`
	UpdateRecord bool `json:"updateRecord"`

	Notify bool `json:"notify"` // send the run report to the run owner's address
}

// ColumnMapping maps source cell(s) or a constant onto one target field.
// Exactly one of Cells and Constant must be set; validation enforces the
// invariant before the profile can be saved.
type ColumnMapping struct {
	Field    string    `json:"field"`
	Cells    []int     `json:"cells,omitempty"`
	Constant string    `json:"constant,omitempty"`
	Kind     ValueKind `json:"kind"`

	Precision   *int            `json:"precision,omitempty"`  // numeric only; overrides the store's digits
	DateFormat  string          `json:"dateFormat,omitempty"` // strftime pattern, required for temporal kinds
	Selection   []SelectionPair `json:"selection,omitempty"`  // selection only
	ChildOf     string          `json:"childOf,omitempty"`    // parent relation field this column belongs to
	AddToDomain bool            `json:"addToDomain,omitempty"`
	Resolver    string          `json:"resolver,omitempty"` // named relation resolver; empty means lookup by display name
}

// FilterClause is one typed clause of the row-exclusion predicate,
// evaluated against the raw cells of a row. Clauses combine with AND.
// Exclusion rules are plain data; no user-supplied code is evaluated.
type FilterClause struct {
	Cell  int    `json:"cell"`
	Op    string `json:"op,omitempty"` // "=", "!=", "contains", "prefix"
	Value string `json:"value"`
}

// Match evaluates the clause against a raw row. A referenced cell beyond
// the row width never matches.
func (c FilterClause) Match(row []string) bool {
	if c.Cell < 0 || c.Cell >= len(row) {
		return false
	}
	cell := row[c.Cell]
	switch c.Op {
	case "=", "":
		return cell == c.Value
	case "!=":
		return cell != c.Value
	case "contains":
		return strings.Contains(cell, c.Value)
	case "prefix":
		return strings.HasPrefix(cell, c.Value)
	}
	return false
}

// Excluded reports whether the profile's exclusion predicate matches the
// raw row. A profile without clauses excludes nothing.
func (p *Profile) Excluded(row []string) bool {
	if len(p.Exclude) == 0 {
		return false
	}
	for _, clause := range p.Exclude {
		if !clause.Match(row) {
			return false
		}
	}
	return true
}

// SeparatorRune returns the field separator as a rune, translating the
// "tab" token.
func (p *Profile) SeparatorRune() rune {
	if p.Separator == SeparatorTab {
		return '\t'
	}
	return []rune(p.Separator)[0]
}

// NewProfile returns a profile with the usual dialect defaults: header
// present, semicolon separator, double quote, UTF-8, dot thousands
// separator, comma decimal separator.
func NewProfile(name, collection string) *Profile {
	return &Profile{
		Name:               name,
		Collection:         collection,
		Active:             true,
		Header:             true,
		Separator:          SeparatorSemicolon,
		Quote:              `"`,
		CharacterEncoding:  EncodingUTF8,
		ThousandsSeparator: ".",
		DecimalSeparator:   ",",
		Strategy:           StrategyDefault,
	}
}

// Validate checks the profile configuration. All problems are reported as
// *ProfileConfigError; a profile that fails validation must not be saved
// or run.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return &ProfileConfigError{Reason: "name is required"}
	}
	if p.Collection == "" {
		return &ProfileConfigError{Reason: "target collection is required"}
	}
	switch p.Separator {
	case SeparatorComma, SeparatorSemicolon, SeparatorTab, SeparatorPipe:
	default:
		return &ProfileConfigError{Reason: fmt.Sprintf("unsupported separator %q", p.Separator)}
	}
	if len(p.Quote) > 1 {
		return &ProfileConfigError{Reason: fmt.Sprintf("quote must be a single character, got %q", p.Quote)}
	}
	switch p.CharacterEncoding {
	case EncodingUTF8, EncodingLatin1:
	default:
		return &ProfileConfigError{Reason: fmt.Sprintf("unsupported character encoding %q", p.CharacterEncoding)}
	}
	switch p.DecimalSeparator {
	case ".", ",":
	default:
		return &ProfileConfigError{Reason: fmt.Sprintf("decimal separator must be \".\" or \",\", got %q", p.DecimalSeparator)}
	}
	if p.ThousandsSeparator != ThousandsNone && p.ThousandsSeparator == p.DecimalSeparator {
		return &ProfileConfigError{Reason: "thousands and decimal separators must differ"}
	}
	switch p.Strategy {
	case StrategyDefault, StrategyGrouped, "":
	default:
		return &ProfileConfigError{Reason: fmt.Sprintf("unknown strategy %q", p.Strategy)}
	}
	if len(p.Columns) == 0 {
		return &ProfileConfigError{Reason: "at least one column mapping is required"}
	}
	for i := range p.Columns {
		if err := p.Columns[i].Validate(); err != nil {
			return err
		}
	}
	for _, clause := range p.Exclude {
		if clause.Cell < 0 {
			return &ProfileConfigError{Reason: fmt.Sprintf("exclusion clause references negative cell %d", clause.Cell)}
		}
		switch clause.Op {
		case "", "=", "!=", "contains", "prefix":
		default:
			return &ProfileConfigError{Reason: fmt.Sprintf("unknown exclusion operator %q", clause.Op)}
		}
	}
	return nil
}

// Validate checks one column mapping: the cells-XOR-constant invariant,
// cell positions, and the kind-specific requirements.
func (m *ColumnMapping) Validate() error {
	if m.Field == "" {
		return &ProfileConfigError{Reason: "mapping without a target field"}
	}
	if len(m.Cells) == 0 && m.Constant == "" {
		return &ProfileConfigError{Field: m.Field, Reason: "either cells or a constant must be set"}
	}
	if len(m.Cells) > 0 && m.Constant != "" {
		return &ProfileConfigError{Field: m.Field, Reason: "cells and constant are mutually exclusive"}
	}
	for _, cell := range m.Cells {
		if cell < 0 {
			return &ProfileConfigError{Field: m.Field, Reason: fmt.Sprintf("negative cell position %d", cell)}
		}
	}
	if !m.Kind.Known() {
		return &ProfileConfigError{Field: m.Field, Reason: fmt.Sprintf("unknown value kind %q", m.Kind)}
	}
	if m.Kind.Temporal() && m.DateFormat == "" {
		return &ProfileConfigError{Field: m.Field, Reason: "temporal kinds require a date format"}
	}
	if !m.Kind.Temporal() && m.DateFormat != "" {
		return &ProfileConfigError{Field: m.Field, Reason: fmt.Sprintf("date format is only valid for temporal kinds, not %q", m.Kind)}
	}
	if m.Precision != nil && m.Kind != KindNumeric {
		return &ProfileConfigError{Field: m.Field, Reason: "precision is only valid for numeric mappings"}
	}
	if len(m.Selection) > 0 && m.Kind != KindSelection {
		return &ProfileConfigError{Field: m.Field, Reason: "selection pairs are only valid for selection mappings"}
	}
	if m.Resolver != "" && !m.Kind.Relation() {
		return &ProfileConfigError{Field: m.Field, Reason: "resolvers are only valid for relation mappings"}
	}
	return nil
}
