package core

// errors.go defines the error taxonomy of the import pipeline.
//
// Three families exist, with different blast radii:
//
//   - Configuration errors (ProfileConfigError) are raised when a profile
//     is validated, before any run starts. They never surface mid-run.
//   - Row errors (format, range, encoding, date) drop a single draft and
//     are downgraded to log entries; the run continues.
//   - Run errors (ColumnIndexError, NotImplementedError, persistence
//     failures) abort the run into a terminal error state.

import (
	"errors"
	"fmt"
)

// ProfileConfigError reports an invalid profile or column mapping.
// It blocks saving the profile and is never produced during a run.
type ProfileConfigError struct {
	Field  string // target field of the offending mapping, if any
	Reason string
}

func (e *ProfileConfigError) Error() string {
	if e.Field == "" {
		return "invalid profile: " + e.Reason
	}
	return fmt.Sprintf("invalid mapping for field %q: %s", e.Field, e.Reason)
}

// ColumnIndexError reports a row with fewer cells than a mapping
// references. This signals a dialect mismatch (wrong separator, wrong
// file), not a bad row, so it aborts the whole run.
type ColumnIndexError struct {
	Field string
	Cell  int
	Width int // number of cells in the offending row
}

func (e *ColumnIndexError) Error() string {
	return fmt.Sprintf("field %q references cell %d but the row has %d cells: check the separator and quote settings",
		e.Field, e.Cell, e.Width)
}

// IntegerFormatError reports a cell that does not parse as a base-10
// integer.
type IntegerFormatError struct {
	Field string
	Value string
}

func (e *IntegerFormatError) Error() string {
	return fmt.Sprintf("error importing integer for field %q: the format of %q is wrong", e.Field, e.Value)
}

// IntegerRangeError reports an integer outside the 32-bit range accepted
// by the record store.
type IntegerRangeError struct {
	Field string
	Value string
}

func (e *IntegerRangeError) Error() string {
	return fmt.Sprintf("error importing integer for field %q: value %q must be between %d and %d",
		e.Field, e.Value, IntegerMin, IntegerMax)
}

// NumericFormatError reports a cell that does not parse as a decimal after
// separator normalization.
type NumericFormatError struct {
	Field string
	Value string
}

func (e *NumericFormatError) Error() string {
	return fmt.Sprintf("error importing numeric for field %q: the format of %q is wrong", e.Field, e.Value)
}

// EncodingError reports cell bytes that are not valid in the profile's
// character encoding.
type EncodingError struct {
	Field    string
	Encoding string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("error importing char for field %q: the value is not valid %s", e.Field, e.Encoding)
}

// DateFormatError reports a temporal cell that does not match the
// configured strftime pattern. The message carries the field, the raw
// value and the pattern so the operator can fix the profile.
type DateFormatError struct {
	Field  string
	Value  string
	Format string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("error importing date for field %q: value %q does not match format %q",
		e.Field, e.Value, e.Format)
}

// BooleanFormatError reports a cell that cannot be coerced to a boolean.
// With the present/absent coercion rule currently in force it is not
// produced, but it remains part of the row-error family for callers that
// switch on error types.
type BooleanFormatError struct {
	Field string
	Value string
}

func (e *BooleanFormatError) Error() string {
	return fmt.Sprintf("error importing boolean for field %q: the format of %q is wrong", e.Field, e.Value)
}

// RequiredFieldError reports a draft whose target field is required by the
// record store but decoded as absent. The draft is skipped, not failed.
type RequiredFieldError struct {
	Field string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %q is missing", e.Field)
}

// ResolverError wraps a failure inside a relation resolver. It is caught
// by the decoder, logged, and downgraded to an absent value; it never
// propagates to the caller.
type ResolverError struct {
	Field    string
	Resolver string
	Err      error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("resolver %q failed for field %q: %v", e.Resolver, e.Field, e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }

// NotImplementedError reports a value kind the pipeline cannot handle in
// the requested context. It aborts the run.
type NotImplementedError struct {
	Field string
	Kind  ValueKind
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("field %q: kind %q is not implemented", e.Field, e.Kind)
}

// GroupOrderError reports a child-only row with no parent row before it
// in a grouped import. The row cannot be attached anywhere and is
// skipped.
type GroupOrderError struct {
	Line int
}

func (e *GroupOrderError) Error() string {
	return fmt.Sprintf("line %d: child row has no preceding parent row", e.Line)
}

// ErrRowExcluded marks a row matched by the profile's exclusion filter.
// It is a skip condition, not a failure.
var ErrRowExcluded = errors.New("row excluded by profile filter")

// IsRowError reports whether err is a per-row coercion failure that drops
// only the affected draft. Everything else escalates to the run.
func IsRowError(err error) bool {
	var (
		intFormat *IntegerFormatError
		intRange  *IntegerRangeError
		numFormat *NumericFormatError
		encoding  *EncodingError
		date      *DateFormatError
		boolean   *BooleanFormatError
	)
	return errors.As(err, &intFormat) ||
		errors.As(err, &intRange) ||
		errors.As(err, &numFormat) ||
		errors.As(err, &encoding) ||
		errors.As(err, &date) ||
		errors.As(err, &boolean)
}
