package core

// convert.go provides the per-kind coercion functions applied to raw CSV
// cells. They handle the locale realities of operator-supplied files:
//
//   - Numbers written with configurable thousands/decimal separators
//     ("1.234,56" as well as "1,234.56")
//   - Dates in whatever strftime pattern the profile declares, possibly
//     spanning several cells ("%d/%m/%Y,%H:%M:%S")
//   - Latin-1 exports from legacy systems
//
// Each function returns a typed Value or one of the row errors from
// errors.go; callers decide whether the error drops the row or the run.

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/itchyny/timefmt-go"
	"github.com/shopspring/decimal"
)

// parseInteger coerces a cell to a base-10 integer within the record
// store's 32-bit range. Boundary values are accepted.
func parseInteger(field, raw string) (Value, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return Value{}, &IntegerFormatError{Field: field, Value: raw}
	}
	if n < IntegerMin || n > IntegerMax {
		return Value{}, &IntegerRangeError{Field: field, Value: raw}
	}
	return Value{Kind: KindInteger, Valid: true, Int: n}, nil
}

// parseNumeric normalizes the profile's separators and parses an
// arbitrary-precision decimal. The thousands token is stripped first (a
// no-op for "none"), then the decimal token is replaced with ".". When a
// precision is known the result is rounded to it.
func parseNumeric(field, raw string, thousands, decimalSep string, precision *int32) (Value, error) {
	s := strings.TrimSpace(raw)
	if thousands != ThousandsNone && thousands != "" {
		s = strings.ReplaceAll(s, thousands, "")
	}
	if decimalSep == "," {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, &NumericFormatError{Field: field, Value: raw}
	}
	if precision != nil {
		d = d.Round(*precision)
	}
	return Value{Kind: KindNumeric, Valid: true, Dec: d}, nil
}

// decodeText coerces one or more cells to a string value. Latin-1 input
// is transcoded at file-read time, so by the time cells reach this
// function they must be valid UTF-8; anything else means the profile's
// declared encoding does not match the file. Multiple source cells are
// joined with ", ".
func decodeText(kind ValueKind, field string, cells []string, encoding string) (Value, error) {
	for _, cell := range cells {
		if !utf8.ValidString(cell) {
			return Value{}, &EncodingError{Field: field, Encoding: encoding}
		}
	}
	return Value{Kind: kind, Valid: true, Text: strings.Join(cells, ", ")}, nil
}

// parseTemporal parses cells against a strftime pattern. Patterns may
// span several cells: "%d/%m/%Y,%H:%M:%S" matches a date cell and a time
// cell, so the cells are joined with "," before parsing, mirroring the
// comma-joined pattern.
func parseTemporal(kind ValueKind, field string, cells []string, pattern string) (Value, error) {
	raw := strings.Join(cells, ",")
	t, err := timefmt.Parse(raw, pattern)
	if err != nil {
		return Value{}, &DateFormatError{Field: field, Value: raw, Format: pattern}
	}
	switch kind {
	case KindDate:
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case KindTime:
		t = time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return Value{Kind: kind, Valid: true, Time: t}, nil
}

// FormatTemporal renders a temporal value back through its strftime
// pattern. Decoding and re-formatting with the same pattern reproduces
// the original cell.
func FormatTemporal(v Value, pattern string) string {
	if !v.Valid {
		return ""
	}
	return timefmt.Format(v.Time, pattern)
}

// coerceBoolean treats any syntactically present value as true; only a
// genuinely absent value is false. "0", "no" and "false" therefore all
// coerce to true; see the profile documentation before relying on this.
func coerceBoolean(present bool) Value {
	return Value{Kind: KindBoolean, Valid: true, Bool: present}
}

// mapSelection decodes cells as char and replaces the result with the
// first exact key match of the mapping. Unmatched keys pass through
// unchanged so partially mapped selections keep importing.
func mapSelection(field string, cells []string, encoding string, pairs []SelectionPair) (Value, error) {
	v, err := decodeText(KindSelection, field, cells, encoding)
	if err != nil {
		return Value{}, err
	}
	for _, pair := range pairs {
		if pair.Key == v.Text {
			v.Text = pair.Value
			break
		}
	}
	return v, nil
}
