package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Value is the typed result of coercing one column mapping against one
// row. It is a closed tagged variant over ValueKind: exactly one payload
// field is meaningful for a given kind, and Valid=false means the value is
// absent (empty source cell and no constant).
type Value struct {
	Kind  ValueKind
	Valid bool

	Text string          // char, text, selection
	Int  int64           // integer
	Dec  decimal.Decimal // numeric
	Bool bool            // boolean
	Time time.Time       // date, datetime, time, timestamp
	IDs  []int64         // relation-one (single element), relation-many
}

// Absent returns the canonical absent value for a kind.
func Absent(kind ValueKind) Value {
	return Value{Kind: kind}
}

// Any returns the payload as the store-facing representation: the native
// Go value for scalar kinds, an int64 for relation-one, an []int64 for
// relation-many, and nil when absent.
func (v Value) Any() any {
	if !v.Valid {
		return nil
	}
	switch v.Kind {
	case KindChar, KindText, KindSelection:
		return v.Text
	case KindInteger:
		return v.Int
	case KindNumeric:
		return v.Dec
	case KindBoolean:
		return v.Bool
	case KindDate, KindDatetime, KindTime, KindTimestamp:
		return v.Time
	case KindRelationOne:
		if len(v.IDs) == 0 {
			return nil
		}
		return v.IDs[0]
	case KindRelationMany:
		return v.IDs
	}
	return nil
}

// Equal reports whether two values carry the same payload. Used by the
// in-file duplicate scan of the flat strategy.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Valid != o.Valid {
		return false
	}
	if !v.Valid {
		return true
	}
	switch v.Kind {
	case KindChar, KindText, KindSelection:
		return v.Text == o.Text
	case KindInteger:
		return v.Int == o.Int
	case KindNumeric:
		return v.Dec.Equal(o.Dec)
	case KindBoolean:
		return v.Bool == o.Bool
	case KindDate, KindDatetime, KindTime, KindTimestamp:
		return v.Time.Equal(o.Time)
	case KindRelationOne, KindRelationMany:
		if len(v.IDs) != len(o.IDs) {
			return false
		}
		for i := range v.IDs {
			if v.IDs[i] != o.IDs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the payload for log messages. Absent values render as
// an empty string.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case KindChar, KindText, KindSelection:
		return v.Text
	case KindInteger:
		return formatInt(v.Int)
	case KindNumeric:
		return v.Dec.String()
	case KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindDatetime, KindTimestamp:
		return v.Time.Format("2006-01-02 15:04:05")
	case KindTime:
		return v.Time.Format("15:04:05")
	case KindRelationOne, KindRelationMany:
		return formatIDs(v.IDs)
	}
	return ""
}
