package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the coercion applied to a column mapping. The set
// is closed: the decoder dispatches on it and rejects anything else.
type ValueKind string

const (
	KindChar         ValueKind = "char"
	KindText         ValueKind = "text"
	KindInteger      ValueKind = "integer"
	KindNumeric      ValueKind = "numeric"
	KindBoolean      ValueKind = "boolean"
	KindDate         ValueKind = "date"
	KindDatetime     ValueKind = "datetime"
	KindTime         ValueKind = "time"
	KindTimestamp    ValueKind = "timestamp"
	KindSelection    ValueKind = "selection"
	KindRelationOne  ValueKind = "relation-one"
	KindRelationMany ValueKind = "relation-many"
)

// Integer bounds accepted by the record store's integer fields.
const (
	IntegerMin = -2147483648
	IntegerMax = 2147483647
)

// Temporal reports whether the kind is parsed with a strftime pattern.
func (k ValueKind) Temporal() bool {
	switch k {
	case KindDate, KindDatetime, KindTime, KindTimestamp:
		return true
	}
	return false
}

// Relation reports whether the kind resolves against another collection.
func (k ValueKind) Relation() bool {
	return k == KindRelationOne || k == KindRelationMany
}

// Known reports whether k is one of the closed set of kinds.
func (k ValueKind) Known() bool {
	switch k {
	case KindChar, KindText, KindInteger, KindNumeric, KindBoolean,
		KindDate, KindDatetime, KindTime, KindTimestamp,
		KindSelection, KindRelationOne, KindRelationMany:
		return true
	}
	return false
}

// SelectionPair maps one raw CSV key to the value stored for a selection
// field. Pairs are ordered: the first exact key match wins.
type SelectionPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ParseCells parses a comma-separated list of cell positions ("0,3,4")
// into indices. Every token must parse as a non-negative integer.
func ParseCells(field, s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	cells := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, &ProfileConfigError{
				Field:  field,
				Reason: fmt.Sprintf("cells must be non-negative integers separated by commas, got %q", part),
			}
		}
		cells = append(cells, n)
	}
	return cells, nil
}

// ParseSelectionLines parses the "key:value" lines of a selection mapping
// into ordered pairs. Blank lines are ignored; a line without a colon maps
// the whole line to itself.
func ParseSelectionLines(s string) []SelectionPair {
	var pairs []SelectionPair
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			pairs = append(pairs, SelectionPair{Key: line, Value: line})
			continue
		}
		pairs = append(pairs, SelectionPair{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
		})
	}
	return pairs
}
