package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ReadRows parses an entire delimited payload using the profile's
// dialect: character encoding, separator and quote. Rows come back with
// variable widths; blank lines are dropped. Parse failures are fatal to
// the whole file, there is no way to tell which rows a broken quote
// swallowed.
func ReadRows(r io.Reader, p *Profile) ([][]string, error) {
	if p.CharacterEncoding == EncodingLatin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}

	sep := p.SeparatorRune()
	quote := quoteRune(p.Quote)

	if quote == '"' {
		cr := csv.NewReader(r)
		cr.Comma = sep
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse rows: %w", err)
		}
		return rows, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return splitRows(string(data), sep, quote)
}

func quoteRune(q string) rune {
	if q == "" {
		return '"'
	}
	return []rune(q)[0]
}

// splitRows is the fallback parser for profiles whose quote character is
// not the double quote, which the standard csv reader cannot express. It
// follows the same rules: a quote opening a field runs to the matching
// close, doubling the quote escapes it, and separators and newlines
// inside a quoted field are literal.
func splitRows(data string, sep, quote rune) ([][]string, error) {
	var (
		rows   [][]string
		row    []string
		field  strings.Builder
		quoted bool
		closed bool // just left a quoted section
		blank  = true
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
		closed = false
	}
	endRow := func() {
		if blank && len(row) == 0 && field.Len() == 0 {
			return
		}
		endField()
		rows = append(rows, row)
		row = nil
		blank = true
	}

	runes := []rune(data)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quoted:
			if c == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					field.WriteRune(quote)
					i++
					continue
				}
				quoted = false
				closed = true
				continue
			}
			field.WriteRune(c)
		case c == quote && field.Len() == 0 && !closed:
			quoted = true
			blank = false
		case c == sep:
			endField()
			blank = false
		case c == '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		case c == '\n':
			endRow()
		default:
			field.WriteRune(c)
			blank = false
		}
	}
	if quoted {
		return nil, fmt.Errorf("parse rows: unterminated %q quote", quote)
	}
	if !blank || len(row) > 0 || field.Len() > 0 {
		endRow()
	}
	return rows, nil
}
