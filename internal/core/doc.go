// Package core implements the profile-driven CSV import pipeline.
//
// This package is the heart of the importer, containing all domain logic
// independent of any transport or storage backend. It can be used by web
// handlers, CLI tools, or tests without modification.
//
// # Pipeline
//
// An import run flows through four stages, configured by a [Profile]:
//
//  1. Decode: each raw CSV row is converted into typed values by the
//     [Decoder], applying per-column coercion rules ([ColumnMapping]).
//  2. Assemble: the [Assembler] groups decoded rows into record drafts,
//     either one draft per row or a parent draft with nested child
//     collections built from runs of consecutive rows.
//  3. Decide: the [Matcher] searches the record store with the draft's
//     domain (the equality predicate built from domain-flagged columns)
//     and decides CREATE, UPDATE or SKIP.
//  4. Persist: the [Runner] batches creates and updates, issues the two
//     store calls, and transitions the run to its terminal state.
//
// # Profiles
//
// A profile describes the CSV dialect (separator, quote, encoding, numeric
// separators, header) and an ordered list of column mappings:
//
//	p := &core.Profile{
//	    Name:       "contacts",
//	    Collection: "party",
//	    Columns: []core.ColumnMapping{
//	        {Field: "name", Cells: []int{0}, Kind: core.KindChar, AddToDomain: true},
//	        {Field: "credit", Cells: []int{3}, Kind: core.KindNumeric},
//	    },
//	}
//
// # Record store
//
// The generic record store is an external collaborator reached through the
// [RecordStore] interface: search by domain, batched create, batched save,
// and per-field metadata (required flag, numeric digits, relation target).
// Implementations live in internal/store.
//
// # Error handling
//
// Coercion failures (bad numeric format, out-of-range integer, unparseable
// date) are local to one row: the draft is dropped, a log entry is appended
// and the run continues. A row shorter than a referenced cell index signals
// a dialect mismatch and aborts the whole run, as does a persistence
// failure; both leave the run in a terminal, inspectable error state.
package core
