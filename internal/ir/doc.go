// Package ir provides the compiled intermediate representation for sce.
//
// This package contains type definitions only, plus the canonical JSON
// encoding used for fingerprints. All other internal packages import ir;
// ir imports nothing internal.
//
// Key design constraints:
//   - Rulesets and category arenas are immutable once compiled
//   - Categories are addressed by stable arena index, never by pointer
//   - Word boundaries are implicit and never stored as symbols
//   - All JSON tags use snake_case
package ir
