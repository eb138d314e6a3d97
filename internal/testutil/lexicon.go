// Package testutil holds helpers shared by the package tests: deterministic
// run IDs and clocks for the store, and quick ways to build words,
// category tables, and rulesets.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sce/internal/category"
	"github.com/roach88/sce/internal/compiler"
	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/segment"
)

// Word segments s with the default segmenter (one symbol per rune).
func Word(s string) ir.Word {
	return segment.Default().Split(s)
}

// Words segments each string.
func Words(ss ...string) []ir.Word {
	out := make([]ir.Word, len(ss))
	for i, s := range ss {
		out[i] = Word(s)
	}
	return out
}

// StopTable returns a category table with voiceless stops P, voiced stops
// B, and vowels V. P and B have equal length so they correlate.
func StopTable() *category.Table {
	tbl := category.NewTable()
	tbl.Define("P", Words("p", "t", "k"))
	tbl.Define("B", Words("b", "d", "g"))
	tbl.Define("V", Words("a", "e", "i", "o", "u"))
	return tbl
}

// MustCompile compiles src against StopTable and fails the test on error.
func MustCompile(t testing.TB, src string, opts ...compiler.Option) *ir.Ruleset {
	t.Helper()
	rs, err := compiler.Compile(src, StopTable(), opts...)
	require.NoError(t, err)
	return rs
}
