// Package category holds named, ordered symbol collections.
//
// Categories live in an append-only arena addressed by index. Redefining or
// editing a name appends a new entry and rebinds the name; existing entries
// never change, so rules compiled against an older definition keep seeing
// it. The compiler snapshots the arena into the ruleset.
package category

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/sce/internal/ir"
)

// UndefinedCategoryError is returned when a name has no definition.
// It is a non-fatal condition at the ruleset level.
type UndefinedCategoryError struct {
	Name string
}

func (e *UndefinedCategoryError) Error() string {
	return fmt.Sprintf("undefined category %q", e.Name)
}

// IsUndefinedCategory reports whether err is an UndefinedCategoryError.
func IsUndefinedCategory(err error) bool {
	var ue *UndefinedCategoryError
	return errors.As(err, &ue)
}

// Table is a mutable builder over the category arena.
// A Table is not safe for concurrent mutation.
type Table struct {
	arena []ir.Category
	names map[string]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{names: make(map[string]int)}
}

// Define binds name to members. Redefinition replaces the binding
// (last declaration wins). Returns the arena index of the new entry.
func (t *Table) Define(name string, members []ir.Word) int {
	idx := t.push(name, members)
	t.names[name] = idx
	return idx
}

// Add appends members to an existing category (the `+=` edit).
func (t *Table) Add(name string, members []ir.Word) (int, error) {
	current, err := t.Resolve(name)
	if err != nil {
		return ir.NoCategory, err
	}
	return t.Define(name, append(slices.Clone(current), members...)), nil
}

// Remove drops every member equal to one of members (the `-=` edit).
func (t *Table) Remove(name string, members []ir.Word) (int, error) {
	current, err := t.Resolve(name)
	if err != nil {
		return ir.NoCategory, err
	}
	kept := make([]ir.Word, 0, len(current))
	for _, m := range current {
		if !containsWord(members, m) {
			kept = append(kept, m)
		}
	}
	return t.Define(name, kept), nil
}

// Anonymous registers an inline category that is not bound to any name.
func (t *Table) Anonymous(members []ir.Word) int {
	return t.push("", members)
}

// Resolve returns the members currently bound to name.
func (t *Table) Resolve(name string) ([]ir.Word, error) {
	idx, ok := t.names[name]
	if !ok {
		return nil, &UndefinedCategoryError{Name: name}
	}
	return t.arena[idx].Members, nil
}

// Lookup returns the arena index currently bound to name.
func (t *Table) Lookup(name string) (int, bool) {
	idx, ok := t.names[name]
	return idx, ok
}

// Get returns the arena entry at idx.
func (t *Table) Get(idx int) (ir.Category, bool) {
	if idx < 0 || idx >= len(t.arena) {
		return ir.Category{}, false
	}
	return t.arena[idx], true
}

// Len returns the number of arena entries, including superseded ones.
func (t *Table) Len() int {
	return len(t.arena)
}

// Clone returns an independent copy. The compiler clones the caller's
// table so that definitions inside rule source never leak back out.
func (t *Table) Clone() *Table {
	return &Table{
		arena: slices.Clone(t.arena),
		names: maps.Clone(t.names),
	}
}

// Arena returns a copy of the arena for embedding in a ruleset.
func (t *Table) Arena() []ir.Category {
	return slices.Clone(t.arena)
}

// Names returns a copy of the current name bindings.
func (t *Table) Names() map[string]int {
	return maps.Clone(t.names)
}

func (t *Table) push(name string, members []ir.Word) int {
	copied := make([]ir.Word, len(members))
	for i, m := range members {
		copied[i] = m.Clone()
	}
	t.arena = append(t.arena, ir.Category{Name: name, Members: copied})
	return len(t.arena) - 1
}

func containsWord(list []ir.Word, w ir.Word) bool {
	for _, m := range list {
		if m.Equal(w) {
			return true
		}
	}
	return false
}
