package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns predictable run IDs for tests.
//
// IDs are taken from the given list in order; once the list is exhausted it
// falls back to "<prefix>-<n>" so tests that do not care about exact IDs
// need not list them.
//
// Implements store.IDGenerator.
//
// Thread-safety: FixedIDGenerator is safe for concurrent use via internal mutex.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	ids    []string
	n      int
}

// NewFixedIDGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedIDGenerator("run-a", "run-b")
//	gen.Generate() // "run-a"
//	gen.Generate() // "run-b"
//	gen.Generate() // "run-3"
func NewFixedIDGenerator(ids ...string) *FixedIDGenerator {
	return &FixedIDGenerator{prefix: "run", ids: ids}
}

// Generate returns the next ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
