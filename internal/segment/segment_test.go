package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/sce/internal/ir"
)

func TestSplit_Monographs(t *testing.T) {
	s := Default()
	assert.Equal(t, ir.Word{"a", "b", "c"}, s.Split("abc"))
	assert.Equal(t, ir.Word{}, s.Split("   "))
}

func TestSplit_SeparatorIsDropped(t *testing.T) {
	s := Default()
	w := s.Split("a'bc")
	assert.Equal(t, ir.Word{"a", "b", "c"}, w)
	assert.Equal(t, "abc", s.Join(w))
}

func TestSplit_LongestPolygraphWins(t *testing.T) {
	s := New([]string{"sh", "ts", "tsh"}, "'", false)

	w := s.Split("atshu")
	assert.Equal(t, ir.Word{"a", "tsh", "u"}, w)
	assert.Equal(t, "atshu", s.Join(w))

	w = s.Split("ats'hu")
	assert.Equal(t, ir.Word{"a", "ts", "h", "u"}, w)
	assert.Equal(t, "ats'hu", s.Join(w))
}

func TestSplit_InteriorWhitespace(t *testing.T) {
	s := Default()
	assert.Equal(t, ir.Word{"a", " ", "b"}, s.Split(" a  b "))
}

func TestSplit_MultibyteRunes(t *testing.T) {
	s := Default()
	assert.Equal(t, ir.Word{"þ", "ā"}, s.Split("þā"))
}

func TestSplit_Normalize(t *testing.T) {
	decomposed := "e\u0301"

	raw := New(nil, "'", false)
	assert.Len(t, raw.Split(decomposed), 2, "without normalization the combining mark is its own symbol")

	nfc := New(nil, "'", true)
	assert.Equal(t, ir.Word{"\u00e9"}, nfc.Split(decomposed))
}

func TestJoin_SeparatesAmbiguousNeighbours(t *testing.T) {
	s := New([]string{"th"}, "'", false)
	assert.Equal(t, "t'h", s.Join(ir.Word{"t", "h"}))
	assert.Equal(t, "th", s.Join(ir.Word{"th"}))
	assert.Equal(t, "tah", s.Join(ir.Word{"t", "a", "h"}))
}

func TestNew_SortsAndDeduplicatesGraphs(t *testing.T) {
	s := New([]string{"sh", "", "tsh", "sh", "ch"}, "'", false)
	assert.Equal(t, []string{"tsh", "ch", "sh"}, s.Graphs())
	assert.Equal(t, "'", s.Separator())
}
