// Package segment turns raw text into symbol sequences and back.
//
// Segmentation sits outside the engine: the compiler and the lexicon
// loaders use it so that literal text in rules and words agree on what a
// symbol is. A symbol is the longest declared graph at the current position,
// or a single rune when no graph matches. The separator breaks a polygraph
// that should be read as two symbols ("t'h" is t + h when "th" is a graph).
package segment

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sce/internal/ir"
)

// DefaultSeparator is used when none is configured.
const DefaultSeparator = "'"

// Segmenter splits text into symbols using a list of polygraphs.
// It is immutable after New and safe for concurrent use.
type Segmenter struct {
	graphs    []string // longest first
	separator string
	normalize bool
}

// New creates a segmenter. Empty graphs are ignored. When normalize is set,
// input text is NFC normalized before splitting; the engine itself never
// normalizes symbols.
func New(graphs []string, separator string, normalize bool) *Segmenter {
	sorted := make([]string, 0, len(graphs))
	for _, g := range graphs {
		if g == "" {
			continue
		}
		if normalize {
			g = norm.NFC.String(g)
		}
		sorted = append(sorted, g)
	}
	slices.SortFunc(sorted, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	sorted = slices.Compact(sorted)

	return &Segmenter{graphs: sorted, separator: separator, normalize: normalize}
}

// Default returns a segmenter with no polygraphs and the default separator.
func Default() *Segmenter {
	return New(nil, DefaultSeparator, false)
}

// Graphs returns the configured polygraphs, longest first.
func (s *Segmenter) Graphs() []string {
	return slices.Clone(s.graphs)
}

// Separator returns the polygraph separator.
func (s *Segmenter) Separator() string {
	return s.separator
}

// Split segments text into a word. Leading and trailing whitespace is
// dropped; each interior whitespace run becomes a single " " symbol.
func (s *Segmenter) Split(text string) ir.Word {
	if s.normalize {
		text = norm.NFC.String(text)
	}
	text = strings.TrimSpace(text)

	word := ir.Word{}
	for len(text) > 0 {
		if s.separator != "" && strings.HasPrefix(text, s.separator) {
			text = text[len(s.separator):]
			continue
		}

		r, size := utf8.DecodeRuneInString(text)
		if unicode.IsSpace(r) {
			word = append(word, " ")
			text = strings.TrimLeftFunc(text, unicode.IsSpace)
			continue
		}

		if g := s.longestGraph(text); g != "" {
			word = append(word, ir.Symbol(g))
			text = text[len(g):]
			continue
		}

		word = append(word, ir.Symbol(text[:size]))
		text = text[size:]
	}
	return word
}

// Join renders a word as text, inserting the separator only where two
// adjacent symbols would otherwise be read back as a different polygraph.
func (s *Segmenter) Join(w ir.Word) string {
	var b strings.Builder
	for i, sym := range w {
		if i > 0 && s.separator != "" && s.needsSeparator(w[i-1], sym) {
			b.WriteString(s.separator)
		}
		b.WriteString(string(sym))
	}
	return b.String()
}

// needsSeparator reports whether re-reading prev+cur would not start with
// exactly prev.
func (s *Segmenter) needsSeparator(prev, cur ir.Symbol) bool {
	joined := string(prev) + string(cur)
	g := s.longestGraph(joined)
	if g == "" {
		_, size := utf8.DecodeRuneInString(joined)
		return size != len(prev)
	}
	return g != string(prev)
}

func (s *Segmenter) longestGraph(text string) string {
	for _, g := range s.graphs {
		if strings.HasPrefix(text, g) {
			return g
		}
	}
	return ""
}
