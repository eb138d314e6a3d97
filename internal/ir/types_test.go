package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWord_StringCloneEqual(t *testing.T) {
	w := Word{"t", "sh", "a"}
	assert.Equal(t, "tsha", w.String())

	c := w.Clone()
	assert.True(t, w.Equal(c))
	c[0] = "d"
	assert.False(t, w.Equal(c), "clone must not alias the original")
	assert.Equal(t, Symbol("t"), w[0])

	assert.NotNil(t, Word(nil).Clone())
}

func TestFlags_Compose(t *testing.T) {
	f := FlagPersistent | FlagOptional
	assert.True(t, f.Has(FlagPersistent))
	assert.True(t, f.Has(FlagOptional))
	assert.False(t, f.Has(FlagRightToLeft))
	assert.Equal(t, "persist|optional", f.String())
	assert.Equal(t, "", Flags(0).String())
}

func TestElementKind_MarshalsByName(t *testing.T) {
	data, err := json.Marshal(Element{Kind: ElemGap, Lazy: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"gap","lazy":true}`, string(data))
	assert.Equal(t, "kind(99)", ElementKind(99).String())
}

func TestRuleset_CategoryBounds(t *testing.T) {
	rs := &Ruleset{Categories: []Category{{Name: "V", Members: []Word{{"a"}}}}}

	cat, ok := rs.Category(0)
	require.True(t, ok)
	assert.Equal(t, 1, cat.Len())

	_, ok = rs.Category(NoCategory)
	assert.False(t, ok)
	_, ok = rs.Category(1)
	assert.False(t, ok)
}

func TestRulesetHash_Stable(t *testing.T) {
	build := func() *Ruleset {
		return &Ruleset{
			Rules: []Rule{{ID: 0, Line: 1, Source: "a > b", Branches: []Branch{{
				Target:      Pattern{{Kind: ElemSymbol, Symbol: "a"}},
				Replacement: Pattern{{Kind: ElemSymbol, Symbol: "b"}},
			}}}},
			Names: map[string]int{"V": 0, "C": 1},
		}
	}
	assert.Equal(t, MustRulesetHash(build()), MustRulesetHash(build()))
	assert.Len(t, MustRulesetHash(build()), 64)

	other := build()
	other.Rules[0].Source = "a > c"
	assert.NotEqual(t, MustRulesetHash(build()), MustRulesetHash(other))
}
