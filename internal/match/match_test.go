package match

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sce/internal/ir"
)

func w(s string) ir.Word {
	out := make(ir.Word, 0, len(s))
	for _, r := range s {
		out = append(out, ir.Symbol(string(r)))
	}
	return out
}

func lit(s string) ir.Pattern {
	p := ir.Pattern{}
	for _, r := range s {
		p = append(p, ir.Element{Kind: ir.ElemSymbol, Symbol: ir.Symbol(string(r))})
	}
	return p
}

func cat(idx int, tag string) ir.Element {
	return ir.Element{Kind: ir.ElemCategory, Category: &ir.CategoryRef{Index: idx, Tag: tag}}
}

var (
	gap      = ir.Element{Kind: ir.ElemGap}
	lazyGap  = ir.Element{Kind: ir.ElemGap, Lazy: true}
	wild     = ir.Element{Kind: ir.ElemWildcard}
	boundary = ir.Element{Kind: ir.ElemBoundary}
	ditto    = ir.Element{Kind: ir.ElemDitto}
)

func concat(parts ...any) ir.Pattern {
	var p ir.Pattern
	for _, part := range parts {
		switch v := part.(type) {
		case ir.Pattern:
			p = append(p, v...)
		case ir.Element:
			p = append(p, v)
		}
	}
	return p
}

const (
	catV = iota // a, e
	catW        // o, u
	catC        // ts, t
)

var arena = []ir.Category{
	{Name: "V", Members: []ir.Word{w("a"), w("e")}},
	{Name: "W", Members: []ir.Word{w("o"), w("u")}},
	{Name: "C", Members: []ir.Word{w("ts"), w("t")}},
}

func input(word string) Input {
	return Input{Word: w(word), Arena: arena}
}

func ends(rs []Result) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.Span.End
	}
	return out
}

func TestMatchLiteral(t *testing.T) {
	ctx := context.Background()

	m, ok, err := Match(ctx, input("abc"), lit("bc"), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.Span{Start: 1, End: 3}, m.Span)

	_, ok, err = Match(ctx, input("abc"), lit("bc"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Match(ctx, input("ab"), lit("abc"), 0)
	require.NoError(t, err)
	assert.False(t, ok, "pattern longer than word")
}

func TestMatchEmptyPattern(t *testing.T) {
	m, ok, err := Match(context.Background(), input("ab"), nil, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, m.Span.Len())
}

func TestMatchCategoryBindsMember(t *testing.T) {
	m, ok, err := Match(context.Background(), input("be"), concat(lit("b"), cat(catV, "#0")), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Binding{Category: catV, Member: 1}, m.Bindings["#0"])
}

func TestMatchBoundTagIsBackreference(t *testing.T) {
	in := input("ae")
	in.Bindings = Bindings{"1": {Category: catW, Member: 1}}

	_, ok, err := Match(context.Background(), in, ir.Pattern{cat(catV, "1")}, 0)
	require.NoError(t, err)
	assert.False(t, ok, "bound to member 1, 'a' is member 0")

	m, ok, err := Match(context.Background(), in, ir.Pattern{cat(catV, "1")}, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, m.Span.End)
}

func TestMatchRepeatedTagAgrees(t *testing.T) {
	p := ir.Pattern{cat(catV, "x"), cat(catV, "x")}

	_, ok, err := Match(context.Background(), input("ae"), p, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Match(context.Background(), input("ee"), p, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchMultiSymbolMembers(t *testing.T) {
	ctx := context.Background()
	p := ir.Pattern{cat(catC, "#0")}

	m, ok, err := Match(ctx, input("tsa"), p, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, m.Span.End)
	assert.Equal(t, 0, m.Bindings["#0"].Member)

	cands, err := Candidates(ctx, input("tsa"), p, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ends(cands))
	assert.Equal(t, 1, cands[1].Bindings["#0"].Member)
}

func TestMatchUndefinedCategoryNeverMatches(t *testing.T) {
	_, ok, err := Match(context.Background(), input("a"), ir.Pattern{cat(ir.NoCategory, "")}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchWildcardIsOneSymbol(t *testing.T) {
	m, ok, err := Match(context.Background(), input("abc"), concat(lit("a"), wild), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, m.Span.End)

	_, ok, err = Match(context.Background(), input("a"), concat(lit("a"), wild), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchGapLongest(t *testing.T) {
	m, ok, err := Match(context.Background(), input("axbxb"), concat(lit("a"), lazyGap, lit("b")), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, m.Span.End, "Match prefers the longest extent")
}

func TestCandidatesOrder(t *testing.T) {
	ctx := context.Background()

	greedy, err := Candidates(ctx, input("axbxb"), concat(lit("a"), gap, lit("b")), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3}, ends(greedy))

	lazy, err := Candidates(ctx, input("axbxb"), concat(lit("a"), lazyGap, lit("b")), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, ends(lazy))

	none, err := Candidates(ctx, input("xx"), lit("a"), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchOptional(t *testing.T) {
	ctx := context.Background()
	greedy := concat(lit("a"), ir.Element{Kind: ir.ElemOptional, Sub: lit("b")})
	lazy := concat(lit("a"), ir.Element{Kind: ir.ElemOptional, Sub: lit("b"), Lazy: true})

	cands, err := Candidates(ctx, input("ab"), greedy, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ends(cands))

	cands, err = Candidates(ctx, input("ab"), lazy, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ends(cands))

	m, ok, err := Match(ctx, input("ac"), greedy, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, m.Span.End)
}

func TestMatchRepeat(t *testing.T) {
	ctx := context.Background()
	exact := ir.Pattern{{Kind: ir.ElemRepeat, Sub: lit("a"), Min: 2, Max: 2}}
	open := ir.Pattern{{Kind: ir.ElemRepeat, Sub: lit("a"), Min: 1, Max: ir.Unbounded}}

	m, ok, err := Match(ctx, input("aaa"), exact, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, m.Span.End)

	_, ok, err = Match(ctx, input("ab"), exact, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	cands, err := Candidates(ctx, input("aaab"), open, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, ends(cands))
}

func TestMatchRepeatUntaggedCategoryVaries(t *testing.T) {
	ctx := context.Background()
	repeat := func(tag string) ir.Pattern {
		return ir.Pattern{{Kind: ir.ElemRepeat, Sub: ir.Pattern{cat(catC, tag)}, Min: 1, Max: ir.Unbounded}}
	}

	m, ok, err := Match(ctx, input("tsta"), repeat(""), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, m.Span.End)
	assert.Empty(t, m.Bindings)

	m, ok, err = Match(ctx, input("tsta"), repeat("x"), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, m.Span.End, "a tag makes later iterations repeat the first member")
}

func TestMatchRepeatOfZeroWidthTerminates(t *testing.T) {
	p := ir.Pattern{{
		Kind: ir.ElemRepeat,
		Sub:  ir.Pattern{{Kind: ir.ElemOptional, Sub: lit("a")}},
		Max:  ir.Unbounded,
	}}

	m, ok, err := Match(context.Background(), input("aab"), p, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, m.Span.End)
}

func TestMatchBoundary(t *testing.T) {
	ctx := context.Background()

	_, ok, err := Match(ctx, input("ab"), concat(boundary, lit("a")), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = Match(ctx, input("aa"), concat(boundary, lit("a")), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	m, ok, err := Match(ctx, input("ab"), concat(lit("b"), boundary), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.Span{Start: 1, End: 2}, m.Span, "boundaries are zero-width")
}

func TestMatchCategoryBoundaryMember(t *testing.T) {
	ctx := context.Background()
	p := ir.Pattern{{Kind: ir.ElemCategory, Category: &ir.CategoryRef{Index: catV, Boundary: true}}}

	tests := []struct {
		word  string
		start int
		want  []int
	}{
		{"ta", 0, []int{0}},
		{"ta", 1, []int{2}},
		{"ta", 2, []int{2}},
		{"at", 0, []int{1, 0}},
		{"ot", 1, []int{}},
	}
	for _, tt := range tests {
		cands, err := Candidates(ctx, input(tt.word), p, tt.start)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ends(cands), "%s at %d", tt.word, tt.start)
	}
}

func TestMatchDitto(t *testing.T) {
	ctx := context.Background()
	p := concat(wild, ditto)

	_, ok, err := Match(ctx, input("aab"), p, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = Match(ctx, input("ab"), p, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContextAnchored(t *testing.T) {
	ctx := context.Background()
	in := input("abc")
	in.Target = ir.Span{Start: 1, End: 2}

	tests := []struct {
		name string
		c    ir.Context
		want bool
	}{
		{"both sides", ir.Context{Left: lit("a"), Right: lit("c")}, true},
		{"empty sides", ir.Context{}, true},
		{"left boundary", ir.Context{Left: concat(boundary, lit("a"))}, true},
		{"left mismatch", ir.Context{Left: lit("x")}, false},
		{"right boundary fails", ir.Context{Right: ir.Pattern{boundary}}, false},
		{"right then boundary", ir.Context{Right: concat(lit("c"), boundary)}, true},
		{"left gap to start", ir.Context{Left: concat(boundary, gap)}, true},
		{"left too far", ir.Context{Left: lit("ab")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := ContextHolds(ctx, in, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestContextBoundarySides(t *testing.T) {
	ctx := context.Background()
	word := input("abc")

	tests := []struct {
		name   string
		target ir.Span
		c      ir.Context
		want   bool
	}{
		{"start before empty target at start", ir.Span{Start: 0, End: 0}, ir.Context{Left: ir.Pattern{boundary}}, true},
		{"start before empty target at end", ir.Span{Start: 3, End: 3}, ir.Context{Left: ir.Pattern{boundary}}, false},
		{"end after empty target at end", ir.Span{Start: 3, End: 3}, ir.Context{Right: ir.Pattern{boundary}}, true},
		{"end after empty target at start", ir.Span{Start: 0, End: 0}, ir.Context{Right: ir.Pattern{boundary}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := word
			in.Target = tt.target
			_, ok, err := ContextHolds(ctx, in, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestContextFloating(t *testing.T) {
	ctx := context.Background()
	in := input("abc")
	in.Target = ir.Span{Start: 0, End: 1}

	_, ok, err := ContextHolds(ctx, in, ir.Context{Left: lit("bc"), Floating: true})
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = ContextHolds(ctx, in, ir.Context{Left: lit("x"), Floating: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContextTargetCopy(t *testing.T) {
	ctx := context.Background()

	in := input("abab")
	in.Target = ir.Span{Start: 0, End: 2}
	_, ok, err := ContextHolds(ctx, in, ir.Context{Right: ir.Pattern{{Kind: ir.ElemTargetCopy}}})
	require.NoError(t, err)
	assert.True(t, ok)

	in = input("abba")
	in.Target = ir.Span{Start: 0, End: 2}
	_, ok, err = ContextHolds(ctx, in, ir.Context{Right: ir.Pattern{{Kind: ir.ElemTargetReversed}}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestContextCapturesBindings(t *testing.T) {
	in := input("eb")
	in.Target = ir.Span{Start: 1, End: 2}

	b, ok, err := ContextHolds(context.Background(), in, ir.Context{Left: ir.Pattern{cat(catV, "v")}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Binding{Category: catV, Member: 1}, b["v"])
}

func TestGroupHoldsThreadsBindings(t *testing.T) {
	group := ir.ContextGroup{
		{Left: ir.Pattern{cat(catV, "1")}},
		{Right: ir.Pattern{cat(catW, "1")}},
	}

	in := input("abo")
	in.Target = ir.Span{Start: 1, End: 2}
	_, ok, err := GroupHolds(context.Background(), in, group)
	require.NoError(t, err)
	assert.True(t, ok, "a and o are both member 0")

	in = input("abu")
	in.Target = ir.Span{Start: 1, End: 2}
	_, ok, err = GroupHolds(context.Background(), in, group)
	require.NoError(t, err)
	assert.False(t, ok)
}

func pathological() (Input, ir.Pattern) {
	in := Input{Word: w(strings.Repeat("a", 40)), Arena: arena}
	return in, concat(gap, gap, gap, lit("z"))
}

func TestMatchBudget(t *testing.T) {
	in, p := pathological()
	in.MaxSteps = 10

	_, _, err := Match(context.Background(), in, p, 0)
	require.Error(t, err)
	assert.True(t, IsBudgetExceeded(err))

	var be *BudgetError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 10, be.Steps)
}

func TestMatchCancelled(t *testing.T) {
	in, p := pathological()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Candidates(ctx, in, p, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBindingsClone(t *testing.T) {
	var nilBindings Bindings
	assert.NotNil(t, nilBindings.Clone())

	b := Bindings{"a": {Category: 1, Member: 2}}
	c := b.Clone()
	c["a"] = Binding{}
	assert.Equal(t, 2, b["a"].Member)
}
