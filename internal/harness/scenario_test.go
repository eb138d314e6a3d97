package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/intervocalic_voicing.yaml")
	require.NoError(t, err)

	assert.Equal(t, "intervocalic_voicing", s.Name)
	assert.Equal(t, "[P] > [B] / [V]_[V]\n", s.Rules)
	require.Len(t, s.Words, 2)
	assert.Equal(t, "apata", s.Words[0].Input)
	require.NotNil(t, s.Words[0].Expect)
	assert.Equal(t, "abada", *s.Words[0].Expect)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_CategoriesKeepOrder(t *testing.T) {
	path := writeScenario(t, `
name: ordered
description: categories in file order
categories:
  V: [a, e]
  C: [p, t]
  A: [ai]
words:
  - input: a
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	require.Len(t, s.Categories, 3)
	assert.Equal(t, CategoryDef{Name: "V", Members: []string{"a", "e"}}, s.Categories[0])
	assert.Equal(t, "C", s.Categories[1].Name)
	assert.Equal(t, []string{"ai"}, s.Categories[2].Members)
}

func TestLoadScenario_ExpectEmptyString(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: vanish
description: empty expect is an expectation
rules: "- a"
words:
  - input: a
    expect: ""
  - input: b
`))
	require.NoError(t, err)
	require.NotNil(t, s.Words[0].Expect)
	assert.Equal(t, "", *s.Words[0].Expect)
	assert.Nil(t, s.Words[1].Expect)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nwords: [{input: a}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nwords: [{input: a}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing words",
			content: "name: n\ndescription: d\nrules: a > b\n",
			wantErr: "words list is required",
		},
		{
			name:    "empty input",
			content: "name: n\ndescription: d\nwords: [{expect: b}]\n",
			wantErr: "words[0]: input is required",
		},
		{
			name:    "negative max passes",
			content: "name: n\ndescription: d\nwords: [{input: a}]\nmax_passes: -1\n",
			wantErr: "max_passes must be non-negative",
		},
		{
			name:    "unknown field",
			content: "name: n\ndescription: d\nwords: [{input: a}]\nrule: a > b\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "categories not a mapping",
			content: "name: n\ndescription: d\nwords: [{input: a}]\ncategories: [a, b]\n",
			wantErr: "categories must be a mapping",
		},
		{
			name:    "duplicate category",
			content: "name: n\ndescription: d\nwords: [{input: a}]\ncategories:\n  V: [a]\n  V: [e]\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "malformed yaml",
			content: "name: [unclosed\n",
			wantErr: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	rule := 0
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"missing type", Assertion{}, "type is required"},
		{"unknown type", Assertion{Type: "trace_magic"}, "unknown assertion type"},
		{"contains needs word", Assertion{Type: AssertTraceContains, Rule: &rule}, "word is required"},
		{"contains needs rule", Assertion{Type: AssertTraceContains, Word: "a"}, "rule is required"},
		{"order needs rules", Assertion{Type: AssertTraceOrder, Word: "a"}, "rules list is required"},
		{"count needs rule", Assertion{Type: AssertTraceCount}, "rule is required"},
		{"count non-negative", Assertion{Type: AssertTraceCount, Rule: &rule, Count: -1}, "count must be non-negative"},
		{"diagnostic needs code", Assertion{Type: AssertDiagnostic, Word: "a"}, "word and code are required"},
		{"final state needs table", Assertion{Type: AssertFinalState}, "table is required"},
		{"final state needs expect", Assertion{Type: AssertFinalState, Table: "words"}, "expect is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	require.NoError(t, validateAssertion(0, &Assertion{Type: AssertTraceContains, Word: "a", Rule: &rule}))
}
