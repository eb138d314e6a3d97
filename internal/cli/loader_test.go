package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sce/internal/harness"
)

func TestLoadProject_CUE(t *testing.T) {
	p, err := LoadProject(testdata("voicing.cue"))
	require.NoError(t, err)

	assert.Equal(t, "voicing", p.Name)
	assert.Equal(t, []string{"th"}, p.Graphs)
	assert.Equal(t, harness.Categories{
		{Name: "P", Members: []string{"p", "t", "k"}},
		{Name: "B", Members: []string{"b", "d", "g"}},
		{Name: "V", Members: []string{"a", "e", "i", "o", "u"}},
	}, p.Categories)
	assert.Contains(t, p.Rules, "[P] > [B] / [V]_[V]")
	assert.Equal(t, "rules.sc", p.RulesName)
	assert.Equal(t, []string{"apata", "lupe", "pate", "kasa"}, p.Lexicon)
	assert.Equal(t, 10, p.MaxPasses)
	assert.Equal(t, "testdata", p.Dir)
}

func TestLoadProject_YAML(t *testing.T) {
	p, err := LoadProject(testdata("voicing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "voicing-yaml", p.Name)
	require.Len(t, p.Categories, 3)
	assert.Equal(t, "V", p.Categories[0].Name, "categories keep file order")
	assert.Equal(t, "B", p.Categories[2].Name)
	assert.Equal(t, []string{"apata", "lupe"}, p.Lexicon)
	assert.Equal(t, []string{"loose"}, p.DisabledOptional)
	assert.Equal(t, "voicing-yaml", p.RulesName)
}

func TestLoadProject_DefaultName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nameless.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: \"a > b\"\n"), 0644))

	p, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "nameless", p.Name)
}

func TestLoadProject_Errors(t *testing.T) {
	dir := t.TempDir()
	toml := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(toml, []byte("name = 'x'\n"), 0644))
	typo := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(typo, []byte("name: x\nrulez: a > b\n"), 0644))
	missingRules := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missingRules, []byte("rules_file: nowhere.sc\n"), 0644))
	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("max_passes: -1\n"), 0644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing file", filepath.Join(dir, "absent.cue"), ErrCodeNotFound},
		{"unsupported format", toml, ErrCodeLoadFailed},
		{"unknown yaml field", typo, ErrCodeLoadFailed},
		{"invalid cue", testdata("invalid.cue"), ErrCodeBuildFailed},
		{"unknown cue field", testdata("unknown.cue"), ErrCodeUnknownField},
		{"rules and rules_file", testdata("conflict.yaml"), ErrCodeInvalidProject},
		{"missing rules file", missingRules, ErrCodeNotFound},
		{"negative max passes", negative, ErrCodeInvalidProject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProject(tt.path)
			require.Error(t, err)
			assert.True(t, IsLoadError(err))

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadProject_UnknownCUEFieldPosition(t *testing.T) {
	_, err := LoadProject(testdata("unknown.cue"))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.True(t, le.Pos.IsValid())
	assert.Equal(t, 2, le.Pos.Line())
	assert.Contains(t, le.Error(), "unknown.cue:2:")
	assert.Contains(t, le.Message, `"rulez"`)
}

func TestReadLexicon(t *testing.T) {
	words, err := ReadLexicon(testdata("words.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"apata", "lupe", "pate", "kasa"}, words)

	_, err = ReadLexicon(testdata("absent.txt"))
	assert.Error(t, err)
}

func TestLoadInput_RulesFile(t *testing.T) {
	p, err := loadInput(testdata("rules.sc"))
	require.NoError(t, err)
	assert.Equal(t, "rules", p.Name)
	assert.Equal(t, testdata("rules.sc"), p.RulesName)
	assert.Empty(t, p.Lexicon)

	_, err = loadInput(testdata("absent.sc"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestProject_Compile(t *testing.T) {
	p, err := LoadProject(testdata("voicing.cue"))
	require.NoError(t, err)

	seg := p.Segmenter()
	rs, err := p.Compile(seg)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)
	assert.Empty(t, rs.Diagnostics())

	words := p.Words(seg)
	require.Len(t, words, 4)
	assert.Equal(t, "apata", words[0].String())

	th := seg.Split("athe")
	assert.Len(t, th, 3, "th is one symbol")
}

func TestProject_EngineOptions(t *testing.T) {
	p := &Project{}
	assert.Len(t, p.EngineOptions(nil), 1, "only the logger by default")

	p = &Project{MaxPasses: 5, Workers: 2, DisabledOptional: []string{"loose"}}
	assert.Len(t, p.EngineOptions(nil), 4)
}
