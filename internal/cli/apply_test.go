package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sce/internal/store"
)

func TestApply_Project(t *testing.T) {
	out, err := execute(NewApplyCommand(textOpts()), testdata("voicing.cue"))
	require.NoError(t, err)
	assert.Equal(t, "apata → abada\nlupe → lub\npate → pad\nkasa → kasa\n", out)
}

func TestApply_ArgumentsAndLexiconFile(t *testing.T) {
	out, err := execute(NewApplyCommand(textOpts()),
		testdata("voicing.yaml"), "--lexicon", testdata("words.txt"), "tike")
	require.NoError(t, err)
	assert.Equal(t,
		"apata → abada\nlupe → lub\napata → abada\nlupe → lub\npate → pad\nkasa → kasa\ntike → tig\n", out)
}

func TestApply_Trace(t *testing.T) {
	out, err := execute(NewApplyCommand(textOpts()), testdata("voicing.cue"), "--trace", "lupe")
	require.NoError(t, err)
	assert.Contains(t, out, "lupe → lub\n")
	assert.Contains(t, out, "  line 2: [P] > [B] / [V]_[V]: lupe → lube\n")
	assert.Contains(t, out, "  line 3: - e / _#: lube → lub\n")
}

func TestApply_JSON(t *testing.T) {
	out, err := execute(NewApplyCommand(jsonOpts()), testdata("rules.sc"), "--trace", "apata", "xyz")
	require.NoError(t, err)

	var result ApplyResult
	decodeData(t, out, &result)
	assert.Equal(t, "rules", result.Project)
	assert.NotEmpty(t, result.RulesetHash)
	require.Len(t, result.Words, 2)
	assert.Equal(t, "apata", result.Words[0].Input)
	assert.Equal(t, "apata", result.Words[0].Output, "a bare rules file defines no categories")
	assert.Equal(t, "xyz", result.Words[1].Output)
}

func TestApply_PersistentTruncation(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "grow.sc")
	require.NoError(t, os.WriteFile(rules, []byte("@persist a > aa\n"), 0644))

	out, err := execute(NewApplyCommand(textOpts()), rules, "--max-passes", "2", "a")
	require.NoError(t, err, "truncation is reported, not fatal")
	assert.Contains(t, out, "a → aaaa\n")
	assert.Contains(t, out, "TRUNCATED")
	assert.Contains(t, out, "1 word(s) truncated, 0 cycle(s)")
}

func TestApply_DisableOptional(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "opt.sc")
	require.NoError(t, os.WriteFile(rules, []byte("@optional=loose a > b\nc > d\n"), 0644))

	out, err := execute(NewApplyCommand(textOpts()), rules, "ac")
	require.NoError(t, err)
	assert.Equal(t, "ac → bd\n", out)

	out, err = execute(NewApplyCommand(textOpts()), rules, "--disable", "loose", "ac")
	require.NoError(t, err)
	assert.Equal(t, "ac → ad\n", out)
}

func TestApply_CompileError(t *testing.T) {
	out, err := execute(NewApplyCommand(textOpts()), testdata("broken.sc"), "a")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestApply_RecordsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(NewApplyCommand(textOpts()), testdata("voicing.cue"), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded run ")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "voicing", run.Project)
	assert.Equal(t, 4, run.WordCount)
	assert.NotEmpty(t, run.RulesetHash)

	words, err := st.ReadWords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, words, 4)
	assert.Equal(t, "lub", words[1].Output.String())
	assert.Len(t, words[1].Changes, 2)
	assert.NotEmpty(t, words[1].TraceHash)
	assert.Empty(t, words[3].Changes)
}
