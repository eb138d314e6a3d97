package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_Deterministic(t *testing.T) {
	db := recordRuns(t, "voicing.cue")

	out, err := execute(NewReplayCommand(textOpts()), testdata("voicing.cue"), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "replayed identically (4 words)")
	assert.NotContains(t, out, "warning")
}

func TestReplay_JSON(t *testing.T) {
	db := recordRuns(t, "voicing.cue")

	out, err := execute(NewReplayCommand(jsonOpts()), testdata("voicing.cue"), "--db", db)
	require.NoError(t, err)

	var result ReplayResult
	decodeData(t, out, &result)
	assert.True(t, result.Deterministic)
	assert.False(t, result.RulesetDrift)
	assert.Equal(t, 4, result.Words)
	assert.Empty(t, result.Mismatches)
}

func TestReplay_ChangedRules(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.sc")
	db := filepath.Join(dir, "runs.db")

	require.NoError(t, os.WriteFile(rules, []byte("a > b\n"), 0644))
	_, err := execute(NewApplyCommand(textOpts()), rules, "--db", db, "cat", "dog")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(rules, []byte("a > c\n"), 0644))
	out, err := execute(NewReplayCommand(jsonOpts()), rules, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	decodeData(t, out, &result)
	assert.False(t, result.Deterministic)
	assert.True(t, result.RulesetDrift)
	require.Len(t, result.Mismatches, 1)
	m := result.Mismatches[0]
	assert.Equal(t, 0, m.Index)
	assert.Equal(t, "cbt", m.Recorded)
	assert.Equal(t, "cct", m.Replayed)
	assert.True(t, m.OutputDiffers)
}

func TestReplay_UnknownRun(t *testing.T) {
	db := recordRuns(t, "voicing.cue")

	out, err := execute(NewReplayCommand(textOpts()), testdata("voicing.cue"), "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "run not found: missing")
}

func TestReplay_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "absent.db")

	_, err := execute(NewReplayCommand(textOpts()), testdata("voicing.cue"), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, statErr := os.Stat(db)
	assert.True(t, os.IsNotExist(statErr), "replay does not create the database")
}
