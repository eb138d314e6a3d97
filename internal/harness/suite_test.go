package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "intervocalic_voicing.yaml"),
		filepath.Join("testdata", "scenarios", "persistent_harmony.yaml"),
		filepath.Join("testdata", "scenarios", "polygraph_deletion.yaml"),
	}, files)
}

func TestFindScenarios_Filter(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "p*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarios("testdata/scenarios", "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarios_BadDir(t *testing.T) {
	_, err := FindScenarios("testdata/missing", "")
	require.Error(t, err)
	var de *ScenarioDirError
	require.ErrorAs(t, err, &de)
	assert.True(t, os.IsNotExist(de.Unwrap()))

	_, err = FindScenarios("testdata/scenarios/intervocalic_voicing.yaml", "")
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRunSuite(t *testing.T) {
	result, err := RunSuite("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_expect.yaml"), []byte(`
name: bad_expect
description: expectation does not hold
rules: a > b
words:
  - input: a
    expect: a
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unparsable.yaml"), []byte("name: [\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	result, err := RunSuite(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "scenario assertions failed")
	assert.Contains(t, result.Failures[1].Error, "failed to load scenario")
}
