package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sce/internal/ir"
	"github.com/roach88/sce/internal/testutil"
)

func TestWriteRun_FillsHeader(t *testing.T) {
	s := createTestStore(t)

	run, err := s.WriteRun(context.Background(), Run{Project: "demo", RulesetHash: "rs-1"}, sampleWords())
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, 2, run.WordCount)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	assert.Equal(t, ir.IRVersion, run.IRVersion)
}

func TestWriteRun_KeepsExplicitID(t *testing.T) {
	s := createTestStore(t)

	run, err := s.WriteRun(context.Background(), Run{ID: "custom", RulesetHash: "rs-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", run.ID)
	assert.Equal(t, 0, run.WordCount)
}

func TestWriteRun_DuplicateIDRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, Run{ID: "dup", RulesetHash: "rs-1"}, sampleWords())
	require.NoError(t, err)

	_, err = s.WriteRun(ctx, Run{ID: "dup", RulesetHash: "rs-2"}, sampleWords())
	require.Error(t, err)

	var words int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM words").Scan(&words))
	assert.Equal(t, 2, words, "failed run must not leave words behind")

	run, err := s.ReadRun(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "rs-1", run.RulesetHash)
}

func TestWriteRun_SeqResumesAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(path, WithIDGenerator(testutil.NewFixedIDGenerator("a", "b")))
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, Run{RulesetHash: "rs"}, nil)
	require.NoError(t, err)
	_, err = s.WriteRun(ctx, Run{RulesetHash: "rs"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, WithIDGenerator(testutil.NewFixedIDGenerator("c")))
	require.NoError(t, err)
	defer s.Close()

	run, err := s.WriteRun(ctx, Run{RulesetHash: "rs"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), run.Seq)
}

func TestWriteRun_StoresSymbolsVerbatim(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// "e" + combining acute is not NFC; it must not be normalized.
	decomposed := ir.Word{"e\u0301", "<b>"}
	run, err := s.WriteRun(ctx, Run{RulesetHash: "rs"}, []WordRecord{{Input: decomposed, Output: decomposed}})
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT input FROM words WHERE run_id = ?", run.ID).Scan(&raw))
	assert.Equal(t, "[\"e\u0301\",\"<b>\"]", raw)

	words, err := s.ReadWords(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, decomposed, words[0].Input)
}
