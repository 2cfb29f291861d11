package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabewaldrop/csvdb/internal/dberror"
)

func TestSequencerIssuesIncreasingKeys(t *testing.T) {
	dir := t.TempDir()
	seq, err := CreateSequencer(dir, "users")
	require.NoError(t, err)

	var last int64
	for i := 0; i < 10; i++ {
		key, err := seq.NextKey()
		require.NoError(t, err)
		assert.Greater(t, key, last)
		last = key
	}
	assert.Equal(t, int64(10), last)

	next, err := seq.Peek()
	require.NoError(t, err)
	assert.Equal(t, int64(11), next)
}

func TestSequencerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	seq, err := CreateSequencer(dir, "users")
	require.NoError(t, err)
	_, err = seq.NextKey()
	require.NoError(t, err)

	reopened, err := OpenSequencer(dir, "users")
	require.NoError(t, err)
	key, err := reopened.NextKey()
	require.NoError(t, err)
	assert.Equal(t, int64(2), key)

	data, err := os.ReadFile(filepath.Join(dir, "users_pk_sequence.txt"))
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(data))
}

func TestSequencerObserve(t *testing.T) {
	seq, err := CreateSequencer(t.TempDir(), "users")
	require.NoError(t, err)

	require.NoError(t, seq.Observe(41))
	key, err := seq.NextKey()
	require.NoError(t, err)
	assert.Equal(t, int64(42), key)

	// Keys already behind the sequence do not move it.
	require.NoError(t, seq.Observe(5))
	next, err := seq.Peek()
	require.NoError(t, err)
	assert.Equal(t, int64(43), next)

	err = seq.Observe(0)
	assert.True(t, errors.Is(err, dberror.ErrParse))
}

func TestSequencerReadsLegacyFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SequenceFileName("users")), []byte("Primary Key: 8"), 0o644))

	seq, err := OpenSequencer(dir, "users")
	require.NoError(t, err)
	key, err := seq.NextKey()
	require.NoError(t, err)
	assert.Equal(t, int64(8), key)
}

func TestSequencerCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SequenceFileName("users")), []byte("banana"), 0o644))

	_, err := OpenSequencer(dir, "users")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dberror.ErrStorage))

	_, err = OpenSequencer(t.TempDir(), "users")
	assert.True(t, errors.Is(err, dberror.ErrStorage))
}
