package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.tsv")
	require.NoError(t, os.WriteFile(path, []byte("apple\tred\nbanana\tyellow\n\n"), 0o644))

	batch, err := readBatch(path, 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, batch.CommitTS)
	require.Len(t, batch.Mutations, 2)
	require.Equal(t, []byte("apple"), batch.Mutations[0].Key)
	require.Equal(t, []byte("red"), batch.Mutations[0].Value)
	require.Equal(t, []byte("banana"), batch.Mutations[1].Key)
	require.Equal(t, []byte("yellow"), batch.Mutations[1].Value)
}

func TestReadBatch_RejectsMissingTab(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.tsv")
	require.NoError(t, os.WriteFile(path, []byte("noseparator\n"), 0o644))

	_, err := readBatch(path, 1)
	require.Error(t, err)
}
