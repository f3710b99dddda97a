package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/require"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// persist writes info.Bytes to a file under dir and returns its path, the
// way a caller would exfiltrate an in-memory SSTInfo before ingesting it.
func persist(t *testing.T, dir string, info kvpb.SSTInfo) string {
	t.Helper()
	path := filepath.Join(dir, info.CFName+".sst")
	require.NoError(t, os.WriteFile(path, info.Bytes, 0o644))
	return path
}

// P3: a short value produces exactly one output file (write); a longer
// value produces two (default and write).
func TestSSTBuilder_ShortValuePlacement(t *testing.T) {
	b := NewSSTBuilder()
	short := []byte("short")
	require.NoError(t, b.Put(kvpb.FromRaw([]byte("k1"), 10), short))

	infos, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, cfWrite, infos[0].CFName)

	b2 := NewSSTBuilder()
	long := make([]byte, kvpb.ShortValueMax+1)
	require.NoError(t, b2.Put(kvpb.FromRaw([]byte("k1"), 10), long))

	infos2, err := b2.Finish()
	require.NoError(t, err)
	require.Len(t, infos2, 2)
	require.Equal(t, cfDefault, infos2[0].CFName)
	require.Equal(t, cfWrite, infos2[1].CFName)
}

func TestSSTBuilder_EmptyBuilderFinishesEmpty(t *testing.T) {
	b := NewSSTBuilder()
	infos, err := b.Finish()
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestSSTBuilder_OutOfOrderRejected(t *testing.T) {
	b := NewSSTBuilder()
	require.NoError(t, b.Put(kvpb.FromRaw([]byte("b"), 10), []byte("v")))
	err := b.Put(kvpb.FromRaw([]byte("a"), 10), []byte("v"))
	require.ErrorIs(t, err, kvpb.ErrBadOrder)
}

// P2: writing N keys via Put, persisting each emitted file, ingesting
// them into fresh engines (one per column family, since this repo's
// destination engine keeps each family in its own isolated keyspace),
// and reading them back through an MVCC reader yields exactly the
// original {(k, v)} set.
func TestSSTBuilder_RoundTrip(t *testing.T) {
	const commitTS = 10
	original := map[string][]byte{
		"apple":  []byte("short-value"),
		"banana": make([]byte, kvpb.ShortValueMax+50),
		"cherry": []byte("x"),
	}
	for i := range original["banana"] {
		original["banana"][i] = byte(i)
	}

	keys := []string{"apple", "banana", "cherry"}

	b := NewSSTBuilder()
	for _, k := range keys {
		require.NoError(t, b.Put(kvpb.FromRaw([]byte(k), commitTS), original[k]))
	}
	infos, err := b.Finish()
	require.NoError(t, err)
	require.Len(t, infos, 2) // banana is long, so both CFs are present

	dir := t.TempDir()
	dbs := map[string]*pebble.DB{}
	for _, info := range infos {
		path := persist(t, dir, info)
		dbDir := filepath.Join(dir, info.CFName+"-db")
		db, err := pebble.Open(dbDir, &pebble.Options{})
		require.NoError(t, err)
		require.NoError(t, db.Ingest([]string{path}))
		dbs[info.CFName] = db
	}
	defer func() {
		for _, db := range dbs {
			db.Close()
		}
	}()

	writeDB := dbs[cfWrite]
	require.NotNil(t, writeDB)

	got := map[string][]byte{}
	for _, k := range keys {
		dataKey := kvpb.DataKey(kvpb.FromRaw([]byte(k), commitTS))
		rec, closer, err := writeDB.Get(dataKey)
		require.NoError(t, err)
		w, err := kvpb.DecodeWrite(rec)
		require.NoError(t, err)
		closer.Close()

		require.Equal(t, kvpb.WriteTypePut, w.Type)
		require.Equal(t, uint64(commitTS), w.CommitTS)

		if w.HasShortVal {
			got[k] = append([]byte(nil), w.ShortValue...)
			continue
		}
		defDB := dbs[cfDefault]
		require.NotNil(t, defDB)
		v, c2, err := defDB.Get(dataKey)
		require.NoError(t, err)
		got[k] = append([]byte(nil), v...)
		c2.Close()
	}

	require.Len(t, got, len(original))
	for k, v := range original {
		require.Equal(t, v, got[k], "mismatch for key %q", k)
	}
}
