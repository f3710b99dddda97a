package kvpb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite_RoundTrip_ShortValue(t *testing.T) {
	w := NewPutWrite(10, []byte("short"))
	require.True(t, w.HasShortVal)

	got, err := DecodeWrite(w.Encode())
	require.NoError(t, err)
	require.Equal(t, w.Type, got.Type)
	require.Equal(t, w.CommitTS, got.CommitTS)
	require.True(t, got.HasShortVal)
	require.Equal(t, w.ShortValue, got.ShortValue)
}

func TestWrite_RoundTrip_PointerOnly(t *testing.T) {
	long := make([]byte, ShortValueMax+1)
	w := NewPutWrite(10, long)
	require.False(t, w.HasShortVal)

	got, err := DecodeWrite(w.Encode())
	require.NoError(t, err)
	require.False(t, got.HasShortVal)
	require.Empty(t, got.ShortValue)
	require.Equal(t, w.CommitTS, got.CommitTS)
}

func TestDecodeWrite_Truncated(t *testing.T) {
	_, err := DecodeWrite([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCodec)
}

func TestDecodeWrite_InvalidFlag(t *testing.T) {
	rec := NewPutWrite(1, nil).Encode()
	rec[9] = 7
	_, err := DecodeWrite(rec)
	require.ErrorIs(t, err, ErrCodec)
}
