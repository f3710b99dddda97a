package humanizeutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIBytes(t *testing.T) {
	require.Equal(t, "4.0 MiB", IBytes(4<<20))
	require.Equal(t, "-4.0 MiB", IBytes(-(4 << 20)))
}

func TestParseBytes_RoundTrip(t *testing.T) {
	n, err := ParseBytes("16MiB")
	require.NoError(t, err)
	require.EqualValues(t, 16<<20, n)
}

func TestParseBytes_Invalid(t *testing.T) {
	_, err := ParseBytes("not-a-size")
	require.Error(t, err)
}
