package log

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestVEventf_GatedByVerbosity(t *testing.T) {
	orig := Logger
	origV := Verbosity
	defer func() { Logger = orig; Verbosity = origV }()

	var buf bytes.Buffer
	Logger = zerolog.New(&buf).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	Verbosity = 0
	VEventf(context.Background(), 1, "should not appear")
	require.Zero(t, buf.Len())

	Verbosity = 2
	VEventf(context.Background(), 1, "should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestWithFields_AttachesContextFields(t *testing.T) {
	orig := Logger
	defer func() { Logger = orig }()

	var buf bytes.Buffer
	Logger = zerolog.New(&buf).With().Timestamp().Logger()

	ctx := WithFields(context.Background(), map[string]interface{}{"region_id": uint64(7)})
	Infof(ctx, "hello")
	require.Contains(t, buf.String(), "region_id")
}

func TestInit_JSONOutput(t *testing.T) {
	orig := Logger
	origV := Verbosity
	defer func() { Logger = orig; Verbosity = origV }()

	Init(Config{Level: zerolog.InfoLevel, JSONOutput: true, Verbosity: 1, Output: os.Stderr})
	require.Equal(t, 1, Verbosity)
}
