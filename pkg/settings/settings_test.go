package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultBulkEngineConfig(t *testing.T) {
	cfg := DefaultBulkEngineConfig()
	require.EqualValues(t, 16<<20, cfg.WriteBufferSize)
	require.EqualValues(t, 1<<20, cfg.BlockSize)
	require.Greater(t, cfg.L0CompactionDisabledTrigger, 1<<20)
}

func TestDefaultLocalReaderConfig(t *testing.T) {
	cfg := DefaultLocalReaderConfig()
	require.Equal(t, 4096, cfg.TaskQueueCapacity)
	require.Equal(t, 15*time.Second, cfg.MetricsFlushInterval)
}
