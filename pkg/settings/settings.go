// Package settings holds the small, static Config structs that tune the
// Bulk Engine, the SST Builder's short-value threshold, and the Local
// Reader's channel capacity and metrics-flush cadence. It plays the role
// the teacher's dynamic cluster-settings registry plays for a handful of
// byte-size and duration knobs, without reconstructing that registry.
package settings

import "time"

// BulkEngineConfig tunes the LSM instance a Bulk Engine opens for a
// one-shot import, matching tune_dboptions_for_bulk_load: WAL and
// auto-compaction disabled, an oversized write buffer, large blocks, and
// compaction triggers pushed out to effectively never fire mid-ingest.
type BulkEngineConfig struct {
	// WriteBufferSize bounds the in-memory table before it is flushed to
	// an SST. It does not set the target SST file size.
	WriteBufferSize int64
	// BlockSize is the block-based table block size, large because bulk
	// ingest is read back sequentially, never point-queried.
	BlockSize int
	// MaxWriteBufferNumber bounds how many queued, not-yet-flushed
	// memtables may accumulate before a write stalls.
	MaxWriteBufferNumber int
	// L0CompactionDisabledTrigger, when set to a very large file count,
	// keeps L0 compaction from ever triggering during an import.
	L0CompactionDisabledTrigger int
}

// DefaultBulkEngineConfig mirrors the original's defaults: a 16 MiB write
// buffer, 1 MiB blocks, and compaction triggers pushed to effectively
// infinity.
func DefaultBulkEngineConfig() BulkEngineConfig {
	const mib = 1 << 20
	return BulkEngineConfig{
		WriteBufferSize:             16 * mib,
		BlockSize:                   mib,
		MaxWriteBufferNumber:        2,
		L0CompactionDisabledTrigger: 1 << 30,
	}
}

// ShortValueMaxBytes is the inline-value threshold described for the
// write/default column-family split: values at or under this size are
// stored inline in the write record, larger ones in the default CF.
const ShortValueMaxBytes = 64

// LocalReaderConfig tunes the Local Reader's worker queue and periodic
// metrics flush.
type LocalReaderConfig struct {
	// TaskQueueCapacity bounds the channel of pending Register/Update/
	// Destroy/Read tasks; Enqueue blocks while the queue is full.
	// ServerIsBusy responses come from a full forwarding Sender, not
	// from this queue.
	TaskQueueCapacity int
	// MetricsFlushInterval is how often local counters are added into
	// the global metrics, matching the original's 15 second cadence.
	MetricsFlushInterval time.Duration
}

// DefaultLocalReaderConfig matches the original's constants.
func DefaultLocalReaderConfig() LocalReaderConfig {
	return LocalReaderConfig{
		TaskQueueCapacity:    4096,
		MetricsFlushInterval: 15 * time.Second,
	}
}
