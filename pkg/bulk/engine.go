// Package bulk implements the write-optimized staging store that
// absorbs large write batches during an import session and plans the
// contiguous key ranges its emitted SST files should be split along.
package bulk

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/sstable"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
	"gitee.com/kvnode/kvnode/pkg/settings"
	"gitee.com/kvnode/kvnode/pkg/storage"
	"gitee.com/kvnode/kvnode/pkg/util/humanizeutil"
	"gitee.com/kvnode/kvnode/pkg/util/log"
)

// Engine is an LSM instance opened for one import session. It is safe
// for concurrent Write calls (the underlying LSM serializes them); the
// SST Builders it hands out are not.
type Engine struct {
	id   uuid.UUID
	path string
	db   *pebble.DB
	cfg  settings.BulkEngineConfig
}

// Open opens (creating if necessary) an LSM instance at path tuned for
// one-shot bulk load: WAL disabled, auto-compaction disabled, L0
// slowdown/stop triggers pushed out, and a size-properties collector
// registered on every table so flushed files carry a sampled index.
func Open(ctx context.Context, path string, cfg settings.BulkEngineConfig) (*Engine, error) {
	// A zero-capacity block cache means every block NewIter's sequential
	// pass touches is evicted immediately, matching spec §4.2's "block
	// cache disabled" for the bulk engine's scanning iterator; this engine
	// never serves point reads that would benefit from a warm cache.
	opts := &pebble.Options{
		DisableWAL:                  true,
		Cache:                       pebble.NewCache(0),
		MemTableSize:                uint64(cfg.WriteBufferSize),
		MemTableStopWritesThreshold: cfg.MaxWriteBufferNumber,
		L0CompactionThreshold:       cfg.L0CompactionDisabledTrigger,
		L0StopWritesThreshold:       cfg.L0CompactionDisabledTrigger,
		DisableAutomaticCompactions: true,
		TablePropertyCollectors: []func() sstable.TablePropertyCollector{
			func() sstable.TablePropertyCollector { return storage.NewSizePropertiesCollector() },
		},
	}
	for i := range opts.Levels {
		opts.Levels[i].BlockSize = cfg.BlockSize
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(kvpb.ErrIO, "opening bulk engine at %s: %v", path, err)
	}

	id := uuid.New()
	log.Infof(ctx, "opened bulk engine %s at %s (write buffer %s)",
		id, path, humanizeutil.IBytes(cfg.WriteBufferSize))

	return &Engine{id: id, path: path, db: db, cfg: cfg}, nil
}

// UUID identifies this import session for logging/debugging correlation.
func (e *Engine) UUID() uuid.UUID { return e.id }

// Path returns the directory this engine was opened at.
func (e *Engine) Path() string { return e.path }

// Write stages every Put mutation in batch into a raw write-without-WAL
// batch and applies it, returning the batch's byte size. Mutations other
// than Put are a contract violation and return ErrUnsupportedOp.
func (e *Engine) Write(ctx context.Context, batch kvpb.WriteBatch) (int, error) {
	raw := e.db.NewBatch()
	defer raw.Close()

	for _, m := range batch.Mutations {
		if m.Op != kvpb.OpPut {
			return 0, errors.Wrapf(kvpb.ErrUnsupportedOp, "op %v", m.Op)
		}
		storedKey := kvpb.FromRaw(m.Key, batch.CommitTS)
		if err := raw.Set(storedKey, m.Value, nil); err != nil {
			return 0, errors.Wrap(kvpb.ErrIO, err.Error())
		}
	}

	size := len(raw.Repr())
	if err := e.db.Apply(raw, pebble.NoSync); err != nil {
		return 0, errors.Wrap(kvpb.ErrIO, err.Error())
	}
	log.VEventf(ctx, 3, "wrote %s batch of %d mutations at ts=%d", humanizeutil.IBytes(int64(size)), len(batch.Mutations), batch.CommitTS)
	return size, nil
}

// Get looks up the raw (MVCC-encoded) key directly, bypassing any
// column-family split. It exists for tests and for the import session's
// own read-your-writes checks; the local read path never calls it.
func (e *Engine) Get(key []byte) ([]byte, error) {
	v, closer, err := e.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(kvpb.ErrIO, err.Error())
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

// Flush forces the active memtable to an SST file so its size properties
// become visible to GetSizeProperties without waiting on the write
// buffer to fill naturally.
func (e *Engine) Flush() error {
	if err := e.db.Flush(); err != nil {
		return errors.Wrap(kvpb.ErrIO, err.Error())
	}
	return nil
}

// NewIter returns a sequential scanning iterator over the engine. The
// engine is opened with a zero-capacity block cache (see Open), so a
// scan never pollutes a cache. verifyChecksums is accepted for parity
// with spec §4.2's new_iter(verify_checksum) but has no corresponding
// pebble.IterOptions toggle: unlike RocksDB, pebble always verifies a
// block's checksum when decompressing it, so there is nothing to
// selectively disable here.
func (e *Engine) NewIter(verifyChecksums bool) (*pebble.Iterator, error) {
	it, err := e.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.Wrap(kvpb.ErrIO, err.Error())
	}
	return it, nil
}

// NewSSTWriter returns a fresh SST Builder over this engine's configured
// block size.
func (e *Engine) NewSSTWriter() *storage.SSTBuilder {
	return storage.NewSSTBuilderWithBlockSize(e.cfg.BlockSize)
}

// GetSizeProperties enumerates every table's user-collected size
// properties, decodes each, and merges them by summing TotalSize and
// concatenating IndexHandles in table-encounter order.
func (e *Engine) GetSizeProperties() (kvpb.SizeProperties, error) {
	var merged kvpb.SizeProperties

	levels, err := e.db.SSTables(pebble.WithProperties())
	if err != nil {
		return merged, errors.Wrap(kvpb.ErrIO, err.Error())
	}
	for _, level := range levels {
		for _, table := range level {
			blob, ok := table.Properties.UserProperties[storage.SizePropertyName]
			if !ok {
				continue
			}
			props, err := storage.DecodeSizeProperties([]byte(blob))
			if err != nil {
				return merged, errors.Wrapf(kvpb.ErrCorruptProperties, "table %d: %v", table.FileNum, err)
			}
			merged.Merge(props)
		}
	}
	return merged, nil
}

// Close releases the underlying LSM handle. Close is not safe to call
// concurrently with Write.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return errors.Wrap(kvpb.ErrIO, err.Error())
	}
	return nil
}
