package storage

import (
	"io"

	"github.com/cockroachdb/pebble/sstable"
	"github.com/pkg/errors"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// writeCloseSyncer is an io.WriteCloser with a Sync method. Nothing in
// this package uses it, and MemFile does not implement it: MemFile
// implements the objstorage.Writable interface sstable.NewWriter takes.
type writeCloseSyncer interface {
	io.WriteCloser
	Sync() error
}

const (
	cfDefault = "default"
	cfWrite   = "write"
)

// cfWriter is a single column family's in-progress sorted-table file: a
// pebble/sstable.Writer over a MemFile, plus an entry counter and the
// smallest/largest keys seen so far.
type cfWriter struct {
	name     string
	f        *MemFile
	sst      *sstable.Writer
	count    int
	smallest []byte
	largest  []byte
}

func newCFWriter(name string, blockSize int) *cfWriter {
	f := &MemFile{}
	opts := sstable.WriterOptions{
		BlockSize:   blockSize,
		Compression: sstable.SnappyCompression,
		TablePropertyCollectors: []func() sstable.TablePropertyCollector{
			func() sstable.TablePropertyCollector { return NewSizePropertiesCollector() },
		},
	}
	return &cfWriter{name: name, f: f, sst: sstable.NewWriter(f, opts)}
}

func (w *cfWriter) put(key, value []byte) error {
	if err := w.sst.Set(key, value); err != nil {
		return errors.Wrapf(kvpb.ErrIO, "writing %s cf: %v", w.name, err)
	}
	if w.count == 0 {
		w.smallest = append([]byte(nil), key...)
	}
	w.largest = append([]byte(nil), key...)
	w.count++
	return nil
}

func (w *cfWriter) finish() (kvpb.SSTInfo, error) {
	if err := w.sst.Close(); err != nil {
		return kvpb.SSTInfo{}, errors.Wrapf(kvpb.ErrIO, "closing %s cf: %v", w.name, err)
	}
	startKey, err := kvpb.OriginKey(w.smallest)
	if err != nil {
		return kvpb.SSTInfo{}, err
	}
	endKey, err := kvpb.OriginKey(w.largest)
	if err != nil {
		return kvpb.SSTInfo{}, err
	}
	data := w.f.Data()
	if len(data) == 0 {
		return kvpb.SSTInfo{}, errors.Wrap(kvpb.ErrCorruptFile, "finished table has no bytes")
	}
	return kvpb.SSTInfo{
		Bytes:  data,
		Range:  kvpb.Range{Start: startKey, End: endKey},
		CFName: w.name,
	}, nil
}

// SSTBuilder streams sorted write-batch entries into two in-memory
// sorted-table writers, one per column family, matching the destination
// cluster's default/write split: short values are inlined into a write
// record, long values also get a pointer write record plus a raw entry
// in default. A builder is single-producer; callers must not share one
// across goroutines.
type SSTBuilder struct {
	blockSize int
	def       *cfWriter
	write     *cfWriter

	lastKey []byte
	started bool
}

// DefaultSSTBlockSize is the block size a builder uses when constructed
// with NewSSTBuilder, matching the Bulk Engine's 1 MiB sequential-scan
// tuning.
const DefaultSSTBlockSize = 1 << 20

// NewSSTBuilder returns a ready-to-use builder with the default block
// size. The underlying writers are allocated lazily on the first Put, so
// a builder that never receives an entry allocates nothing.
func NewSSTBuilder() *SSTBuilder {
	return NewSSTBuilderWithBlockSize(DefaultSSTBlockSize)
}

// NewSSTBuilderWithBlockSize returns a builder using blockSize for its
// underlying sorted-table writers.
func NewSSTBuilderWithBlockSize(blockSize int) *SSTBuilder {
	return &SSTBuilder{blockSize: blockSize}
}

// Put stages one MVCC entry. storedKey must be a key produced by
// kvpb.FromRaw (key-encoded user key plus inverted-ts suffix); keys must
// arrive in non-decreasing order across successive Put calls, which is
// the caller's responsibility.
func (b *SSTBuilder) Put(storedKey, value []byte) error {
	if b.started && bytesLess(storedKey, b.lastKey) {
		return errors.Wrapf(kvpb.ErrBadOrder, "key %x out of order after %x", storedKey, b.lastKey)
	}
	b.lastKey = append(b.lastKey[:0], storedKey...)
	b.started = true

	dataKey := kvpb.DataKey(storedKey)
	_, ts, err := kvpb.SplitOnTS(storedKey)
	if err != nil {
		return err
	}

	if kvpb.IsShortValue(value) {
		rec := kvpb.NewPutWrite(ts, value)
		if b.write == nil {
			b.write = newCFWriter(cfWrite, b.blockSize)
		}
		return b.write.put(dataKey, rec.Encode())
	}

	rec := kvpb.Write{Type: kvpb.WriteTypePut, CommitTS: ts}
	if b.write == nil {
		b.write = newCFWriter(cfWrite, b.blockSize)
	}
	if err := b.write.put(dataKey, rec.Encode()); err != nil {
		return err
	}
	if b.def == nil {
		b.def = newCFWriter(cfDefault, b.blockSize)
	}
	return b.def.put(dataKey, value)
}

// Finish closes every non-empty column family's writer and returns its
// SSTInfo, default first, then write, matching the order in which a
// caller should ingest files for a given key range.
func (b *SSTBuilder) Finish() ([]kvpb.SSTInfo, error) {
	var out []kvpb.SSTInfo
	if b.def != nil && b.def.count > 0 {
		info, err := b.def.finish()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if b.write != nil && b.write.count > 0 {
		info, err := b.write.finish()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
