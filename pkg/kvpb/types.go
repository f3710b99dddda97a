package kvpb

import "bytes"

// Op identifies a mutation's operation. Only OpPut is accepted by the
// Bulk Engine; any other value is a contract violation.
type Op int

const (
	OpPut Op = iota
	OpDelete
)

// Mutation is a single entry in a WriteBatch.
type Mutation struct {
	Op    Op
	Key   []byte
	Value []byte
}

// WriteBatch is the unit of ingest: a set of mutations sharing one
// commit timestamp.
type WriteBatch struct {
	CommitTS  uint64
	Mutations []Mutation
}

// Range is a key span in user-visible key space. For an SSTInfo, Start
// and End are the smallest and largest keys the file holds, both
// inclusive.
type Range struct {
	Start []byte
	End   []byte
}

// SSTInfo describes one emitted sorted-table file.
type SSTInfo struct {
	Bytes  []byte
	Range  Range
	CFName string
}

// IndexHandle is one sampled entry in a SizeProperties index: the
// largest key seen by the time total_size reached this sample, and the
// number of bytes accumulated since the previous sample.
type IndexHandle struct {
	Key  []byte
	Size uint64
}

// SizeProperties is the per-table (or merged, cross-table) coarse size
// index used by the Range Planner. IndexHandles is append-only and, once
// merged across tables, is not required to be sorted by key: entries
// retain the per-table insertion order they were produced in.
type SizeProperties struct {
	TotalSize    uint64
	IndexHandles []IndexHandle
}

// Merge combines other into sp by summing TotalSize and concatenating
// IndexHandles, preserving encounter order.
func (sp *SizeProperties) Merge(other SizeProperties) {
	sp.TotalSize += other.TotalSize
	sp.IndexHandles = append(sp.IndexHandles, other.IndexHandles...)
}

// RangeInfo is one contiguous span produced by the Range Planner.
type RangeInfo struct {
	Start []byte
	End   []byte
	Size  uint64
}

// rangeMaxMarker is the package-private byte string RangeMax returns.
// Callers recognize the sentinels with IsRangeMin/IsRangeMax, which
// compare contents rather than byte-slice identity.
var rangeMaxMarker = []byte{0xFF}

// RangeMin is the empty-key sentinel: no user key sorts before it.
func RangeMin() []byte { return []byte{} }

// RangeMax is the one-byte key 0xFF. It sorts after every key whose
// first byte is below 0xFF; a longer key that begins with 0xFF (for
// example the encoding of a user key starting with 0xFF) sorts after it.
// IsRangeMax recognizes it by equality, not by order.
func RangeMax() []byte { return rangeMaxMarker }

// IsRangeMin reports whether k is the RangeMin sentinel.
func IsRangeMin(k []byte) bool { return len(k) == 0 }

// IsRangeMax reports whether k is the RangeMax sentinel.
func IsRangeMax(k []byte) bool { return bytes.Equal(k, rangeMaxMarker) }

// Epoch is a region's membership/split version pair, monotonically
// non-decreasing on a replica.
type Epoch struct {
	ConfVer uint64
	Version uint64
}

// Region is a contiguous key-range shard.
type Region struct {
	ID    uint64
	Peers []uint64
	Epoch Epoch
}

// StaleVs reports whether this epoch is stale relative to other: a
// region epoch is stale if either component has fallen behind.
func (e Epoch) StaleVs(other Epoch) bool {
	return e.ConfVer < other.ConfVer || e.Version < other.Version
}
