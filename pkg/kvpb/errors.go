package kvpb

import "github.com/pkg/errors"

// Sentinel error kinds surfaced at the Bulk Engine / SST Builder
// boundary. Callers use errors.Is against these; propagation points wrap
// them with github.com/pkg/errors for a stack trace and context.
var (
	// ErrIO signals an underlying storage or in-memory-filesystem failure.
	ErrIO = errors.New("kvpb: io error")
	// ErrCodec signals an MVCC key or write-record decode failure.
	ErrCodec = errors.New("kvpb: codec error")
	// ErrCorruptProperties signals a malformed per-table size-properties blob.
	ErrCorruptProperties = errors.New("kvpb: corrupt size properties")
	// ErrCorruptFile signals an emitted SST that cannot be used. The SST
	// Builder returns it when a finished table holds no bytes; it does not
	// compare the writer's reported file size with the byte length.
	ErrCorruptFile = errors.New("kvpb: corrupt sst file")
	// ErrBadOrder signals an SST Builder received keys out of order.
	ErrBadOrder = errors.New("kvpb: keys supplied out of order")
	// ErrUnsupportedOp signals a WriteBatch mutation other than Put.
	ErrUnsupportedOp = errors.New("kvpb: unsupported mutation op")
)
