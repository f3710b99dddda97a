package kvpb

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// WriteType tags the kind of write-family record. Only WriteTypePut is
// ever produced by this repository; the others exist so the wire tag
// space matches the commit-record shape a real MVCC store uses.
// DecodeWrite does not check the tag.
type WriteType byte

const (
	WriteTypePut WriteType = iota + 1
	WriteTypeDelete
	WriteTypeLock
	WriteTypeRollback
)

// Write is a write-family commit record: a type tag, the commit
// timestamp it was written at, and either the value inlined (for short
// values) or nothing (the value lives in the default family instead, at
// the same encoded key).
type Write struct {
	Type        WriteType
	CommitTS    uint64
	ShortValue  []byte // nil when the value is stored out-of-line
	HasShortVal bool
}

// NewPutWrite builds the write-family record for a Put mutation,
// inlining value when it is short.
func NewPutWrite(ts uint64, value []byte) Write {
	if IsShortValue(value) {
		return Write{Type: WriteTypePut, CommitTS: ts, ShortValue: value, HasShortVal: true}
	}
	return Write{Type: WriteTypePut, CommitTS: ts}
}

// Encode serializes w into this repository's write-record wire format: a
// one-byte type tag, an 8-byte big-endian commit timestamp, a one-byte
// short-value presence flag, and — when present — a 4-byte big-endian
// length followed by the inline value bytes.
func (w Write) Encode() []byte {
	size := 1 + 8 + 1
	if w.HasShortVal {
		size += 4 + len(w.ShortValue)
	}
	out := make([]byte, size)
	out[0] = byte(w.Type)
	binary.BigEndian.PutUint64(out[1:9], w.CommitTS)
	if !w.HasShortVal {
		out[9] = 0
		return out
	}
	out[9] = 1
	binary.BigEndian.PutUint32(out[10:14], uint32(len(w.ShortValue)))
	copy(out[14:], w.ShortValue)
	return out
}

// DecodeWrite parses a record produced by Write.Encode.
func DecodeWrite(b []byte) (Write, error) {
	if len(b) < 10 {
		return Write{}, errors.Wrap(ErrCodec, "truncated write record")
	}
	w := Write{
		Type:     WriteType(b[0]),
		CommitTS: binary.BigEndian.Uint64(b[1:9]),
	}
	switch b[9] {
	case 0:
		return w, nil
	case 1:
		if len(b) < 14 {
			return Write{}, errors.Wrap(ErrCodec, "truncated short value length")
		}
		n := binary.BigEndian.Uint32(b[10:14])
		if uint32(len(b)-14) < n {
			return Write{}, errors.Wrap(ErrCodec, "truncated short value payload")
		}
		w.HasShortVal = true
		w.ShortValue = append([]byte(nil), b[14:14+n]...)
		return w, nil
	default:
		return Write{}, errors.Wrap(ErrCodec, "invalid short-value flag")
	}
}
