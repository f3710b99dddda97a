// Package kvpb defines the on-disk key and record encodings shared by the
// Bulk Engine and the SST Builder: the MVCC key codec (user key plus
// commit timestamp), the write-record codec, and the value types that
// flow between them (WriteBatch, SSTInfo, SizeProperties, RangeInfo).
package kvpb

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"gitee.com/kvnode/kvnode/pkg/settings"
)

// DataPrefix is prepended to every user-visible key before it is written
// to the engine, distinguishing user data from system/raft metadata
// sharing the same keyspace.
const DataPrefix byte = 0x01

// ShortValueMax is the inline-value threshold: values at or under this
// size are stored inline in a write-family record instead of split into
// a separate default-family entry.
const ShortValueMax = settings.ShortValueMaxBytes

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

// EncodeKey applies an order-preserving group encoding to userKey: the
// key is split into 8-byte groups, each followed by a marker byte, so
// that the result can later be split unambiguously from a trailing
// timestamp suffix of the same width. Lexicographic order on the result
// equals lexicographic order on userKey.
func EncodeKey(userKey []byte) []byte {
	n := len(userKey)
	out := make([]byte, 0, (n/encGroupSize+1)*(encGroupSize+1))
	for idx := 0; idx <= n; idx += encGroupSize {
		remain := n - idx
		var padCount int
		if remain >= encGroupSize {
			out = append(out, userKey[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			out = append(out, userKey[idx:]...)
			for i := 0; i < padCount; i++ {
				out = append(out, encPad)
			}
		}
		out = append(out, encMarker-byte(padCount))
	}
	return out
}

// DecodeKey reverses EncodeKey, returning the original user key and the
// number of bytes of encoded consumed from the front of encoded.
func DecodeKey(encoded []byte) (userKey []byte, n int, err error) {
	for {
		if len(encoded) < n+encGroupSize+1 {
			return nil, 0, errors.Wrap(ErrCodec, "truncated key group")
		}
		group := encoded[n : n+encGroupSize]
		marker := encoded[n+encGroupSize]
		n += encGroupSize + 1
		padCount := int(encMarker - marker)
		if padCount < 0 || padCount > encGroupSize {
			return nil, 0, errors.Wrap(ErrCodec, "invalid group marker")
		}
		if padCount == 0 {
			userKey = append(userKey, group...)
			continue
		}
		userKey = append(userKey, group[:encGroupSize-padCount]...)
		if userKey == nil {
			userKey = []byte{}
		}
		return userKey, n, nil
	}
}

// AppendTS appends the 8-byte big-endian bit-inverted commit timestamp
// suffix to an already key-encoded byte string, so that for equal user
// keys, newer versions sort before older ones.
func AppendTS(encoded []byte, ts uint64) []byte {
	stored := make([]byte, len(encoded)+8)
	copy(stored, encoded)
	binary.BigEndian.PutUint64(stored[len(encoded):], ^ts)
	return stored
}

// SplitOnTS recovers the key-encoded prefix and the commit timestamp
// from a stored key produced by AppendTS.
func SplitOnTS(stored []byte) (encoded []byte, ts uint64, err error) {
	if len(stored) < 8 {
		return nil, 0, errors.Wrap(ErrCodec, "stored key too short for ts suffix")
	}
	split := len(stored) - 8
	ts = ^binary.BigEndian.Uint64(stored[split:])
	return stored[:split], ts, nil
}

// FromRaw encodes a user key and appends the given commit timestamp in a
// single step, the common case when staging a mutation into the engine.
func FromRaw(userKey []byte, ts uint64) []byte {
	return AppendTS(EncodeKey(userKey), ts)
}

// DataKey prepends the data-region prefix to an already-encoded key.
func DataKey(encoded []byte) []byte {
	out := make([]byte, 0, len(encoded)+1)
	out = append(out, DataPrefix)
	return append(out, encoded...)
}

// OriginKey strips the data-region prefix added by DataKey.
func OriginKey(prefixed []byte) ([]byte, error) {
	if len(prefixed) == 0 || prefixed[0] != DataPrefix {
		return nil, errors.Wrap(ErrCodec, "missing data prefix")
	}
	return prefixed[1:], nil
}

// IsShortValue reports whether v is small enough to be inlined in a
// write-family record rather than split into a default-family entry.
func IsShortValue(v []byte) bool {
	return len(v) <= ShortValueMax
}
