package storage

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble/sstable"
	"github.com/pkg/errors"
	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// SizePropertyName is the user-property key a SizePropertiesCollector
// stores its encoded index under; get_size_properties reads tables back
// out by this name.
const SizePropertyName = "kvnode.size-properties"

// SizeIndexDistance is how many bytes of payload accumulate between
// consecutive size-properties samples.
const SizeIndexDistance = 4 << 20

// SizePropertiesCollector implements pebble/sstable's table-property
// collector interface, sampling a coarse (key, bytes-since-last-sample)
// index as entries are added to a table.
type SizePropertiesCollector struct {
	props        kvpb.SizeProperties
	sinceSample  uint64
	lastKey      []byte
}

// NewSizePropertiesCollector returns a fresh collector for one table.
func NewSizePropertiesCollector() *SizePropertiesCollector {
	return &SizePropertiesCollector{}
}

// Add records one entry. Per pebble/sstable's TablePropertyCollector
// contract, key's UserKey field is already trailer-free, so it is used
// directly as the index's sampled key.
func (c *SizePropertiesCollector) Add(key sstable.InternalKey, value []byte) error {
	size := uint64(len(key.UserKey)) + 8 + uint64(len(value))
	c.props.TotalSize += size
	c.sinceSample += size
	c.lastKey = append(c.lastKey[:0], key.UserKey...)
	if c.sinceSample >= SizeIndexDistance {
		c.props.IndexHandles = append(c.props.IndexHandles, kvpb.IndexHandle{
			Key:  append([]byte(nil), c.lastKey...),
			Size: c.sinceSample,
		})
		c.sinceSample = 0
	}
	return nil
}

// Finish flushes any unsampled trailing bytes as a final index handle
// and encodes the collected properties into userProps.
func (c *SizePropertiesCollector) Finish(userProps map[string]string) error {
	if c.sinceSample > 0 && c.lastKey != nil {
		c.props.IndexHandles = append(c.props.IndexHandles, kvpb.IndexHandle{
			Key:  append([]byte(nil), c.lastKey...),
			Size: c.sinceSample,
		})
		c.sinceSample = 0
	}
	userProps[SizePropertyName] = string(EncodeSizeProperties(c.props))
	return nil
}

// Name implements pebble/sstable's TablePropertyCollector interface.
func (c *SizePropertiesCollector) Name() string {
	return "kvnode.size-properties-collector"
}

// EncodeSizeProperties serializes a SizeProperties into the blob stored
// under SizePropertyName: a varint total size, a varint handle count,
// then each handle as a varint key length, the key bytes, and a varint
// size.
func EncodeSizeProperties(p kvpb.SizeProperties) []byte {
	buf := make([]byte, 0, 16+len(p.IndexHandles)*16)
	var scratch [binary.MaxVarintLen64]byte

	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		buf = append(buf, scratch[:n]...)
	}

	putUvarint(p.TotalSize)
	putUvarint(uint64(len(p.IndexHandles)))
	for _, h := range p.IndexHandles {
		putUvarint(uint64(len(h.Key)))
		buf = append(buf, h.Key...)
		putUvarint(h.Size)
	}
	return buf
}

// DecodeSizeProperties parses a blob produced by EncodeSizeProperties.
func DecodeSizeProperties(b []byte) (kvpb.SizeProperties, error) {
	var p kvpb.SizeProperties
	total, n := binary.Uvarint(b)
	if n <= 0 {
		return p, errors.Wrap(kvpb.ErrCorruptProperties, "missing total size")
	}
	b = b[n:]
	p.TotalSize = total

	count, n := binary.Uvarint(b)
	if n <= 0 {
		return p, errors.Wrap(kvpb.ErrCorruptProperties, "missing handle count")
	}
	b = b[n:]

	p.IndexHandles = make([]kvpb.IndexHandle, 0, count)
	for i := uint64(0); i < count; i++ {
		keyLen, n := binary.Uvarint(b)
		if n <= 0 || uint64(len(b)-n) < keyLen {
			return p, errors.Wrap(kvpb.ErrCorruptProperties, "truncated handle key")
		}
		b = b[n:]
		key := append([]byte(nil), b[:keyLen]...)
		b = b[keyLen:]

		size, n := binary.Uvarint(b)
		if n <= 0 {
			return p, errors.Wrap(kvpb.ErrCorruptProperties, "truncated handle size")
		}
		b = b[n:]

		p.IndexHandles = append(p.IndexHandles, kvpb.IndexHandle{Key: key, Size: size})
	}
	return p, nil
}
