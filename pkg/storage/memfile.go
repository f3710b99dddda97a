// Package storage builds the in-memory sorted-table files the Bulk
// Engine emits: a two-column-family SST Builder and the size-properties
// table collector that feeds the Range Planner.
package storage

import "bytes"

// MemFile is a file-like struct that buffers all data written to it in
// memory. It implements the objstorage.Writable interface pebble/sstable's
// Writer expects, and is the in-memory filesystem backing an SSTWriter:
// no bytes in an import session ever touch disk until a caller persists
// a finished SSTInfo itself.
type MemFile struct {
	bytes.Buffer
}

// Write implements objstorage.Writable, shadowing the embedded
// bytes.Buffer's Write to match the single-return signature.
func (f *MemFile) Write(p []byte) error {
	_, err := f.Buffer.Write(p)
	return err
}

// Finish implements objstorage.Writable; MemFile has nothing to durably
// complete.
func (*MemFile) Finish() error { return nil }

// Abort implements objstorage.Writable; MemFile has nothing to release.
func (*MemFile) Abort() {}

// Data returns the bytes buffered so far.
func (f *MemFile) Data() []byte { return f.Bytes() }
