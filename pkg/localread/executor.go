package localread

import (
	"time"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// Executor runs a RaftCmdRequest's Get/Snap sub-requests against a
// local snapshot. One Executor is constructed per RunBatch call and
// shared across every read in that batch: SnapshotTime samples the
// current time on its first call and caches it, so every delegate's
// lease check in the same batch is evaluated against the same instant.
type Executor interface {
	// SnapshotTime returns the time this batch's reads are evaluated
	// against, sampling it lazily on first use.
	SnapshotTime() time.Time
	// Execute runs req's sub-requests against region and returns the
	// resulting ReadResponse. The caller binds the response header's
	// term; Execute only fills in Values and Snapshot.
	Execute(req *RaftCmdRequest, region kvpb.Region) ReadResponse
}

// StoreExecutor is the default Executor, backed by a KVStore. It opens
// at most one snapshot per batch, the first time a Snap or Get
// sub-request needs one.
type StoreExecutor struct {
	store KVStore
	now   func() time.Time

	sampled bool
	at      time.Time

	snap Snapshot
}

// NewStoreExecutor returns an Executor over store, using time.Now as
// its clock.
func NewStoreExecutor(store KVStore) *StoreExecutor {
	return &StoreExecutor{store: store, now: time.Now}
}

// SnapshotTime implements Executor.
func (e *StoreExecutor) SnapshotTime() time.Time {
	if !e.sampled {
		e.at = e.now()
		e.sampled = true
	}
	return e.at
}

func (e *StoreExecutor) snapshot() Snapshot {
	if e.snap == nil {
		e.snap = e.store.NewSnapshot()
	}
	return e.snap
}

// Execute implements Executor, answering Get sub-requests from a
// lazily-opened snapshot and attaching that snapshot to the response
// whenever a Snap sub-request is present.
func (e *StoreExecutor) Execute(req *RaftCmdRequest, region kvpb.Region) ReadResponse {
	resp := ReadResponse{Response: RaftCmdResponse{Values: make([][]byte, len(req.Requests))}}

	var needSnap bool
	for _, r := range req.Requests {
		if r.CmdType == CmdSnap {
			needSnap = true
			break
		}
	}

	var snap Snapshot
	if needSnap || len(req.Requests) > 0 {
		snap = e.snapshot()
	}

	for i, r := range req.Requests {
		switch r.CmdType {
		case CmdGet:
			v, _ := snap.Get(r.Key)
			resp.Response.Values[i] = v
		case CmdSnap:
			resp.Snapshot = &RegionSnapshot{Region: region, Data: snap}
		}
	}
	return resp
}

// Close releases any snapshot opened during the batch. Callers invoke
// it after every response in the batch has been delivered.
func (e *StoreExecutor) Close() {
	if e.snap != nil {
		e.snap.Close()
		e.snap = nil
	}
}
