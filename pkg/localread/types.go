// Package localread implements the lease-based local read path: a
// per-region Read Delegate Registry plus a LocalReader that consumes
// batches of Register/Update/Destroy/Read tasks and decides, per
// request, whether a replica may answer a read locally from a snapshot
// or must forward it to the consensus layer.
package localread

import (
	"time"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// CmdType identifies the kind of a sub-request inside a RaftCmdRequest.
// Only Get and Snap may reach the local read path; the rest exist so
// Acceptable can reject anything else the way a real request
// router would.
type CmdType int

const (
	CmdGet CmdType = iota
	CmdSnap
	CmdPut
	CmdDelete
	CmdDeleteRange
	CmdIngestSST
	CmdInvalid
)

// SubRequest is one operation inside a RaftCmdRequest.
type SubRequest struct {
	CmdType CmdType
	Key     []byte
}

// RequestHeader carries the routing and consistency information a
// RaftCmdRequest is checked against: the addressed store/region/peer,
// the term the sender believes is current, and the region epoch it
// last observed.
type RequestHeader struct {
	StoreID     uint64
	RegionID    uint64
	PeerID      uint64
	Term        uint64
	RegionEpoch kvpb.Epoch
	ReadQuorum  bool
}

// RaftCmdRequest is a single read-only command. HasAdminRequest and
// HasStatusRequest mirror the original's admin/status request shapes,
// neither of which this repository implements; Acceptable rejects
// both outright.
type RaftCmdRequest struct {
	Header           RequestHeader
	Requests         []SubRequest
	HasAdminRequest  bool
	HasStatusRequest bool
}

// ErrorKind enumerates the request-level rejections of spec §7. These
// never propagate as Go errors; they populate a ResponseHeader.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrStoreNotMatch
	ErrPeerNotMatch
	ErrStaleCommand
	ErrStaleEpoch
	ErrServerIsBusy
)

// RequestError is a structured, non-fatal request-level rejection.
type RequestError struct {
	Kind    ErrorKind
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// ResponseHeader is the header of a RaftCmdResponse: the term the
// response was served at (bound by whichever delegate answered it) and,
// on rejection, the RequestError describing why.
type ResponseHeader struct {
	Term  uint64
	Error *RequestError
}

// RaftCmdResponse is the response shape handed back through a Callback.
type RaftCmdResponse struct {
	Header ResponseHeader
	// Values holds one entry per Get sub-request in the originating
	// request, in order; entries for non-Get sub-requests are nil.
	Values [][]byte
}

// RegionSnapshot is the locally-served view of a region at the moment a
// Snap sub-request was answered.
type RegionSnapshot struct {
	Region kvpb.Region
	Data   Snapshot
}

// ReadResponse is what a local or forwarded read ultimately resolves
// to: a RaftCmdResponse plus, when the request included a Snap
// sub-request, the RegionSnapshot it should read through.
type ReadResponse struct {
	Response RaftCmdResponse
	Snapshot *RegionSnapshot
}

// Callback delivers a single ReadResponse; it is invoked exactly once.
type Callback func(ReadResponse)

// BatchCallback delivers one response per item of a BatchRaftSnapCmds,
// in order. A nil entry means "re-issue through the slow path" (the
// associated pre-propose check could not place a verdict locally).
type BatchCallback func([]*ReadResponse)

// StoreMsgKind identifies which of the two shapes the local read path
// accepts a StoreMsg carries.
type StoreMsgKind int

const (
	MsgRaftCmd StoreMsgKind = iota
	MsgBatchRaftSnapCmds
	MsgOther
)

// StoreMsg is the message interface the consensus layer and the local
// reader exchange. Only RaftCmd and BatchRaftSnapCmds ever reach the
// local reader; any other variant is a programming error if handed to
// Acceptable.
type StoreMsg struct {
	Kind StoreMsgKind

	SendTime time.Time

	// RaftCmd fields.
	Request  *RaftCmdRequest
	Callback Callback

	// BatchRaftSnapCmds fields.
	Batch      []*RaftCmdRequest
	OnFinished BatchCallback
}

// NewRaftCmdMsg builds a RaftCmd StoreMsg.
func NewRaftCmdMsg(sendTime time.Time, req *RaftCmdRequest, cb Callback) StoreMsg {
	return StoreMsg{Kind: MsgRaftCmd, SendTime: sendTime, Request: req, Callback: cb}
}

// NewBatchRaftSnapCmdsMsg builds a BatchRaftSnapCmds StoreMsg.
func NewBatchRaftSnapCmdsMsg(sendTime time.Time, batch []*RaftCmdRequest, onFinished BatchCallback) StoreMsg {
	return StoreMsg{Kind: MsgBatchRaftSnapCmds, SendTime: sendTime, Batch: batch, OnFinished: onFinished}
}

// ProgressKind tags which field of a ReadDelegate an Update task
// mutates. A single Update task carries exactly one variant so the
// registry applies one field mutation atomically w.r.t. the reader
// goroutine.
type ProgressKind int

const (
	ProgressRegion ProgressKind = iota
	ProgressTerm
	ProgressAppliedIndexTerm
	ProgressLeaderLease
)

// Progress is the tagged union of fields a delegate Update can carry.
type Progress struct {
	Kind             ProgressKind
	Region           kvpb.Region
	Term             uint64
	AppliedIndexTerm uint64
	LeaderLease      RemoteLease
}

// ProgressOfRegion builds a Progress updating the delegate's Region.
func ProgressOfRegion(r kvpb.Region) Progress { return Progress{Kind: ProgressRegion, Region: r} }

// ProgressOfTerm builds a Progress updating the delegate's Term.
func ProgressOfTerm(term uint64) Progress { return Progress{Kind: ProgressTerm, Term: term} }

// ProgressOfAppliedIndexTerm builds a Progress updating AppliedIndexTerm.
func ProgressOfAppliedIndexTerm(term uint64) Progress {
	return Progress{Kind: ProgressAppliedIndexTerm, AppliedIndexTerm: term}
}

// ProgressOfLeaderLease builds a Progress updating LeaderLease.
func ProgressOfLeaderLease(lease RemoteLease) Progress {
	return Progress{Kind: ProgressLeaderLease, LeaderLease: lease}
}

// TaskKind identifies the action a Task carries into the reader's
// single-threaded processing loop.
type TaskKind int

const (
	TaskRegister TaskKind = iota
	TaskUpdate
	TaskDestroy
	TaskRead
)

// Task is one item of the reader's worker queue.
type Task struct {
	Kind TaskKind

	Delegate *ReadDelegate // Register

	RegionID uint64   // Update, Destroy
	Progress Progress // Update

	Msg StoreMsg // Read
}

// RegisterTask builds a Register task for delegate.
func RegisterTask(delegate *ReadDelegate) Task {
	return Task{Kind: TaskRegister, Delegate: delegate}
}

// UpdateTask builds an Update task for regionID.
func UpdateTask(regionID uint64, progress Progress) Task {
	return Task{Kind: TaskUpdate, RegionID: regionID, Progress: progress}
}

// DestroyTask builds a Destroy task for regionID.
func DestroyTask(regionID uint64) Task {
	return Task{Kind: TaskDestroy, RegionID: regionID}
}

// ReadTask builds a Read task wrapping msg.
func ReadTask(msg StoreMsg) Task {
	return Task{Kind: TaskRead, Msg: msg}
}

// Acceptable reports whether msg may enter the local read path: a
// RaftCmd with no admin/status request whose sub-requests are all Get
// or Snap, or a BatchRaftSnapCmds. Anything else is a programming
// error — callers should not hand such a message to a LocalReader.
func Acceptable(msg StoreMsg) bool {
	switch msg.Kind {
	case MsgRaftCmd:
		req := msg.Request
		if req == nil || req.HasAdminRequest || req.HasStatusRequest {
			return false
		}
		for _, r := range req.Requests {
			switch r.CmdType {
			case CmdGet, CmdSnap:
			default:
				return false
			}
		}
		return true
	case MsgBatchRaftSnapCmds:
		return true
	default:
		return false
	}
}

// SendResult is the outcome of handing a StoreMsg to the polymorphic
// sender described in spec §9: the Local Reader is generic over the
// channel to the consensus layer so tests can swap in a bounded
// synchronous channel.
type SendResult int

const (
	SendOK SendResult = iota
	SendFull
	SendFatal
)

// Sender is the small capability the Local Reader forwards messages
// through. Production wires it to the store's mailbox; tests wire it
// to a bounded channel.
type Sender interface {
	Send(msg StoreMsg) SendResult
}

// Snapshot is a point-in-time read-only view of the underlying store,
// held by a RegionSnapshot until the callback recipient consumes it.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	Close()
}

// KVStore is the subset of the Store trait (spec §6) the local read
// path needs: the ability to take a snapshot to read through. The rest
// of the Store trait belongs to the Bulk Engine / SST Builder side.
type KVStore interface {
	NewSnapshot() Snapshot
}
