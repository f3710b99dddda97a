package localread

import (
	"fmt"
	"time"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
)

// LeaseState is the result of inspecting a RemoteLease at a point in time.
type LeaseState int

const (
	LeaseValid LeaseState = iota
	LeaseExpired
)

// RemoteLease is a read-only view of a lease held by the leader: the
// term it was granted at, and when it expires.
type RemoteLease struct {
	Term      uint64
	ExpiresAt time.Time
}

// Inspect reports whether the lease is still valid at the given time.
func (l RemoteLease) Inspect(at time.Time) LeaseState {
	if at.Before(l.ExpiresAt) {
		return LeaseValid
	}
	return LeaseExpired
}

// validTSCell holds ReadDelegate.lastValidTS behind its own mutability
// boundary: handle_read wants to mutate exactly this one field while
// treating the rest of the delegate as read-only, and the reader
// goroutine is this field's sole mutator, so no locking is needed — only
// a place to put the mutation that doesn't require the delegate itself
// to be addressable as mutable.
type validTSCell struct {
	ts time.Time
}

func (c *validTSCell) get() time.Time  { return c.ts }
func (c *validTSCell) set(t time.Time) { c.ts = t }

// ReadDelegate is the Local Reader's cached, read-mostly view of one
// replica's state: enough to decide, without consulting the consensus
// layer, whether a read may be served locally.
//
// Invariant: lastValidTS only advances monotonically as a result of a
// successful lease check, and is implicitly scoped to the current term
// because handleRead rejects before touching it whenever the lease's
// term no longer matches Term.
type ReadDelegate struct {
	region           kvpb.Region
	peerID           uint64
	term             uint64
	appliedIndexTerm uint64
	leaderLease      *RemoteLease
	lastValidTS      validTSCell

	tag string
}

// NewReadDelegate constructs a delegate for a replica not yet granted a
// lease (leaderLease is nil until a LeaderLease Progress arrives).
func NewReadDelegate(region kvpb.Region, peerID, term, appliedIndexTerm uint64) *ReadDelegate {
	return &ReadDelegate{
		region:           region,
		peerID:           peerID,
		term:             term,
		appliedIndexTerm: appliedIndexTerm,
		tag:              fmt.Sprintf("[region %d] %d", region.ID, peerID),
	}
}

// RegionID returns the delegate's region id, the registry's key.
func (d *ReadDelegate) RegionID() uint64 { return d.region.ID }

// Term returns the delegate's currently cached term.
func (d *ReadDelegate) Term() uint64 { return d.term }

func (d *ReadDelegate) String() string {
	return fmt.Sprintf("ReadDelegate for region %d, peer %d at term %d, applied_index_term %d, has lease %v",
		d.region.ID, d.peerID, d.term, d.appliedIndexTerm, d.leaderLease != nil)
}

// update applies one Progress variant to the delegate's matching field.
func (d *ReadDelegate) update(p Progress) {
	switch p.Kind {
	case ProgressRegion:
		d.region = p.Region
	case ProgressTerm:
		d.term = p.Term
	case ProgressAppliedIndexTerm:
		d.appliedIndexTerm = p.AppliedIndexTerm
	case ProgressLeaderLease:
		lease := p.LeaderLease
		d.leaderLease = &lease
	}
}

// handleRead performs the lease check deferred from pre-propose (so a
// snapshot_time can be shared across a batch) and, if it passes,
// executes req and binds the delegate's term into the response header.
// It returns nil if the read must be forwarded instead.
func (d *ReadDelegate) handleRead(req *RaftCmdRequest, executor Executor, metrics *localMetrics) *ReadResponse {
	lease := d.leaderLease
	if lease == nil {
		return nil
	}
	if lease.Term != d.term {
		metrics.inc(rejectTermMismatch)
		return nil
	}

	snapshotTime := executor.SnapshotTime()
	if !d.lastValidTS.get().Equal(snapshotTime) {
		if lease.Inspect(snapshotTime) != LeaseValid {
			metrics.inc(rejectLeaseExpire)
			return nil
		}
		d.lastValidTS.set(snapshotTime)
	}

	resp := executor.Execute(req, d.region)
	resp.Response.Header.Term = d.term
	return &resp
}
