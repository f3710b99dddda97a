package localread

import (
	"context"
	"time"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
	"gitee.com/kvnode/kvnode/pkg/settings"
	"gitee.com/kvnode/kvnode/pkg/util/log"
	"gitee.com/kvnode/kvnode/pkg/util/stop"
)

// LocalReader owns the Read Delegate Registry and the channel to the
// consensus layer. There is one instance per storage node; every task
// it processes is drained inside RunBatch on a single goroutine, so the
// delegate map needs no lock — the consensus side publishes state
// changes by enqueueing tasks rather than mutating the map directly.
type LocalReader struct {
	storeID uint64
	store   KVStore
	sender  Sender
	cfg     settings.LocalReaderConfig
	metrics *localMetrics

	delegates map[uint64]*ReadDelegate

	tasks chan Task
}

// NewLocalReader constructs a reader for storeID, forwarding anything
// it cannot serve locally through sender and reading from store for the
// local snapshot path.
func NewLocalReader(storeID uint64, store KVStore, sender Sender, cfg settings.LocalReaderConfig) *LocalReader {
	return &LocalReader{
		storeID:   storeID,
		store:     store,
		sender:    sender,
		cfg:       cfg,
		metrics:   newLocalMetrics(),
		delegates: make(map[uint64]*ReadDelegate),
		tasks:     make(chan Task, cfg.TaskQueueCapacity),
	}
}

// Enqueue posts a task to the reader's worker queue, to be picked up by
// the background loop started with Start. Production callers use this;
// tests typically call RunBatch directly instead.
func (lr *LocalReader) Enqueue(t Task) { lr.tasks <- t }

// Start launches the reader's batch-consumption loop and its periodic
// metrics flush, both driven by stopper.
func (lr *LocalReader) Start(ctx context.Context, stopper *stop.Stopper) error {
	if err := stopper.RunAsyncTask(ctx, "localread-batch", func(ctx context.Context) {
		lr.runLoop(ctx, stopper)
	}); err != nil {
		return err
	}
	return stopper.RunAsyncTask(ctx, "localread-metrics-flush", func(ctx context.Context) {
		lr.metricsFlushLoop(ctx, stopper)
	})
}

func (lr *LocalReader) runLoop(ctx context.Context, stopper *stop.Stopper) {
	for {
		select {
		case first := <-lr.tasks:
			batch := []Task{first}
			draining := true
			for draining {
				select {
				case t := <-lr.tasks:
					batch = append(batch, t)
				default:
					draining = false
				}
			}
			lr.RunBatch(batch)
		case <-stopper.ShouldQuiesce():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (lr *LocalReader) metricsFlushLoop(ctx context.Context, stopper *stop.Stopper) {
	ticker := time.NewTicker(lr.cfg.MetricsFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lr.metrics.flush()
		case <-stopper.ShouldQuiesce():
			return
		case <-ctx.Done():
			return
		}
	}
}

// Register inserts or replaces the delegate for its region, as Task
// processing does for a Register task.
func (lr *LocalReader) Register(delegate *ReadDelegate) {
	log.Infof(context.Background(), "%s register ReadDelegate", delegate)
	lr.delegates[delegate.RegionID()] = delegate
}

// Update mutates the given field of the delegate for regionID. Updates
// for an unknown region are logged and dropped.
func (lr *LocalReader) Update(regionID uint64, progress Progress) {
	d, ok := lr.delegates[regionID]
	if !ok {
		log.Warningf(context.Background(), "update unregistered ReadDelegate, region_id: %d", regionID)
		return
	}
	d.update(progress)
}

// Destroy removes the delegate for regionID, if any.
func (lr *LocalReader) Destroy(regionID uint64) {
	if d, ok := lr.delegates[regionID]; ok {
		delete(lr.delegates, regionID)
		log.Infof(context.Background(), "%s destroy ReadDelegate", d)
	}
}

// RunBatch processes tasks in order on the calling goroutine, sharing
// one Executor (and therefore one sampled snapshot_time) across every
// read in the batch. Register/Update/Destroy tasks interleave with
// reads; a read observes the state left by every task drained before it
// in this same call.
func (lr *LocalReader) RunBatch(tasks []Task) {
	batchSize.Observe(float64(len(tasks)))

	executor := NewStoreExecutor(lr.store)
	defer executor.Close()
	var firstSendTime time.Time
	var haveSendTime bool

	for _, t := range tasks {
		switch t.Kind {
		case TaskRegister:
			lr.Register(t.Delegate)
		case TaskUpdate:
			lr.Update(t.RegionID, t.Progress)
		case TaskDestroy:
			lr.Destroy(t.RegionID)
		case TaskRead:
			if !haveSendTime {
				firstSendTime = t.Msg.SendTime
				haveSendTime = true
			}
			lr.handleTask(t.Msg, executor)
		}
	}

	if haveSendTime && !firstSendTime.IsZero() {
		batchWaitSeconds.Observe(time.Since(firstSendTime).Seconds())
	}
}

func (lr *LocalReader) handleTask(msg StoreMsg, executor Executor) {
	switch msg.Kind {
	case MsgRaftCmd:
		lr.proposeRaftCommand(msg, executor)
	case MsgBatchRaftSnapCmds:
		lr.proposeBatchRaftSnapCmds(msg, executor)
	}
}

// preProposeRaftCommand runs the store/region/peer/term/epoch/policy
// checks of spec §4.5 in order, short-circuiting. It returns:
//   - (delegate, nil) when the request may be served locally;
//   - (nil, nil) when the request must be forwarded without error;
//   - (nil, err) when the request is rejected outright.
func (lr *LocalReader) preProposeRaftCommand(req *RaftCmdRequest) (*ReadDelegate, *RequestError) {
	if req.Header.StoreID != lr.storeID {
		lr.metrics.inc(rejectStoreIDMismatch)
		return nil, newStoreNotMatch()
	}

	delegate, ok := lr.delegates[req.Header.RegionID]
	if !ok {
		lr.metrics.inc(rejectNoRegion)
		return nil, nil
	}

	if req.Header.PeerID != delegate.peerID {
		lr.metrics.inc(rejectPeerIDMismatch)
		return nil, newPeerNotMatch()
	}

	if req.Header.Term != delegate.term {
		lr.metrics.inc(rejectTermMismatch)
		return nil, newStaleCommand()
	}

	// Open question (spec §9): the acceptability predicate excludes
	// read_quorum requests only as a side effect of the policy
	// inspector rejecting them; add the direct check it recommends so
	// forwarding does not rely on that side effect.
	if req.Header.ReadQuorum {
		return nil, nil
	}

	if epochMismatch(delegate.region.Epoch, req.Header.RegionEpoch) {
		lr.metrics.inc(rejectEpoch)
		return nil, nil
	}

	if delegate.appliedIndexTerm != delegate.term {
		lr.metrics.inc(rejectAppliedTerm)
		return nil, nil
	}
	if delegate.leaderLease == nil {
		lr.metrics.inc(rejectNoLease)
		return nil, nil
	}

	return delegate, nil
}

func epochMismatch(have, want kvpb.Epoch) bool {
	return have != want
}

func (lr *LocalReader) proposeRaftCommand(msg StoreMsg, executor Executor) {
	req := msg.Request
	delegate, rejErr := lr.preProposeRaftCommand(req)
	if rejErr != nil {
		msg.Callback(lr.errorResponse(req.Header.RegionID, rejErr))
		return
	}
	if delegate != nil {
		if resp := delegate.handleRead(req, executor, lr.metrics); resp != nil {
			msg.Callback(*resp)
			return
		}
	}
	lr.redirect(msg)
}

func (lr *LocalReader) proposeBatchRaftSnapCmds(msg StoreMsg, executor Executor) {
	out := make([]*ReadResponse, len(msg.Batch))
	for i, req := range msg.Batch {
		delegate, rejErr := lr.preProposeRaftCommand(req)
		switch {
		case rejErr != nil:
			resp := lr.errorResponse(req.Header.RegionID, rejErr)
			out[i] = &resp
		case delegate != nil:
			out[i] = delegate.handleRead(req, executor, lr.metrics)
		default:
			out[i] = nil
		}
	}
	msg.OnFinished(out)
}

func (lr *LocalReader) errorResponse(regionID uint64, rejErr *RequestError) ReadResponse {
	resp := RaftCmdResponse{Header: ResponseHeader{Error: rejErr}}
	if d, ok := lr.delegates[regionID]; ok {
		resp.Header.Term = d.term
	}
	return ReadResponse{Response: resp}
}

// redirect forwards msg's original request to the consensus layer. A
// full channel is not fatal: it degrades to a synthesized
// ServerIsBusy response delivered through the message's own
// callback(s). Any other send failure is fatal, matching spec §7 ("the
// local reader cannot function without the consensus channel").
func (lr *LocalReader) redirect(msg StoreMsg) {
	switch lr.sender.Send(msg) {
	case SendOK:
		return
	case SendFull:
		lr.metrics.inc(rejectChannelFull)
		lr.handleBusy(msg)
	default:
		panic("localread: redirect failed: consensus channel is gone")
	}
}

func (lr *LocalReader) handleBusy(msg StoreMsg) {
	busy := ReadResponse{Response: RaftCmdResponse{
		Header: ResponseHeader{Error: newServerIsBusy()},
	}}
	switch msg.Kind {
	case MsgRaftCmd:
		msg.Callback(busy)
	case MsgBatchRaftSnapCmds:
		resps := make([]*ReadResponse, len(msg.Batch))
		for i := range resps {
			r := busy
			resps[i] = &r
		}
		msg.OnFinished(resps)
	}
}
