package localread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
	"gitee.com/kvnode/kvnode/pkg/settings"
)

// chanSender is a Sender backed by a bounded channel, the "bounded sync
// channel" test double spec §9 describes for the polymorphic sender.
type chanSender struct {
	ch chan StoreMsg
}

func newChanSender(capacity int) *chanSender {
	return &chanSender{ch: make(chan StoreMsg, capacity)}
}

func (s *chanSender) Send(msg StoreMsg) SendResult {
	select {
	case s.ch <- msg:
		return SendOK
	default:
		return SendFull
	}
}

func (s *chanSender) tryRecv() (StoreMsg, bool) {
	select {
	case m := <-s.ch:
		return m, true
	default:
		return StoreMsg{}, false
	}
}

// memStore is a trivial KVStore for tests: every snapshot answers Get
// from the same fixed map.
type memStore struct {
	data map[string][]byte
}

func (s *memStore) NewSnapshot() Snapshot { return &memSnapshot{s.data} }

type memSnapshot struct{ data map[string][]byte }

func (s *memSnapshot) Get(key []byte) ([]byte, error) { return s.data[string(key)], nil }
func (s *memSnapshot) Close()                         {}

func testRegion(id uint64) kvpb.Region {
	return kvpb.Region{ID: id, Peers: []uint64{2, 3, 4}, Epoch: kvpb.Epoch{ConfVer: 1, Version: 3}}
}

func newTestReader(storeID uint64, capacity int) (*LocalReader, *chanSender) {
	sender := newChanSender(capacity)
	store := &memStore{data: map[string][]byte{}}
	cfg := settings.DefaultLocalReaderConfig()
	return NewLocalReader(storeID, store, sender, cfg), sender
}

func snapCmd(storeID, regionID, peerID, term uint64, epoch kvpb.Epoch) *RaftCmdRequest {
	return &RaftCmdRequest{
		Header: RequestHeader{
			StoreID:     storeID,
			RegionID:    regionID,
			PeerID:      peerID,
			Term:        term,
			RegionEpoch: epoch,
		},
		Requests: []SubRequest{{CmdType: CmdSnap}},
	}
}

func mustRedirect(t *testing.T, lr *LocalReader, sender *chanSender, req *RaftCmdRequest) {
	t.Helper()
	called := false
	task := ReadTask(NewRaftCmdMsg(time.Now(), req, func(ReadResponse) {
		called = true
	}))
	lr.RunBatch([]Task{task})
	require.False(t, called, "callback should not be invoked when forwarding")
	msg, ok := sender.tryRecv()
	require.True(t, ok, "expected message to be forwarded")
	require.Same(t, req, msg.Request)
}

// S4: an unregistered region forwards and counts no_region.
func TestLocalReader_NoRegionForwards(t *testing.T) {
	lr, sender := newTestReader(2, 4)
	req := snapCmd(2, 1, 2, 6, kvpb.Epoch{ConfVer: 1, Version: 3})
	mustRedirect(t, lr, sender, req)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectNoRegion])
}

// S5: after Register with a stale applied_index_term, the read
// forwards and counts appiled_term; after Update it is served locally
// with the delegate's term bound into the response.
func TestLocalReader_AppliedTermThenServed(t *testing.T) {
	storeID := uint64(2)
	lr, sender := newTestReader(storeID, 4)
	region := testRegion(1)
	term := uint64(6)

	delegate := NewReadDelegate(region, 2, term, term-1)
	delegate.leaderLease = &RemoteLease{Term: term, ExpiresAt: time.Now().Add(time.Hour)}
	lr.RunBatch([]Task{RegisterTask(delegate)})

	req := snapCmd(storeID, 1, 2, term, region.Epoch)
	mustRedirect(t, lr, sender, req)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectAppliedTerm])

	lr.RunBatch([]Task{UpdateTask(1, ProgressOfAppliedIndexTerm(term))})

	var resp ReadResponse
	got := false
	task := ReadTask(NewRaftCmdMsg(time.Now(), req, func(r ReadResponse) {
		resp = r
		got = true
	}))
	lr.RunBatch([]Task{task})
	require.True(t, got)
	require.Nil(t, resp.Response.Header.Error)
	require.Equal(t, term, resp.Response.Header.Term)
	require.NotNil(t, resp.Snapshot)
}

// S6: after a lease expires, the next read forwards and counts
// lease_expire, even though the delegate's lease term still matches.
func TestLocalReader_LeaseExpires(t *testing.T) {
	storeID := uint64(2)
	lr, sender := newTestReader(storeID, 4)
	region := testRegion(1)
	term := uint64(6)

	delegate := NewReadDelegate(region, 2, term, term)
	delegate.leaderLease = &RemoteLease{Term: term, ExpiresAt: time.Now().Add(10 * time.Millisecond)}
	lr.RunBatch([]Task{RegisterTask(delegate)})

	req := snapCmd(storeID, 1, 2, term, region.Epoch)

	served := false
	lr.RunBatch([]Task{ReadTask(NewRaftCmdMsg(time.Now(), req, func(ReadResponse) { served = true }))})
	require.True(t, served)

	time.Sleep(20 * time.Millisecond)
	mustRedirect(t, lr, sender, req)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectLeaseExpire])
}

// S7: with channel capacity 1, a second concurrent read synthesizes
// ServerIsBusy instead of blocking.
func TestLocalReader_ChannelFullSynthesizesBusy(t *testing.T) {
	lr, _ := newTestReader(2, 1)
	req := snapCmd(2, 9, 1, 1, kvpb.Epoch{})

	lr.RunBatch([]Task{ReadTask(NewRaftCmdMsg(time.Now(), req, func(ReadResponse) {}))})

	var resp ReadResponse
	lr.RunBatch([]Task{ReadTask(NewRaftCmdMsg(time.Now(), req, func(r ReadResponse) { resp = r }))})
	require.NotNil(t, resp.Response.Header.Error)
	require.Equal(t, ErrServerIsBusy, resp.Response.Header.Error.Kind)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectChannelFull])
}

func TestLocalReader_StoreIDMismatchRejects(t *testing.T) {
	lr, _ := newTestReader(2, 4)
	req := snapCmd(3, 1, 2, 6, kvpb.Epoch{})

	var resp ReadResponse
	lr.RunBatch([]Task{ReadTask(NewRaftCmdMsg(time.Now(), req, func(r ReadResponse) { resp = r }))})
	require.NotNil(t, resp.Response.Header.Error)
	require.Equal(t, ErrStoreNotMatch, resp.Response.Header.Error.Kind)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectStoreIDMismatch])
}

func TestLocalReader_DestroyRemovesDelegate(t *testing.T) {
	lr, sender := newTestReader(2, 4)
	region := testRegion(1)
	delegate := NewReadDelegate(region, 2, 6, 6)
	delegate.leaderLease = &RemoteLease{Term: 6, ExpiresAt: time.Now().Add(time.Hour)}
	lr.RunBatch([]Task{RegisterTask(delegate)})
	lr.RunBatch([]Task{DestroyTask(1)})

	req := snapCmd(2, 1, 2, 6, region.Epoch)
	mustRedirect(t, lr, sender, req)
	require.EqualValues(t, 1, lr.metrics.snapshot()[rejectNoRegion])
}

func TestAcceptable(t *testing.T) {
	ok := NewRaftCmdMsg(time.Now(), &RaftCmdRequest{Requests: []SubRequest{{CmdType: CmdGet}}}, nil)
	require.True(t, Acceptable(ok))

	bad := NewRaftCmdMsg(time.Now(), &RaftCmdRequest{Requests: []SubRequest{{CmdType: CmdPut}}}, nil)
	require.False(t, Acceptable(bad))

	admin := NewRaftCmdMsg(time.Now(), &RaftCmdRequest{HasAdminRequest: true}, nil)
	require.False(t, Acceptable(admin))

	batch := NewBatchRaftSnapCmdsMsg(time.Now(), nil, nil)
	require.True(t, Acceptable(batch))
}
