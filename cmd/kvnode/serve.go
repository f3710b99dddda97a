package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gitee.com/kvnode/kvnode/pkg/kvpb"
	"gitee.com/kvnode/kvnode/pkg/localread"
	"gitee.com/kvnode/kvnode/pkg/settings"
	"gitee.com/kvnode/kvnode/pkg/util/log"
	"gitee.com/kvnode/kvnode/pkg/util/stop"
)

var (
	serveStorePath string
	serveStoreID   uint64
	serveRegionID  uint64
	servePeerID    uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve lease-based local reads against a single registered region",
	Long: `
serve opens a plain storage engine at --path, registers one region
(--region-id/--peer-id) with a leader lease valid from process start,
and runs the Local Reader's batch-consumption loop until interrupted.
There is no real consensus layer wired in; anything the reader cannot
answer locally is logged and dropped rather than forwarded, the way a
standalone demo stands in for the store's raft mailbox.
`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveStorePath, "path", "", "directory for the serving engine (required)")
	flags.Uint64Var(&serveStoreID, "store-id", 1, "this node's store ID")
	flags.Uint64Var(&serveRegionID, "region-id", 1, "the region ID to register for local reads")
	flags.Uint64Var(&servePeerID, "peer-id", 1, "this store's peer ID within the region")
	_ = serveCmd.MarkFlagRequired("path")
}

// pebbleStore adapts a plain *pebble.DB to localread.KVStore.
type pebbleStore struct {
	db *pebble.DB
}

func (s *pebbleStore) NewSnapshot() localread.Snapshot {
	return &pebbleSnapshot{snap: s.db.NewSnapshot()}
}

type pebbleSnapshot struct {
	snap *pebble.Snapshot
}

func (s *pebbleSnapshot) Get(key []byte) ([]byte, error) {
	v, closer, err := s.snap.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

func (s *pebbleSnapshot) Close() { s.snap.Close() }

// loggingSender stands in for the consensus-layer mailbox this
// single-process demo does not have: anything the Local Reader cannot
// answer locally is logged instead of forwarded.
type loggingSender struct{}

func (loggingSender) Send(msg localread.StoreMsg) localread.SendResult {
	log.Warningf(context.Background(), "no consensus layer wired in; dropping forwarded %v message", msg.Kind)
	return localread.SendOK
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := pebble.Open(serveStorePath, &pebble.Options{})
	if err != nil {
		return errors.Wrapf(kvpb.ErrIO, "opening store at %s: %v", serveStorePath, err)
	}
	defer db.Close()

	store := &pebbleStore{db: db}
	cfg := settings.DefaultLocalReaderConfig()
	reader := localread.NewLocalReader(serveStoreID, store, loggingSender{}, cfg)

	region := kvpb.Region{
		ID:    serveRegionID,
		Peers: []uint64{servePeerID},
		Epoch: kvpb.Epoch{ConfVer: 1, Version: 1},
	}
	delegate := localread.NewReadDelegate(region, servePeerID, 1, 1)
	reader.Register(delegate)
	// No consensus layer renews this lease, so grant one good for a full
	// day rather than modeling real lease renewal in a single-process demo.
	reader.Update(serveRegionID, localread.ProgressOfLeaderLease(localread.RemoteLease{
		Term:      1,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}))

	stopper := stop.NewStopper()
	if err := reader.Start(ctx, stopper); err != nil {
		return errors.Wrap(err, "starting local reader")
	}

	log.Infof(ctx, "serving region %d as store %d peer %d at %s", serveRegionID, serveStoreID, servePeerID, serveStorePath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infof(ctx, "shutting down")
	stopper.Stop()
	return nil
}
