package stop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStopper_RunAsyncTask_QuiescesOnStop(t *testing.T) {
	s := NewStopper()
	done := make(chan struct{})

	require.NoError(t, s.RunAsyncTask(context.Background(), "test", func(ctx context.Context) {
		<-s.ShouldQuiesce()
		close(done)
	}))

	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not observe quiesce")
	}
}

func TestStopper_RunAsyncTask_AfterStopReturnsErrStopped(t *testing.T) {
	s := NewStopper()
	s.Stop()

	err := s.RunAsyncTask(context.Background(), "late", func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrStopped)
}

func TestStopper_Stop_WaitsForRunningTasks(t *testing.T) {
	s := NewStopper()
	started := make(chan struct{})
	finished := make(chan struct{})

	require.NoError(t, s.RunAsyncTask(context.Background(), "slow", func(ctx context.Context) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		close(finished)
	}))

	<-started
	s.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the running task finished")
	}
}
