package conn

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// fakeServeCloser simulates a served connection: Serve blocks until
// GracefulShutdown is called, exactly the shape GracefulWatcher
// expects from a real UpgradeableConnection.
type fakeServeCloser struct {
	shutdown chan struct{}
	once     sync.Once
}

func newFakeServeCloser() *fakeServeCloser {
	return &fakeServeCloser{shutdown: make(chan struct{})}
}

func (f *fakeServeCloser) Serve(ctx context.Context) error {
	select {
	case <-f.shutdown:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeServeCloser) GracefulShutdown(ctx context.Context) {
	f.once.Do(func() { close(f.shutdown) })
}

// TestGracefulWatcher_ShutdownDrainsAllTrackedConnections drives N
// simulated clients concurrently with errgroup (the test-only use of
// errgroup described in SPEC_FULL.md — GracefulWatcher itself tracks
// with a plain sync.WaitGroup since it only observes goroutines
// SpawnLoop already spawned) and checks that Shutdown does not return
// until every one of them has stopped.
func TestGracefulWatcher_ShutdownDrainsAllTrackedConnections(t *testing.T) {
	const n = 10
	w := NewGracefulWatcher()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		f := newFakeServeCloser()
		watched := w.Watch(f)
		g.Go(func() error {
			return watched.Serve(context.Background())
		})
	}

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- w.Shutdown(context.Background()) }()

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	select {
	case err := <-waitErr:
		if err != nil {
			t.Fatalf("simulated clients returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("GracefulWatcher.Shutdown did not signal every tracked connection")
	}

	select {
	case err := <-shutdownErr:
		if err != nil {
			t.Fatalf("Shutdown returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return once all connections finished")
	}
}

// TestGracefulWatcher_WatchAfterShutdownAppliesImmediately covers the
// race spec.md §4.8 calls out: a connection accepted after Shutdown
// has already been signaled must not be left to run past the drain
// window.
func TestGracefulWatcher_WatchAfterShutdownAppliesImmediately(t *testing.T) {
	w := NewGracefulWatcher()
	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown (no tracked conns): %v", err)
	}

	f := newFakeServeCloser()
	w.Watch(f)

	select {
	case <-f.shutdown:
	case <-time.After(1 * time.Second):
		t.Fatal("Watch did not apply the already-in-progress shutdown to a newly tracked connection")
	}
}
