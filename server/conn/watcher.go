package conn

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// ServeCloser is the shape a Watcher observes: an UpgradeableConnection
// exposes exactly this surface.
type ServeCloser interface {
	Serve(ctx context.Context) error
	GracefulShutdown(ctx context.Context)
}

// Watcher may transform each accepted Connection and track its
// lifecycle for shutdown coordination, per spec.md §4.8.
type Watcher interface {
	Watch(c ServeCloser) ServeCloser
}

// NoopWatcher returns the connection unchanged and does no tracking.
type NoopWatcher struct{}

// Watch implements Watcher.
func (NoopWatcher) Watch(c ServeCloser) ServeCloser { return c }

// GracefulWatcher tracks every live connection it is asked to watch.
// When Shutdown is called, it calls GracefulShutdown on each tracked
// connection and waits for all of them to finish serving.
//
// This is the Go rendition of spec.md §9's "graceful watcher as
// state": shared mutable state (here, a map behind a mutex) rather
// than message passing, matching the teacher's connTrack (track.go),
// which used the analogous technique (a sync.WaitGroup behind a
// ConnState hook) to track net/http connections for the same purpose.
type GracefulWatcher struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	conns    map[*trackedConn]struct{}
	shutdown atomic.Bool
}

// NewGracefulWatcher returns a ready GracefulWatcher.
func NewGracefulWatcher() *GracefulWatcher {
	return &GracefulWatcher{conns: make(map[*trackedConn]struct{})}
}

type trackedConn struct {
	ServeCloser
	w *GracefulWatcher
}

// Watch implements Watcher.
func (w *GracefulWatcher) Watch(c ServeCloser) ServeCloser {
	t := &trackedConn{ServeCloser: c, w: w}
	w.wg.Add(1)
	w.mu.Lock()
	w.conns[t] = struct{}{}
	shuttingDown := w.shutdown.Load()
	w.mu.Unlock()
	if shuttingDown {
		// Shutdown raced with this connection being accepted; apply
		// the same policy to it immediately instead of leaving it to
		// linger past the drain deadline.
		c.GracefulShutdown(context.Background())
	}
	return t
}

func (t *trackedConn) Serve(ctx context.Context) error {
	defer t.w.untrack(t)
	return t.ServeCloser.Serve(ctx)
}

func (w *GracefulWatcher) untrack(t *trackedConn) {
	w.mu.Lock()
	delete(w.conns, t)
	w.mu.Unlock()
	w.wg.Done()
}

// Shutdown calls GracefulShutdown on every connection currently
// tracked and blocks until all of them have finished Serve, or until
// ctx is done.
func (w *GracefulWatcher) Shutdown(ctx context.Context) error {
	w.shutdown.Store(true)

	w.mu.Lock()
	conns := make([]*trackedConn, 0, len(w.conns))
	for t := range w.conns {
		conns = append(conns, t)
	}
	w.mu.Unlock()

	for _, t := range conns {
		t.ServeCloser.GracefulShutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
