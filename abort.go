package hyper

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/hobofan/hyper/server/conn"
)

// errAborted is returned by an abortGate-guarded Service once the gate
// has been stopped. server/conn's h1 driver reports it as a KindIO
// Error, which tears the connection down without writing a response —
// the Go-native equivalent of the teacher's abortableHandler panicking
// with http.ErrAbortHandler, expressed through conn.Service's
// Result-shaped Serve method instead of a panic, since this package's
// Service contract (unlike http.Handler's void ServeHTTP) has a
// channel built for exactly this.
var errAborted = errors.New("hyper: service stopped accepting requests")

// abortGate tracks in-flight Serve calls across every connection a
// Server is driving and can stop admitting new ones. It is the
// generalization of the teacher's abortableHandler (abort.go) from "one
// handler shared by every HTTP/2 connection" (worked around go.dev/issue/37920,
// specific to golang.org/x/net/http2's lack of a Serve-return guarantee)
// to "one Service shared by every connection, HTTP/1 or HTTP/2 alike" —
// server/conn's Connection.Serve blocks for the caller's own goroutine
// either way, so the same guarantee now covers both protocols uniformly.
type abortGate struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

func (g *abortGate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *abortGate) leave() { g.wg.Done() }

// stop stops the gate and waits for all in-flight Serve calls to return.
func (g *abortGate) stop() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
	g.wg.Wait()
}

// abortableService wraps svc so that, once gate is stopped, further
// Serve calls fail fast with errAborted instead of running the
// handler after the Server's Run method has started returning.
type abortableService struct {
	svc  conn.Service
	gate *abortGate
}

func (s *abortableService) Serve(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !s.gate.enter() {
		return nil, errAborted
	}
	defer s.gate.leave()
	return s.svc.Serve(ctx, req)
}
