package conn

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"
)

// http2Driver is the concrete h2Driver implementation. It wraps a
// *http2.Server built fresh for this one Connection — the teacher
// (httpserver.go, options.go) configures a single shared *http2.Server
// for an entire listener, but per-connection graceful shutdown needs
// Shutdown's effect scoped to exactly one stream multiplexer, so each
// Connection gets its own *http2.Server instance bound to exactly one
// net.Conn via ServeConn.
type http2Driver struct {
	rs     *RewindStream
	svc    Service
	server *http2.Server
}

// executor is accepted from Http.Bind's call site but not used:
// golang.org/x/net/http2.Server has no hook to run its internal
// per-stream goroutines on a caller-supplied Executor — it always
// spawns them itself. The HTTP/1 driver does not receive the Executor
// either, so Http's Executor has no effect on a Connection.
func newHTTP2Driver(rs *RewindStream, svc Service, settings H2Settings, executor Executor) h2Driver {
	const defaultWindow = 65535 // HTTP/2's own initial window size
	if settings.InitialStreamWindowSize == 0 {
		settings.InitialStreamWindowSize = defaultWindow
	}
	if settings.InitialConnWindowSize == 0 {
		settings.InitialConnWindowSize = defaultWindow
	}
	if settings.MaxConcurrentStreams == 0 {
		settings.MaxConcurrentStreams = math.MaxUint32
	}
	srv := &http2.Server{
		MaxConcurrentStreams:         settings.MaxConcurrentStreams,
		MaxUploadBufferPerConnection: int32(settings.InitialConnWindowSize),
		MaxUploadBufferPerStream:     int32(settings.InitialStreamWindowSize),
	}
	return &http2Driver{rs: rs, svc: svc, server: srv}
}

// Serve implements h2Driver. golang.org/x/net/http2's ServeConn has no
// return value of its own — the library reports connection failures
// only through logging hooks, by design, so that one misbehaving
// stream cannot abort the whole multiplexer. To still satisfy this
// package's Result-shaped contract, Serve wraps the connection in a
// small decorator that records the first non-EOF I/O error observed
// and surfaces it as a KindH2 Error once ServeConn returns.
func (d *http2Driver) Serve(ctx context.Context) error {
	ec := &errCapturingConn{Conn: d.rs}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := d.svc.Serve(r.Context(), r)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		defer resp.Body.Close()
		dst := w.Header()
		for k, vs := range resp.Header {
			for _, v := range vs {
				dst.Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	})

	d.server.ServeConn(ec, &http2.ServeConnOpts{
		Context: ctx,
		Handler: handler,
	})

	if err := ec.lastError(); err != nil {
		return NewH2Error(err)
	}
	return nil
}

// GracefulShutdown implements h2Driver. Shutdown blocks until every
// stream on this connection's multiplexer finishes (or ctx is done),
// so it is launched in its own goroutine: GracefulShutdown is a
// signal, not a wait, matching how GracefulWatcher drives many tracked
// connections down concurrently rather than one at a time.
func (d *http2Driver) GracefulShutdown(ctx context.Context) {
	go func() {
		_ = d.server.Shutdown(ctx)
	}()
}

// errCapturingConn decorates a net.Conn, recording the first non-EOF
// Read/Write error it observes. Grounded on the same "wrap the
// transport to observe what the framing layer can't report back"
// technique used elsewhere in the retrieved pack to recover per-
// connection errors from library code that otherwise only logs them.
type errCapturingConn struct {
	net.Conn

	mu  sync.Mutex
	err error
}

func (c *errCapturingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.record(err)
	return n, err
}

func (c *errCapturingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.record(err)
	return n, err
}

func (c *errCapturingConn) record(err error) {
	if err == nil || err == io.EOF {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *errCapturingConn) lastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
