package conn

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"go.uber.org/atomic"
)

// h1Options carries the tunables from Http that the HTTP/1 driver
// interprets. h1_writev and h1_pipeline_flush are treated as opaque by
// Connection (spec.md §9) — only this driver reads them.
type h1Options struct {
	keepAlive     bool
	halfClose     bool
	writev        bool
	pipelineFlush bool
	maxBufSize    int
}

// http2Preface is the fixed 24-byte sequence an HTTP/2 client sends
// first.
var http2Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// http1Driver is the concrete h1Driver implementation. It leans on two
// real standard-library entry points built for exactly this job:
// http.ReadRequest (parsing a request off a *bufio.Reader) and
// (*http.Response).Write (serializing a response, including
// chunked-transfer framing when ContentLength is unset) — both
// designed for proxies and lower-level HTTP tooling, which is exactly
// the role this package plays. Reinventing either would duplicate the
// standard library for no benefit; spec.md §1 explicitly treats HTTP/1
// framing detail as a Non-goal.
type http1Driver struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	svc  Service
	opts h1Options

	keepAliveDisabled atomic.Bool
	prefaceChecked    bool
	watchOnce         sync.Once
}

func newHTTP1Driver(c net.Conn, svc Service, opts h1Options) h1Driver {
	if opts.maxBufSize <= 0 {
		opts.maxBufSize = defaultMaxBufSize
	}
	d := &http1Driver{
		conn: c,
		br:   bufio.NewReaderSize(c, opts.maxBufSize),
		bw:   bufio.NewWriter(c),
		svc:  svc,
		opts: opts,
	}
	d.keepAliveDisabled.Store(!opts.keepAlive)
	return d
}

// DisableKeepAlive implements h1Driver.
func (d *http1Driver) DisableKeepAlive() { d.keepAliveDisabled.Store(true) }

// watchCancel closes the connection if ctx is done, unblocking any
// pending read. It is the Go rendition of spec.md §5's "dropping the
// Connection future before completion must release the underlying
// stream" — context cancellation is this package's analogue of a
// dropped future.
func (d *http1Driver) watchCancel(ctx context.Context) {
	d.watchOnce.Do(func() {
		go func() {
			<-ctx.Done()
			_ = d.conn.Close()
		}()
	})
}

// Serve implements h1Driver.
func (d *http1Driver) Serve(ctx context.Context) (Dispatched, PendingUpgrade, error) {
	return d.serveOne(ctx, true)
}

// ServeWithoutShutdown implements h1Driver.
func (d *http1Driver) ServeWithoutShutdown(ctx context.Context) error {
	_, _, err := d.serveOne(ctx, false)
	return err
}

func (d *http1Driver) serveOne(ctx context.Context, allowShutdown bool) (Dispatched, PendingUpgrade, error) {
	d.watchCancel(ctx)

	if !d.prefaceChecked {
		d.prefaceChecked = true
		if d.looksLikeH2Preface() {
			return DispatchedShutdown, nil, NewParseError(ParseVersionH2Preface, errors.New("client preface observed while parsing as HTTP/1"))
		}
	}

	req, err := http.ReadRequest(d.br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return DispatchedShutdown, nil, nil
		}
		return DispatchedShutdown, nil, NewParseError(ParseOther, err)
	}

	reqCtx, onUp := withUpgrade(ctx)
	req = req.WithContext(reqCtx)

	resp, err := d.svc.Serve(reqCtx, req)
	// Drain whatever the Service left unread so the next request on a
	// pipelined connection starts at the right offset.
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	if err != nil {
		return DispatchedShutdown, nil, NewIOError(err)
	}

	upgrading := resp.StatusCode == http.StatusSwitchingProtocols
	if !upgrading {
		onUp.Decline()
	}

	shouldClose := !d.opts.keepAlive || d.keepAliveDisabled.Load() || req.Close || resp.Close
	resp.Close = shouldClose
	resp.Request = req
	resp.ProtoMajor, resp.ProtoMinor = 1, 1
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	if err := d.writeResponse(resp, shouldClose || upgrading); err != nil {
		return DispatchedShutdown, nil, NewIOError(err)
	}

	if upgrading {
		return DispatchedUpgrade, onUp, nil
	}
	if shouldClose {
		if allowShutdown && d.opts.halfClose {
			if cw, ok := d.conn.(interface{ CloseWrite() error }); ok {
				_ = cw.CloseWrite()
			}
		}
		return DispatchedShutdown, nil, nil
	}
	return DispatchedKeepAlive, nil, nil
}

// writeResponse serializes resp, honoring h1Writev/h1PipelineFlush.
// With writev set, the response is rendered into a buffer and handed
// to the raw net.Conn as a single net.Buffers.WriteTo call, which the
// net package issues as one writev(2) when the connection supports it
// — skipping the extra copy through bw entirely. Otherwise resp is
// written through bw, and bw is only flushed immediately when
// forceFlush is set (the connection is closing or upgrading), when
// pipelineFlush is on, or when there is no next pipelined request
// already sitting in the read buffer to batch with.
func (d *http1Driver) writeResponse(resp *http.Response, forceFlush bool) error {
	if d.opts.writev {
		var buf bytes.Buffer
		if err := resp.Write(&buf); err != nil {
			return err
		}
		_, err := (net.Buffers{buf.Bytes()}).WriteTo(d.conn)
		return err
	}

	if err := resp.Write(d.bw); err != nil {
		return err
	}
	if forceFlush || d.opts.pipelineFlush || d.br.Buffered() == 0 {
		return d.bw.Flush()
	}
	return nil
}

// looksLikeH2Preface matches the next bytes against http2Preface one
// byte at a time, Peek-ing only as many bytes as are needed to confirm
// or refute a match so far. A mismatch is reported as soon as it is
// observed, without ever demanding more bytes than the client has
// already sent: a short, complete HTTP/1 request (e.g. a bare
// "HEAD / HTTP/1.0\r\n\r\n") diverges from the preface within its first
// byte or two, so this never blocks waiting for bytes a real HTTP/1
// client was never going to send. Only a client whose bytes genuinely
// keep matching the preface prefix can make this wait for more data,
// which is unavoidable — we cannot tell a genuine (if slow) HTTP/2
// preface from a stalled one without reading further.
func (d *http1Driver) looksLikeH2Preface() bool {
	for i := range http2Preface {
		b, err := d.br.Peek(i + 1)
		if err != nil {
			return false
		}
		if b[i] != http2Preface[i] {
			return false
		}
	}
	return true
}

// IntoInner implements h1Driver.
func (d *http1Driver) IntoInner() (net.Conn, []byte, Service, error) {
	n := d.br.Buffered()
	if n == 0 {
		return d.conn, nil, d.svc, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.br, buf); err != nil {
		return d.conn, nil, d.svc, err
	}
	return d.conn, buf, d.svc, nil
}
