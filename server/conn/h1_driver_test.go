package conn

import (
	"bytes"
	"context"
	"testing"
	"time"
)

// countingWriter counts how many times Write is invoked on the
// underlying buffer, so tests can tell a batched flush (one Write)
// from an eager one (one Write per response).
type countingWriter struct {
	buf    bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.buf.Write(p)
}

// TestHTTP1Driver_ShortRequestDoesNotHangOnPrefaceSniff guards against
// looksLikeH2Preface demanding a full 24-byte prefix before parsing
// can proceed: a short, complete HTTP/1 request sitting alone on the
// wire (nothing more coming) must still be served promptly.
func TestHTTP1Driver_ShortRequestDoesNotHangOnPrefaceSniff(t *testing.T) {
	const shortRequest = "HEAD / HTTP/1.0\r\n\r\n" // 19 bytes, well under len(http2Preface)
	if len(shortRequest) >= len(http2Preface) {
		t.Fatalf("test fixture is not actually shorter than the preface")
	}

	in := bytes.NewBufferString(shortRequest)
	out := &countingWriter{}
	c := &fakeConn{Reader: in, Writer: out}

	d := newHTTP1Driver(c, okService(), h1Options{keepAlive: true, maxBufSize: minMaxBufSize})

	done := make(chan struct{})
	go func() {
		d.Serve(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return for a short, complete HTTP/1 request — looksLikeH2Preface likely blocked waiting for more bytes")
	}

	if out.buf.Len() == 0 {
		t.Fatal("no response was written")
	}
}

// TestHTTP1Driver_PipelineFlushBatchesWhenOff verifies that, with
// pipelineFlush off (the default) and writev off, two back-to-back
// pipelined requests that arrive together produce exactly one Write
// to the underlying connection instead of one per response.
func TestHTTP1Driver_PipelineFlushBatchesWhenOff(t *testing.T) {
	const two = "GET / HTTP/1.1\r\nHost: example.test\r\n\r\n" +
		"GET / HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n"

	in := bytes.NewBufferString(two)
	out := &countingWriter{}
	c := &fakeConn{Reader: in, Writer: out}

	d := newHTTP1Driver(c, okService(), h1Options{
		keepAlive:     true,
		pipelineFlush: false,
		maxBufSize:    minMaxBufSize,
	}).(*http1Driver)

	ctx := context.Background()
	disp, _, err := d.serveOne(ctx, true)
	if err != nil {
		t.Fatalf("first serveOne: %v", err)
	}
	if disp != DispatchedKeepAlive {
		t.Fatalf("first serveOne dispatched=%v, want DispatchedKeepAlive", disp)
	}
	if out.writes != 0 {
		t.Fatalf("got %d Write call(s) after the first response, want 0 (should batch with the pipelined second request)", out.writes)
	}

	disp, _, err = d.serveOne(ctx, true)
	if err != nil {
		t.Fatalf("second serveOne: %v", err)
	}
	if disp != DispatchedShutdown {
		t.Fatalf("second serveOne dispatched=%v, want DispatchedShutdown", disp)
	}
	if out.writes != 1 {
		t.Fatalf("got %d Write call(s) after both responses, want exactly 1 (both flushed together)", out.writes)
	}
}

// TestHTTP1Driver_WritevBypassesBufferedWriter verifies SetWritev's
// path: the response reaches the connection even though d.bw is never
// flushed (writeResponse writes straight to d.conn via net.Buffers).
func TestHTTP1Driver_WritevBypassesBufferedWriter(t *testing.T) {
	const req = "GET / HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n"

	in := bytes.NewBufferString(req)
	out := &countingWriter{}
	c := &fakeConn{Reader: in, Writer: out}

	d := newHTTP1Driver(c, okService(), h1Options{
		keepAlive:  true,
		writev:     true,
		maxBufSize: minMaxBufSize,
	}).(*http1Driver)

	disp, _, err := d.serveOne(context.Background(), true)
	if err != nil {
		t.Fatalf("serveOne: %v", err)
	}
	if disp != DispatchedShutdown {
		t.Fatalf("dispatched=%v, want DispatchedShutdown", disp)
	}
	if out.writes != 1 {
		t.Fatalf("got %d Write call(s), want exactly 1 (writev path writes directly to conn)", out.writes)
	}
	if !bytes.Contains(out.buf.Bytes(), []byte("200")) {
		t.Fatalf("response does not contain a 200 status: %q", out.buf.String())
	}
}
