package conn

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

func okService() Service {
	return ServiceFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		body := "ok"
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        make(http.Header),
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: int64(len(body)),
		}, nil
	})
}

// TestConnection_H1KeepAliveServesMultipleRequests guards against the
// regression where a successful HTTP/1 exchange with keep-alive
// enabled was indistinguishable from a terminal one: without a
// dedicated Dispatched value for "ready for another request", the
// connection closed after exactly one exchange.
func TestConnection_H1KeepAliveServesMultipleRequests(t *testing.T) {
	server, client := net.Pipe()
	c := New().Bind(server, okService())

	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(context.Background()) }()

	cr := bufio.NewReader(client)
	for i := 0; i < 2; i++ {
		if _, err := client.Write([]byte("GET / HTTP/1.1\r\nHost: example.test\r\n\r\n")); err != nil {
			t.Fatalf("request %d: write: %v", i, err)
		}
		resp, err := http.ReadResponse(cr, nil)
		if err != nil {
			t.Fatalf("request %d: ReadResponse: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body) != "ok" {
			t.Fatalf("request %d: got %d %q, want 200 \"ok\"", i, resp.StatusCode, body)
		}
		if resp.Close {
			t.Fatalf("request %d: response set Connection: close, keep-alive should still be active", i)
		}
	}

	client.Close()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned %v after client close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the client closed the connection")
	}
}

func TestConnection_GracefulShutdownClosesAfterCurrentExchange(t *testing.T) {
	server, client := net.Pipe()
	c := New().Bind(server, okService())

	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(context.Background()) }()

	cr := bufio.NewReader(client)
	client.Write([]byte("GET / HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	resp, err := http.ReadResponse(cr, nil)
	if err != nil {
		t.Fatalf("first ReadResponse: %v", err)
	}
	io.ReadAll(resp.Body)
	resp.Body.Close()

	c.GracefulShutdown(context.Background())

	client.Write([]byte("GET / HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	resp, err = http.ReadResponse(cr, nil)
	if err != nil {
		t.Fatalf("second ReadResponse: %v", err)
	}
	io.ReadAll(resp.Body)
	resp.Body.Close()
	if !resp.Close {
		t.Fatal("response after GracefulShutdown should set Connection: close")
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after GracefulShutdown")
	}
}

func TestConnection_HTTP1OnlyRejectsH2Preface(t *testing.T) {
	server, client := net.Pipe()
	c := New().SetHTTP1Only(true).Bind(server, okService())

	serveErr := make(chan error, 1)
	go func() { serveErr <- c.Serve(context.Background()) }()

	go client.Write(http2Preface)

	select {
	case err := <-serveErr:
		var cerr *Error
		if !errors.As(err, &cerr) {
			t.Fatalf("Serve returned %v, want a *Error", err)
		}
		if cerr.Kind() != KindParse || cerr.ParseKind() != ParseVersionH2Preface {
			t.Fatalf("got kind=%v parseKind=%v, want KindParse/ParseVersionH2Preface", cerr.Kind(), cerr.ParseKind())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the client sent the HTTP/2 preface under HTTP/1-only mode")
	}
}

// TestConnection_FallbackTransitionsToHTTP2 exercises the in-place
// protocol transition (spec.md §4.5): a fallback Connection that
// observes the HTTP/2 client preface rebuilds itself as an HTTP/2
// driver and keeps driving the same bytes, rather than closing the
// connection. Verified at the wire level with http2.Framer, per
// spec.md §8.
func TestConnection_FallbackTransitionsToHTTP2(t *testing.T) {
	server, client := net.Pipe()
	c := New().Bind(server, okService())

	go c.Serve(context.Background())
	go client.Write(http2Preface)

	type frameResult struct {
		f   http2.Frame
		err error
	}
	framer := http2.NewFramer(io.Discard, client)
	result := make(chan frameResult, 1)
	go func() {
		f, err := framer.ReadFrame()
		result <- frameResult{f: f, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			t.Fatalf("ReadFrame: %v", r.err)
		}
		if _, ok := r.f.(*http2.SettingsFrame); !ok {
			t.Fatalf("first frame = %T, want *http2.SettingsFrame", r.f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe an HTTP/2 SETTINGS frame after sending the connection preface")
	}

	client.Close()
}
