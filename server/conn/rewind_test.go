package conn

import (
	"bytes"
	"io"
	"testing"
)

func TestRewindStream_DrainsPreReadBeforeUnderlying(t *testing.T) {
	underlying := &fakeConn{Reader: bytes.NewReader([]byte("tail")), Writer: io.Discard}
	rs := NewRewindStream(underlying)
	rs.Rewind([]byte("head-"))

	got := make([]byte, 0, 9)
	buf := make([]byte, 2)
	for len(got) < 9 {
		n, err := rs.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("Read: %v", err)
		}
	}

	if string(got) != "head-tail" {
		t.Fatalf("got %q, want %q", got, "head-tail")
	}
}

func TestRewindStream_RewindWithEmptyBufferIsNoop(t *testing.T) {
	underlying := &fakeConn{Reader: bytes.NewReader([]byte("abc")), Writer: io.Discard}
	rs := NewRewindStream(underlying)
	rs.Rewind(nil)

	buf := make([]byte, 3)
	n, err := rs.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("got %q, want %q", buf[:n], "abc")
	}
}

func TestRewindStream_DoubleRewindPanics(t *testing.T) {
	underlying := &fakeConn{Reader: bytes.NewReader(nil), Writer: io.Discard}
	rs := NewRewindStream(underlying)
	rs.Rewind([]byte("one"))

	defer func() {
		if recover() == nil {
			t.Fatal("expected Rewind with a non-empty pending buffer to panic")
		}
	}()
	rs.Rewind([]byte("two"))
}
