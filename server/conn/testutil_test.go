package conn

import (
	"io"
	"net"
	"time"
)

// fakeAddr is a minimal net.Addr for tests that never inspect the
// address beyond its presence.
type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn adapts an io.Reader/io.Writer pair to net.Conn for tests
// that only exercise Read/Write/Close, grounded on the same
// Reader/Writer-wrapping technique RewindStream itself uses — no
// client/server goroutine pair is needed when the test only cares
// about bytes observed on one side.
type fakeConn struct {
	io.Reader
	io.Writer
	closed bool
}

func (c *fakeConn) Close() error                       { c.closed = true; return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr("local") }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr("remote") }
func (c *fakeConn) SetDeadline(time.Time) error         { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }

var _ net.Conn = (*fakeConn)(nil)
