package conn

import (
	"net"
)

// RewindStream wraps a net.Conn so that a prefix of bytes can be
// pushed back for re-reading. It exists for exactly one reason: the
// HTTP/1 driver must read some bytes before it can tell a request
// apart from the start of the HTTP/2 connection preface; those bytes
// must still be visible to whichever driver ends up handling the
// connection. See Rewind.
type RewindStream struct {
	net.Conn
	preRead []byte
}

// NewRewindStream wraps c with no pre-read buffer.
func NewRewindStream(c net.Conn) *RewindStream {
	return &RewindStream{Conn: c}
}

// Rewind sets buf as the bytes to be yielded by the next Read calls,
// before falling back to the wrapped connection. It must only be
// called when the pre-read buffer is empty — calling it again before
// the previous buffer has drained would silently drop data, so that
// case is a programming error and panics.
func (r *RewindStream) Rewind(buf []byte) {
	if len(r.preRead) != 0 {
		panic("conn: RewindStream.Rewind called with a non-empty pre-read buffer")
	}
	if len(buf) == 0 {
		return
	}
	r.preRead = buf
}

// Read implements io.Reader, draining the pre-read buffer first.
func (r *RewindStream) Read(p []byte) (int, error) {
	if len(r.preRead) > 0 {
		n := copy(p, r.preRead)
		r.preRead = r.preRead[n:]
		if len(r.preRead) == 0 {
			r.preRead = nil
		}
		return n, nil
	}
	return r.Conn.Read(p)
}

// SetDeadline, SetReadDeadline, and SetWriteDeadline are inherited
// from net.Conn via the embedded field and delegate unmodified, per
// the invariant in SPEC_FULL.md §3.

var _ net.Conn = (*RewindStream)(nil)
