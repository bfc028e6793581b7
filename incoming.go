package hyper

import (
	"context"
	"net"
)

// listenerIncoming adapts a net.Listener to server/conn's Incoming
// interface. Like net/http's own Serve loop, it relies on the
// Listener's Close method (called by onceCloseListener on shutdown) to
// unblock a pending Accept rather than threading ctx into the accept
// call itself — net.Listener has no cancellable Accept.
type listenerIncoming struct {
	ln net.Listener
}

func (i *listenerIncoming) Accept(ctx context.Context) (net.Conn, error) {
	return i.ln.Accept()
}
