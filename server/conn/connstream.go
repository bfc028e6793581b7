package conn

import (
	"context"
	"net"
)

// Incoming is a lazy, potentially infinite, non-restartable sequence
// of accepted connections, each possibly failing (e.g. a net.Listener
// wrapped to satisfy this interface).
type Incoming interface {
	Accept(ctx context.Context) (net.Conn, error)
}

// ConnectionStream pairs an Incoming source with a ServiceFactory. It
// does not buffer beyond one-ahead: backpressure from the caller is
// respected simply by virtue of Next being a blocking call — nothing
// advances the Incoming source until the caller asks for the next
// Connecting.
type ConnectionStream struct {
	incoming Incoming
	factory  ServiceFactory
	protocol Http
}

func newConnectionStream(incoming Incoming, factory ServiceFactory, protocol Http) *ConnectionStream {
	return &ConnectionStream{incoming: incoming, factory: factory, protocol: protocol}
}

// Next accepts the next connection and returns a Connecting that will
// build its Service and bind a Connection when asked. A non-nil error
// is always an *AcceptError; per spec.md §7 it is the caller's
// responsibility to decide whether to keep looping.
func (s *ConnectionStream) Next(ctx context.Context) (*Connecting, error) {
	c, err := s.incoming.Accept(ctx)
	if err != nil {
		return nil, &AcceptError{Err: err}
	}
	return &Connecting{conn: c, factory: s.factory, protocol: s.protocol}, nil
}

// Connecting is a pending connection whose Service has not yet been
// built.
type Connecting struct {
	conn     net.Conn
	factory  ServiceFactory
	protocol Http
}

// Connect builds the Service for this connection and binds it,
// returning a ready Connection. A non-nil error is always a
// *MakeServiceError; the accepted connection is closed before it is
// returned.
func (c *Connecting) Connect(ctx context.Context) (*Connection, error) {
	meta := ConnMeta{LocalAddr: c.conn.LocalAddr(), RemoteAddr: c.conn.RemoteAddr()}
	svc, err := c.factory.NewService(ctx, meta)
	if err != nil {
		_ = c.conn.Close()
		return nil, &MakeServiceError{Err: err}
	}
	return c.protocol.Bind(c.conn, svc), nil
}
