package conn

import "context"

type driverTag int

const (
	tagH1 driverTag = iota
	tagH2
	tagTaken
)

// fallbackPolicy mirrors spec.md §3's Fallback enum: either absent
// (Http1Only semantics) or carrying everything needed to build the h2
// driver during an in-place protocol transition.
type fallbackPolicy struct {
	active   bool
	settings H2Settings
	executor Executor
}

// Connection is a polymorphic driver owning either an HTTP/1 or an
// HTTP/2 engine for one already-accepted net.Conn. Call Serve to drive
// it to completion. A Connection must not be copied; build one with
// Http.Bind.
type Connection struct {
	tag driverTag
	h1  h1Driver
	h2  h2Driver

	fallback fallbackPolicy
}

// Serve drives the connection to completion: it returns nil on clean
// close or on a declined upgrade, and a non-nil error otherwise. On
// observing ParseVersionH2Preface from the HTTP/1 driver while
// fallback is active, it performs the in-place protocol transition
// described in spec.md §4.5 and resumes serving as HTTP/2.
//
// If the in-flight exchange asks to switch protocols, a plain
// Connection cannot surrender the raw connection to the caller (that
// requires WithUpgrades); it declines the upgrade and returns nil.
func (c *Connection) Serve(ctx context.Context) error {
	for {
		switch c.tag {
		case tagH1:
			dispatched, pending, err := c.h1.Serve(ctx)
			if err != nil {
				if c.fallback.active && isVersionH2Preface(err) {
					if terr := c.transitionToH2(); terr != nil {
						return terr
					}
					continue
				}
				return err
			}
			switch dispatched {
			case DispatchedKeepAlive:
				continue
			case DispatchedShutdown:
				return nil
			case DispatchedUpgrade:
				if pending != nil {
					pending.Decline()
				}
				return nil
			}
		case tagH2:
			return c.h2.Serve(ctx)
		case tagTaken:
			panic("conn: Serve called on a Connection whose driver has been taken")
		}
	}
}

// GracefulShutdown delegates to the active driver: on HTTP/1 it
// disables keep-alive so the connection closes after the current
// exchange; on HTTP/2 it triggers the driver's own graceful-shutdown
// path (stop accepting new streams, finish in-flight ones).
func (c *Connection) GracefulShutdown(ctx context.Context) {
	switch c.tag {
	case tagH1:
		c.h1.DisableKeepAlive()
	case tagH2:
		c.h2.GracefulShutdown(ctx)
	}
}

// ServeWithoutShutdown serves a single HTTP/1 request/response exchange
// and does not shut down the underlying connection when it returns nil.
// Unlike Serve it does not loop over keep-alive requests and does not
// perform the HTTP/2 fallback transition. It is an HTTP/1-only
// operation; calling it on an HTTP/2-phase Connection is a programming
// error and panics, per spec.md's Open Questions (no h2 equivalent is
// invented).
func (c *Connection) ServeWithoutShutdown(ctx context.Context) error {
	if c.tag != tagH1 {
		panic("conn: ServeWithoutShutdown called on a non-HTTP/1 Connection")
	}
	return c.h1.ServeWithoutShutdown(ctx)
}

// IntoParts deconstructs the Connection into Parts. It is an
// HTTP/1-only operation; calling it on an HTTP/2-phase Connection is a
// programming error and panics. See TryIntoParts for a non-panicking
// variant.
func (c *Connection) IntoParts() Parts {
	p, ok := c.TryIntoParts()
	if !ok {
		panic("conn: IntoParts called on an HTTP/2 Connection")
	}
	return p
}

// TryIntoParts deconstructs the Connection into Parts, reporting false
// instead of panicking when the Connection is on the HTTP/2 path or
// its driver has already been taken.
func (c *Connection) TryIntoParts() (Parts, bool) {
	if c.tag != tagH1 {
		return Parts{}, false
	}
	io, buf, svc, err := c.h1.IntoInner()
	c.h1 = nil
	c.tag = tagTaken
	if err != nil {
		return Parts{}, false
	}
	return Parts{IO: io, ReadBuf: buf, Service: svc}, true
}

// WithUpgrades wraps the Connection into an UpgradeableConnection that
// additionally surrenders the raw connection when an HTTP/1 exchange
// asks to switch protocols.
func (c *Connection) WithUpgrades() *UpgradeableConnection {
	return &UpgradeableConnection{conn: c}
}

// transitionToH2 implements the protocol transition algorithm of
// spec.md §4.5: extract (io, unread, service) from the current h1
// driver, rewind unread into a fresh RewindStream, and install a new
// h2 driver built from the stored fallback settings.
func (c *Connection) transitionToH2() error {
	io, unread, svc, err := c.h1.IntoInner()
	if err != nil {
		return NewIOError(err)
	}
	c.h1 = nil

	rs := NewRewindStream(io)
	if len(unread) > 0 {
		rs.Rewind(unread)
	}

	c.h2 = newHTTP2Driver(rs, svc, c.fallback.settings, c.fallback.executor)
	c.tag = tagH2
	return nil
}
