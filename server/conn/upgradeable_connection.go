package conn

import "context"

// UpgradeableConnection wraps a Connection and additionally handles
// the upgrade-surrender case on the HTTP/1 path: it takes the driver
// apart, builds an Upgraded handle from the raw connection and any
// unread bytes, and fulfills the pending upgrade with it. HTTP/2
// responses are never upgraded — HTTP/2 defines no connection-upgrade
// mechanism in the HTTP/1 sense.
type UpgradeableConnection struct {
	conn *Connection
}

// Serve drives the wrapped Connection to completion, additionally
// fulfilling any pending upgrade it observes on the HTTP/1 path.
func (u *UpgradeableConnection) Serve(ctx context.Context) error {
	c := u.conn
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
				io, unread, _, err := c.h1.IntoInner()
				c.h1 = nil
				c.tag = tagTaken
				if err != nil {
					if pending != nil {
						pending.Decline()
					}
					return err
				}
				if pending != nil {
					pending.Fulfill(&Upgraded{IO: io, Buf: unread})
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

// GracefulShutdown delegates to the wrapped Connection.
func (u *UpgradeableConnection) GracefulShutdown(ctx context.Context) {
	u.conn.GracefulShutdown(ctx)
}
