package conn

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
)

// Upgraded is the opaque byte-stream handle surrendered to a Service
// once an HTTP/1 connection has switched protocols (e.g. WebSocket,
// CONNECT). Reads drain Buf before falling through to IO.
type Upgraded struct {
	IO  net.Conn
	Buf []byte
}

// Read implements io.Reader.
func (u *Upgraded) Read(p []byte) (int, error) {
	if len(u.Buf) > 0 {
		n := copy(p, u.Buf)
		u.Buf = u.Buf[n:]
		if len(u.Buf) == 0 {
			u.Buf = nil
		}
		return n, nil
	}
	return u.IO.Read(p)
}

// Write implements io.Writer.
func (u *Upgraded) Write(p []byte) (int, error) { return u.IO.Write(p) }

// Close implements io.Closer.
func (u *Upgraded) Close() error { return u.IO.Close() }

// PendingUpgrade accepts Fulfill exactly once. If Decline is called
// instead, a Service waiting on the associated OnUpgrade is told the
// upgrade will never happen — the API in use (a plain Connection, not
// an UpgradeableConnection) does not support it.
type PendingUpgrade interface {
	Fulfill(u *Upgraded)
	Decline()
}

// OnUpgrade is handed to a Service via UpgradeOn. A Service that wants
// to take over the connection spawns a goroutine that calls Wait, and
// returns a 101 Switching Protocols response.
type OnUpgrade struct {
	ch   chan *Upgraded
	once sync.Once
}

func newOnUpgrade() *OnUpgrade {
	return &OnUpgrade{ch: make(chan *Upgraded, 1)}
}

// Fulfill implements PendingUpgrade.
func (o *OnUpgrade) Fulfill(u *Upgraded) {
	o.once.Do(func() {
		o.ch <- u
		close(o.ch)
	})
}

// Decline implements PendingUpgrade.
func (o *OnUpgrade) Decline() {
	o.once.Do(func() { close(o.ch) })
}

// Wait blocks until the upgrade is fulfilled, declined, or ctx is
// done. A declined upgrade reports an error.
func (o *OnUpgrade) Wait(ctx context.Context) (*Upgraded, error) {
	select {
	case u, ok := <-o.ch:
		if !ok || u == nil {
			return nil, errors.New("conn: upgrade was declined")
		}
		return u, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type upgradeCtxKey struct{}

// withUpgrade attaches a fresh OnUpgrade to ctx, for the HTTP/1 driver
// to call before dispatching a request to a Service.
func withUpgrade(ctx context.Context) (context.Context, *OnUpgrade) {
	o := newOnUpgrade()
	return context.WithValue(ctx, upgradeCtxKey{}, o), o
}

// UpgradeOn returns the OnUpgrade associated with req, if the driver
// serving it supports upgrades. A Service that did not receive a
// request dispatched by this package's HTTP/1 driver gets ok == false.
func UpgradeOn(req *http.Request) (_ *OnUpgrade, ok bool) {
	o, ok := req.Context().Value(upgradeCtxKey{}).(*OnUpgrade)
	return o, ok
}
