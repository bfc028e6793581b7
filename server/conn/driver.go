package conn

import (
	"context"
	"net"
)

// Dispatched reports what happened during one HTTP/1 Serve cycle.
type Dispatched int

const (
	// DispatchedKeepAlive means one request/response cycle completed
	// normally and the driver is ready to read another request.
	DispatchedKeepAlive Dispatched = iota
	// DispatchedShutdown means the driver read no further requests
	// (keep-alive disabled, client half-closed, or the exchange
	// otherwise concluded normally) and the connection should close.
	DispatchedShutdown
	// DispatchedUpgrade means the dispatched response asked to switch
	// protocols; a non-nil PendingUpgrade accompanies this value.
	DispatchedUpgrade
)

// h1Driver is the interface the HTTP/1 state machine presents to
// Connection. Per spec.md §4.3 this component is external to the core
// in spirit — the core only depends on this narrow interface — even
// though, for this repository, the concrete implementation
// (http1Driver in h1_driver.go) lives in the same package to avoid an
// import cycle with the interfaces it implements.
type h1Driver interface {
	// Serve drives exactly one request/response cycle and reports how
	// it concluded: ready for another (DispatchedKeepAlive), done
	// (DispatchedShutdown), or asking to switch protocols
	// (DispatchedUpgrade, with a non-nil PendingUpgrade).
	Serve(ctx context.Context) (Dispatched, PendingUpgrade, error)

	// ServeWithoutShutdown behaves like Serve but must not shut down
	// the underlying connection when it returns nil; used to drain a
	// final in-flight exchange during graceful shutdown without
	// double-closing the transport.
	ServeWithoutShutdown(ctx context.Context) error

	// DisableKeepAlive arranges for the driver to stop reading
	// another request once the current exchange completes.
	DisableKeepAlive()

	// IntoInner disassembles the driver, returning the raw
	// connection, any bytes read but not consumed as HTTP, and the
	// Service that was serving it.
	IntoInner() (c net.Conn, readBuf []byte, svc Service, err error)
}

// h2Driver is the interface the HTTP/2 engine presents to Connection.
type h2Driver interface {
	// Serve drives the multiplexed HTTP/2 connection to completion.
	Serve(ctx context.Context) error

	// GracefulShutdown stops the driver from accepting new streams
	// and lets in-flight ones finish.
	GracefulShutdown(ctx context.Context)
}
