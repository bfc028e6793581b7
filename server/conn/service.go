package conn

import (
	"context"
	"net"
	"net/http"
)

// Service handles one HTTP request and produces a response. A Service
// is owned by exactly one Connection for the lifetime of that
// connection.
type Service interface {
	Serve(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ServiceFunc adapts a plain function to a Service.
type ServiceFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Serve implements Service.
func (f ServiceFunc) Serve(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// ConnMeta describes the accepted connection a ServiceFactory may
// inspect while building a Service for it.
type ConnMeta struct {
	LocalAddr  net.Addr
	RemoteAddr net.Addr
}

// ServiceFactory builds one Service per accepted connection.
type ServiceFactory interface {
	NewService(ctx context.Context, meta ConnMeta) (Service, error)
}

// ServiceFactoryFunc adapts a plain function to a ServiceFactory.
type ServiceFactoryFunc func(ctx context.Context, meta ConnMeta) (Service, error)

// NewService implements ServiceFactory.
func (f ServiceFactoryFunc) NewService(ctx context.Context, meta ConnMeta) (Service, error) {
	return f(ctx, meta)
}

// FromHandler adapts an http.Handler to a Service. The handler always
// runs to completion synchronously inside Serve; it never observes
// Hijack (the connection is already owned by this package).
func FromHandler(h http.Handler) Service {
	return ServiceFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		rw := newRecorder()
		h.ServeHTTP(rw, req.WithContext(ctx))
		return rw.result(), nil
	})
}
