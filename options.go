package hyper

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/hobofan/hyper/server/conn"
)

// Options is a set of options for the Server constructor.
type Options struct {
	// Logger is a logger to use for server logs. If not set, logs are not
	// written.
	Logger *zap.Logger

	// Handler is a handler for HTTP requests. Ignored if ServiceFactory is
	// set. Defaults to http.NotFound if neither is set.
	Handler http.Handler

	// ServiceFactory builds the conn.Service used to drive each accepted
	// connection. Takes precedence over Handler when both are set; use it
	// when a connection's Service needs access to the connection's
	// ConnMeta (e.g. per-client rate limiting, mutual-TLS identity).
	ServiceFactory conn.ServiceFactory

	// Protocol is the base server/conn.Http configuration (mode,
	// keep-alive, HTTP/2 window sizes, and so on). Defaults to conn.New().
	Protocol conn.Http

	// StreamSockets specifies net.Listener sockets for the server.
	StreamSockets []StreamSocket
}

// NewProtocol returns a default server/conn.Http configuration, for
// callers that don't need to import server/conn directly just to set
// Options.Protocol.
func NewProtocol() conn.Http { return conn.New() }

// setDefaults sets default values for unspecified options.
func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ServiceFactory == nil && o.Handler == nil {
		o.Handler = http.NotFoundHandler()
	}
	if o.Protocol == (conn.Http{}) {
		o.Protocol = conn.New()
	}
}

// serviceFactory resolves ServiceFactory and Handler into a single
// conn.ServiceFactory: an explicit factory wins, otherwise Handler is
// adapted into one that ignores ConnMeta and always returns the same
// conn.FromHandler(Handler) Service.
func (o *Options) serviceFactory() conn.ServiceFactory {
	if o.ServiceFactory != nil {
		return o.ServiceFactory
	}
	svc := conn.FromHandler(o.Handler)
	return conn.ServiceFactoryFunc(func(ctx context.Context, meta conn.ConnMeta) (conn.Service, error) {
		return svc, nil
	})
}
