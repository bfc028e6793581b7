package hyper

import (
	"context"
	"net/http"
	"strings"

	"github.com/hobofan/hyper/server/conn"
)

// grpcRouter is a conn.Service implementation that routes gRPC requests
// to g and everything else to h. Since server/conn dispatches both
// HTTP/1 and HTTP/2 requests through the same Service interface, the
// same content-type sniff the teacher used for its http.Handler-based
// grpcMux (grpc.go) applies unmodified here.
type grpcRouter struct {
	h, g conn.Service
}

// GRPCRouter returns a conn.Service that uses g for gRPC requests and h
// otherwise.
func GRPCRouter(h, g conn.Service) conn.Service {
	return &grpcRouter{h, g}
}

// Serve implements conn.Service.
func (m *grpcRouter) Serve(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.ProtoMajor == 2 && strings.HasPrefix(req.Header.Get("Content-Type"), "application/grpc") {
		return m.g.Serve(ctx, req)
	}
	return m.h.Serve(ctx, req)
}
