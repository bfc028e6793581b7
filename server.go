package hyper

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go.pact.im/x/process"

	"github.com/hobofan/hyper/server/conn"
)

// Server is an HTTP server abstraction built on server/conn: it binds
// one conn.Http configuration to any number of StreamSockets, drives
// each accepted connection's HTTP/1⇄HTTP/2 state machine, and
// guarantees that, on Run's return, every in-flight conn.Service call
// has completed and no further one will start.
type Server struct {
	log *zap.Logger

	protocol conn.Http
	factory  conn.ServiceFactory
	gate     *abortGate
	watcher  *conn.GracefulWatcher

	tcp []StreamSocket
}

// NewServer returns a new Server instance with the given options.
func NewServer(o Options) *Server {
	o.setDefaults()

	gate := &abortGate{}
	inner := o.serviceFactory()
	factory := conn.ServiceFactoryFunc(func(ctx context.Context, meta conn.ConnMeta) (conn.Service, error) {
		svc, err := inner.NewService(ctx, meta)
		if err != nil {
			return nil, err
		}
		return &panicSafeService{svc: &abortableService{svc: svc, gate: gate}}, nil
	})

	return &Server{
		log:      o.Logger,
		protocol: o.Protocol,
		factory:  factory,
		gate:     gate,
		watcher:  conn.NewGracefulWatcher(),
		tcp:      o.StreamSockets,
	}
}

// Run runs the server. It guarantees that, on return, all ongoing
// requests are complete and no Service will be invoked again. The
// given callback is called after the server is initialized and is
// ready to accept requests.
func (s *Server) Run(ctx context.Context, callback func(ctx context.Context) error) error {
	shutdownOnce := new(sync.Once)

	procs := make([]process.Runnable, 0, len(s.tcp))
	for _, lc := range s.tcp {
		procs = append(procs, &serveStream{
			l:        lc,
			protocol: s.protocol,
			factory:  s.factory,
			watcher:  s.watcher,
			log:      s.log.Sugar(),
			shutdown: shutdownOnce,
		})
	}

	runError := process.Parallel(procs...).Run(ctx, callback)

	// Mirror the teacher's sh.Stop() call (server.go): by the time every
	// serveStream has returned, s.watcher.Shutdown has already been
	// signaled and waited on, so every Service call in flight when
	// shutdown began has finished. Stopping the gate now only closes the
	// (by construction, already empty) window between that wait ending
	// and this goroutine observing it.
	s.gate.stop()

	return runError
}
