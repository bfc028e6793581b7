package hyper

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/multierr"

	"github.com/hobofan/hyper/server/conn"
)

// serveStream runs one listener's accept loop against a conn.Http
// configuration, tracking every connection it spawns with watcher so
// Server.Run can drain them on shutdown. It is the Go rendition of the
// teacher's serveH1H2 (h1h2.go), generalized from a single shared
// *http.Server (bundling HTTP/1 and, via http2.ConfigureServer, HTTP/2)
// to a conn.Http configuration whose per-connection Connection already
// multiplexes both protocols without that bundling step.
type serveStream struct {
	l        StreamSocket
	protocol conn.Http
	factory  conn.ServiceFactory
	watcher  *conn.GracefulWatcher
	log      conn.ErrorLogger
	shutdown *sync.Once
}

func (s *serveStream) Run(ctx context.Context, callback func(ctx context.Context) error) error {
	ln, err := s.l.Listen(ctx)
	if err != nil {
		return err
	}
	l := &onceCloseListener{Listener: ln}

	stream := s.protocol.BindIncoming(&listenerIncoming{ln: l}, s.factory)
	loop := conn.NewSpawnLoop(stream, s.watcher, conn.GoExecutor{}, s.log)

	fgctx, cancel := context.WithCancel(ctx)

	errc := make(chan error, 1)
	go func() {
		err := loop.Run(fgctx)
		cancel()
		errc <- err
	}()

	callbackError := callback(fgctx)

	// Suppress duplicate shutdown calls since they are idempotent. Note
	// that this will signal shutdown for every serveStream sharing this
	// Server's watcher, same as the teacher's shutdownH1H2 *sync.Once.
	s.shutdown.Do(func() {
		_ = s.watcher.Shutdown(ctx)
	})

	closeError := l.Close()
	serveError := <-errc
	if errors.Is(serveError, net.ErrClosed) {
		serveError = nil
	}
	return multierr.Combine(callbackError, serveError, closeError)
}

type onceCloseListener struct {
	net.Listener
	once sync.Once
	err  error
}

func (l *onceCloseListener) Close() error {
	l.once.Do(func() { l.err = l.Listener.Close() })
	return l.err
}
