package conn

import "context"

// ErrorLogger receives per-connection errors that SpawnLoop does not
// propagate. It is intentionally as narrow as go.uber.org/zap's own
// logger methods so a *zap.SugaredLogger (or a test fake) satisfies it
// without an adapter.
type ErrorLogger interface {
	Debugw(msg string, keysAndValues ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugw(string, ...interface{}) {}

// SpawnLoop repeatedly pulls Connecting values from a ConnectionStream
// and spawns each onto an Executor: resolve the factory, build the
// Connection, wrap it with WithUpgrades, hand it to a Watcher, and
// serve it. Accept errors stop the loop and are returned; per-
// connection errors (factory failures, HTTP errors) are logged and the
// loop continues, per spec.md §7's propagation policy.
type SpawnLoop struct {
	stream   *ConnectionStream
	watcher  Watcher
	executor Executor
	log      ErrorLogger
}

// NewSpawnLoop returns a SpawnLoop over stream. A nil watcher defaults
// to NoopWatcher, a nil executor to GoExecutor, and a nil log
// discards per-connection errors.
func NewSpawnLoop(stream *ConnectionStream, watcher Watcher, executor Executor, log ErrorLogger) *SpawnLoop {
	if watcher == nil {
		watcher = NoopWatcher{}
	}
	if executor == nil {
		executor = GoExecutor{}
	}
	if log == nil {
		log = noopLogger{}
	}
	return &SpawnLoop{stream: stream, watcher: watcher, executor: executor, log: log}
}

// Run drives the loop until the ConnectionStream yields an accept
// error. ctx is passed to the Incoming's Accept and to every spawned
// connection; Run itself does not check it, so it returns after ctx is
// done only once Accept fails.
func (s *SpawnLoop) Run(ctx context.Context) error {
	for {
		connecting, err := s.stream.Next(ctx)
		if err != nil {
			return err
		}
		s.executor.Go(func() {
			s.spawnOne(ctx, connecting)
		})
	}
}

func (s *SpawnLoop) spawnOne(ctx context.Context, connecting *Connecting) {
	c, err := connecting.Connect(ctx)
	if err != nil {
		s.log.Debugw("conn: failed to build service for accepted connection", "error", err)
		return
	}
	watched := s.watcher.Watch(c.WithUpgrades())
	if err := watched.Serve(ctx); err != nil {
		s.log.Debugw("conn: connection ended with an error", "error", err)
	}
}
