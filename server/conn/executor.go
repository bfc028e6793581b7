package conn

// Executor is a cloneable capability to spawn a function for
// background execution. SpawnLoop uses it to launch each accepted
// connection's goroutine; it is threaded through Http/Connection so an
// HTTP/2 driver can reach the same capability for its own auxiliary
// goroutines.
type Executor interface {
	Go(fn func())
}

// GoExecutor is the default Executor: it spawns fn with a plain go
// statement.
type GoExecutor struct{}

// Go implements Executor.
func (GoExecutor) Go(fn func()) { go fn() }
