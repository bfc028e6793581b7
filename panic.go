package hyper

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/hobofan/hyper/server/conn"
)

// panicSafeService wraps svc so that an unexpected panic is reported
// and the process exits immediately, rather than leaving a connection
// goroutine (and whatever state the panic interrupted) in limbo until
// someone notices it in the logs.
//
// See also https://iximiuz.com/en/posts/go-http-handlers-panic-and-deadlocks/
type panicSafeService struct {
	svc conn.Service
}

func (s *panicSafeService) Serve(ctx context.Context, req *http.Request) (resp *http.Response, err error) {
	defer exitOnPanic()
	return s.svc.Serve(ctx, req)
}

// exitOnPanic prints a stack trace and calls os.Exit(2) if it recovers
// from a panic. It is intended to be used in deferred calls to avoid
// propagating panics to server/conn's connection goroutines.
func exitOnPanic() {
	e := recover()
	if e == nil {
		return
	}

	// TODO(tie): match the output of Go runtime.
	//
	// In particular, it uses different value formatting and recovering
	// from panic adds a more stack frames (and debug.Stack() does too).
	// It also uses builtin print and println functions for output that
	// cannot be redirected by changing os.Stderr.
	//
	// Since the output is slightly different, we add a greppable panic
	// prefix for now.
	fmt.Fprintf(os.Stderr, "panic in conn.Service: %v\n\n%s", e, debug.Stack())
	os.Exit(2)
}
