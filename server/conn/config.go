package conn

import "net"

// Mode governs which driver Http builds initially and whether h1→h2
// fallback is attempted.
type Mode int

const (
	// ModeFallback builds an HTTP/1 driver and transparently rebuilds
	// the connection as HTTP/2 if the client's first bytes turn out to
	// be the HTTP/2 connection preface.
	ModeFallback Mode = iota
	// ModeHTTP1Only always uses HTTP/1 and never transitions to h2,
	// even on observing the connection preface.
	ModeHTTP1Only
	// ModeHTTP2Only always uses HTTP/2; no HTTP/1 driver is ever
	// constructed.
	ModeHTTP2Only
)

// minMaxBufSize is the minimum allowed value for SetMaxBufSize.
// Constructing with a smaller value is a programming error.
const minMaxBufSize = 8192

const defaultMaxBufSize = 400 * 1024

// H2Settings holds the tunables forwarded to the HTTP/2 driver.
type H2Settings struct {
	// InitialStreamWindowSize is the initial flow-control window for
	// each stream. Zero uses the HTTP/2 default (65535).
	InitialStreamWindowSize uint32
	// InitialConnWindowSize is the initial flow-control window for
	// the whole connection. Zero uses the HTTP/2 default (65535).
	InitialConnWindowSize uint32
	// MaxConcurrentStreams limits streams a client may have open at
	// once. Zero means unlimited (the HTTP/2 driver advertises the
	// largest uint32 value).
	MaxConcurrentStreams uint32
}

// Http is a lower-level, immutable configuration of the HTTP protocol.
// Every setter returns a modified copy; Http is cheap to copy and
// carries no pointers you are expected to mutate through.
//
// If you don't need to manage connections yourself, use the
// higher-level Server in the parent package instead.
type Http struct {
	mode Mode

	h1KeepAlive     bool
	h1HalfClose     bool
	h1Writev        bool
	h1PipelineFlush bool
	h1MaxBufSize    int

	h2Settings H2Settings

	executor Executor
}

// New returns an Http value with spec.md §3's defaults: Fallback mode,
// keep-alive on, half-close on, writev on, pipeline flush off, an
// 8192-minimum/400KiB-default read buffer, and default HTTP/2 window
// sizes (65535) with no concurrent-stream ceiling.
func New() Http {
	return Http{
		mode:         ModeFallback,
		h1KeepAlive:  true,
		h1HalfClose:  true,
		h1Writev:     true,
		h1MaxBufSize: defaultMaxBufSize,
		executor:     GoExecutor{},
	}
}

// SetHTTP1Only sets or clears ModeHTTP1Only. Setting true implies
// HTTP/2-only is false; setting false restores Fallback. The last
// setter between SetHTTP1Only/SetHTTP2Only wins.
func (h Http) SetHTTP1Only(v bool) Http {
	if v {
		h.mode = ModeHTTP1Only
	} else if h.mode == ModeHTTP1Only {
		h.mode = ModeFallback
	}
	return h
}

// SetHTTP2Only sets or clears ModeHTTP2Only. Setting true implies
// HTTP/1-only is false; setting false restores Fallback. The last
// setter between SetHTTP1Only/SetHTTP2Only wins.
func (h Http) SetHTTP2Only(v bool) Http {
	if v {
		h.mode = ModeHTTP2Only
	} else if h.mode == ModeHTTP2Only {
		h.mode = ModeFallback
	}
	return h
}

// Mode reports the current mode.
func (h Http) Mode() Mode { return h.mode }

// SetKeepAlive toggles HTTP/1 keep-alive. Default true.
func (h Http) SetKeepAlive(v bool) Http { h.h1KeepAlive = v; return h }

// SetHalfClose toggles HTTP/1 half-close behavior. Default true.
func (h Http) SetHalfClose(v bool) Http { h.h1HalfClose = v; return h }

// SetWritev toggles vectored writes for HTTP/1 responses. Default
// true. Treated as opaque to Connection; only the HTTP/1 driver
// interprets it.
func (h Http) SetWritev(v bool) Http { h.h1Writev = v; return h }

// SetPipelineFlush toggles flushing after every pipelined response
// instead of batching. Default false. Treated as opaque to Connection.
func (h Http) SetPipelineFlush(v bool) Http { h.h1PipelineFlush = v; return h }

// SetMaxBufSize sets the HTTP/1 read buffer size. n must be at least
// 8192; a smaller value is a programming error and panics immediately
// (fails loudly, per spec.md §4.1).
func (h Http) SetMaxBufSize(n int) Http {
	if n < minMaxBufSize {
		panic("conn: SetMaxBufSize: n must be at least 8192")
	}
	h.h1MaxBufSize = n
	return h
}

// SetInitialStreamWindowSize sets the HTTP/2 per-stream flow-control
// window.
func (h Http) SetInitialStreamWindowSize(n uint32) Http {
	h.h2Settings.InitialStreamWindowSize = n
	return h
}

// SetInitialConnWindowSize sets the HTTP/2 connection-wide
// flow-control window.
func (h Http) SetInitialConnWindowSize(n uint32) Http {
	h.h2Settings.InitialConnWindowSize = n
	return h
}

// SetMaxConcurrentStreams sets the HTTP/2 concurrent-stream ceiling.
func (h Http) SetMaxConcurrentStreams(n uint32) Http {
	h.h2Settings.MaxConcurrentStreams = n
	return h
}

// SetExecutor sets the Executor that Bind hands to the HTTP/2 driver.
// The HTTP/2 driver does not spawn its goroutines through it, and the
// HTTP/1 driver does not receive it, so no background task of a
// Connection runs on it; SpawnLoop takes its own Executor. Calling it
// twice keeps only the most recent value, with every other field
// preserved.
func (h Http) SetExecutor(e Executor) Http {
	h.executor = e
	return h
}

// Bind constructs a Connection over c, driven by svc, per the
// construction rule in spec.md §4.1.
func (h Http) Bind(c net.Conn, svc Service) *Connection {
	fb := fallbackPolicy{}
	if h.mode == ModeFallback {
		fb = fallbackPolicy{active: true, settings: h.h2Settings, executor: h.executor}
	}

	if h.mode == ModeHTTP2Only {
		rs := NewRewindStream(c)
		return &Connection{
			tag:      tagH2,
			h2:       newHTTP2Driver(rs, svc, h.h2Settings, h.executor),
			fallback: fb,
		}
	}

	opts := h1Options{
		keepAlive:     h.h1KeepAlive,
		halfClose:     h.h1HalfClose,
		writev:        h.h1Writev,
		pipelineFlush: h.h1PipelineFlush,
		maxBufSize:    h.h1MaxBufSize,
	}
	return &Connection{
		tag:      tagH1,
		h1:       newHTTP1Driver(c, svc, opts),
		fallback: fb,
	}
}

// BindIncoming pairs incoming with factory, producing a
// ConnectionStream that yields a Connecting per accepted connection.
func (h Http) BindIncoming(incoming Incoming, factory ServiceFactory) *ConnectionStream {
	return newConnectionStream(incoming, factory, h)
}
