// Package hyper provides a Server builder around the lower-level,
// per-connection driver in the server/conn package: TCP/TLS listener
// helpers, ALPN-aware opportunistic TLS, graceful shutdown across many
// listeners, and a handful of conn.Service middlewares (panic safety,
// shutdown-abort, gRPC content-type routing) in the spirit of
// net/http's own middleware idioms.
//
// If you need to manage connections yourself — arbitrary transports,
// custom accept loops, protocol upgrades — use server/conn directly
// instead.
package hyper
