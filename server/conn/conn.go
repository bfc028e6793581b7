// Package conn provides a lower-level HTTP server connection API.
//
// The types in this package drive a single, already-accepted network
// connection through an HTTP/1.x or HTTP/2 conversation to completion.
// Accepting connections, TLS, routing, and the high-level server
// builder are not handled at this level — see the parent package for
// that. This package provides the building blocks to customize those
// things externally.
//
// If you don't need to manage connections yourself, use the
// higher-level Server in the parent package instead.
package conn
