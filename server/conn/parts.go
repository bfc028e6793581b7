package conn

import "net"

// Parts are the deconstructed pieces of a Connection, reclaimed after
// it has finished driving HTTP/1 to completion. See
// Connection.IntoParts / Connection.TryIntoParts.
type Parts struct {
	// IO is the original network connection used for the handshake.
	IO net.Conn

	// ReadBuf holds bytes that were read from IO but not consumed as
	// HTTP. It is non-empty only when the connection ended with an
	// upgrade. Check it before doing anything else with IO.
	ReadBuf []byte

	// Service is the Service instance that served this connection.
	Service Service
}
