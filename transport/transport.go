package transport

import "net"

// Transport defines the interface for an open, duplicable network stream
type Transport interface {
	// Write sends data over the connection
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// Read receives data from the connection
	// Returns the number of bytes read, or io.EOF once the peer has closed
	Read(buf []byte) (int, error)

	// Close releases this handle. The connection itself stays open
	// until every duplicate has been closed.
	Close() error

	// Dup returns an independent handle over the same connection
	Dup() (Transport, error)
}

// Opener establishes a Transport to a resolved address
type Opener interface {
	Open(addr net.Addr) (Transport, error)
}

// OpenerFunc adapts a plain function to the Opener interface
type OpenerFunc func(addr net.Addr) (Transport, error)

// Open calls f(addr)
func (f OpenerFunc) Open(addr net.Addr) (Transport, error) {
	return f(addr)
}
