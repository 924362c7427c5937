package transport

import (
	"net"

	httperrors "github.com/nczempin/httpwire/errors"
)

// TcpOpener opens plain TCP transports
type TcpOpener struct{}

// Open establishes a TCP connection to addr
func (TcpOpener) Open(addr net.Addr) (Transport, error) {
	conn, err := dial(addr)
	if err != nil {
		return nil, err
	}
	return NewTcpTransport(conn), nil
}

// TcpTransport implements Transport over a net.Conn
type TcpTransport struct {
	conn net.Conn
}

// NewTcpTransport wraps an already connected net.Conn
func NewTcpTransport(conn net.Conn) *TcpTransport {
	return &TcpTransport{conn: conn}
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, notConnected("write")
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		return n, writeError(err)
	}
	return n, nil
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, notConnected("read")
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return n, readError(err)
	}
	return n, nil
}

// Dup clones the socket handle
func (t *TcpTransport) Dup() (Transport, error) {
	if t.conn == nil {
		return nil, notConnected("dup")
	}

	conn, err := dupConn(t.conn)
	if err != nil {
		return nil, err
	}
	return &TcpTransport{conn: conn}, nil
}

// Close closes this handle
func (t *TcpTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "failed to close socket", err)
	}
	return nil
}
