package transport

import (
	"crypto/tls"
	"fmt"
	"net"

	httperrors "github.com/nczempin/httpwire/errors"
)

// TlsOpener opens TCP connections and runs a TLS client handshake over them.
// Certificate verification follows Config; a nil Config verifies against the
// system roots.
type TlsOpener struct {
	Config *tls.Config

	// ServerName is used for SNI and verification when Config leaves it empty
	ServerName string
}

// Open connects to addr and completes the handshake before returning
func (o TlsOpener) Open(addr net.Addr) (Transport, error) {
	cfg := o.Config
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" && o.ServerName != "" {
		cfg = cfg.Clone()
		cfg.ServerName = o.ServerName
	}

	raw, err := dial(addr)
	if err != nil {
		return nil, err
	}

	conn := tls.Client(raw, cfg)
	if err := conn.Handshake(); err != nil {
		raw.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorTlsHandshakeFailure,
			fmt.Sprintf("handshake with %s failed", addr),
			err,
		)
	}

	return &TlsTransport{
		conn: conn,
		refs: newRefCount(conn.Close),
	}, nil
}

// TlsTransport implements Transport over an established TLS session.
// Duplicates share the session: tls.Conn supports one reader and one
// writer running concurrently.
type TlsTransport struct {
	conn   *tls.Conn
	refs   *refCount
	closed bool
}

// Write encrypts and sends data
func (t *TlsTransport) Write(buf []byte) (int, error) {
	if t.closed {
		return 0, notConnected("write")
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		return n, writeError(err)
	}
	return n, nil
}

// Read receives and decrypts data
func (t *TlsTransport) Read(buf []byte) (int, error) {
	if t.closed {
		return 0, notConnected("read")
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return n, readError(err)
	}
	return n, nil
}

// Dup returns another handle on the same session
func (t *TlsTransport) Dup() (Transport, error) {
	if t.closed || !t.refs.retain() {
		return nil, notConnected("dup")
	}
	return &TlsTransport{conn: t.conn, refs: t.refs}, nil
}

// ConnectionState reports the negotiated session parameters
func (t *TlsTransport) ConnectionState() tls.ConnectionState {
	return t.conn.ConnectionState()
}

// Close releases this handle; the session is closed with the last one
func (t *TlsTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.refs.drop(); err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "failed to close TLS session", err)
	}
	return nil
}
