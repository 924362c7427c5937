package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	httperrors "github.com/nczempin/httpwire/errors"
)

// dial opens a stream connection to addr with Nagle's algorithm disabled
func dial(addr net.Addr) (net.Conn, error) {
	if addr == nil {
		return nil, httperrors.NewInvalidArgumentError("nil address")
	}

	conn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		return nil, classifyDialError(addr, err)
	}

	// Set TCP_NODELAY to disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, httperrors.NewTransportError(
				httperrors.TransportErrorSocketCreateFailure,
				"failed to set TCP_NODELAY",
				err,
			)
		}
	}

	return conn, nil
}

// classifyDialError maps a dial failure onto a transport error code
func classifyDialError(addr net.Addr, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", addr),
			err,
		)
	}
	return httperrors.NewTransportError(
		httperrors.TransportErrorSocketConnectFailure,
		fmt.Sprintf("failed to connect to %s", addr),
		err,
	)
}

// readError passes io.EOF through untouched so bufio and io helpers
// see a clean end of stream; anything else is wrapped.
func readError(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection reset by peer", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
}

func writeError(err error) error {
	// Check for broken pipe or connection reset
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
}

func notConnected(op string) error {
	return httperrors.NewTransportError(httperrors.TransportErrorNotConnected, op+" on a closed transport", nil)
}
