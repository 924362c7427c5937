//go:build !unix

package transport

import (
	"net"

	httperrors "github.com/nczempin/httpwire/errors"
)

func dupConn(conn net.Conn) (net.Conn, error) {
	return nil, httperrors.NewTransportError(
		httperrors.TransportErrorDupFailure,
		"socket duplication is not supported on this platform",
		nil,
	)
}
