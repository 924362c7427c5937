package client

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/idna"

	httperrors "github.com/nczempin/httpwire/errors"
)

// resolve turns "host:port" into the first TCP address the resolver offers.
// Internationalized host names are converted to their ASCII form first.
func resolve(hostport string) (*net.TCPAddr, string, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("invalid address %q", hostport),
			err,
		)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("invalid port in %q", hostport),
			err,
		)
	}

	if ip := net.ParseIP(host); ip != nil {
		return &net.TCPAddr{IP: ip, Port: int(port)}, host, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("invalid host name %q", host),
			err,
		)
	}

	ips, err := net.LookupIP(ascii)
	if err != nil {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("failed to resolve %s", ascii),
			err,
		)
	}
	if len(ips) == 0 {
		return nil, "", httperrors.NewTransportError(
			httperrors.TransportErrorDnsFailure,
			fmt.Sprintf("cannot resolve address %s", ascii),
			nil,
		)
	}

	return &net.TCPAddr{IP: ips[0], Port: int(port)}, ascii, nil
}
