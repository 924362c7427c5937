package client

import (
	"crypto/tls"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpwire/transport"
)

// Protocol selects the transport family used by Open
type Protocol int

const (
	// ProtocolHTTP is plain HTTP over TCP
	ProtocolHTTP Protocol = iota
	// ProtocolHTTPS is HTTP over TLS
	ProtocolHTTPS
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP:
		return "http"
	case ProtocolHTTPS:
		return "https"
	default:
		return "unknown"
	}
}

type config struct {
	opener    transport.Opener
	tlsConfig *tls.Config
	secure    bool
	version   string
	logger    zerolog.Logger
}

func defaultConfig() config {
	return config{logger: zerolog.Nop()}
}

// Option configures a Client
type Option func(*config)

// WithOpener sets the transport used for every request, e.g. a
// transport.UringOpener. It takes precedence over WithTLS.
func WithOpener(o transport.Opener) Option {
	return func(c *config) {
		c.opener = o
	}
}

// WithTLS makes the client speak TLS. A nil cfg verifies against the
// system roots using the host name the client was created with.
func WithTLS(cfg *tls.Config) Option {
	return func(c *config) {
		c.secure = true
		c.tlsConfig = cfg
	}
}

// WithRequestVersion appends a protocol token such as "HTTP/1.1" to every
// request line. By default none is sent.
func WithRequestVersion(version string) Option {
	return func(c *config) {
		c.version = version
	}
}

// WithLogger sets the logger for debug events. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
