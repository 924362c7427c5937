package client

import (
	"bufio"
	"iter"
	"maps"
	"net"
	"strconv"

	"github.com/rs/zerolog"

	httperrors "github.com/nczempin/httpwire/errors"
	"github.com/nczempin/httpwire/protocol"
	"github.com/nczempin/httpwire/transport"
)

// State describes whether the client currently holds an open transport
type State int

const (
	// StateIdle means no transport is open
	StateIdle State = iota
	// StateRequesting means a transport was opened by the last request
	StateRequesting
)

func (s State) String() string {
	if s == StateRequesting {
		return "requesting"
	}
	return "idle"
}

// Client sends one request per connection to a fixed address. Every request
// carries the client's permanent headers unless the call overrides them.
//
// A Client is not safe for concurrent use.
type Client struct {
	addr    net.Addr
	opener  transport.Opener
	version string
	logger  zerolog.Logger

	header protocol.Header
	conn   transport.Transport
}

// New resolves hostport ("host:port") once and returns an idle client.
// The first resolved address is used for every request.
func New(hostport string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	addr, host, err := resolve(hostport)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug().Str("address", hostport).Stringer("resolved", addr).Msg("address resolved")

	if cfg.opener == nil {
		if cfg.secure {
			cfg.opener = transport.TlsOpener{Config: cfg.tlsConfig, ServerName: host}
		} else {
			cfg.opener = transport.TcpOpener{}
		}
	}

	return newClient(addr, cfg), nil
}

// NewAddr returns an idle client for an already resolved address, such as a
// *net.UnixAddr paired with WithOpener(transport.UnixOpener{}).
//
// There is no host name to verify against, so WithTLS needs a Config that
// sets ServerName (or InsecureSkipVerify) unless WithOpener is also given.
func NewAddr(addr net.Addr, opts ...Option) (*Client, error) {
	if addr == nil {
		return nil, httperrors.NewInvalidArgumentError("nil address")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.opener == nil {
		if cfg.secure {
			if cfg.tlsConfig == nil || (cfg.tlsConfig.ServerName == "" && !cfg.tlsConfig.InsecureSkipVerify) {
				return nil, httperrors.NewInvalidArgumentError("TLS config for " + addr.String() + " needs a ServerName")
			}
			cfg.opener = transport.TlsOpener{Config: cfg.tlsConfig}
		} else {
			cfg.opener = transport.TcpOpener{}
		}
	}

	return newClient(addr, cfg), nil
}

// Open creates a client for the given protocol, hiding which transport is used
func Open(proto Protocol, hostport string, opts ...Option) (*Client, error) {
	switch proto {
	case ProtocolHTTP:
		return New(hostport, opts...)
	case ProtocolHTTPS:
		return New(hostport, append([]Option{WithTLS(nil)}, opts...)...)
	default:
		return nil, httperrors.NewInvalidArgumentError("unknown protocol " + proto.String())
	}
}

func newClient(addr net.Addr, cfg config) *Client {
	return &Client{
		addr:    addr,
		opener:  cfg.opener,
		version: cfg.version,
		logger:  cfg.logger,
		header:  make(protocol.Header),
	}
}

// Addr returns the address every request is sent to
func (c *Client) Addr() net.Addr {
	return c.addr
}

// State reports whether a transport is currently open
func (c *Client) State() State {
	if c.conn == nil {
		return StateIdle
	}
	return StateRequesting
}

// Property returns a value from the permanent header set
func (c *Client) Property(name string) (string, bool) {
	return c.header.Get(name)
}

// SetProperty stores a header sent with every subsequent request
func (c *Client) SetProperty(name, value string) {
	c.header.Set(name, value)
}

// UnsetProperty removes a header from the permanent set
func (c *Client) UnsetProperty(name string) {
	c.header.Del(name)
}

// PropertyNames returns the permanent header names in sorted order
func (c *Client) PropertyNames() []string {
	return c.header.Names()
}

// Properties iterates over the permanent headers in no particular order
func (c *Client) Properties() iter.Seq2[string, string] {
	return maps.All(c.header)
}

// connect opens a fresh transport, abandoning the previous one
func (c *Client) connect() (transport.Transport, error) {
	c.Close()

	conn, err := c.opener.Open(c.addr)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.logger.Debug().Stringer("address", c.addr).Msg("transport opened")
	return conn, nil
}

// SendStream opens a new transport, writes the request line and the merged
// headers, and returns a writer on the client's transport so the caller can
// stream a body. The caller must Flush the writer, then call Reply.
func (c *Client) SendStream(method protocol.HttpMethod, path string, header protocol.Header) (*bufio.Writer, error) {
	if !method.Valid() {
		return nil, httperrors.NewInvalidArgumentError("unknown method " + method.String())
	}

	req := &protocol.HttpRequest{
		Method:  method,
		Path:    path,
		Version: c.version,
		Headers: protocol.Merge(c.header, header),
	}

	conn, err := c.connect()
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriter(conn)
	if err := req.WriteHead(w); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Stringer("method", method).
		Str("path", path).
		Int("headers", len(req.Headers)).
		Msg("request head written")
	return w, nil
}

// Reply parses the reply on the current transport. The returned Reply owns
// its own read handle and stays readable after the next request; Close it
// when done.
func (c *Client) Reply() (*protocol.Reply, error) {
	if c.conn == nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorNotConnected,
			"cannot get reply since no stream is opened",
			nil,
		)
	}

	rconn, err := c.conn.Dup()
	if err != nil {
		return nil, err
	}

	reply, err := protocol.ReadReply(rconn)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("version", reply.Version()).
		Int("code", reply.Code()).
		Str("status", reply.Status()).
		Msg("reply parsed")
	return reply, nil
}

// Send writes a complete request and parses the reply. A non-nil body gets a
// Content-Length header matching its size, overriding any given one.
func (c *Client) Send(method protocol.HttpMethod, path string, header protocol.Header, body []byte) (*protocol.Reply, error) {
	if body != nil {
		header = header.Clone()
		header.Set(protocol.HeaderContentLength, strconv.Itoa(len(body)))
	}

	w, err := c.SendStream(method, path, header)
	if err != nil {
		return nil, err
	}

	if err := protocol.WriteBody(w, body); err != nil {
		return nil, err
	}

	return c.Reply()
}

// Close releases the client's transport. Replies already returned keep
// their own handle.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
