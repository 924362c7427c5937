package client

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	httperrors "github.com/nczempin/httpwire/errors"
	"github.com/nczempin/httpwire/protocol"
	"github.com/nczempin/httpwire/transport"
)

// setupTestServer answers each accepted connection with the next canned
// response and hands the raw request it read to the test.
func setupTestServer(t *testing.T, responses ...string) (string, <-chan string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	requests := make(chan string, len(responses))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, response := range responses {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			requests <- readRequest(conn)
			conn.Write([]byte(response))
			conn.Close()
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	return listener.Addr().String(), requests
}

// readRequest reads a request head and as many body bytes as Content-Length declares
func readRequest(conn net.Conn) string {
	br := bufio.NewReader(conn)
	var sb strings.Builder
	length := 0
	for {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if err != nil || line == "\r\n" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	body := make([]byte, length)
	io.ReadFull(br, body)
	sb.Write(body)
	return sb.String()
}

func TestClient_Send_RoundTrip(t *testing.T) {
	addr, requests := setupTestServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, StateIdle, c.State())

	reply, err := c.Send(protocol.MethodGet, "/", protocol.Header{"test": "toto"}, nil)
	require.NoError(t, err)
	defer reply.Close()
	require.Equal(t, StateRequesting, c.State())

	require.Equal(t, "GET /\r\ntest: toto\r\n\r\n", <-requests)

	require.Equal(t, "HTTP/1.1", reply.Version())
	require.Equal(t, 200, reply.Code())
	require.Equal(t, "OK", reply.Status())
	require.Equal(t, protocol.Header{"Content-Length": "5"}, reply.Header())

	body, err := reply.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", body)
}

func TestClient_Send_Body(t *testing.T) {
	addr, requests := setupTestServer(t, "HTTP/1.1 201 Created\r\nContent-Length: 7\r\n\r\nCreated")

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	explicit := protocol.Header{"Content-Length": "999"}
	reply, err := c.Send(protocol.MethodPost, "/create", explicit, []byte("tatayoyo"))
	require.NoError(t, err)
	defer reply.Close()

	request := <-requests
	require.True(t, strings.HasPrefix(request, "POST /create\r\n"))
	require.Contains(t, request, "\r\nContent-Length: 8\r\n")
	require.True(t, strings.HasSuffix(request, "\r\n\r\ntatayoyo"))
	require.Equal(t, "999", explicit["Content-Length"], "caller's header must not be modified")

	require.Equal(t, 201, reply.Code())
}

func TestClient_Send_EmptyBodyDeclaresZeroLength(t *testing.T) {
	addr, requests := setupTestServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Send(protocol.MethodPut, "/empty", nil, []byte{})
	require.NoError(t, err)
	defer reply.Close()

	require.Equal(t, "PUT /empty\r\nContent-Length: 0\r\n\r\n", <-requests)
}

func TestClient_PermanentProperties(t *testing.T) {
	addr, requests := setupTestServer(t,
		"HTTP/1.1 200 OK\r\n\r\n",
		"HTTP/1.1 200 OK\r\n\r\n",
		"HTTP/1.1 200 OK\r\n\r\n",
	)

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	c.SetProperty("perm", "test")
	value, ok := c.Property("perm")
	require.True(t, ok)
	require.Equal(t, "test", value)

	reply, err := c.Send(protocol.MethodGet, "/", nil, nil)
	require.NoError(t, err)
	reply.Close()
	require.Contains(t, <-requests, "\r\nperm: test\r\n")

	// An explicit value wins for that call only
	reply, err = c.Send(protocol.MethodGet, "/", protocol.Header{"perm": "override"}, nil)
	require.NoError(t, err)
	reply.Close()
	request := <-requests
	require.Contains(t, request, "\r\nperm: override\r\n")
	require.NotContains(t, request, "perm: test")
	value, _ = c.Property("perm")
	require.Equal(t, "test", value)

	c.UnsetProperty("perm")
	reply, err = c.Send(protocol.MethodGet, "/", nil, nil)
	require.NoError(t, err)
	reply.Close()
	require.NotContains(t, <-requests, "perm")
}

func TestClient_PropertyIteration(t *testing.T) {
	c, err := New("127.0.0.1:80")
	require.NoError(t, err)

	c.SetProperty("b", "2")
	c.SetProperty("a", "1")
	require.Equal(t, []string{"a", "b"}, c.PropertyNames())

	seen := map[string]string{}
	for name, value := range c.Properties() {
		seen[name] = value
	}
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)

	_, ok := c.Property("missing")
	require.False(t, ok)
}

func TestClient_SendStream_ThenReply(t *testing.T) {
	addr, requests := setupTestServer(t, "HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nok")

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	w, err := c.SendStream(protocol.MethodPatch, "/stream", protocol.Header{"Content-Length": "6"})
	require.NoError(t, err)
	_, err = w.WriteString("abc")
	require.NoError(t, err)
	_, err = w.WriteString("def")
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	reply, err := c.Reply()
	require.NoError(t, err)
	defer reply.Close()

	require.Equal(t, "PATCH /stream\r\nContent-Length: 6\r\n\r\nabcdef", <-requests)
	body, err := reply.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestClient_SendStream_UnknownMethodOpensNothing(t *testing.T) {
	opened := 0
	opener := transport.OpenerFunc(func(a net.Addr) (transport.Transport, error) {
		opened++
		return transport.TcpOpener{}.Open(a)
	})

	c, err := New("127.0.0.1:80", WithOpener(opener))
	require.NoError(t, err)

	w, err := c.SendStream(protocol.HttpMethod(99), "/", nil)
	require.Nil(t, w)
	require.True(t, isInvalidArgument(err), "got %v", err)
	require.Zero(t, opened)
	require.Equal(t, StateIdle, c.State())
}

func isInvalidArgument(err error) bool {
	var httpErr *httperrors.HttpError
	return errors.As(err, &httpErr) && httpErr.Type == httperrors.ErrorInvalidArgument
}

func TestClient_Reply_NotConnected(t *testing.T) {
	c, err := New("127.0.0.1:80")
	require.NoError(t, err)

	reply, err := c.Reply()
	require.Nil(t, reply)
	require.True(t, httperrors.IsTransport(err, httperrors.TransportErrorNotConnected))
}

func TestClient_Send_MalformedReply(t *testing.T) {
	addr, _ := setupTestServer(t, "garbage\r\n\r\n")

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Send(protocol.MethodGet, "/", nil, nil)
	require.Nil(t, reply)
	require.True(t, httperrors.IsProtocol(err, httperrors.ProtocolErrorInvalidStatusLine))
}

func TestClient_ReplyOutlivesNextSend(t *testing.T) {
	addr, _ := setupTestServer(t,
		"HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nfirst",
		"HTTP/1.1 200 OK\r\nContent-Length: 6\r\n\r\nsecond",
	)

	c, err := New(addr)
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Send(protocol.MethodGet, "/1", nil, nil)
	require.NoError(t, err)
	defer first.Close()

	second, err := c.Send(protocol.MethodGet, "/2", nil, nil)
	require.NoError(t, err)
	defer second.Close()

	body, err := first.ReadString()
	require.NoError(t, err)
	require.Equal(t, "first", body)

	body, err = second.ReadString()
	require.NoError(t, err)
	require.Equal(t, "second", body)
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	c, err := New(addr)
	require.NoError(t, err)

	_, err = c.Send(protocol.MethodGet, "/", nil, nil)
	require.True(t, httperrors.IsTransport(err, httperrors.TransportErrorSocketConnectFailure), "got %v", err)
	require.Equal(t, StateIdle, c.State())
}

func TestNew_AddressErrors(t *testing.T) {
	for _, hostport := range []string{"no-port", "127.0.0.1:http-ish", "127.0.0.1:70000"} {
		_, err := New(hostport)
		require.True(t, httperrors.IsTransport(err, httperrors.TransportErrorDnsFailure), "%s: %v", hostport, err)
	}
}

func TestOpen_UnknownProtocol(t *testing.T) {
	_, err := Open(Protocol(7), "127.0.0.1:80")
	require.Error(t, err)
}

func TestOpen_HTTPS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s %s perm=%s", r.Method, r.URL.Path, r.Header.Get("Perm"))
	}))
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	hostport := strings.TrimPrefix(srv.URL, "https://")
	c, err := Open(ProtocolHTTPS, hostport,
		WithTLS(&tls.Config{RootCAs: pool}),
		WithRequestVersion("HTTP/1.1"),
	)
	require.NoError(t, err)
	defer c.Close()

	c.SetProperty("Host", hostport)
	c.SetProperty("Perm", "test")
	c.SetProperty("Connection", "close")

	reply, err := c.Send(protocol.MethodGet, "/secure", nil, nil)
	require.NoError(t, err)
	defer reply.Close()

	require.Equal(t, 200, reply.Code())
	body, err := reply.ReadString()
	require.NoError(t, err)
	require.Equal(t, "GET /secure perm=test", body)
}

func TestOpen_HTTPS_RejectsUntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	c, err := Open(ProtocolHTTPS, strings.TrimPrefix(srv.URL, "https://"))
	require.NoError(t, err)

	_, err = c.Send(protocol.MethodGet, "/", nil, nil)
	require.True(t, httperrors.IsTransport(err, httperrors.TransportErrorTlsHandshakeFailure), "got %v", err)
}

func TestClient_WithOpener(t *testing.T) {
	addr, _ := setupTestServer(t, "HTTP/1.1 200 OK\r\n\r\n")

	opened := 0
	opener := transport.OpenerFunc(func(a net.Addr) (transport.Transport, error) {
		opened++
		return transport.TcpOpener{}.Open(a)
	})

	c, err := New(addr, WithOpener(opener))
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Send(protocol.MethodOptions, "*", nil, nil)
	require.NoError(t, err)
	reply.Close()
	require.Equal(t, 1, opened)
}

func TestClient_NewAddr(t *testing.T) {
	_, err := NewAddr(nil)
	require.Error(t, err)

	addr, _ := setupTestServer(t, "HTTP/1.1 200 OK\r\n\r\n")
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)

	c, err := NewAddr(tcpAddr)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, tcpAddr, c.Addr())

	reply, err := c.Send(protocol.MethodGet, "/", nil, nil)
	require.NoError(t, err)
	reply.Close()
}

func TestNewAddr_TLSNeedsServerName(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 443}

	_, err := NewAddr(addr, WithTLS(nil))
	require.True(t, isInvalidArgument(err), "got %v", err)

	_, err = NewAddr(addr, WithTLS(&tls.Config{}))
	require.True(t, isInvalidArgument(err), "got %v", err)

	c, err := NewAddr(addr, WithTLS(&tls.Config{ServerName: "localhost"}))
	require.NoError(t, err)
	require.Equal(t, StateIdle, c.State())

	_, err = NewAddr(addr, WithTLS(nil), WithOpener(transport.TcpOpener{}))
	require.NoError(t, err)
}

func TestClient_Logging(t *testing.T) {
	addr, _ := setupTestServer(t, "HTTP/1.1 200 OK\r\n\r\n")

	var buf bytes.Buffer
	c, err := New(addr, WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Send(protocol.MethodGet, "/", nil, nil)
	require.NoError(t, err)
	reply.Close()

	out := buf.String()
	require.Contains(t, out, `"message":"address resolved"`)
	require.Contains(t, out, `"message":"transport opened"`)
	require.Contains(t, out, `"message":"request head written"`)
	require.Contains(t, out, `"code":200`)
}
