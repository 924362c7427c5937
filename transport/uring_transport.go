//go:build linux

package transport

import (
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/iceber/iouring-go"

	httperrors "github.com/nczempin/httpwire/errors"
)

const defaultRingEntries = 32

// UringOpener opens TCP transports whose I/O is submitted through io_uring
type UringOpener struct {
	// Entries is the ring queue depth; zero means 32
	Entries uint
}

// Open connects to a *net.TCPAddr using an io_uring connect request
func (o UringOpener) Open(addr net.Addr) (Transport, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, httperrors.NewInvalidArgumentError(fmt.Sprintf("io_uring TCP transport needs a TCP address, got %T", addr))
	}

	iour, err := newRing(o.Entries)
	if err != nil {
		return nil, err
	}

	family, sa := tcpSockaddr(tcpAddr)

	// Create socket
	fd, err := syscall.Socket(family, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	// Set TCP_NODELAY
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	// Submit connect operation via io_uring. The socket stays blocking;
	// the ring polls or punts to its workers as needed.
	prepReq, err := iouring.Connect(fd, sa)
	if err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to prepare connect request",
			err,
		)
	}

	ch := make(chan iouring.Result, 1)
	if _, err := iour.SubmitRequest(prepReq, ch); err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit connect request",
			err,
		)
	}

	// Wait for connect to complete
	result := <-ch
	if _, err := result.ReturnInt(); err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr),
			err,
		)
	}

	return newUringTransport(iour, fd), nil
}

// UnixOpener opens unix domain socket transports driven by io_uring.
// The address is a *net.UnixAddr naming the socket path.
type UnixOpener struct {
	Entries uint
}

// Open connects to the unix socket at addr
func (o UnixOpener) Open(addr net.Addr) (Transport, error) {
	unixAddr, ok := addr.(*net.UnixAddr)
	if !ok {
		return nil, httperrors.NewInvalidArgumentError(fmt.Sprintf("unix transport needs a unix address, got %T", addr))
	}

	iour, err := newRing(o.Entries)
	if err != nil {
		return nil, err
	}

	// Create Unix domain socket
	fd, err := syscall.Socket(syscall.AF_UNIX, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	// Use blocking connect (io_uring connect support is limited)
	if err := syscall.Connect(fd, &syscall.SockaddrUnix{Name: unixAddr.Name}); err != nil {
		syscall.Close(fd)
		iour.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to unix socket %s", unixAddr.Name),
			err,
		)
	}

	return newUringTransport(iour, fd), nil
}

func newRing(entries uint) (*iouring.IOURing, error) {
	if entries == 0 {
		entries = defaultRingEntries
	}
	iour, err := iouring.New(entries)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return iour, nil
}

func tcpSockaddr(addr *net.TCPAddr) (int, syscall.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &syscall.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		return syscall.AF_INET, sa4
	}
	sa6 := &syscall.SockaddrInet6{Port: addr.Port}
	copy(sa6.Addr[:], addr.IP.To16())
	return syscall.AF_INET6, sa6
}

// UringTransport implements Transport on a raw socket using io_uring for I/O.
// Duplicates own their own descriptor and share the ring, which is closed
// with the last handle.
type UringTransport struct {
	iour *iouring.IOURing
	ring *refCount
	fd   int
}

func newUringTransport(iour *iouring.IOURing, fd int) *UringTransport {
	return &UringTransport{
		iour: iour,
		ring: newRefCount(iour.Close),
		fd:   fd,
	}
}

// Write sends data over the connection using io_uring
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected("write")
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		if _, err := t.iour.SubmitRequest(iouring.Send(t.fd, buf[totalWritten:], 0), ch); err != nil {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return totalWritten, writeError(err)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (t *UringTransport) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected("read")
	}

	ch := make(chan iouring.Result, 1)
	if _, err := t.iour.SubmitRequest(iouring.Recv(t.fd, buf, 0), ch); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, readError(err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

// Dup duplicates the socket descriptor and shares the ring
func (t *UringTransport) Dup() (Transport, error) {
	if t.fd < 0 || !t.ring.retain() {
		return nil, notConnected("dup")
	}

	fd, err := dupFd(t.fd)
	if err != nil {
		t.ring.drop()
		return nil, err
	}
	return &UringTransport{iour: t.iour, ring: t.ring, fd: fd}, nil
}

// Close closes this descriptor, and the ring once no duplicate uses it
func (t *UringTransport) Close() error {
	if t.fd < 0 {
		return nil // Already closed
	}

	err := syscall.Close(t.fd)
	t.fd = -1
	if ringErr := t.ring.drop(); err == nil {
		err = ringErr
	}

	if err != nil {
		return httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"failed to close socket",
			err,
		)
	}
	return nil
}
