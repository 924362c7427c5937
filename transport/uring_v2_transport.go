//go:build linux

package transport

import (
	"fmt"
	"io"
	"net"

	"github.com/godzie44/go-uring/uring"
	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpwire/errors"
)

// UringV2Opener opens TCP transports driven by godzie44/go-uring
type UringV2Opener struct {
	Entries uint32
}

// Open connects to a *net.TCPAddr with a blocking connect, then hands
// all further I/O to the ring
func (o UringV2Opener) Open(addr net.Addr) (Transport, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, httperrors.NewInvalidArgumentError(fmt.Sprintf("io_uring TCP transport needs a TCP address, got %T", addr))
	}

	ring, err := newV2Ring(o.Entries)
	if err != nil {
		return nil, err
	}

	family, sa := unixSockaddr(tcpAddr)

	// Create socket
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		ring.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to create socket",
			err,
		)
	}

	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		ring.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketConnectFailure,
			fmt.Sprintf("failed to connect to %s", addr),
			err,
		)
	}

	// Set TCP_NODELAY
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		ring.Close()
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorSocketCreateFailure,
			"failed to set TCP_NODELAY",
			err,
		)
	}

	return &UringV2Transport{ring: ring, entries: o.Entries, fd: fd}, nil
}

func unixSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa4.Addr[:], ip4)
		return unix.AF_INET, sa4
	}
	sa6 := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa6.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa6
}

func newV2Ring(entries uint32) (*uring.Ring, error) {
	if entries == 0 {
		entries = defaultRingEntries
	}
	ring, err := uring.New(entries)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return ring, nil
}

// UringV2Transport implements Transport using godzie44/go-uring. Every
// handle owns its ring, so a read blocked on one duplicate never holds up
// a write on another.
type UringV2Transport struct {
	ring    *uring.Ring
	entries uint32
	fd      int
}

// do runs one operation to completion on this handle's ring
func (t *UringV2Transport) do(op uring.Operation) (int, error) {
	if err := t.ring.QueueSQE(op, 0, 0); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to queue request",
			err,
		)
	}

	if _, err := t.ring.Submit(); err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to submit request",
			err,
		)
	}

	cqe, err := t.ring.WaitCQEvents(1)
	if err != nil {
		return 0, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringSubmit,
			"failed to wait for completion",
			err,
		)
	}
	defer t.ring.SeenCQE(cqe)

	if err := cqe.Error(); err != nil {
		return 0, err
	}
	return int(cqe.Res), nil
}

// Write sends data over the connection using io_uring
func (t *UringV2Transport) Write(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected("write")
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		n, err := t.do(uring.Write(uintptr(t.fd), buf[totalWritten:], 0))
		if err != nil {
			if _, ok := err.(*httperrors.HttpError); ok {
				return totalWritten, err
			}
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
func (t *UringV2Transport) Read(buf []byte) (int, error) {
	if t.fd < 0 {
		return 0, notConnected("read")
	}

	n, err := t.do(uring.Read(uintptr(t.fd), buf, 0))
	if err != nil {
		if _, ok := err.(*httperrors.HttpError); ok {
			return 0, err
		}
		return 0, readError(err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

// Dup duplicates the socket descriptor onto a ring of its own
func (t *UringV2Transport) Dup() (Transport, error) {
	if t.fd < 0 {
		return nil, notConnected("dup")
	}

	ring, err := newV2Ring(t.entries)
	if err != nil {
		return nil, err
	}

	fd, err := dupFd(t.fd)
	if err != nil {
		ring.Close()
		return nil, err
	}
	return &UringV2Transport{ring: ring, entries: t.entries, fd: fd}, nil
}

// Close closes the descriptor and the ring of this handle
func (t *UringV2Transport) Close() error {
	if t.fd < 0 {
		return nil
	}

	err := unix.Close(t.fd)
	t.fd = -1
	if ringErr := t.ring.Close(); err == nil {
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
