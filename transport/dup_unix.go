//go:build unix

package transport

import (
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/httpwire/errors"
)

// dupFd duplicates a socket descriptor with close-on-exec set
func dupFd(fd int) (int, error) {
	nfd, err := unix.Dup(fd)
	if err != nil {
		return -1, httperrors.NewTransportError(
			httperrors.TransportErrorDupFailure,
			"failed to duplicate socket",
			err,
		)
	}
	unix.CloseOnExec(nfd)
	return nfd, nil
}

// dupConn returns a second net.Conn backed by a duplicate of conn's descriptor
func dupConn(conn net.Conn) (net.Conn, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorDupFailure,
			fmt.Sprintf("%T has no socket descriptor", conn),
			nil,
		)
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorDupFailure, "failed to access socket", err)
	}

	nfd := -1
	var dupErr error
	if err := raw.Control(func(fd uintptr) {
		nfd, dupErr = dupFd(int(fd))
	}); err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorDupFailure, "failed to access socket", err)
	}
	if dupErr != nil {
		return nil, dupErr
	}

	// FileConn takes its own copy of the descriptor
	f := os.NewFile(uintptr(nfd), "socket")
	defer f.Close()

	dup, err := net.FileConn(f)
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorDupFailure, "failed to wrap duplicated socket", err)
	}
	return dup, nil
}
