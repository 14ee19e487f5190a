//go:build !unix

package rtmp

import (
	"errors"
	"net"
)

// ErrDetachUnsupported is returned by DetachFD on platforms without
// unix socket descriptors.
var ErrDetachUnsupported = errors.New("descriptor detach not supported on this platform")

// DetachFD is not supported on this platform.
func DetachFD(conn *net.TCPConn) (int, error) {
	return -1, ErrDetachUnsupported
}

func closeFD(fd int) error { return nil }

func shutdownFD(fd int) error { return nil }
