//go:build unix

package rtmp

import (
	"net"

	"golang.org/x/sys/unix"
)

// DetachFD duplicates the descriptor of conn in blocking mode and closes
// conn. The caller owns the returned descriptor.
func DetachFD(conn *net.TCPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	fd := -1
	var dupErr error
	err = raw.Control(func(s uintptr) {
		fd, dupErr = unix.Dup(int(s))
	})
	if err != nil {
		return -1, err
	}
	if dupErr != nil {
		return -1, dupErr
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	unix.CloseOnExec(fd)

	if err := conn.Close(); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

// shutdownFD stops both directions of fd without releasing the descriptor,
// so it cannot be reused while the engine still holds it.
func shutdownFD(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_RDWR)
}
