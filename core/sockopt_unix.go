//go:build unix

package core

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneConn disables Nagle's algorithm and enables TCP keepalive probes on
// accepted TCP sockets. Failures are ignored; the socket stays usable.
func tuneConn(c net.Conn) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}

	rc, err := tc.SyscallConn()
	if err != nil {
		return
	}

	rc.Control(func(fd uintptr) {
		// TCP_NODELAY: Disable Nagle's algorithm
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		// SO_KEEPALIVE: Enable TCP keepalive
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}
