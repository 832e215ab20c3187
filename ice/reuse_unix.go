//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package ice

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl lets several connected probe sockets share one local
// address. The kernel delivers each datagram to the socket connected to
// its source.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); serr != nil {
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
