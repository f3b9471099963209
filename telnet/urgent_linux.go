//go:build linux

package telnet

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// enableOOBInline keeps urgent data in the normal stream, so the DM that
// ends a telnet Synch is read like any other command.
func enableOOBInline(c net.Conn) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return
	}
	rc.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_OOBINLINE, 1)
	})
}

// atUrgentMark reports whether the socket's read position is at the urgent
// mark, i.e. the host has sent a Synch.
func atUrgentMark(c net.Conn) (mark bool) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false
	}
	rc.Control(func(fd uintptr) {
		v, err := unix.IoctlGetInt(int(fd), unix.SIOCATMARK)
		mark = err == nil && v != 0
	})
	return
}
