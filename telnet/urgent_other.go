//go:build !linux

package telnet

import "net"

func enableOOBInline(net.Conn) {}

func atUrgentMark(net.Conn) bool { return false }
