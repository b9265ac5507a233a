//go:build !linux

package transport

import "net"

// enableQuickAck is a no-op on non-Linux platforms; TCP_QUICKACK is
// Linux-specific.
func enableQuickAck(conn *net.TCPConn) {}
