//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// enableQuickAck sets TCP_QUICKACK so delayed-ACK doesn't add latency to the
// next outbound packet after a read. Best-effort: failures are ignored, the
// socket works fine without it.
func enableQuickAck(conn *net.TCPConn) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
}
