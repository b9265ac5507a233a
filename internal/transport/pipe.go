// Package transport drives one TLS connection over a raw, non-blocking TCP
// socket without ever letting a read or write call park the calling
// goroutine. Go's crypto/tls does not expose rustls's split
// read_tls/write_tls/read_plaintext/write_plaintext contract directly, so
// this package interposes a small in-memory byte-buffer net.Conn between
// tls.Conn and the wire: tls.Conn only ever talks to the buffers, and the
// five methods below are the only code that ever touches the real socket.
package transport

import (
	"bytes"
	"crypto/tls"
	"errors"
	"net"
	"syscall"
	"time"
)

// errWouldBlock is returned by bufConn's Read when no ciphertext has been
// staged yet. It satisfies net.Error so callers can recognize it the same
// way they would recognize a real non-blocking-socket EAGAIN.
type errWouldBlock struct{}

func (errWouldBlock) Error() string   { return "transport: would block" }
func (errWouldBlock) Timeout() bool   { return true }
func (errWouldBlock) Temporary() bool { return true }

// bufConn is a net.Conn whose Read/Write never touch a real socket; Pipe
// pumps bytes in and out of its two buffers explicitly.
type bufConn struct {
	in  bytes.Buffer // ciphertext received from the wire, staged for tls.Conn.Read
	out bytes.Buffer // ciphertext tls.Conn wrote, staged for the wire
}

func (c *bufConn) Read(p []byte) (int, error) {
	if c.in.Len() == 0 {
		return 0, errWouldBlock{}
	}
	return c.in.Read(p)
}

func (c *bufConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *bufConn) Close() error                { return nil }
func (c *bufConn) LocalAddr() net.Addr         { return nil }
func (c *bufConn) RemoteAddr() net.Addr        { return nil }
func (c *bufConn) SetDeadline(time.Time) error      { return nil }
func (c *bufConn) SetReadDeadline(time.Time) error  { return nil }
func (c *bufConn) SetWriteDeadline(time.Time) error { return nil }

// Pipe owns one raw TCP socket and the tls.Conn layered on top of it via
// bufConn. No internal mutex: the pipe is owned exclusively by the hot
// thread that calls its methods.
type Pipe struct {
	raw   *net.TCPConn
	buf   *bufConn
	tlsC  *tls.Conn
	plain bytes.Buffer // decrypted application bytes staged for ReadPlaintext
}

// Dial opens a non-blocking TCP connection with TCP_NODELAY set and wraps it
// in a TLS client targeting serverName. The connect itself is a one-time
// blocking call (there is no steady-state non-blocking connect benefit for a
// cold-start dial); all traffic afterward goes through the five non-blocking
// methods below.
func Dial(addr, serverName string, cfg *tls.Config) (*Pipe, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	tcpConn := conn.(*net.TCPConn)
	if err := tcpConn.SetNoDelay(true); err != nil {
		return nil, err
	}
	enableQuickAck(tcpConn)

	bc := &bufConn{}
	tlsCfg := cfg.Clone()
	tlsCfg.ServerName = serverName
	tlsConn := tls.Client(bc, tlsCfg)

	return &Pipe{raw: tcpConn, buf: bc, tlsC: tlsConn}, nil
}

// ReadTLS pulls any available ciphertext off the wire, feeds it through the
// TLS state machine, and stages newly decrypted bytes for ReadPlaintext. It
// returns (true, nil) if anything new arrived, (false, nil) on a clean
// would-block, and a non-nil error on a genuine socket/TLS failure.
func (p *Pipe) ReadTLS() (bool, error) {
	tmp := make([]byte, 16384)
	_ = p.raw.SetReadDeadline(time.Now())
	n, rerr := p.raw.Read(tmp)
	gotCiphertext := n > 0
	if gotCiphertext {
		p.buf.in.Write(tmp[:n])
	}
	if rerr != nil && !isWouldBlock(rerr) {
		return gotCiphertext, rerr
	}

	gotPlaintext := false
	for {
		n, err := p.tlsC.Read(tmp)
		if n > 0 {
			p.plain.Write(tmp[:n])
			gotPlaintext = true
		}
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			return gotCiphertext || gotPlaintext, err
		}
		if n == 0 {
			break
		}
	}
	return gotCiphertext || gotPlaintext, nil
}

// WriteTLS flushes any ciphertext the TLS layer has queued out to the wire.
// A partial write leaves the remainder staged for the next call.
func (p *Pipe) WriteTLS() error {
	for p.buf.out.Len() > 0 {
		_ = p.raw.SetWriteDeadline(time.Now())
		n, err := p.raw.Write(p.buf.out.Bytes())
		if n > 0 {
			p.buf.out.Next(n)
		}
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// ReadPlaintext pumps ReadTLS once, then drains whatever application data is
// staged into buf, returning the number of bytes copied.
func (p *Pipe) ReadPlaintext(buf []byte) (int, error) {
	if _, err := p.ReadTLS(); err != nil {
		return 0, err
	}
	if p.plain.Len() == 0 {
		return 0, nil
	}
	return p.plain.Read(buf)
}

// WritePlaintext encrypts buf into the TLS layer's outbound ciphertext
// buffer. It does not touch the wire; call WriteTLS to flush.
func (p *Pipe) WritePlaintext(buf []byte) (int, error) {
	return p.tlsC.Write(buf)
}

// WantsWrite reports whether there is ciphertext staged and waiting for
// WriteTLS to flush to the socket.
func (p *Pipe) WantsWrite() bool {
	return p.buf.out.Len() > 0
}

// Handshake drives the TLS handshake one step. Callers should invoke this
// from the hot loop until it returns (true, nil), retrying on would-block.
func (p *Pipe) Handshake() (bool, error) {
	err := p.tlsC.Handshake()
	if err == nil {
		return true, nil
	}
	if isWouldBlock(err) {
		return false, nil
	}
	return false, err
}

// FD returns the raw socket file descriptor for epoll registration.
func (p *Pipe) FD() (int, error) {
	raw, err := p.raw.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	cerr := raw.Control(func(f uintptr) { fd = int(f) })
	if cerr != nil {
		return -1, cerr
	}
	return fd, nil
}

// Close releases the underlying socket.
func (p *Pipe) Close() error {
	return p.raw.Close()
}

func isWouldBlock(err error) bool {
	var we errWouldBlock
	if errors.As(err, &we) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
