// Package wsclient drives one WebSocket session's handshake and framing
// state machine on top of a transport.Pipe. It owns a rolling receive
// buffer and exposes the exact phase table the hot loop dispatches on:
// HandshakeSending -> HandshakeWaiting -> Subscribing/Authenticating -> Active.
package wsclient

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strings"

	"hftmaker/internal/transport"
	"hftmaker/internal/wsframe"
	"hftmaker/pkg/types"
)

// fixedNonce matches the original engine's literal example
// Sec-WebSocket-Key. It is not meant to be unguessable — the venue never
// validates the nonce's entropy, only its presence and shape.
const fixedNonce = "dGhlIHNhbXBsZSBub25jZQ=="

// Session drives one WebSocket connection's lifecycle: sending the HTTP
// upgrade request, waiting for the 101 response, issuing a
// subscribe/auth op, then dispatching application frames while Active.
type Session struct {
	pipe *transport.Pipe
	role types.SessionRole

	phase types.Phase

	inbound    [types.InboundBufSize]byte
	inboundLen int

	host string
	path string

	authenticated bool
	subscribed    bool
}

// New creates a session for the given role over an already-dialed pipe.
func New(pipe *transport.Pipe, role types.SessionRole, host, path string) *Session {
	return &Session{pipe: pipe, role: role, host: host, path: path, phase: types.PhaseHandshakeSending}
}

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() types.Phase { return s.phase }

// Role returns which of the four venue connections this session is.
func (s *Session) Role() types.SessionRole { return s.role }

// WantsWrite reports whether the pipe has anything queued to flush.
func (s *Session) WantsWrite() bool { return s.pipe.WantsWrite() }

// Authenticated reports whether a private session's auth frame has been
// ack'd successfully. Always false for public sessions.
func (s *Session) Authenticated() bool { return s.authenticated }

// Subscribed reports whether this session's market-data subscribe has been
// ack'd. Always false for sessions that never subscribe (order entry).
func (s *Session) Subscribed() bool { return s.subscribed }

// OnWritable drives the current phase's outbound step. Per spec.md §4.3's
// phase table, Subscribing/Authenticating's write action is a one-shot emit
// of the subscribe/auth frame followed immediately by the move to Active —
// ack confirmation (authenticated, subscribed) arrives later over the read
// side and is tracked independently of phase so it never re-arms this write.
func (s *Session) OnWritable(subscribeOrAuthPayload []byte) error {
	switch s.phase {
	case types.PhaseHandshakeSending:
		req := s.buildHandshakeRequest()
		if _, err := s.pipe.WritePlaintext([]byte(req)); err != nil {
			return err
		}
		s.phase = types.PhaseHandshakeWaiting
	case types.PhaseSubscribing, types.PhaseAuthenticating:
		frameBuf := make([]byte, 256)
		n, err := wsframe.EncodeTextFrame(subscribeOrAuthPayload, frameBuf)
		if err != nil {
			return err
		}
		if _, err := s.pipe.WritePlaintext(frameBuf[:n]); err != nil {
			return err
		}
		s.phase = types.PhaseActive
	}
	return s.pipe.WriteTLS()
}

// OnReadable pumps the pipe, appends any new plaintext to the rolling
// buffer, advances the handshake state machine, and decodes as many
// complete WS frames as are available. It returns every decoded text-frame
// payload for the caller to parse.
func (s *Session) OnReadable() (payloads [][]byte, err error) {
	tmp := make([]byte, 16384)
	n, rerr := s.pipe.ReadPlaintext(tmp)
	if rerr != nil {
		return nil, rerr
	}
	if n == 0 {
		return nil, nil
	}
	if s.inboundLen+n > len(s.inbound) {
		// Defensive resync: a session that overflows its buffer is corrupt;
		// drop everything buffered and report the overflow to the caller.
		s.inboundLen = 0
		return nil, fmt.Errorf("wsclient: inbound buffer overflow, resyncing")
	}
	copy(s.inbound[s.inboundLen:], tmp[:n])
	s.inboundLen += n

	if s.phase == types.PhaseHandshakeWaiting {
		if !s.handshakeComplete() {
			return nil, nil
		}
		s.advanceAfterHandshake()
	}

	if s.phase != types.PhaseActive && s.phase != types.PhaseSubscribing && s.phase != types.PhaseAuthenticating {
		return nil, nil
	}

	consumed := 0
	for {
		c, payload, state, derr := wsframe.DecodeFrame(s.inbound[consumed:s.inboundLen])
		if derr == wsframe.ErrTruncated {
			break
		}
		if derr != nil {
			return payloads, derr
		}
		if state == wsframe.DecodeText {
			out := make([]byte, len(payload))
			copy(out, payload)
			payloads = append(payloads, out)
		}
		consumed += c
	}
	s.compact(consumed)
	return payloads, nil
}

// OnSubscribeAck records a market-data subscribe confirmation. Phase has
// already moved to Active by the time any ack can arrive (OnWritable moves
// it there the instant the subscribe frame is sent), so this only updates
// the independent ack bit spec.md §4.3 tracks alongside phase.
func (s *Session) OnSubscribeAck() {
	s.subscribed = true
}

// OnAuthAck records an auth confirmation. As with OnSubscribeAck, phase is
// already Active by the time this fires; authenticated is the bit the
// engine consults before treating the private sessions as usable
// (spec.md §4.10 — "gate the strategy only if the order-entry session has
// reached authenticated").
func (s *Session) OnAuthAck(success bool) {
	s.authenticated = success
}

// handshakeComplete reports whether the buffered bytes contain a genuine
// HTTP/1.1 101 upgrade response. A rejection (4xx/5xx) completes its
// headers just as surely as a 101 does, so checking only for "\r\n\r\n"
// would treat a rejected handshake as success; spec.md §4.3 requires
// scanning specifically for "101 Switching Protocols" before advancing.
// A non-101 response (or one whose Sec-WebSocket-Accept doesn't match) is
// left parked in HandshakeWaiting, where the network-quiet risk check
// eventually surfaces it.
func (s *Session) handshakeComplete() bool {
	resp := string(s.inbound[:s.inboundLen])
	if !strings.Contains(resp, "\r\n\r\n") {
		return false
	}
	if !strings.Contains(resp, "101 Switching Protocols") {
		return false
	}
	return s.acceptHeaderValid(resp)
}

// acceptHeaderValid cross-checks the Sec-WebSocket-Accept header against
// the value a spec-compliant server must return for fixedNonce.
func (s *Session) acceptHeaderValid(resp string) bool {
	const header = "Sec-WebSocket-Accept:"
	idx := strings.Index(resp, header)
	if idx < 0 {
		return false
	}
	rest := resp[idx+len(header):]
	end := strings.IndexAny(rest, "\r\n")
	if end < 0 {
		return false
	}
	return strings.TrimSpace(rest[:end]) == expectedAccept()
}

func (s *Session) advanceAfterHandshake() {
	idx := strings.Index(string(s.inbound[:s.inboundLen]), "\r\n\r\n")
	end := idx + 4
	s.compact(end)

	if s.role == types.RolePrivateAccount || s.role == types.RolePrivateOrderEntry {
		s.phase = types.PhaseAuthenticating
	} else {
		s.phase = types.PhaseSubscribing
	}
}

func (s *Session) compact(consumed int) {
	if consumed <= 0 {
		return
	}
	remaining := s.inboundLen - consumed
	if remaining > 0 {
		copy(s.inbound[:remaining], s.inbound[consumed:s.inboundLen])
	}
	s.inboundLen = remaining
}

func (s *Session) buildHandshakeRequest() string {
	return "GET " + s.path + " HTTP/1.1\r\n" +
		"Host: " + s.host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + fixedNonce + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
}

// expectedAccept computes the Sec-WebSocket-Accept value a spec-compliant
// server must return for fixedNonce, for tests and defensive verification.
func expectedAccept() string {
	const magic = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	h := sha1.Sum([]byte(fixedNonce + magic))
	return base64.StdEncoding.EncodeToString(h[:])
}
