package wsclient

import (
	"testing"

	"hftmaker/pkg/types"
)

func TestExpectedAcceptIsStableBase64(t *testing.T) {
	t.Parallel()

	got := expectedAccept()
	if len(got) == 0 {
		t.Fatalf("expectedAccept() returned empty string")
	}
	// RFC 6455's worked example for this exact nonce.
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("expectedAccept() = %q, want %q", got, want)
	}
}

func TestCompactShiftsTailToFront(t *testing.T) {
	t.Parallel()

	s := &Session{}
	copy(s.inbound[:], []byte("abcdefgh"))
	s.inboundLen = 8

	s.compact(3)

	if s.inboundLen != 5 {
		t.Fatalf("inboundLen = %d, want 5", s.inboundLen)
	}
	if string(s.inbound[:s.inboundLen]) != "defgh" {
		t.Errorf("inbound = %q, want %q", s.inbound[:s.inboundLen], "defgh")
	}
}

func TestAdvanceAfterHandshakeRoutesByRole(t *testing.T) {
	t.Parallel()

	priv := &Session{role: types.RolePrivateAccount, phase: types.PhaseHandshakeWaiting}
	priv.advanceAfterHandshakeForTest()
	if priv.phase != types.PhaseAuthenticating {
		t.Errorf("private role phase = %v, want Authenticating", priv.phase)
	}

	orderEntry := &Session{role: types.RolePrivateOrderEntry, phase: types.PhaseHandshakeWaiting}
	orderEntry.advanceAfterHandshakeForTest()
	if orderEntry.phase != types.PhaseAuthenticating {
		t.Errorf("order-entry role phase = %v, want Authenticating", orderEntry.phase)
	}

	pub := &Session{role: types.RolePublicMarketData, phase: types.PhaseHandshakeWaiting}
	pub.advanceAfterHandshakeForTest()
	if pub.phase != types.PhaseSubscribing {
		t.Errorf("public role phase = %v, want Subscribing", pub.phase)
	}
}

// OnAuthAck/OnSubscribeAck track authenticated/subscribed as bits
// independent of phase — per spec.md §4.3, phase reaches Active the instant
// the auth/subscribe frame is written, well before any ack can arrive, so
// these calls must never move phase themselves.
func TestAckCallbacksDoNotMovePhase(t *testing.T) {
	t.Parallel()

	s := &Session{role: types.RolePrivateAccount, phase: types.PhaseActive}

	if s.Authenticated() {
		t.Fatalf("Authenticated() = true before any ack")
	}
	s.OnAuthAck(true)
	if !s.Authenticated() {
		t.Errorf("Authenticated() = false after a successful auth ack")
	}
	if s.phase != types.PhaseActive {
		t.Errorf("phase = %v, want unchanged Active", s.phase)
	}

	if s.Subscribed() {
		t.Fatalf("Subscribed() = true before any ack")
	}
	s.OnSubscribeAck()
	if !s.Subscribed() {
		t.Errorf("Subscribed() = false after a subscribe ack")
	}
	if s.phase != types.PhaseActive {
		t.Errorf("phase = %v, want unchanged Active", s.phase)
	}
}

func TestOnAuthAckFailureClearsAuthenticated(t *testing.T) {
	t.Parallel()

	s := &Session{role: types.RolePrivateAccount, phase: types.PhaseActive, authenticated: true}
	s.OnAuthAck(false)
	if s.Authenticated() {
		t.Errorf("Authenticated() = true after a failed auth ack")
	}
}

func TestHandshakeCompleteRequiresSwitchingProtocols(t *testing.T) {
	t.Parallel()

	s := &Session{}
	reject := "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\n\r\n"
	copy(s.inbound[:], []byte(reject))
	s.inboundLen = len(reject)

	if s.handshakeComplete() {
		t.Fatalf("handshakeComplete() = true for a rejected (400) response")
	}
}

func TestHandshakeCompleteRejectsBadAcceptHeader(t *testing.T) {
	t.Parallel()

	s := &Session{}
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: not-the-right-value\r\n\r\n"
	copy(s.inbound[:], []byte(resp))
	s.inboundLen = len(resp)

	if s.handshakeComplete() {
		t.Fatalf("handshakeComplete() = true with a mismatched Sec-WebSocket-Accept")
	}
}

func TestHandshakeCompleteAcceptsGenuine101(t *testing.T) {
	t.Parallel()

	s := &Session{}
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + expectedAccept() + "\r\n\r\n"
	copy(s.inbound[:], []byte(resp))
	s.inboundLen = len(resp)

	if !s.handshakeComplete() {
		t.Fatalf("handshakeComplete() = false for a genuine 101 with a matching Accept header")
	}
}

func TestHandshakeCompleteWaitsOnPartialHeaders(t *testing.T) {
	t.Parallel()

	s := &Session{}
	partial := "HTTP/1.1 101 Switching Pro"
	copy(s.inbound[:], []byte(partial))
	s.inboundLen = len(partial)

	if s.handshakeComplete() {
		t.Fatalf("handshakeComplete() = true on a truncated response")
	}
}

// advanceAfterHandshakeForTest stages a complete 101 response in the inbound
// buffer and runs advanceAfterHandshake on it, without going through
// OnReadable's pipe plumbing.
func (s *Session) advanceAfterHandshakeForTest() {
	resp := "HTTP/1.1 101 Switching Protocols\r\n\r\n"
	s.inboundLen = copy(s.inbound[:], resp)
	s.advanceAfterHandshake()
}
