package types

import "testing"

func TestSideString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		side Side
		want string
	}{
		{Buy, "Buy"},
		{Sell, "Sell"},
	}

	for _, tt := range tests {
		if got := tt.side.String(); got != tt.want {
			t.Errorf("Side(%d).String() = %q, want %q", tt.side, got, tt.want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseHandshakeSending, "HandshakeSending"},
		{PhaseHandshakeWaiting, "HandshakeWaiting"},
		{PhaseSubscribing, "Subscribing"},
		{PhaseAuthenticating, "Authenticating"},
		{PhaseActive, "Active"},
		{Phase(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestL2BookZeroValueIsEmpty(t *testing.T) {
	t.Parallel()

	var book L2Book
	for i, lvl := range book.Bids {
		if lvl.Price != 0 || lvl.Qty != 0 {
			t.Errorf("bids[%d] = %+v, want zero value", i, lvl)
		}
	}
	for i, lvl := range book.Asks {
		if lvl.Price != 0 || lvl.Qty != 0 {
			t.Errorf("asks[%d] = %+v, want zero value", i, lvl)
		}
	}
}

func TestLogRecordCopiesByValue(t *testing.T) {
	t.Parallel()

	// LogRecord must stay a plain value type (no pointers/slices) so pushes
	// onto the SPSC ring never allocate or alias the caller's memory.
	var rec LogRecord
	rec.Tick = 1
	rec.Kind = LogKindStatus
	cp := rec
	cp.Tick = 2
	if rec.Tick == cp.Tick {
		t.Errorf("LogRecord copy aliased original: both have Tick=%d", rec.Tick)
	}
}
