package engine

import "time"

// backdateMs matches spec.md §3 "Time-sync state": a conservative 500ms
// back-dating applied to every offset, so signed timestamps always land
// inside the venue's acceptance window even under modest clock drift.
const backdateMs = 500

// resyncThresholdMs: the offset is only replaced once drift since the last
// sync exceeds this, per spec.md §9 "Time sync" — "resyncs only if drift
// > 1 s".
const resyncThresholdMs = 1000

// timeSync tracks the offset between the venue's server clock and local
// wall clock, derived from a response header (`header.Timenow`). Owned
// exclusively by the hot thread.
type timeSync struct {
	offsetMs    int64
	initialized bool
}

// Update recomputes the offset from a server timestamp (ms) observed in a
// private-trade reply. The first observation always sets the offset,
// matching the engine's synchronous startup sequence; later observations
// only replace it once drift exceeds the resync threshold.
func (t *timeSync) Update(serverMs int64) {
	localMs := time.Now().UnixMilli()
	newOffset := serverMs - localMs - backdateMs

	if !t.initialized {
		t.offsetMs = newOffset
		t.initialized = true
		return
	}

	drift := newOffset - t.offsetMs
	if drift < 0 {
		drift = -drift
	}
	if drift > resyncThresholdMs {
		t.offsetMs = newOffset
	}
}

// NowMs returns the venue-adjusted current time in milliseconds. Every
// outbound signed header uses this, never raw local time.
func (t *timeSync) NowMs() uint64 {
	return uint64(time.Now().UnixMilli() + t.offsetMs)
}
