package risk

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCheckInternalLatencyDevModeDoesNotPanic(t *testing.T) {
	t.Parallel()

	g := New(true, testLogger())
	start := time.Now().Add(-1 * time.Millisecond) // exceeds strict 50us, within dev 5ms

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("dev mode panicked: %v", r)
		}
	}()
	g.CheckInternalLatency(start)
}

func TestCheckInternalLatencyStrictModePanicsOnViolation(t *testing.T) {
	t.Parallel()

	g := New(false, testLogger())
	start := time.Now().Add(-1 * time.Millisecond) // exceeds strict 50us budget

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("strict mode did not panic on latency violation")
		}
	}()
	g.CheckInternalLatency(start)
}

func TestCheckInternalLatencyWithinBudgetDoesNotPanic(t *testing.T) {
	t.Parallel()

	g := New(false, testLogger())
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("within-budget tick panicked: %v", r)
		}
	}()
	g.CheckInternalLatency(time.Now())
}

func TestDispatchVenueError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want VenueAction
	}{
		{110001, ActionResetOrder},
		{110017, ActionSyncPositionFlat},
		{10006, ActionSleepRateLimit},
		{10001, ActionResetSide},
		{10404, ActionResetSide},
		{99999, ActionNone},
	}
	for _, tt := range tests {
		if got := DispatchVenueError(tt.code); got != tt.want {
			t.Errorf("DispatchVenueError(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestUpdatePacketTimeDoesNotPanicOnFirstCall(t *testing.T) {
	t.Parallel()

	g := New(true, testLogger())
	g.UpdatePacketTime(time.Now())
}
