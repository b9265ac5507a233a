// Package risk implements the hot loop's latency budget and venue
// error-code dispatch. Unlike a multi-market risk manager running in its
// own goroutine, Gate is owned exclusively by the hot thread: no mutex, no
// channel, no ticker. Its only suspension point is the hot loop's own
// poll(1ms), same as everything else on that thread.
package risk

import (
	"log/slog"
	"time"
)

// DevMode relaxes the internal latency budget for local development; a
// production deployment always runs with DevMode false.
const (
	maxInternalLatencyStrictUs = 50
	maxInternalLatencyDevUs    = 5000
	maxNetworkQuietMs          = 300
	rateLimitSleep             = 10 * time.Second
)

// Gate tracks wall-clock packet arrival and enforces the per-tick internal
// latency budget.
type Gate struct {
	devMode        bool
	lastPacketTime time.Time
	logger         *slog.Logger
}

// New creates a Gate. devMode relaxes the internal latency budget from 50µs
// to 5ms and downgrades a budget violation from fatal to logged.
func New(devMode bool, logger *slog.Logger) *Gate {
	return &Gate{devMode: devMode, logger: logger}
}

// UpdatePacketTime records that a packet just arrived and warns if the gap
// since the previous packet exceeds the network-quiet threshold.
func (g *Gate) UpdatePacketTime(now time.Time) {
	if !g.lastPacketTime.IsZero() {
		gap := now.Sub(g.lastPacketTime)
		if gap > maxNetworkQuietMs*time.Millisecond {
			g.logger.Warn("network quiet period exceeded", "gap_ms", gap.Milliseconds())
		}
	}
	g.lastPacketTime = now
}

// CheckInternalLatency measures elapsed time since start and, in strict
// (non-dev) mode, aborts the process if the tick exceeded the hard budget.
// In dev mode it only logs.
func (g *Gate) CheckInternalLatency(start time.Time) {
	elapsed := time.Since(start)
	limit := time.Duration(maxInternalLatencyStrictUs) * time.Microsecond
	if g.devMode {
		limit = time.Duration(maxInternalLatencyDevUs) * time.Microsecond
	}
	if elapsed <= limit {
		return
	}

	g.logger.Error("RISK CRITICAL: internal latency budget exceeded",
		"elapsed_us", elapsed.Microseconds(), "limit_us", limit.Microseconds())
	if !g.devMode {
		panic("risk: latency violation")
	}
}

// VenueAction is what the caller should do in response to a dispatched
// venue error code.
type VenueAction uint8

const (
	ActionNone VenueAction = iota
	ActionResetOrder
	ActionSyncPositionFlat
	ActionSleepRateLimit
	ActionResetSide
)

// DispatchVenueError maps a venue error code to the strategy mutation it
// implies. Unrecognized codes map to ActionNone.
func DispatchVenueError(code int) VenueAction {
	switch code {
	case 110001:
		return ActionResetOrder
	case 110017:
		return ActionSyncPositionFlat
	case 10006:
		return ActionSleepRateLimit
	case 10001, 10404:
		return ActionResetSide
	default:
		return ActionNone
	}
}

// RateLimitSleep is how long the hot loop should pause after a 10006
// rate-limit response before resubmitting.
func RateLimitSleep() time.Duration { return rateLimitSleep }
