package strategy

import (
	"math"
	"time"

	"hftmaker/pkg/types"
)

// Fill is one execution, used only to feed the optional ToxicityGuard.
type Fill struct {
	Timestamp time.Time
	Side      types.Side
	Price     float64
	Qty       float64
}

// ToxicityGuard widens final_spread when recent fills look adversely
// selected — a directional burst suggesting an informed trader is picking
// off stale quotes. Adapted from the teacher's FlowTracker, stripped of
// its mutex (the strategy is single-thread-owned here) and its cross-token
// bookkeeping. Disabled by default; spec.md §8's literal scenarios assume
// a spread multiplier of 1.0.
type ToxicityGuard struct {
	window            time.Duration
	toxicityThreshold float64
	cooldown          time.Duration
	maxMultiplier     float64

	fills         []Fill
	lastToxicTime time.Time
}

// NewToxicityGuard creates a guard with the given window/threshold config.
func NewToxicityGuard(window time.Duration, toxicityThreshold float64, cooldown time.Duration, maxMultiplier float64) *ToxicityGuard {
	return &ToxicityGuard{
		window:            window,
		toxicityThreshold: toxicityThreshold,
		cooldown:          cooldown,
		maxMultiplier:     maxMultiplier,
		fills:             make([]Fill, 0, 64),
	}
}

// AddFill records a fill and evicts entries outside the rolling window.
func (g *ToxicityGuard) AddFill(f Fill) {
	g.fills = append(g.fills, f)
	g.evictStale()
}

func (g *ToxicityGuard) evictStale() {
	if len(g.fills) == 0 {
		return
	}
	cutoff := time.Now().Add(-g.window)
	i := 0
	for ; i < len(g.fills); i++ {
		if g.fills[i].Timestamp.After(cutoff) {
			break
		}
	}
	g.fills = g.fills[i:]
}

// toxicityScore computes the directional-imbalance/fill-velocity composite
// score used to decide the spread multiplier.
func (g *ToxicityGuard) toxicityScore() (score float64, isAverse bool) {
	g.evictStale()
	if len(g.fills) == 0 {
		return 0, false
	}

	var buy, sell int
	for _, f := range g.fills {
		if f.Side == types.Buy {
			buy++
		} else {
			sell++
		}
	}
	total := len(g.fills)
	imbalance := math.Max(float64(buy), float64(sell)) / float64(total)

	if total < 2 {
		score = imbalance * 0.6
		return score, score > g.toxicityThreshold
	}

	velocity := float64(total) / g.window.Minutes()
	velocityFactor := math.Min(velocity/3.0, 1.0)
	score = 0.6*imbalance + 0.4*velocityFactor
	return score, score > g.toxicityThreshold
}

// SpreadMultiplier returns the multiplier to apply to final_spread: 1.0
// under normal flow, ramping up to maxMultiplier while toxic and decaying
// back to 1.0 across the cooldown window afterward.
func (g *ToxicityGuard) SpreadMultiplier() float64 {
	score, isAverse := g.toxicityScore()
	if isAverse {
		g.lastToxicTime = time.Now()
	}

	inCooldown := !g.lastToxicTime.IsZero() && time.Since(g.lastToxicTime) < g.cooldown
	if !isAverse && !inCooldown {
		return 1.0
	}

	if score < g.toxicityThreshold {
		progress := math.Min(time.Since(g.lastToxicTime).Seconds()/g.cooldown.Seconds(), 1.0)
		return 1.0 + (g.maxMultiplier-1.0)*(1.0-progress)
	}

	normalized := (score - g.toxicityThreshold) / (1.0 - g.toxicityThreshold)
	return 1.0 + (g.maxMultiplier-1.0)*math.Min(normalized*2.0, 1.0)
}
