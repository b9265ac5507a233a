package strategy

import (
	"testing"
	"time"

	"hftmaker/pkg/types"
)

func TestSpreadMultiplierIsOneUnderNormalFlow(t *testing.T) {
	t.Parallel()

	g := NewToxicityGuard(60*time.Second, 0.6, 5*time.Second, 3.0)
	g.AddFill(Fill{Timestamp: time.Now(), Side: types.Buy, Price: 100, Qty: 1})
	g.AddFill(Fill{Timestamp: time.Now(), Side: types.Sell, Price: 100, Qty: 1})

	if got := g.SpreadMultiplier(); got != 1.0 {
		t.Errorf("SpreadMultiplier = %v, want 1.0 (balanced flow)", got)
	}
}

func TestSpreadMultiplierWidensOnDirectionalBurst(t *testing.T) {
	t.Parallel()

	g := NewToxicityGuard(60*time.Second, 0.5, 5*time.Second, 3.0)
	for i := 0; i < 10; i++ {
		g.AddFill(Fill{Timestamp: time.Now(), Side: types.Buy, Price: 100, Qty: 1})
	}

	if got := g.SpreadMultiplier(); got <= 1.0 {
		t.Errorf("SpreadMultiplier = %v, want > 1.0 (one-sided burst)", got)
	}
}

func TestEvictStaleDropsOldFills(t *testing.T) {
	t.Parallel()

	g := NewToxicityGuard(10*time.Millisecond, 0.5, time.Second, 2.0)
	g.AddFill(Fill{Timestamp: time.Now().Add(-time.Hour), Side: types.Buy, Price: 100, Qty: 1})
	g.evictStale()

	if len(g.fills) != 0 {
		t.Errorf("len(fills) = %d, want 0 after stale eviction", len(g.fills))
	}
}
