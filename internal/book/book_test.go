package book

import (
	"testing"

	"hftmaker/pkg/types"
)

func TestUpdateInsertMaintainsSortOrder(t *testing.T) {
	t.Parallel()

	b := New()
	b.Update(types.Buy, 100, 1)
	b.Update(types.Buy, 102, 1)
	b.Update(types.Buy, 101, 1)

	bids, _ := b.Levels()
	want := []float64{102, 101, 100}
	for i, w := range want {
		if bids[i].Price != w {
			t.Errorf("bids[%d].Price = %v, want %v", i, bids[i].Price, w)
		}
	}
	if bids[3].Price != 0 {
		t.Errorf("bids[3].Price = %v, want 0 (empty)", bids[3].Price)
	}
}

func TestUpdateAsksAscending(t *testing.T) {
	t.Parallel()

	b := New()
	b.Update(types.Sell, 105, 1)
	b.Update(types.Sell, 103, 1)
	b.Update(types.Sell, 104, 1)

	_, asks := b.Levels()
	want := []float64{103, 104, 105}
	for i, w := range want {
		if asks[i].Price != w {
			t.Errorf("asks[%d].Price = %v, want %v", i, asks[i].Price, w)
		}
	}
}

func TestUpdateExistingPriceUpdatesQtyInPlace(t *testing.T) {
	t.Parallel()

	b := New()
	b.Update(types.Buy, 100, 5)
	b.Update(types.Buy, 100, 9)

	bids, _ := b.Levels()
	if bids[0].Qty != 9 {
		t.Errorf("bids[0].Qty = %v, want 9", bids[0].Qty)
	}
	if bids[1].Price != 0 {
		t.Errorf("bids[1].Price = %v, want 0 (no duplicate inserted)", bids[1].Price)
	}
}

func TestUpdateZeroQtyRemovesLevelAndShifts(t *testing.T) {
	t.Parallel()

	b := New()
	b.Update(types.Buy, 102, 1)
	b.Update(types.Buy, 101, 1)
	b.Update(types.Buy, 100, 1)

	b.Update(types.Buy, 101, 0)

	bids, _ := b.Levels()
	if bids[0].Price != 102 || bids[1].Price != 100 {
		t.Errorf("after removal, bids = [%v, %v], want [102, 100]", bids[0].Price, bids[1].Price)
	}
	if bids[2].Price != 0 {
		t.Errorf("bids[2].Price = %v, want 0 (tail cleared)", bids[2].Price)
	}
}

func TestUpdateZeroQtyOnAbsentLevelIsNoop(t *testing.T) {
	t.Parallel()

	b := New()
	b.Update(types.Buy, 100, 1)
	b.Update(types.Buy, 999, 0) // never existed

	bids, _ := b.Levels()
	if bids[0].Price != 100 {
		t.Errorf("bids[0].Price = %v, want 100 unchanged", bids[0].Price)
	}
	if bids[1].Price != 0 {
		t.Errorf("bids[1].Price = %v, want 0", bids[1].Price)
	}
}

func TestUpdateDropsWorseThanDepthOnFullBook(t *testing.T) {
	t.Parallel()

	b := New()
	for i := 0; i < types.BookDepth; i++ {
		b.Update(types.Buy, float64(200-i), 1) // 200 down to 181, descending
	}
	// Worse than every existing bid.
	b.Update(types.Buy, 1, 1)

	bids, _ := b.Levels()
	if bids[types.BookDepth-1].Price != 181 {
		t.Errorf("bids[%d].Price = %v, want 181 (worse insert dropped)", types.BookDepth-1, bids[types.BookDepth-1].Price)
	}
}

func TestBestBidAskAndMidPrice(t *testing.T) {
	t.Parallel()

	b := New()
	_, _, ok := b.BestBidAsk()
	if ok {
		t.Errorf("BestBidAsk on empty book: ok = true, want false")
	}

	b.Update(types.Buy, 100, 1)
	b.Update(types.Sell, 102, 1)

	bid, ask, ok := b.BestBidAsk()
	if !ok || bid != 100 || ask != 102 {
		t.Errorf("BestBidAsk = (%v, %v, %v), want (100, 102, true)", bid, ask, ok)
	}

	mid, ok := b.MidPrice()
	if !ok || mid != 101 {
		t.Errorf("MidPrice = (%v, %v), want (101, true)", mid, ok)
	}
}
