// Package book maintains the fixed-depth L2 order book: bids sorted
// descending, asks ascending, no duplicate prices, no gaps. Update runs
// entirely in place over a fixed array — no allocation, no locking. The book
// is owned exclusively by the hot thread.
package book

import (
	"math"
	"time"

	"hftmaker/pkg/types"
)

const epsilon = 1e-9

// Book wraps a types.L2Book with the update algorithm and the derived
// accessors the strategy layer needs.
type Book struct {
	data    types.L2Book
	updated time.Time
}

// New returns an empty book.
func New() *Book {
	return &Book{}
}

// Update applies one (side, price, qty) delta. qty == 0 removes the level if
// present; qty > 0 inserts or updates it, shifting neighboring levels to
// keep the array sorted and gap-free. A worse-than-20th-level insert on a
// full book is silently dropped.
func (b *Book) Update(side types.Side, price, qty float64) {
	levels := b.levelsFor(side)

	for i := range levels {
		if levels[i].Price == 0 {
			break // left-packed: first empty slot marks the end of live levels
		}
		if math.Abs(levels[i].Price-price) < epsilon {
			if qty == 0 {
				for j := i; j < types.BookDepth-1; j++ {
					levels[j] = levels[j+1]
				}
				levels[types.BookDepth-1] = types.Level{}
			} else {
				levels[i].Qty = qty
			}
			b.updated = time.Now()
			return
		}
	}

	if qty == 0 {
		return
	}

	insertAt := types.BookDepth
	for i := range levels {
		if levels[i].Price == 0 {
			insertAt = i
			break
		}
		if side == types.Buy && price > levels[i].Price {
			insertAt = i
			break
		}
		if side == types.Sell && price < levels[i].Price {
			insertAt = i
			break
		}
	}

	if insertAt == types.BookDepth {
		// Book is full and price is worse than every existing level.
		return
	}

	for j := types.BookDepth - 1; j > insertAt; j-- {
		levels[j] = levels[j-1]
	}
	levels[insertAt] = types.Level{Price: price, Qty: qty}
	b.updated = time.Now()
}

func (b *Book) levelsFor(side types.Side) *[types.BookDepth]types.Level {
	if side == types.Buy {
		return &b.data.Bids
	}
	return &b.data.Asks
}

// BestBidAsk returns the top-of-book levels. ok is false if either side is
// empty.
func (b *Book) BestBidAsk() (bid, ask float64, ok bool) {
	if b.data.Bids[0].Price == 0 || b.data.Asks[0].Price == 0 {
		return 0, 0, false
	}
	return b.data.Bids[0].Price, b.data.Asks[0].Price, true
}

// MidPrice returns (bestBid+bestAsk)/2. ok is false if the book is one-sided.
func (b *Book) MidPrice() (float64, bool) {
	bid, ask, ok := b.BestBidAsk()
	if !ok {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Levels returns a snapshot copy of the raw bid/ask arrays, for strategy
// logic that needs to scan depth (e.g. wall detection).
func (b *Book) Levels() ([types.BookDepth]types.Level, [types.BookDepth]types.Level) {
	return b.data.Bids, b.data.Asks
}

// IsStale reports whether the book has gone silent for longer than maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}
