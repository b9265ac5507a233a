// Package strategy implements the quoting decision function — the sole
// place price-move magnitude, tick velocity, and liquidity walls turn into
// order actions. Owned exclusively by the hot thread: no mutex, no
// channel, every mutator is a plain method call from the event loop.
package strategy

import (
	"math"
	"strconv"
	"time"

	"hftmaker/internal/book"
	"hftmaker/pkg/types"
)

const epsilon = 1e-9

// Spec-fixed constants (see spec.md §4.8). These are not configuration
// knobs — they describe the algorithm itself, not the venue.
const (
	takeProfitPct       = 0.003
	timeStopSeconds     = 3
	requoteChangePct    = 0.004
	heartbeatInterval   = 30 * time.Second
	tpsSpreadFloor      = 0.004
	tpsSpreadCeil       = 0.010
	tpsLow              = 20.0
	tpsHigh             = 100.0
	shockSpreadScale    = 4.0
	shockSpreadCap      = 0.012
	amendThreshold      = 0.0001
	wallQtyThreshold    = 1000.0
)

// Config holds the venue/symbol-specific knobs that are not part of the
// algorithm itself: tick size, order size, and the optional toxicity
// overlay.
type Config struct {
	PriceDecimals int     // 3 for the default symbol
	OrderQty      float64 // fixed order size per side, e.g. 0.2

	// ToxicityEnabled wires a spread multiplier on top of final_spread,
	// adapted from the teacher's FlowTracker. Off by default — spec.md §8's
	// literal scenarios assume no toxicity overlay.
	ToxicityEnabled         bool
	FlowWindow              time.Duration
	FlowToxicityThreshold   float64
	FlowCooldownPeriod      time.Duration
	FlowMaxSpreadMultiplier float64
}

// Strategy runs the on_tick decision function over one StrategyState.
type Strategy struct {
	cfg   Config
	state types.StrategyState
	guard *ToxicityGuard
}

// New creates a Strategy in the flat state.
func New(cfg Config) *Strategy {
	s := &Strategy{cfg: cfg}
	if cfg.ToxicityEnabled {
		s.guard = NewToxicityGuard(cfg.FlowWindow, cfg.FlowToxicityThreshold, cfg.FlowCooldownPeriod, cfg.FlowMaxSpreadMultiplier)
	}
	return s
}

// State returns a copy of the current strategy state, for logging.
func (s *Strategy) State() types.StrategyState { return s.state }

// OnTick is the sole decision point. Returns nil when there is nothing to
// do this tick (batch de-dup, holding inventory, or no requote gate hit).
func (s *Strategy) OnTick(b *book.Book, exchTs uint64) []types.Action {
	st := &s.state

	// 1. Batch de-dup: a repeated exch_ts is part of the same multi-packet
	// burst — wait for the final state before deciding.
	if exchTs > 0 && exchTs == st.LastExchTS {
		return nil
	}
	if exchTs > 0 {
		defer func() { st.LastExchTS = exchTs }()
	}

	bid, ask, ok := b.BestBidAsk()
	if !ok {
		return nil
	}

	if math.Abs(st.Position) > epsilon {
		return s.checkInventoryClose(st, bid, ask)
	}

	return s.quoteUpdate(st, b, bid, ask)
}

// checkInventoryClose implements spec.md §4.8 item 2: while holding a
// position, the only actions are take-profit or time-stop flattening —
// never requoting.
func (s *Strategy) checkInventoryClose(st *types.StrategyState, bid, ask float64) []types.Action {
	var unrealized float64
	var closeSide types.Side
	if st.Position > 0 {
		unrealized = (bid - st.EntryPrice) / st.EntryPrice
		closeSide = types.Sell
	} else {
		unrealized = (st.EntryPrice - ask) / st.EntryPrice
		closeSide = types.Buy
	}

	takeProfit := unrealized >= takeProfitPct
	timeStop := st.LastTradeTS != 0 &&
		time.Duration(uint64(time.Now().UnixNano())-st.LastTradeTS) > timeStopSeconds*time.Second &&
		unrealized <= 0

	if !takeProfit && !timeStop {
		return nil
	}

	qty := math.Abs(st.Position)
	st.HasActiveBuy = false
	st.HasActiveSell = false

	return []types.Action{
		{Kind: types.ActionCancelAll},
		{Kind: types.ActionClosePosition, Side: closeSide, Qty: qty},
	}
}

// quoteUpdate implements spec.md §4.8 item 3: tick-velocity EMA, shock
// spread, requote gate, wall detection, then a create/amend/noop decision
// per side.
func (s *Strategy) quoteUpdate(st *types.StrategyState, b *book.Book, bid, ask float64) []types.Action {
	nowNs := uint64(time.Now().UnixNano())

	if st.LastTickArrivalTS != 0 {
		deltaUs := float64(nowNs-st.LastTickArrivalTS) / 1000.0
		st.TickIntervalEMAus = 0.3*deltaUs + 0.7*st.TickIntervalEMAus
	}
	st.LastTickArrivalTS = nowNs
	tps := 1e6 / math.Max(st.TickIntervalEMAus, 1)

	mid := (bid + ask) / 2
	var changePct float64
	if st.LastMid > 0 {
		changePct = math.Abs(mid-st.LastMid) / st.LastMid
	}

	tpsSpread := tpsSpreadFloor + clamp((tps-tpsLow)/(tpsHigh-tpsLow), 0, 1)*(tpsSpreadCeil-tpsSpreadFloor)
	shockSpread := clamp(changePct*shockSpreadScale, 0, shockSpreadCap)
	finalSpread := math.Max(tpsSpread, shockSpread)
	if s.guard != nil {
		finalSpread *= s.guard.SpreadMultiplier()
	}

	heartbeatElapsed := st.LastUpdateTS == 0 || time.Duration(nowNs-st.LastUpdateTS) > heartbeatInterval
	if changePct <= requoteChangePct && !heartbeatElapsed {
		return nil
	}

	buyTarget := s.roundTick(bid * (1 - finalSpread))
	sellTarget := s.roundTick(ask * (1 + finalSpread))

	buyTarget = s.applyWallDetection(b, types.Buy, buyTarget, mid)
	sellTarget = s.applyWallDetection(b, types.Sell, sellTarget, mid)

	var actions []types.Action
	if a := s.sideAction(st, types.Buy, buyTarget); a != nil {
		actions = append(actions, *a)
	}
	if a := s.sideAction(st, types.Sell, sellTarget); a != nil {
		actions = append(actions, *a)
	}

	st.LastUpdateTS = nowNs
	st.LastMid = mid

	return actions
}

// applyWallDetection scans the top 20 levels on side for a qty >= 1000
// wall sitting strictly between target and mid, and moves target one tick
// in front of the first such wall found.
func (s *Strategy) applyWallDetection(b *book.Book, side types.Side, target, mid float64) float64 {
	bids, asks := b.Levels()
	levels := bids[:]
	if side == types.Sell {
		levels = asks[:]
	}

	tick := math.Pow(10, -float64(s.cfg.PriceDecimals))
	for _, lvl := range levels {
		if lvl.Price == 0 {
			break
		}
		if lvl.Qty < wallQtyThreshold {
			continue
		}
		if side == types.Buy {
			if lvl.Price > target && lvl.Price < mid {
				return s.roundTick(lvl.Price + tick)
			}
		} else {
			if lvl.Price < target && lvl.Price > mid {
				return s.roundTick(lvl.Price - tick)
			}
		}
	}
	return target
}

// sideAction decides create/amend/noop for one side against its active
// order, per spec.md §4.8 item 3's last bullet.
func (s *Strategy) sideAction(st *types.StrategyState, side types.Side, target float64) *types.Action {
	qty := s.cfg.OrderQty

	if side == types.Buy {
		if !st.HasActiveBuy {
			id := st.ActiveBuyID
			if id == "" {
				id = s.newLinkID(side)
			}
			st.HasActiveBuy = true
			st.ActiveBuyID = id
			st.ActiveBuyPx = target
			return &types.Action{Kind: types.ActionCreateOrder, Side: side, Price: target, Qty: qty, LinkID: id}
		}
		if math.Abs(target-st.ActiveBuyPx) >= amendThreshold {
			st.ActiveBuyPx = target
			return &types.Action{Kind: types.ActionAmendOrder, Side: side, Price: target, Qty: qty, LinkID: st.ActiveBuyID}
		}
		return nil
	}

	if !st.HasActiveSell {
		id := st.ActiveSellID
		if id == "" {
			id = s.newLinkID(side)
		}
		st.HasActiveSell = true
		st.ActiveSellID = id
		st.ActiveSellPx = target
		return &types.Action{Kind: types.ActionCreateOrder, Side: side, Price: target, Qty: qty, LinkID: id}
	}
	if math.Abs(target-st.ActiveSellPx) >= amendThreshold {
		st.ActiveSellPx = target
		return &types.Action{Kind: types.ActionAmendOrder, Side: side, Price: target, Qty: qty, LinkID: st.ActiveSellID}
	}
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// External mutators (spec.md §4.8, last paragraph)
// ————————————————————————————————————————————————————————————————————————

// UpdateReferencePrice refreshes the reference-feed snapshot. Per spec.md
// §9's open question, this never triggers OnTick itself.
func (s *Strategy) UpdateReferencePrice(bid, ask float64) {
	s.state.RefBid = bid
	s.state.RefAsk = ask
}

// OnFill updates position and entry price from a private-stream execution.
// Adding to a position re-weights the average entry; a reducing fill keeps
// the entry price, and one that brings the position to zero clears it,
// matching the teacher's
// applyYesFill/applyNoFill zero-on-close idiom generalized to one signed
// position.
func (s *Strategy) OnFill(side types.Side, qty, px float64) {
	st := &s.state

	signedQty := qty
	if side == types.Sell {
		signedQty = -qty
	}

	sameDirection := st.Position == 0 || (st.Position > 0) == (signedQty > 0)
	if sameDirection {
		totalCost := st.EntryPrice*math.Abs(st.Position) + px*qty
		st.Position += signedQty
		if math.Abs(st.Position) > epsilon {
			st.EntryPrice = totalCost / math.Abs(st.Position)
		} else {
			st.Position = 0
			st.EntryPrice = 0
		}
	} else {
		st.Position += signedQty
		if math.Abs(st.Position) < epsilon {
			st.Position = 0
			st.EntryPrice = 0
		}
	}

	st.LastTradeTS = uint64(time.Now().UnixNano())

	if s.guard != nil {
		s.guard.AddFill(Fill{Timestamp: time.Now(), Side: side, Price: px, Qty: qty})
	}
}

// OnOrderCancel clears side's active-order flag without touching position.
func (s *Strategy) OnOrderCancel(side types.Side) {
	if side == types.Buy {
		s.state.HasActiveBuy = false
	} else {
		s.state.HasActiveSell = false
	}
}

// SyncPosition is the authoritative reconciliation from the private
// account stream, overriding whatever OnFill has accumulated.
func (s *Strategy) SyncPosition(signedQty, avgPrice float64) {
	st := &s.state
	st.Position = signedQty
	st.EntryPrice = avgPrice
	if math.Abs(signedQty) < epsilon {
		st.Position = 0
		st.EntryPrice = 0
		st.LastTradeTS = 0
		st.HasActiveBuy = false
		st.HasActiveSell = false
	}
}

// ResetOrder clears side's active flag and regenerates its link-id, since
// some venue rejection codes quarantine the old id (spec.md §9 "Link-id
// identity after rejection").
func (s *Strategy) ResetOrder(side types.Side) {
	st := &s.state
	newID := s.newLinkID(side)

	if side == types.Buy {
		if newID == st.ActiveBuyID {
			newID = disambiguate(newID)
		}
		st.ActiveBuyID = newID
		st.HasActiveBuy = false
		st.ActiveBuyPx = 0
		return
	}

	if newID == st.ActiveSellID {
		newID = disambiguate(newID)
	}
	st.ActiveSellID = newID
	st.HasActiveSell = false
	st.ActiveSellPx = 0
}

func (s *Strategy) newLinkID(side types.Side) string {
	prefix := "b-"
	if side == types.Sell {
		prefix = "s-"
	}
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// disambiguate appends the nanoseconds elapsed within the current
// millisecond as a suffix, so two resets landing in the same millisecond
// never collide.
func disambiguate(id string) string {
	return id + "-" + strconv.FormatInt(time.Now().UnixNano()%1000000, 10)
}

func (s *Strategy) roundTick(v float64) float64 {
	pow := math.Pow(10, float64(s.cfg.PriceDecimals))
	return math.Round(v*pow) / pow
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
