// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — order book levels,
// session state, strategy state, log records. It has no dependencies on
// internal packages, so it can be imported by any layer.
package types

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents a book side or an order direction.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// OrderType enumerates the order lifecycles this engine issues. Quoting
// orders are post-only limits; the only taker path is the reduce-only
// market close (serialize.ClosePosition).
type OrderType string

const (
	OrderTypeLimit OrderType = "Limit"
)

// TimeInForce is the time-in-force of every quoting limit order; PostOnly
// keeps them from crossing the book.
const TimeInForce = "PostOnly"

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// Level is a single price/qty pair in the book. Zero value (Price==0) marks
// an empty slot in a fixed-depth array.
type Level struct {
	Price float64
	Qty   float64
}

// BookDepth is the fixed number of levels tracked per side; levels from the
// venue's 50-level feed that fall beyond it are not kept. Never resized at
// runtime.
const BookDepth = 20

// L2Book is a fixed-depth, no-allocation order book. Bids are sorted
// descending by price, asks ascending; both are left-packed (no gaps before
// the first zero level) with no duplicate prices.
type L2Book struct {
	Bids [BookDepth]Level
	Asks [BookDepth]Level
}

// BookDelta describes a single level update pulled off the wire. The parser
// does not build one: it passes side, price and qty straight to
// book.Book.Update.
type BookDelta struct {
	Side  Side
	Price float64
	Qty   float64
}

// ————————————————————————————————————————————————————————————————————————
// WebSocket session state
// ————————————————————————————————————————————————————————————————————————

// Phase is the lifecycle state of one WebSocket session.
type Phase uint8

const (
	PhaseHandshakeSending Phase = iota
	PhaseHandshakeWaiting
	PhaseSubscribing
	PhaseAuthenticating
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseHandshakeSending:
		return "HandshakeSending"
	case PhaseHandshakeWaiting:
		return "HandshakeWaiting"
	case PhaseSubscribing:
		return "Subscribing"
	case PhaseAuthenticating:
		return "Authenticating"
	case PhaseActive:
		return "Active"
	default:
		return "Unknown"
	}
}

// SessionRole identifies which of the four venue connections a session is.
type SessionRole uint8

const (
	RolePublicMarketData SessionRole = iota
	RoleReferenceFeed
	RolePrivateAccount
	RolePrivateOrderEntry
)

// InboundBufSize is the size of each session's rolling receive buffer.
const InboundBufSize = 65536

// ————————————————————————————————————————————————————————————————————————
// Strategy state
// ————————————————————————————————————————————————————————————————————————

// StrategyState holds every field the quoting strategy needs across ticks.
// Owned exclusively by the hot thread — no synchronization.
type StrategyState struct {
	Position   float64 // signed: positive = long, negative = short
	EntryPrice float64

	HasActiveBuy  bool
	HasActiveSell bool
	ActiveBuyID   string
	ActiveSellID  string
	ActiveBuyPx   float64
	ActiveSellPx  float64

	LastUpdateTS  uint64 // UnixNano of the last requote (heartbeat gate)
	LastMid       float64
	LastExchTS    uint64
	RefBid        float64 // reference-feed best bid
	RefAsk        float64 // reference-feed best ask
	LastTradeTS   uint64

	TickIntervalEMAus  float64
	LastTickArrivalTS  uint64 // monotonic ns of the last book tick
}

// ActionKind enumerates the orders the strategy can emit from one OnTick.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionCreateOrder
	ActionAmendOrder
	ActionCancelOrder
	ActionCancelAll
	ActionClosePosition
)

// Action is one order-intent emitted by the strategy for the orchestrator to
// serialize, sign, and send.
type Action struct {
	Kind   ActionKind
	Side   Side
	Price  float64
	Qty    float64
	LinkID string
}

// ————————————————————————————————————————————————————————————————————————
// Logging bridge
// ————————————————————————————————————————————————————————————————————————

// LogRecord is the fixed-size payload carried across the SPSC ring from the
// hot thread to the cold thread. Must stay comparable/copyable (no pointers,
// no slices) so pushes never allocate.
type LogRecord struct {
	Tick      uint64
	Kind      uint8
	BybitBid  float64
	BybitAsk  float64
	RefBid    float64
	RefAsk    float64
	LatencyUs uint64
}

// LogRecord.Kind values.
const (
	LogKindStatus     uint8 = 1
	LogKindSignalBuy  uint8 = 10
	LogKindSignalSell uint8 = 11
	LogKindQuoteUpdate uint8 = 20
)

// RingCapacity is the fixed SPSC ring buffer capacity. Pushes silently drop
// once full; the producer never blocks.
const RingCapacity = 4096

// ————————————————————————————————————————————————————————————————————————
// Time sync
// ————————————————————————————————————————————————————————————————————————

// TimeSync tracks the offset between venue server clock and local wall
// clock, derived from a response header: offset = server_ms - local_ms - 500.
type TimeSync struct {
	OffsetMs    int64
	Initialized bool
}
