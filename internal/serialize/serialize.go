// Package serialize writes venue wire messages directly into caller-owned
// byte buffers. Every writer here returns the number of bytes written and
// never returns an error for well-formed numeric input — callers size their
// buffers generously up front (matching the venue's modest message sizes).
// Each writer formats with fmt.Sprintf before copying into dst, so the
// formatted string is a heap allocation per call.
package serialize

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricePrecision and QtyPrecision are the fixed decimal places every
// formatted price/qty string uses, matching the configured symbol's tick
// and lot size.
const (
	PricePrecision = 3
	QtyPrecision   = 1
)

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Truncate(PricePrecision).StringFixed(PricePrecision)
}

func formatQty(v float64) string {
	return decimal.NewFromFloat(v).Truncate(QtyPrecision).StringFixed(QtyPrecision)
}

// Subscribe writes a public/reference channel subscription request.
func Subscribe(dst []byte, reqID string, topics []string) int {
	s := fmt.Sprintf(`{"req_id":%q,"op":"subscribe","args":%s}`, reqID, jsonStringArray(topics))
	return copy(dst, s)
}

// Auth writes the WS-auth op using the signed expiry and hex tag.
func Auth(dst []byte, apiKey string, expiresMs uint64, signHex string) int {
	s := fmt.Sprintf(`{"op":"auth","args":[%q,%d,%q]}`, apiKey, expiresMs, signHex)
	return copy(dst, s)
}

// OrderCreateParams holds every field OrderCreate needs.
type OrderCreateParams struct {
	Symbol      string
	Side        string // "Buy" or "Sell"
	Qty         float64
	Price       float64
	ReqID       string
	LinkID      string
	TimestampMs uint64
	RecvWindow  uint64
}

// OrderCreate writes a create-order request envelope with REST-auth headers
// embedded, matching the venue's WS trading-op wire shape.
func OrderCreate(dst []byte, p OrderCreateParams, signHex string) int {
	s := fmt.Sprintf(
		`{"reqId":%q,"header":{"X-BAPI-TIMESTAMP":"%d","X-BAPI-RECV-WINDOW":"%d","X-BAPI-SIGN":%q},"op":"order.create","args":[{"category":"linear","symbol":%q,"side":%q,"orderType":"Limit","qty":%q,"price":%q,"timeInForce":"PostOnly","positionIdx":0,"orderLinkId":%q}]}`,
		p.ReqID, p.TimestampMs, p.RecvWindow, signHex, p.Symbol, p.Side, formatQty(p.Qty), formatPrice(p.Price), p.LinkID,
	)
	return copy(dst, s)
}

// OrderAmendParams holds every field OrderAmend needs.
type OrderAmendParams struct {
	Symbol      string
	LinkID      string
	Qty         float64
	Price       float64
	ReqID       string
	TimestampMs uint64
	RecvWindow  uint64
}

// OrderAmend writes an amend-order request.
func OrderAmend(dst []byte, p OrderAmendParams, signHex string) int {
	s := fmt.Sprintf(
		`{"reqId":%q,"header":{"X-BAPI-TIMESTAMP":"%d","X-BAPI-RECV-WINDOW":"%d","X-BAPI-SIGN":%q},"op":"order.amend","args":[{"category":"linear","symbol":%q,"orderLinkId":%q,"qty":%q,"price":%q}]}`,
		p.ReqID, p.TimestampMs, p.RecvWindow, signHex, p.Symbol, p.LinkID, formatQty(p.Qty), formatPrice(p.Price),
	)
	return copy(dst, s)
}

// OrderCancel writes a cancel-one-order request.
func OrderCancel(dst []byte, symbol, linkID, reqID string, tsMs, recvWindow uint64, signHex string) int {
	s := fmt.Sprintf(
		`{"reqId":%q,"header":{"X-BAPI-TIMESTAMP":"%d","X-BAPI-RECV-WINDOW":"%d","X-BAPI-SIGN":%q},"op":"order.cancel","args":[{"category":"linear","symbol":%q,"orderLinkId":%q}]}`,
		reqID, tsMs, recvWindow, signHex, symbol, linkID,
	)
	return copy(dst, s)
}

// OrderCancelAll writes a cancel-all-orders request for one symbol.
func OrderCancelAll(dst []byte, symbol, reqID string, tsMs, recvWindow uint64, signHex string) int {
	s := fmt.Sprintf(
		`{"reqId":%q,"header":{"X-BAPI-TIMESTAMP":"%d","X-BAPI-RECV-WINDOW":"%d","X-BAPI-SIGN":%q},"op":"order.cancel-all","args":[{"category":"linear","symbol":%q}]}`,
		reqID, tsMs, recvWindow, signHex, symbol,
	)
	return copy(dst, s)
}

// ClosePosition writes a reduce-only market-close request.
func ClosePosition(dst []byte, symbol, side string, qty float64, reqID string, tsMs, recvWindow uint64, signHex string) int {
	s := fmt.Sprintf(
		`{"reqId":%q,"header":{"X-BAPI-TIMESTAMP":"%d","X-BAPI-RECV-WINDOW":"%d","X-BAPI-SIGN":%q},"op":"order.create","args":[{"category":"linear","symbol":%q,"side":%q,"orderType":"Market","qty":%q,"reduceOnly":true,"timeInForce":"IOC"}]}`,
		reqID, tsMs, recvWindow, signHex, symbol, side, formatQty(qty),
	)
	return copy(dst, s)
}

func jsonStringArray(ss []string) string {
	out := "["
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", s)
	}
	return out + "]"
}
