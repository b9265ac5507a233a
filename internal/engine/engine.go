// Package engine wires the book, strategy, risk gate, and four venue
// sessions into the two-thread runtime spec.md §4.10 mandates: one hot
// thread running a single epoll loop with no blocking calls, and one cold
// thread that only drains the log ring. Neither thread ever takes a mutex;
// the ring is the sole object they share.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"hftmaker/internal/book"
	"hftmaker/internal/config"
	"hftmaker/internal/ioloop"
	"hftmaker/internal/logring"
	"hftmaker/internal/parser"
	"hftmaker/internal/restclient"
	"hftmaker/internal/risk"
	"hftmaker/internal/serialize"
	"hftmaker/internal/signer"
	"hftmaker/internal/strategy"
	"hftmaker/internal/wsframe"
	"hftmaker/pkg/types"
)

const (
	recvWindow  = 20000
	authExpiry  = 5000 // ms ahead of NowMs the WS auth challenge expires
	pollTimeout = time.Millisecond
)

// Engine owns every piece of runtime state: the book, the strategy, the
// four venue sessions, and the poller that drives them. Constructed once at
// startup, then handed to exactly one hot-thread goroutine and one
// cold-thread goroutine.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	ring   *logring.Ring
	gate   *risk.Gate
	signer *signer.Signer
	rest   *restclient.Client

	book  *book.Book
	strat *strategy.Strategy
	sync  timeSync

	sessions [4]*session

	tick   uint64
	reqSeq uint64
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs an Engine from cfg. It does not dial anything — Start does.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	sign := signer.New(cfg.APISecret)

	return &Engine{
		cfg:    cfg,
		logger: logger,
		ring:   logring.New(),
		gate:   risk.New(cfg.Risk.DevMode, logger),
		signer: sign,
		rest:   restclient.New(cfg.Venue.RESTBaseURL, cfg.APIKey, sign, logger),
		book:   book.New(),
		strat: strategy.New(strategy.Config{
			PriceDecimals:           cfg.Strategy.PriceDecimals,
			OrderQty:                cfg.Strategy.OrderQty,
			ToxicityEnabled:         cfg.Strategy.ToxicityEnabled,
			FlowWindow:              cfg.Strategy.FlowWindow,
			FlowToxicityThreshold:   cfg.Strategy.FlowToxicityThreshold,
			FlowCooldownPeriod:      cfg.Strategy.FlowCooldownPeriod,
			FlowMaxSpreadMultiplier: cfg.Strategy.FlowMaxSpreadMultiplier,
		}),
		stopCh: make(chan struct{}),
	}
}

// Start runs the startup sequence (best-effort cancel-all, then dial all
// four sessions) and spawns the hot and cold threads. It returns once both
// threads are running; it does not block for the engine's lifetime — call
// Stop to shut down.
func (e *Engine) Start() error {
	e.rest.CancelAll(context.Background(), uint64(time.Now().UnixMilli()), e.cfg.Symbol)

	roles := [4]struct {
		ep   config.Endpoint
		role types.SessionRole
	}{
		{e.cfg.Venue.PublicMarketData, types.RolePublicMarketData},
		{e.cfg.Venue.ReferenceFeed, types.RoleReferenceFeed},
		{e.cfg.Venue.PrivateAccount, types.RolePrivateAccount},
		{e.cfg.Venue.PrivateOrderEntry, types.RolePrivateOrderEntry},
	}
	for i, r := range roles {
		s, err := dialSession(r.ep, r.role)
		if err != nil {
			e.closeDialedSessions(i)
			return fmt.Errorf("dial session %d: %w", r.role, err)
		}
		e.sessions[i] = s
	}

	numCPU, err := ioloop.NumCPU()
	if err != nil || numCPU < 1 {
		numCPU = 1
	}
	hotCore := 0
	coldCore := 0
	if numCPU > 1 {
		coldCore = 1
	}

	e.wg.Add(2)
	go e.runHot(hotCore)
	go e.runCold(coldCore)

	return nil
}

// Stop signals both threads to exit and waits for them, then closes every
// session's transport.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	for _, s := range e.sessions {
		if s != nil {
			s.close()
		}
	}
}

func (e *Engine) closeDialedSessions(n int) {
	for i := 0; i < n; i++ {
		if e.sessions[i] != nil {
			e.sessions[i].close()
		}
	}
}

// runHot is the single epoll loop: poll, dispatch readable/writable
// sessions, recompute every session's interest mask, advance the tick
// counter. Apart from the rate-limit pause in handleOrderEntryReply, no call
// here blocks longer than pollTimeout.
func (e *Engine) runHot(core int) {
	defer e.wg.Done()
	runtime.LockOSThread()
	if err := ioloop.PinCurrentThread(core); err != nil {
		e.logger.Warn("pin hot thread failed", "core", core, "error", err)
	}

	poller, err := ioloop.New()
	if err != nil {
		e.logger.Error("epoll create failed", "error", err)
		return
	}
	defer poller.Close()

	for _, s := range e.sessions {
		if err := poller.Register(s.fd, s.fd, ioloop.InterestRead|ioloop.InterestWrite); err != nil {
			e.logger.Error("register session failed", "role", s.role, "error", err)
		}
	}

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		events, err := poller.Wait(pollTimeout)
		if err != nil {
			e.logger.Error("poll failed", "error", err)
			continue
		}
		start := time.Now()

		for _, ev := range events {
			e.onEvent(ev)
		}

		for _, s := range e.sessions {
			interest := ioloop.InterestRead
			if s.ws.WantsWrite() || s.ws.Phase() != types.PhaseActive {
				interest |= ioloop.InterestWrite
			}
			if err := poller.Modify(s.fd, interest); err != nil {
				e.logger.Error("modify interest failed", "role", s.role, "error", err)
			}
		}

		e.tick++
		e.gate.CheckInternalLatency(start)
	}
}

// runCold drains the log ring into slog. It never blocks on anything but
// its own short sleep between empty polls of the ring.
func (e *Engine) runCold(core int) {
	defer e.wg.Done()
	runtime.LockOSThread()
	if err := ioloop.PinCurrentThread(core); err != nil {
		e.logger.Warn("pin cold thread failed", "core", core, "error", err)
	}

	for {
		select {
		case <-e.stopCh:
			e.drainRemaining()
			return
		default:
		}

		rec, ok := e.ring.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		e.logRecord(rec)
	}
}

func (e *Engine) drainRemaining() {
	for {
		rec, ok := e.ring.Pop()
		if !ok {
			return
		}
		e.logRecord(rec)
	}
}

func (e *Engine) logRecord(rec types.LogRecord) {
	if e.cfg.Logging.Minimal && rec.Kind == types.LogKindQuoteUpdate {
		return
	}
	switch rec.Kind {
	case types.LogKindSignalBuy, types.LogKindSignalSell:
		e.logger.Info("fill", "tick", rec.Tick, "kind", rec.Kind, "bybit_bid", rec.BybitBid, "bybit_ask", rec.BybitAsk)
	case types.LogKindQuoteUpdate:
		e.logger.Debug("quote", "tick", rec.Tick, "bybit_bid", rec.BybitBid, "bybit_ask", rec.BybitAsk, "ref_bid", rec.RefBid, "ref_ask", rec.RefAsk)
	default:
		e.logger.Info("status", "tick", rec.Tick, "latency_us", rec.LatencyUs)
	}
}

func (e *Engine) pushLog(kind uint8) {
	bid, ask, _ := e.book.BestBidAsk()
	st := e.strat.State()
	e.ring.Push(types.LogRecord{
		Tick:     e.tick,
		Kind:     kind,
		BybitBid: bid,
		BybitAsk: ask,
		RefBid:   st.RefBid,
		RefAsk:   st.RefAsk,
	})
}

// onEvent dispatches one readiness notification to the session it belongs
// to: writes the phase-appropriate outbound payload, then reads and parses
// whatever application frames arrived.
func (e *Engine) onEvent(ev ioloop.Event) {
	s := e.sessionByFD(ev.Token)
	if s == nil {
		return
	}

	e.gate.UpdatePacketTime(time.Now())

	if ev.Write {
		payload := e.outboundPayloadFor(s)
		if err := s.ws.OnWritable(payload); err != nil {
			e.logger.Error("session write failed", "role", s.role, "error", err)
			return
		}
	}

	if ev.Read {
		payloads, err := s.ws.OnReadable()
		if err != nil {
			e.logger.Warn("session read failed", "role", s.role, "error", err)
			return
		}
		for _, p := range payloads {
			e.dispatchPayload(s, p)
		}
	}
}

func (e *Engine) sessionByFD(fd int) *session {
	for _, s := range e.sessions {
		if s.fd == fd {
			return s
		}
	}
	return nil
}

func (e *Engine) sessionByRole(role types.SessionRole) *session {
	for _, s := range e.sessions {
		if s.role == role {
			return s
		}
	}
	return nil
}

// outboundPayloadFor builds whatever payload the session's current phase
// needs written next. Returns nil for phases with nothing to send (the
// handshake phases build their own request; Active has nothing queued here
// since order actions are written directly by executeActions).
func (e *Engine) outboundPayloadFor(s *session) []byte {
	switch s.ws.Phase() {
	case types.PhaseSubscribing:
		buf := make([]byte, 256)
		var topics []string
		switch s.role {
		case types.RolePublicMarketData:
			topics = []string{"orderbook.50." + e.cfg.Symbol}
		case types.RoleReferenceFeed:
			topics = []string{e.cfg.Symbol + "@bookTicker"}
		case types.RolePrivateAccount:
			topics = []string{"execution", "position"}
		default:
			topics = []string{}
		}
		n := serialize.Subscribe(buf, e.nextReqID(), topics)
		return buf[:n]
	case types.PhaseAuthenticating:
		buf := make([]byte, 256)
		expiresMs := e.sync.NowMs() + authExpiry
		var sig [signer.HexLen]byte
		e.signer.SignWSAuth(expiresMs, &sig)
		n := serialize.Auth(buf, e.cfg.APIKey, expiresMs, string(sig[:]))
		return buf[:n]
	default:
		return nil
	}
}

func (e *Engine) nextReqID() string {
	e.reqSeq++
	return "r-" + strconv.FormatUint(e.reqSeq, 10)
}

func (e *Engine) dispatchPayload(s *session, payload []byte) {
	switch s.role {
	case types.RolePublicMarketData:
		e.handlePublicMarketData(s, payload)
	case types.RoleReferenceFeed:
		e.handleReferenceFeed(s, payload)
	case types.RolePrivateAccount:
		e.handlePrivateAccount(s, payload)
	case types.RolePrivateOrderEntry:
		e.handleOrderEntryReply(s, payload)
	}
}

// ackEnvelope covers the handful of fields a subscribe-ack reply carries on
// the two market-data sessions.
type ackEnvelope struct {
	Op      string `json:"op"`
	Success bool   `json:"success"`
}

func (e *Engine) handlePublicMarketData(s *session, payload []byte) {
	var ack ackEnvelope
	if json.Unmarshal(payload, &ack) == nil && ack.Op == "subscribe" {
		s.ws.OnSubscribeAck()
		return
	}

	ts, err := parser.ParseDepth(payload, e.book)
	if err != nil {
		return
	}
	e.pushLog(types.LogKindQuoteUpdate)

	orderEntry := e.sessionByRole(types.RolePrivateOrderEntry)
	if orderEntry == nil || !orderEntry.ws.Authenticated() {
		// Gate quoting on the order-entry session having reached
		// authenticated, per spec.md §4.10 — phase reaches Active the
		// instant the auth frame is written, well before the venue acks it.
		return
	}

	actions := e.strat.OnTick(e.book, ts)
	e.executeActions(actions, orderEntry)
}

func (e *Engine) handleReferenceFeed(s *session, payload []byte) {
	var ack ackEnvelope
	if json.Unmarshal(payload, &ack) == nil && ack.Op == "subscribe" {
		s.ws.OnSubscribeAck()
		return
	}

	bid, ask, err := parser.ParseTopOfBook(payload)
	if err != nil {
		return
	}
	e.strat.UpdateReferencePrice(bid, ask)
}

// executionFill mirrors the fields this engine reads out of an execution
// topic update; the venue sends price/qty as quoted strings.
type executionFill struct {
	Side      string  `json:"side"`
	ExecQty   float64 `json:"execQty,string"`
	ExecPrice float64 `json:"execPrice,string"`
}

// positionUpdate mirrors the fields this engine reads out of a position
// topic update.
type positionUpdate struct {
	Side       string  `json:"side"`
	Size       float64 `json:"size,string"`
	EntryPrice float64 `json:"entryPrice,string"`
}

// privateTopicMessage covers both the auth/subscribe control acks and the
// execution/position topic pushes the private-account session carries.
// internal/parser only covers the public book-depth wire shape (spec.md
// §4.5); these control-channel payloads are low-frequency enough that an ad
// hoc encoding/json struct here is the right tool rather than extending the
// hot-path streaming parser for a shape it was never meant to cover.
type privateTopicMessage struct {
	Op      string          `json:"op"`
	Success bool            `json:"success"`
	Topic   string          `json:"topic"`
	Data    json.RawMessage `json:"data"`
}

func (e *Engine) handlePrivateAccount(s *session, payload []byte) {
	var msg privateTopicMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}

	switch msg.Op {
	case "auth":
		s.ws.OnAuthAck(msg.Success)
		if msg.Success {
			// spec.md §4.3: the private-data role subscribes to
			// execution/position only once auth is confirmed. This is a
			// one-shot reaction to the ack, not a phase the poll loop
			// revisits, so it's written directly here rather than routed
			// back through outboundPayloadFor/OnWritable.
			e.sendPrivateSubscribe(s)
		}
		return
	case "subscribe":
		s.ws.OnSubscribeAck()
		return
	}

	switch msg.Topic {
	case "execution":
		var fills []executionFill
		if json.Unmarshal(msg.Data, &fills) != nil {
			return
		}
		for _, f := range fills {
			side := types.Buy
			kind := types.LogKindSignalBuy
			if f.Side == "Sell" {
				side = types.Sell
				kind = types.LogKindSignalSell
			}
			e.strat.OnFill(side, f.ExecQty, f.ExecPrice)
			e.pushLog(kind)
		}
	case "position":
		var positions []positionUpdate
		if json.Unmarshal(msg.Data, &positions) != nil {
			return
		}
		for _, p := range positions {
			signedQty := p.Size
			if p.Side == "Sell" {
				signedQty = -signedQty
			}
			e.strat.SyncPosition(signedQty, p.EntryPrice)
		}
	}
}

// orderEntryReply mirrors a trade-op response: {"op","reqId","retCode",
// "retMsg","header":{"Timenow"}}. A successful auth reply also lands here
// since the order-entry session authenticates the same way the
// private-account session does.
type orderEntryReply struct {
	Op      string `json:"op"`
	ReqID   string `json:"reqId"`
	Success bool   `json:"success"`
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Header  struct {
		Timenow string `json:"Timenow"`
	} `json:"header"`
}

func (e *Engine) handleOrderEntryReply(s *session, payload []byte) {
	var reply orderEntryReply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return
	}

	if tn, err := strconv.ParseInt(reply.Header.Timenow, 10, 64); err == nil && tn > 0 {
		e.sync.Update(tn)
	}

	if reply.Op == "auth" {
		s.ws.OnAuthAck(reply.Success || reply.RetCode == 0)
		return
	}
	if reply.Op == "subscribe" {
		s.ws.OnSubscribeAck()
		return
	}
	if reply.RetCode == 0 {
		return
	}

	side, hasSide := sideFromLinkID(reply.ReqID)
	switch risk.DispatchVenueError(reply.RetCode) {
	case risk.ActionResetOrder, risk.ActionResetSide:
		if hasSide {
			e.strat.ResetOrder(side)
		}
	case risk.ActionSyncPositionFlat:
		e.strat.SyncPosition(0, 0)
	case risk.ActionSleepRateLimit:
		time.Sleep(risk.RateLimitSleep())
	}
	e.logger.Warn("venue error", "retCode", reply.RetCode, "retMsg", reply.RetMsg, "reqId", reply.ReqID)
}

// sideFromLinkID recovers the order side from a link-id's "b-"/"s-" prefix,
// per spec.md §9 "Link-id identity after rejection".
func sideFromLinkID(linkID string) (types.Side, bool) {
	switch {
	case len(linkID) >= 2 && linkID[:2] == "b-":
		return types.Buy, true
	case len(linkID) >= 2 && linkID[:2] == "s-":
		return types.Sell, true
	default:
		return 0, false
	}
}

// executeActions serializes, signs, frames, and writes every action the
// strategy emitted from one OnTick, in order, over the order-entry pipe.
func (e *Engine) executeActions(actions []types.Action, orderEntry *session) {
	for _, a := range actions {
		tsMs := e.sync.NowMs()
		var sig [signer.HexLen]byte
		e.signer.SignRequest(tsMs, e.cfg.APIKey, recvWindow, nil, &sig)

		buf := make([]byte, 512)
		var n int
		switch a.Kind {
		case types.ActionCreateOrder:
			n = serialize.OrderCreate(buf, serialize.OrderCreateParams{
				Symbol:      e.cfg.Symbol,
				Side:        a.Side.String(),
				Qty:         a.Qty,
				Price:       a.Price,
				ReqID:       a.LinkID,
				LinkID:      a.LinkID,
				TimestampMs: tsMs,
				RecvWindow:  recvWindow,
			}, string(sig[:]))
		case types.ActionAmendOrder:
			n = serialize.OrderAmend(buf, serialize.OrderAmendParams{
				Symbol:      e.cfg.Symbol,
				LinkID:      a.LinkID,
				Qty:         a.Qty,
				Price:       a.Price,
				ReqID:       a.LinkID,
				TimestampMs: tsMs,
				RecvWindow:  recvWindow,
			}, string(sig[:]))
		case types.ActionCancelOrder:
			n = serialize.OrderCancel(buf, e.cfg.Symbol, a.LinkID, a.LinkID, tsMs, recvWindow, string(sig[:]))
		case types.ActionCancelAll:
			n = serialize.OrderCancelAll(buf, e.cfg.Symbol, e.nextReqID(), tsMs, recvWindow, string(sig[:]))
		case types.ActionClosePosition:
			n = serialize.ClosePosition(buf, e.cfg.Symbol, a.Side.String(), a.Qty, e.nextReqID(), tsMs, recvWindow, string(sig[:]))
		default:
			continue
		}

		e.writeFrame(orderEntry, buf[:n], a.Kind)
	}
}

// sendPrivateSubscribe writes the execution/position subscribe request
// straight onto the private-account pipe, the same direct-write idiom
// writeFrame uses for order actions: no EPOLLOUT wait, just enqueue and
// flush in the same call.
func (e *Engine) sendPrivateSubscribe(s *session) {
	buf := make([]byte, 256)
	n := serialize.Subscribe(buf, e.nextReqID(), []string{"execution", "position"})

	frameBuf := make([]byte, 256)
	fn, err := wsframe.EncodeTextFrame(buf[:n], frameBuf)
	if err != nil {
		e.logger.Error("private subscribe payload too large for single text frame", "error", err)
		return
	}
	if _, err := s.pipe.WritePlaintext(frameBuf[:fn]); err != nil {
		e.logger.Error("private subscribe write failed", "error", err)
		return
	}
	if err := s.pipe.WriteTLS(); err != nil {
		e.logger.Warn("private subscribe flush failed", "error", err)
	}
}

func (e *Engine) writeFrame(s *session, payload []byte, kind types.ActionKind) {
	frameBuf := make([]byte, 256)
	n, err := wsframe.EncodeTextFrame(payload, frameBuf)
	if err != nil {
		// Every order payload this engine builds is well under the 125-byte
		// frame limit in practice; a payload that doesn't fit is logged and
		// dropped rather than fragmented (spec.md's encoder has no
		// continuation-frame support).
		e.logger.Error("order payload too large for single text frame", "kind", kind, "bytes", len(payload), "error", err)
		return
	}
	if _, err := s.pipe.WritePlaintext(frameBuf[:n]); err != nil {
		e.logger.Error("order write failed", "kind", kind, "error", err)
		return
	}
	if err := s.pipe.WriteTLS(); err != nil {
		e.logger.Warn("order flush failed", "kind", kind, "error", err)
	}
}
