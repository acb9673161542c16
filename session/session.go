// Package session implements the per-session FIX state machine: the
// logon handshake, send/receive sequence number bookkeeping, heartbeats,
// administrative-message dispatch, and reconnect-on-loss. See spec §4.4.
//
// Each Session is a single owning goroutine (its "mailbox") that serializes
// every state mutation; callers on other goroutines (SendMessage, Stop)
// communicate with it exclusively through channels, so no lock ever crosses
// a suspension point (spec §5). This mirrors the teacher's
// internal/protocol.SessionManager/Session split, generalized from an
// in-memory conversation record to an owning-task wire-protocol client.
package session

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/liharsw/ex-fixsense/codec"
	"github.com/liharsw/ex-fixsense/fixtime"
	"github.com/liharsw/ex-fixsense/internal/audit"
	"github.com/liharsw/ex-fixsense/strategy"
)

// Phase is the session lifecycle phase (spec §3).
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseLoggedOn
	PhaseLoggingOut
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseConnecting:
		return "Connecting"
	case PhaseConnected:
		return "Connected"
	case PhaseLoggedOn:
		return "LoggedOn"
	case PhaseLoggingOut:
		return "LoggingOut"
	default:
		return "Unknown"
	}
}

// reconnectDelay is the mandatory fixed back-off before a reconnect attempt
// (spec §5). A configured Reconnector may add further throttling beyond
// this floor but never shortens it.
const reconnectDelay = 5 * time.Second

var errNoTransport = errors.New("session: no transport")

type sendRequest struct {
	msgType    string
	bodyFields []codec.Field
	reply      chan sendResult
}

type sendResult struct {
	raw []byte
	err error
}

type inboundEvent struct {
	gen  int
	data []byte
}

type transportErrEvent struct {
	gen int
	err error
}

// Session owns one FIX session's transport connection, sequence numbers,
// and timers. Construct with New; drive its lifecycle with Start and Stop.
type Session struct {
	key     string
	cfg     Config
	handler Handler
	logger  *slog.Logger

	// Channels through which every other goroutine talks to run(). Only
	// run() ever touches the fields below this point.
	sendCh         chan *sendRequest
	stopCh         chan chan struct{}
	inboundCh      chan inboundEvent
	transportErrCh chan transportErrEvent
	reconnectCh    chan int
	closedCh       chan struct{}

	phase           Phase
	sendSeqNum      int
	recvSeqNum      int
	buffer          []byte
	transport       Transport
	generation      int
	lastSendTime    time.Time
	lastRecvTime    time.Time
	lastHeartbeatAt time.Time
	heartbeatTimer  *time.Timer

	// Atomic mirrors of state that other goroutines may read concurrently
	// (Phase, SendSeqNum, RecvSeqNum accessors) without crossing into the
	// owning goroutine's mailbox.
	phaseAtomic    atomic.Int32
	sendSeqAtomic  atomic.Int64
	recvSeqAtomic  atomic.Int64
}

// New validates cfg, applies defaults, and constructs a Session in phase
// Disconnected with send_seq_num=1, recv_seq_num=1 (spec §4.4 Start). It
// does not start the session's goroutine; call Start for that.
func New(cfg Config, handler Handler) (*Session, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("session: handler is required")
	}

	s := &Session{
		key:            cfg.Key,
		cfg:            cfg,
		handler:        handler,
		logger:         slog.Default(),
		phase:          PhaseDisconnected,
		sendSeqNum:     1,
		recvSeqNum:     1,
		sendCh:         make(chan *sendRequest),
		stopCh:         make(chan chan struct{}),
		inboundCh:      make(chan inboundEvent),
		transportErrCh: make(chan transportErrEvent),
		reconnectCh:    make(chan int),
		closedCh:       make(chan struct{}),
	}
	s.sendSeqAtomic.Store(1)
	s.recvSeqAtomic.Store(1)
	return s, nil
}

// Key returns the session identifier.
func (s *Session) Key() string { return s.key }

// Phase returns the current lifecycle phase. Safe to call concurrently.
func (s *Session) Phase() Phase { return Phase(s.phaseAtomic.Load()) }

// SendSeqNum returns the outbound MsgSeqNum the session will use next. Safe
// to call concurrently.
func (s *Session) SendSeqNum() int { return int(s.sendSeqAtomic.Load()) }

// RecvSeqNum returns the inbound MsgSeqNum the session expects next. Safe
// to call concurrently.
func (s *Session) RecvSeqNum() int { return int(s.recvSeqAtomic.Load()) }

// Start launches the session's owning goroutine and schedules an immediate
// connect (spec §4.4 Start). Must be called exactly once.
func (s *Session) Start() {
	go s.run()
}

// Send enqueues an application message for transmission and blocks until
// the session has either written it to the transport or rejected it. It
// returns ErrNotLoggedOn synchronously if the session is not currently
// LoggedOn. On success the returned bytes are exactly what was written to
// the transport, with SOH rendered as '|' for logging (spec §4.4
// SendMessage).
func (s *Session) Send(ctx context.Context, msg *codec.OutboundMessage) ([]byte, error) {
	reply := make(chan sendResult, 1)
	req := &sendRequest{msgType: msg.MsgType(), bodyFields: msg.Fields(), reply: reply}

	select {
	case s.sendCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closedCh:
		return nil, ErrSessionNotFound
	}

	select {
	case res := <-reply:
		return res.raw, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop initiates a graceful logout if connected, then closes the transport
// and stops the session's goroutine (spec §4.4 Stop). It blocks until
// shutdown completes.
func (s *Session) Stop() {
	reply := make(chan struct{})
	select {
	case s.stopCh <- reply:
		<-reply
	case <-s.closedCh:
	}
}

// run is the session's mailbox: every state mutation happens here, on this
// one goroutine, serialized by the select loop (spec §5).
func (s *Session) run() {
	s.connect()
	for {
		select {
		case req := <-s.sendCh:
			s.handleSendRequest(req)
		case reply := <-s.stopCh:
			s.handleStop(reply)
			return
		case ev := <-s.inboundCh:
			if ev.gen == s.generation {
				s.handleInboundBytes(ev.data)
			}
		case ev := <-s.transportErrCh:
			if ev.gen == s.generation {
				s.handleTransportLoss(ev.err)
			}
		case <-s.heartbeatC():
			s.handleHeartbeatTick()
		case gen := <-s.reconnectCh:
			if gen == s.generation {
				s.connect()
			}
		}
	}
}

func (s *Session) heartbeatC() <-chan time.Time {
	if s.heartbeatTimer == nil {
		return nil
	}
	return s.heartbeatTimer.C
}

func (s *Session) armHeartbeat() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	s.heartbeatTimer = time.NewTimer(s.cfg.HeartbeatInterval)
}

func (s *Session) stopHeartbeat() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
}

func (s *Session) setPhase(p Phase) {
	s.phase = p
	s.phaseAtomic.Store(int32(p))
}

// connect runs the connect routine (spec §4.4): dial, build and emit Logon,
// arm receive and heartbeat. A hard dial failure re-arms the 5s reconnect
// timer rather than propagating; nothing unwinds past the session boundary
// (spec §7).
func (s *Session) connect() {
	s.setPhase(PhaseConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	tr, err := s.cfg.Dialer(ctx, s.cfg.Host, s.cfg.Port, s.cfg.TransportOpts)
	cancel()
	if err != nil {
		s.logger.Warn("[Session] connect failed", "session_key", s.key, "error", err)
		s.setPhase(PhaseDisconnected)
		s.scheduleReconnect()
		return
	}

	s.transport = tr
	s.generation++
	s.buffer = nil
	gen := s.generation
	go s.readLoop(tr, gen)

	if _, err := s.sendLogon(); err != nil {
		s.logger.Error("[Session] logon failed", "session_key", s.key, "error", err)
		s.closeTransport()
		s.setPhase(PhaseDisconnected)
		s.scheduleReconnect()
		return
	}

	s.armHeartbeat()
	s.setPhase(PhaseConnected)
}

func (s *Session) readLoop(tr Transport, gen int) {
	buf := make([]byte, 4096)
	for {
		n, err := tr.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.inboundCh <- inboundEvent{gen: gen, data: data}:
			case <-s.closedCh:
				return
			}
		}
		if err != nil {
			select {
			case s.transportErrCh <- transportErrEvent{gen: gen, err: err}:
			case <-s.closedCh:
			}
			return
		}
	}
}

func (s *Session) closeTransport() {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
}

// scheduleReconnect arms the mandatory 5s fixed delay and, if a Reconnector
// is configured, an additional throttling wait beyond it, then signals run()
// to attempt another connect — never blocking the select loop itself (spec
// §5 Suspension points).
func (s *Session) scheduleReconnect() {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Reconnects.WithLabelValues(s.key).Inc()
	}
	gen := s.generation
	go func() {
		select {
		case <-time.After(reconnectDelay):
		case <-s.closedCh:
			return
		}
		if s.cfg.Reconnector != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			_ = s.cfg.Reconnector.Wait(ctx)
			cancel()
		}
		select {
		case s.reconnectCh <- gen:
		case <-s.closedCh:
		}
	}()
}

func (s *Session) handleTransportLoss(cause error) {
	s.invokeOnLogout(LogoutReason{Kind: LogoutReasonConnectionLost, Cause: cause})
	s.stopHeartbeat()
	s.closeTransport()
	s.setPhase(PhaseDisconnected)
	s.scheduleReconnect()
}

func (s *Session) handleHeartbeatTick() {
	if s.phase == PhaseConnected || s.phase == PhaseLoggedOn {
		if time.Since(s.lastSendTime) >= s.cfg.HeartbeatInterval {
			if _, err := s.send(codec.MsgTypeHeartbeat, nil); err != nil {
				s.logger.Warn("[Session] heartbeat send failed", "session_key", s.key, "error", err)
			}
		}
	}
	s.armHeartbeat()
}

func (s *Session) handleSendRequest(req *sendRequest) {
	if s.phase != PhaseLoggedOn {
		req.reply <- sendResult{err: ErrNotLoggedOn}
		return
	}
	raw, err := s.send(req.msgType, req.bodyFields)
	req.reply <- sendResult{raw: raw, err: err}
}

func (s *Session) handleStop(reply chan struct{}) {
	if s.phase == PhaseConnected || s.phase == PhaseLoggedOn {
		if _, err := s.send(codec.MsgTypeLogout, nil); err != nil {
			s.logger.Warn("[Session] graceful logout send failed", "session_key", s.key, "error", err)
		}
	}
	s.invokeOnLogout(LogoutReason{Kind: LogoutReasonStopped})
	s.stopHeartbeat()
	s.closeTransport()
	s.setPhase(PhaseDisconnected)
	close(s.closedCh)
	close(reply)
}

func (s *Session) handleInboundBytes(data []byte) {
	s.buffer = append(s.buffer, data...)
	frames, remainder := codec.SplitStream(s.buffer)
	s.buffer = remainder
	for _, f := range frames {
		s.handleFrame(f)
	}
}

// handleFrame implements the inbound frame processing steps of spec §4.4:
// parse, apply the Logon-reset special case, compare seqnum to
// recv_seq_num (gap / duplicate / in-order), then dispatch.
func (s *Session) handleFrame(frame []byte) {
	msg, err := codec.ParseFrame(frame)
	if err != nil {
		s.logger.Warn("[Session] malformed inbound frame", "session_key", s.key, "error", err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ParseErrors.WithLabelValues(s.key, err.Error()).Inc()
		}
		return
	}

	now := time.Now()
	s.lastRecvTime = now
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FramesReceived.WithLabelValues(s.key, msg.MsgType).Inc()
	}
	func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.cfg.AuditSink.Record(ctx, s.key, audit.DirectionInbound, msg.Raw, now)
	}()

	if msg.MsgType == codec.MsgTypeLogon {
		if v, ok := fieldValue(msg, codec.TagResetSeqNumFl); ok && v == "Y" {
			s.recvSeqNum = 1
			s.recvSeqAtomic.Store(1)
		}
	}

	switch {
	case msg.SeqNum > s.recvSeqNum:
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Gaps.WithLabelValues(s.key).Inc()
		}
		s.invokeOnSessionMessage(msg)
		return
	case msg.SeqNum < s.recvSeqNum:
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.Duplicates.WithLabelValues(s.key).Inc()
		}
		return
	}

	s.recvSeqNum++
	s.recvSeqAtomic.Store(int64(s.recvSeqNum))
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecvSeqNum.WithLabelValues(s.key).Set(float64(s.recvSeqNum))
	}
	s.dispatch(msg)
}

func (s *Session) dispatch(msg *codec.InboundMessage) {
	switch msg.MsgType {
	case codec.MsgTypeLogon:
		s.setPhase(PhaseLoggedOn)
		s.invokeOnLogon()

	case codec.MsgTypeHeartbeat:
		// no-op

	case codec.MsgTypeTestRequest:
		testReqID, _ := fieldValue(msg, codec.TagTestReqID)
		if _, err := s.send(codec.MsgTypeHeartbeat, []codec.Field{codec.NewField(codec.TagTestReqID, testReqID)}); err != nil {
			s.logger.Warn("[Session] test request response failed", "session_key", s.key, "error", err)
		}

	case codec.MsgTypeResendRequest, codec.MsgTypeReject:
		s.invokeOnSessionMessage(msg)

	case codec.MsgTypeSequenceReset:
		s.handleSequenceReset(msg)

	case codec.MsgTypeLogout:
		text, _ := fieldValue(msg, codec.TagText)
		s.invokeOnLogout(LogoutReason{Kind: LogoutReasonPeerLogout, Text: text})
		s.stopHeartbeat()
		s.closeTransport()
		s.setPhase(PhaseDisconnected)
		s.scheduleReconnect()

	default:
		s.invokeOnAppMessage(msg)
	}
}

// handleSequenceReset applies tag 36 unconditionally once parsed; it only
// distinguishes gap-fill from hard reset for logging (spec §4.4 dispatch
// table entry for 35=4: both dispositions set recv_seq_num identically).
func (s *Session) handleSequenceReset(msg *codec.InboundMessage) {
	newSeqNoStr, ok := fieldValue(msg, codec.TagNewSeqNo)
	if !ok {
		s.logger.Warn("[Session] SequenceReset missing NewSeqNo", "session_key", s.key)
		return
	}
	newSeqNo, err := strconv.Atoi(newSeqNoStr)
	if err != nil {
		s.logger.Warn("[Session] SequenceReset invalid NewSeqNo", "session_key", s.key, "value", newSeqNoStr)
		return
	}

	gapFillVal, present := fieldValue(msg, codec.TagGapFillFlag)
	hardReset := present && gapFillVal == "N"

	s.recvSeqNum = newSeqNo
	s.recvSeqAtomic.Store(int64(newSeqNo))
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecvSeqNum.WithLabelValues(s.key).Set(float64(newSeqNo))
	}

	if hardReset {
		s.logger.Info("[Session] SequenceReset hard reset", "session_key", s.key, "new_seq_no", newSeqNo)
	} else {
		s.logger.Info("[Session] SequenceReset gap fill", "session_key", s.key, "new_seq_no", newSeqNo)
	}
}

// sendLogon builds and writes the Logon frame, resetting send_seq_num to 1
// before tag 34 is rendered if the strategy requests ResetSeqNumFlag=Y
// (spec §4.4 connect routine, step 2).
func (s *Session) sendLogon() ([]byte, error) {
	fields, err := s.cfg.Strategy.BuildLogonFields(s.cfg.strategyConfig())
	if err != nil {
		return nil, err
	}
	if strategy.ResetsSeqNum(fields) {
		s.sendSeqNum = 1
		s.sendSeqAtomic.Store(1)
	}
	return s.send(codec.MsgTypeLogon, fields)
}

// send builds a complete frame (standard headers plus bodyFields) using the
// current send_seq_num, writes it to the transport, and on success
// increments send_seq_num by exactly one (spec §3 invariant 1). The
// returned bytes have SOH rendered as '|' for logging.
func (s *Session) send(msgType string, bodyFields []codec.Field) ([]byte, error) {
	seq := s.sendSeqNum
	all := append(s.standardHeaders(msgType, seq), bodyFields...)

	raw, err := codec.Build(s.cfg.BeginString, all)
	if err != nil {
		return nil, err
	}
	if err := s.writeRaw(raw, msgType); err != nil {
		return nil, err
	}
	return renderForLog(raw), nil
}

func (s *Session) standardHeaders(msgType string, seq int) []codec.Field {
	headers := []codec.Field{
		codec.NewField(codec.TagMsgType, msgType),
		codec.NewField(codec.TagSenderCompID, s.cfg.SenderCompID),
		codec.NewField(codec.TagTargetCompID, s.cfg.TargetCompID),
		codec.NewIntField(codec.TagMsgSeqNum, seq),
	}
	if s.cfg.SenderSubID != "" {
		headers = append(headers, codec.NewField(codec.TagSenderSubID, s.cfg.SenderSubID))
	}
	return append(headers, codec.NewField(codec.TagSendingTime, fixtime.Now(true)))
}

func (s *Session) writeRaw(raw []byte, msgType string) error {
	if s.transport == nil {
		return &TransportError{Cause: errNoTransport}
	}
	if _, err := s.transport.Write(raw); err != nil {
		return &TransportError{Cause: err}
	}

	now := time.Now()
	s.sendSeqNum++
	s.sendSeqAtomic.Store(int64(s.sendSeqNum))

	if msgType == codec.MsgTypeHeartbeat && s.cfg.Metrics != nil && !s.lastHeartbeatAt.IsZero() {
		s.cfg.Metrics.HeartbeatGap.WithLabelValues(s.key).Observe(now.Sub(s.lastHeartbeatAt).Seconds())
	}
	if msgType == codec.MsgTypeHeartbeat {
		s.lastHeartbeatAt = now
	}
	s.lastSendTime = now

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FramesSent.WithLabelValues(s.key, msgType).Inc()
		s.cfg.Metrics.SendSeqNum.WithLabelValues(s.key).Set(float64(s.sendSeqNum))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.cfg.AuditSink.Record(ctx, s.key, audit.DirectionOutbound, raw, now)
	return nil
}

func renderForLog(raw []byte) []byte {
	out := make([]byte, len(raw))
	for i, b := range raw {
		if b == codec.SOH {
			out[i] = '|'
		} else {
			out[i] = b
		}
	}
	return out
}

func fieldValue(msg *codec.InboundMessage, tag int) (string, bool) {
	for _, f := range msg.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

// invoke wraps a handler upcall in a failure barrier: a panicking handler
// is caught, logged with a stack trace, and never crashes the session
// (spec §4.5, §7 Handler errors, §9 Handler failure barrier).
func (s *Session) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[Session] handler panic",
				"session_key", s.key, "callback", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (s *Session) invokeOnLogon() {
	s.invoke("OnLogon", func() { s.handler.OnLogon(s.key, s.cfg) })
}

func (s *Session) invokeOnAppMessage(msg *codec.InboundMessage) {
	s.invoke("OnAppMessage", func() { s.handler.OnAppMessage(s.key, msg, s.cfg) })
}

func (s *Session) invokeOnSessionMessage(msg *codec.InboundMessage) {
	s.invoke("OnSessionMessage", func() { s.handler.OnSessionMessage(s.key, msg, s.cfg) })
}

func (s *Session) invokeOnLogout(reason LogoutReason) {
	s.invoke("OnLogout", func() { s.handler.OnLogout(s.key, reason, s.cfg) })
}
