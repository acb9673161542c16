package session

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liharsw/ex-fixsense/codec"
	"github.com/liharsw/ex-fixsense/registry"
)

// --- test doubles ---------------------------------------------------------

type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
}

func (f *fakeTransport) Read(p []byte) (int, error) { return 0, nil }

func (f *fakeTransport) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.mu.Lock()
	f.written = append(f.written, cp)
	f.mu.Unlock()
	return len(p), nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

type fakeHandler struct {
	mu              sync.Mutex
	logons          int
	appMessages     []*codec.InboundMessage
	sessionMessages []*codec.InboundMessage
	logouts         []LogoutReason
}

func (h *fakeHandler) OnLogon(string, Config) {
	h.mu.Lock()
	h.logons++
	h.mu.Unlock()
}

func (h *fakeHandler) OnAppMessage(_ string, msg *codec.InboundMessage, _ Config) {
	h.mu.Lock()
	h.appMessages = append(h.appMessages, msg)
	h.mu.Unlock()
}

func (h *fakeHandler) OnSessionMessage(_ string, msg *codec.InboundMessage, _ Config) {
	h.mu.Lock()
	h.sessionMessages = append(h.sessionMessages, msg)
	h.mu.Unlock()
}

func (h *fakeHandler) OnLogout(_ string, reason LogoutReason, _ Config) {
	h.mu.Lock()
	h.logouts = append(h.logouts, reason)
	h.mu.Unlock()
}

type panicHandler struct{}

func (panicHandler) OnLogon(string, Config)                             { panic("boom") }
func (panicHandler) OnAppMessage(string, *codec.InboundMessage, Config) {}
func (panicHandler) OnSessionMessage(string, *codec.InboundMessage, Config) {}
func (panicHandler) OnLogout(string, LogoutReason, Config) {}

func newRawSession(handler Handler) (*Session, *fakeTransport) {
	cfg := Config{
		Key:               "t1",
		Host:              "h",
		Port:              1,
		SenderCompID:      "SENDER",
		TargetCompID:      "TARGET",
		HeartbeatInterval: time.Minute,
	}
	cfg.setDefaults()

	ft := &fakeTransport{}
	s := &Session{
		key:        cfg.Key,
		cfg:        cfg,
		handler:    handler,
		logger:     slog.Default(),
		sendSeqNum: 1,
		recvSeqNum: 1,
		transport:  ft,
		closedCh:   make(chan struct{}),
	}
	s.setPhase(PhaseLoggedOn)
	return s, ft
}

func buildInbound(t *testing.T, fields []codec.Field) []byte {
	t.Helper()
	raw, err := codec.Build("FIX.4.4", fields)
	require.NoError(t, err)
	return raw
}

// --- literal scenarios from spec §8 ---------------------------------------

func TestS3TestRequestResponse(t *testing.T) {
	h := &fakeHandler{}
	s, ft := newRawSession(h)
	s.sendSeqNum = 7
	s.recvSeqNum = 5

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeTestRequest),
		codec.NewIntField(codec.TagMsgSeqNum, 5),
		codec.NewField(codec.TagTestReqID, "ABC"),
	})
	s.handleFrame(frame)

	raw := ft.last()
	require.NotNil(t, raw)
	parsed, err := codec.ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.MsgTypeHeartbeat, parsed.MsgType)
	assert.Equal(t, 7, parsed.SeqNum)

	val, ok := fieldValue(parsed, codec.TagTestReqID)
	require.True(t, ok)
	assert.Equal(t, "ABC", val)
	assert.Equal(t, 8, s.sendSeqNum)
}

func TestS4SequenceResetGapFill(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.recvSeqNum = 5

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeSequenceReset),
		codec.NewIntField(codec.TagMsgSeqNum, 5),
		codec.NewField(codec.TagGapFillFlag, "Y"),
		codec.NewIntField(codec.TagNewSeqNo, 10),
	})
	s.handleFrame(frame)

	assert.Equal(t, 10, s.recvSeqNum)
}

func TestS5GapHandoff(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.recvSeqNum = 5

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, "W"),
		codec.NewIntField(codec.TagMsgSeqNum, 8),
	})
	s.handleFrame(frame)

	assert.Equal(t, 5, s.recvSeqNum)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.sessionMessages, 1)
	assert.Equal(t, 8, h.sessionMessages[0].SeqNum)
}

func TestS6LogonReset(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.recvSeqNum = 42

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeLogon),
		codec.NewIntField(codec.TagMsgSeqNum, 1),
		codec.NewField(codec.TagResetSeqNumFl, "Y"),
	})
	s.handleFrame(frame)

	assert.Equal(t, 2, s.recvSeqNum)
	assert.Equal(t, PhaseLoggedOn, s.phase)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.logons)
}

// --- additional properties -------------------------------------------------

func TestDuplicateSilentlyDropped(t *testing.T) {
	h := &fakeHandler{}
	s, ft := newRawSession(h)
	s.recvSeqNum = 5

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeHeartbeat),
		codec.NewIntField(codec.TagMsgSeqNum, 3),
	})
	s.handleFrame(frame)

	assert.Equal(t, 5, s.recvSeqNum)
	assert.Nil(t, ft.last())

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Empty(t, h.sessionMessages)
}

func TestMalformedFrameDoesNotAdvanceSeqNum(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.recvSeqNum = 5

	frame, err := codec.Build("FIX.4.4", []codec.Field{codec.NewField(codec.TagMsgType, "D")})
	require.NoError(t, err)

	s.handleFrame(frame)
	assert.Equal(t, 5, s.recvSeqNum)
}

func TestHandlerPanicDoesNotCrashSession(t *testing.T) {
	s, _ := newRawSession(panicHandler{})
	s.recvSeqNum = 1

	frame := buildInbound(t, []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeLogon),
		codec.NewIntField(codec.TagMsgSeqNum, 1),
	})

	assert.NotPanics(t, func() { s.handleFrame(frame) })
	assert.Equal(t, 2, s.recvSeqNum)
}

func TestHandleSendRequestNotLoggedOnReturnsSynchronously(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.setPhase(PhaseConnected)

	reply := make(chan sendResult, 1)
	s.handleSendRequest(&sendRequest{msgType: "D", reply: reply})

	res := <-reply
	assert.ErrorIs(t, res.err, ErrNotLoggedOn)
}

func TestSendIncrementsSeqNumByExactlyOne(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)
	s.sendSeqNum = 10

	_, err := s.send(codec.MsgTypeHeartbeat, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, s.sendSeqNum)
}

func TestSendReturnsPipeRenderedBytes(t *testing.T) {
	h := &fakeHandler{}
	s, _ := newRawSession(h)

	raw, err := s.send(codec.MsgTypeHeartbeat, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\x01")
	assert.Contains(t, string(raw), "|")
}

func TestHandleStopSendsGracefulLogout(t *testing.T) {
	h := &fakeHandler{}
	s, ft := newRawSession(h)

	reply := make(chan struct{})
	go s.handleStop(reply)
	<-reply

	raw := ft.last()
	require.NotNil(t, raw)
	parsed, err := codec.ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, codec.MsgTypeLogout, parsed.MsgType)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.logouts, 1)
	assert.Equal(t, LogoutReasonStopped, h.logouts[0].Kind)
}

// --- end-to-end through Manager --------------------------------------------

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestManagerStartLogonSendStopEndToEnd(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	dialer := func(ctx context.Context, host string, port int, opts map[string]string) (Transport, error) {
		return clientConn, nil
	}

	cfg := Config{
		Key:               "acme",
		Host:              "fix.example",
		Port:              1,
		SenderCompID:      "S",
		TargetCompID:      "T",
		HeartbeatInterval: time.Hour,
		Dialer:            dialer,
	}

	h := &fakeHandler{}
	mgr := NewManager(registry.NewMemoryRegistry())

	sess, err := mgr.Start(cfg, h)
	require.NoError(t, err)

	logonFrame := readFrame(t, serverConn)
	parsedLogon, err := codec.ParseFrame(logonFrame)
	require.NoError(t, err)
	assert.Equal(t, codec.MsgTypeLogon, parsedLogon.MsgType)

	reply, err := codec.Build("FIX.4.4", []codec.Field{
		codec.NewField(codec.TagMsgType, codec.MsgTypeLogon),
		codec.NewIntField(codec.TagMsgSeqNum, 1),
	})
	require.NoError(t, err)
	_, err = serverConn.Write(reply)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.Phase() == PhaseLoggedOn
	}, time.Second, 10*time.Millisecond)

	_, err = mgr.Start(cfg, h)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	outbound := codec.NewOutboundMessage("D")
	outbound.SetField(55, "BTC-USD")

	var sendRaw []byte
	var sendErr error
	sendDone := make(chan struct{})
	go func() {
		sendRaw, sendErr = mgr.SendMessage(context.Background(), "acme", outbound)
		close(sendDone)
	}()

	appFrame := readFrame(t, serverConn)
	<-sendDone
	require.NoError(t, sendErr)
	assert.NotEmpty(t, sendRaw)

	parsedApp, err := codec.ParseFrame(appFrame)
	require.NoError(t, err)
	assert.Equal(t, "D", parsedApp.MsgType)

	var stopErr error
	stopDone := make(chan struct{})
	go func() {
		stopErr = mgr.Stop("acme")
		close(stopDone)
	}()

	logoutFrame := readFrame(t, serverConn)
	parsedLogout, err := codec.ParseFrame(logoutFrame)
	require.NoError(t, err)
	assert.Equal(t, codec.MsgTypeLogout, parsedLogout.MsgType)

	<-stopDone
	require.NoError(t, stopErr)

	_, err = mgr.SendMessage(context.Background(), "acme", outbound)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
