package main

import (
	"log/slog"

	"github.com/liharsw/ex-fixsense/codec"
	"github.com/liharsw/ex-fixsense/session"
)

// loggingHandler is the reference session.Handler wired by this binary. A
// real deployment replaces it with one that routes OnAppMessage into its
// own business logic; this one only demonstrates and observes the four
// upcalls (spec §4.5), matching the bracketed [Component] slog style used
// throughout the rest of the fleet.
type loggingHandler struct {
	logger *slog.Logger
}

func newLoggingHandler(logger *slog.Logger) *loggingHandler {
	return &loggingHandler{logger: logger}
}

func (h *loggingHandler) OnLogon(key string, cfg session.Config) {
	h.logger.Info("[fixsensed] logon", "session_key", key, "target_comp_id", cfg.TargetCompID)
}

func (h *loggingHandler) OnAppMessage(key string, msg *codec.InboundMessage, _ session.Config) {
	h.logger.Info("[fixsensed] app message", "session_key", key, "msg_type", msg.MsgType, "seq_num", msg.SeqNum)
}

func (h *loggingHandler) OnSessionMessage(key string, msg *codec.InboundMessage, _ session.Config) {
	h.logger.Info("[fixsensed] session message", "session_key", key, "msg_type", msg.MsgType, "seq_num", msg.SeqNum)
}

func (h *loggingHandler) OnLogout(key string, reason session.LogoutReason, _ session.Config) {
	h.logger.Info("[fixsensed] logout", "session_key", key, "reason", reason.Kind.String(), "text", reason.Text, "cause", reason.Cause)
}
