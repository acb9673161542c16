package session

import "github.com/liharsw/ex-fixsense/codec"

// Handler is the four-upcall contract the session invokes for every
// protocol event a business layer might care about. None may block the
// session for unbounded time; the session wraps every invocation in a
// failure barrier (see Session.invoke) so a misbehaving handler cannot take
// down the protocol session. See spec §4.5.
type Handler interface {
	// OnLogon fires once the session transitions to LoggedOn.
	OnLogon(key string, cfg Config)
	// OnAppMessage fires for every inbound frame whose msg_type is not one
	// of the administrative codes the session itself handles.
	OnAppMessage(key string, msg *codec.InboundMessage, cfg Config)
	// OnSessionMessage fires for ResendRequest, Reject, and every sequence
	// gap (seqnum > recv_seq_num).
	OnSessionMessage(key string, msg *codec.InboundMessage, cfg Config)
	// OnLogout fires on graceful Logout, transport loss, or Stop.
	OnLogout(key string, reason LogoutReason, cfg Config)
}

// LogoutReasonKind discriminates why OnLogout fired.
type LogoutReasonKind int

const (
	// LogoutReasonPeerLogout means the peer sent a Logout (35=5) frame.
	LogoutReasonPeerLogout LogoutReasonKind = iota
	// LogoutReasonConnectionLost means the transport closed or errored.
	LogoutReasonConnectionLost
	// LogoutReasonStopped means the application called Stop.
	LogoutReasonStopped
)

func (k LogoutReasonKind) String() string {
	switch k {
	case LogoutReasonPeerLogout:
		return "Logout"
	case LogoutReasonConnectionLost:
		return "ConnectionLost"
	case LogoutReasonStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// LogoutReason carries the kind of logout event plus whatever detail is
// available: Text (tag 58) for a peer Logout, Cause for a connection loss.
type LogoutReason struct {
	Kind  LogoutReasonKind
	Text  string
	Cause error
}
