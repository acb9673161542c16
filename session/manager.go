package session

import (
	"context"
	"fmt"

	"github.com/liharsw/ex-fixsense/codec"
	"github.com/liharsw/ex-fixsense/registry"
)

// Manager is the public, registry-backed surface described in spec §4.6 and
// §6: start_session(key, handler), send_message(key, outbound), stop_session(key).
// It lets SendMessage and Stop be issued from any goroutine in the embedding
// application without holding a direct *Session handle.
type Manager struct {
	reg registry.Registry
}

// NewManager wraps reg as the session registry. Pass registry.NewMemoryRegistry()
// for a single-process deployment or a *registry.FleetRegistry to share
// registrations across a fleet of processes (spec §11). A bare
// *registry.RedisRegistry hands back string markers, not *Session handles,
// so SendMessage and Stop cannot resolve sessions through it.
func NewManager(reg registry.Registry) *Manager {
	return &Manager{reg: reg}
}

// Start registers and launches a new session under cfg.Key. It returns
// ErrAlreadyStarted if the key is already occupied (spec §4.4 Start).
func (m *Manager) Start(cfg Config, handler Handler) (*Session, error) {
	sess, err := New(cfg, handler)
	if err != nil {
		return nil, err
	}
	if err := m.reg.Insert(cfg.Key, sess); err != nil {
		if err == registry.ErrAlreadyRegistered {
			return nil, ErrAlreadyStarted
		}
		return nil, err
	}
	sess.Start()
	return sess, nil
}

// SendMessage looks up the session registered under key and forwards msg to
// it. It returns ErrSessionNotFound if no session is registered, or
// ErrNotLoggedOn if the session's phase is not LoggedOn (spec §4.4
// SendMessage).
func (m *Manager) SendMessage(ctx context.Context, key string, msg *codec.OutboundMessage) ([]byte, error) {
	sess, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return sess.Send(ctx, msg)
}

// Stop stops the session registered under key: best-effort graceful
// Logout, transport close, deregistration (spec §4.4 Stop).
func (m *Manager) Stop(key string) error {
	sess, err := m.lookup(key)
	if err != nil {
		return err
	}
	sess.Stop()
	return m.reg.Delete(key)
}

// Status is a point-in-time snapshot of one running session, used by the
// reference admin HTTP surface (cmd/fixsensed) to render a fleet dashboard.
type Status struct {
	Key        string `json:"key"`
	Phase      string `json:"phase"`
	SendSeqNum int    `json:"send_seq_num"`
	RecvSeqNum int    `json:"recv_seq_num"`
}

// keyLister is satisfied by registry backends that can enumerate their
// local entries (registry.MemoryRegistry, registry.FleetRegistry). A bare
// registry.RedisRegistry does not implement it, since it never holds live
// handles to report on.
type keyLister interface {
	Keys() []string
}

// Statuses returns a snapshot of every session currently registered, or nil
// if the underlying registry cannot enumerate its keys.
func (m *Manager) Statuses() []Status {
	lister, ok := m.reg.(keyLister)
	if !ok {
		return nil
	}

	keys := lister.Keys()
	statuses := make([]Status, 0, len(keys))
	for _, key := range keys {
		sess, err := m.lookup(key)
		if err != nil {
			continue
		}
		statuses = append(statuses, Status{
			Key:        key,
			Phase:      sess.Phase().String(),
			SendSeqNum: sess.SendSeqNum(),
			RecvSeqNum: sess.RecvSeqNum(),
		})
	}
	return statuses
}

func (m *Manager) lookup(key string) (*Session, error) {
	handle, err := m.reg.Lookup(key)
	if err != nil {
		if err == registry.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	sess, ok := handle.(*Session)
	if !ok {
		return nil, fmt.Errorf("session: registry entry for %q is not a *Session", key)
	}
	return sess, nil
}
