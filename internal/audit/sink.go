// Package audit implements an optional forensic sink that durably records
// every inbound/outbound raw FIX frame for compliance review. It is
// write-only: the session never reads it back to reconstruct sequence
// state or replay messages, so it is not the "message persistence for
// replay" spec.md explicitly excludes.
package audit

import (
	"context"
	"time"
)

// Direction labels which way a recorded frame travelled.
type Direction string

const (
	DirectionInbound  Direction = "in"
	DirectionOutbound Direction = "out"
)

// Sink records raw frames. Implementations must not block the session for
// an unbounded time; Session calls Record directly on its own goroutine
// with a one-second context. AsyncSink is the buffered background writer
// that decouples a slow Sink from that goroutine.
type Sink interface {
	Record(ctx context.Context, sessionKey string, dir Direction, raw []byte, at time.Time) error
	Close() error
}

// NoopSink discards every record; it is the default when no audit_sink_dsn
// is configured.
type NoopSink struct{}

// Record implements Sink.
func (NoopSink) Record(context.Context, string, Direction, []byte, time.Time) error { return nil }

// Close implements Sink.
func (NoopSink) Close() error { return nil }
