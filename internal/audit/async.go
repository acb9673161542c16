package audit

import (
	"context"
	"log/slog"
	"time"
)

type record struct {
	sessionKey string
	dir        Direction
	raw        []byte
	at         time.Time
}

// AsyncSink decouples a potentially slow Sink (e.g. PostgresSink) from the
// session goroutine: Record enqueues onto a buffered channel and returns
// immediately; a single background goroutine drains it. A full queue drops
// the record and logs a warning rather than blocking the caller — audit
// recording is best-effort forensic infrastructure, never a protocol
// concern (spec §7).
type AsyncSink struct {
	underlying Sink
	queue      chan record
	done       chan struct{}
	logger     *slog.Logger
}

// NewAsyncSink starts the background writer goroutine. queueSize bounds how
// many pending records may be buffered before new records are dropped.
func NewAsyncSink(underlying Sink, queueSize int, logger *slog.Logger) *AsyncSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		underlying: underlying,
		queue:      make(chan record, queueSize),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for r := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.underlying.Record(ctx, r.sessionKey, r.dir, r.raw, r.at); err != nil {
			s.logger.Warn("audit: record failed", "session_key", r.sessionKey, "error", err)
		}
		cancel()
	}
}

// Record implements Sink. It never blocks: if the queue is full the record
// is dropped and logged.
func (s *AsyncSink) Record(_ context.Context, sessionKey string, dir Direction, raw []byte, at time.Time) error {
	r := record{sessionKey: sessionKey, dir: dir, raw: append([]byte(nil), raw...), at: at}
	select {
	case s.queue <- r:
	default:
		s.logger.Warn("audit: queue full, dropping record", "session_key", sessionKey)
	}
	return nil
}

// Close drains remaining queued records (up to a short grace period) and
// closes the underlying sink.
func (s *AsyncSink) Close() error {
	close(s.queue)
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
	return s.underlying.Close()
}
