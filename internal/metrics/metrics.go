// Package metrics exposes Prometheus instrumentation for a fixsense
// session, grounded on the teacher's internal/escrow/metrics.go, which
// builds a single struct of label-vectored counters/histograms/gauges via
// promauto at construction time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics bundles every Prometheus series a session emits over its
// lifetime. All series are labelled by session_key so one registry can
// serve an entire fleet of sessions.
type SessionMetrics struct {
	FramesSent     *prometheus.CounterVec
	FramesReceived *prometheus.CounterVec
	ParseErrors    *prometheus.CounterVec
	Gaps           *prometheus.CounterVec
	Duplicates     *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	SendSeqNum     *prometheus.GaugeVec
	RecvSeqNum     *prometheus.GaugeVec
	HeartbeatGap   *prometheus.HistogramVec
}

// NewSessionMetrics registers every series against registerer (pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests to avoid collisions across test binaries).
func NewSessionMetrics(registerer prometheus.Registerer) *SessionMetrics {
	factory := promauto.With(registerer)

	return &SessionMetrics{
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_frames_sent_total",
			Help: "Total outbound frames written to the transport.",
		}, []string{"session_key", "msg_type"}),

		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_frames_received_total",
			Help: "Total inbound frames successfully parsed.",
		}, []string{"session_key", "msg_type"}),

		ParseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_parse_errors_total",
			Help: "Total inbound frames dropped due to a parse error.",
		}, []string{"session_key", "reason"}),

		Gaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_sequence_gaps_total",
			Help: "Total inbound frames observed with seqnum > recv_seq_num.",
		}, []string{"session_key"}),

		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_sequence_duplicates_total",
			Help: "Total inbound frames silently dropped as duplicates.",
		}, []string{"session_key"}),

		Reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixsense_reconnects_total",
			Help: "Total reconnect attempts scheduled after transport loss.",
		}, []string{"session_key"}),

		SendSeqNum: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fixsense_send_seq_num",
			Help: "Current outbound MsgSeqNum (tag 34) the session will use next.",
		}, []string{"session_key"}),

		RecvSeqNum: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fixsense_recv_seq_num",
			Help: "Current inbound MsgSeqNum (tag 34) the session expects next.",
		}, []string{"session_key"}),

		HeartbeatGap: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fixsense_heartbeat_gap_seconds",
			Help:    "Seconds elapsed between consecutive outbound heartbeats.",
			Buckets: []float64{1, 5, 15, 30, 60, 120},
		}, []string{"session_key"}),
	}
}
