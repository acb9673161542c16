package session

import (
	"fmt"
	"time"

	"github.com/liharsw/ex-fixsense/internal/audit"
	"github.com/liharsw/ex-fixsense/internal/metrics"
	"github.com/liharsw/ex-fixsense/internal/ratelimit"
	"github.com/liharsw/ex-fixsense/strategy"
)

// Config describes one session endpoint, validated at Start. See spec §6's
// configuration surface.
type Config struct {
	// Key is the session identifier used for registry lookup and every
	// handler upcall's first argument.
	Key string

	Host              string
	Port              int
	BeginString       string // tag 8; defaults to "FIX.4.4"
	SenderCompID      string // tag 49
	SenderSubID       string // tag 50, omitted if empty
	TargetCompID      string // tag 56
	HeartbeatInterval time.Duration

	// TransportOpts is passed verbatim to Dialer (TLS certs, verify mode,
	// SNI, …); the session never interprets it.
	TransportOpts map[string]string

	// Strategy builds the Logon body fields. Defaults to strategy.Standard{}.
	Strategy strategy.LogonStrategy
	// LogonParams feeds strategy.Config.Params for the chosen strategy.
	LogonParams map[string]string

	// Dialer opens the transport connection. Defaults to DialTCP.
	Dialer Dialer

	// Reconnector throttles reconnect bursts beyond the mandatory 5s
	// fixed delay (spec §4.4 S5). Optional: nil disables throttling.
	Reconnector *ratelimit.Reconnector

	// AuditSink records every raw inbound/outbound frame. Optional:
	// defaults to audit.NoopSink{}.
	AuditSink audit.Sink

	// Metrics is where the session reports Prometheus series. Optional:
	// a nil Metrics disables instrumentation.
	Metrics *metrics.SessionMetrics
}

func (c *Config) setDefaults() {
	if c.BeginString == "" {
		c.BeginString = "FIX.4.4"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.Strategy == nil {
		c.Strategy = strategy.Standard{}
	}
	if c.Dialer == nil {
		c.Dialer = DialTCP
	}
	if c.AuditSink == nil {
		c.AuditSink = audit.NoopSink{}
	}
	if c.TransportOpts == nil {
		c.TransportOpts = map[string]string{}
	}
	if c.LogonParams == nil {
		c.LogonParams = map[string]string{}
	}
}

// validate checks the required fields of the configuration surface (spec
// §6). Configuration errors fail fast at Start, per spec §7.
func (c *Config) validate() error {
	var problems []string
	if c.Key == "" {
		problems = append(problems, "missing key")
	}
	if c.Host == "" {
		problems = append(problems, "missing host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d", c.Port))
	}
	if c.SenderCompID == "" {
		problems = append(problems, "missing sender_comp_id")
	}
	if c.TargetCompID == "" {
		problems = append(problems, "missing target_comp_id")
	}
	if len(problems) > 0 {
		return fmt.Errorf("session: invalid config: %v", problems)
	}
	return nil
}

// strategyConfig projects Config down to the read-only view a LogonStrategy
// is allowed to see (spec §4.3: strategies are pure functions of
// configuration and cannot see session state).
func (c Config) strategyConfig() strategy.Config {
	return strategy.Config{
		HeartbeatInterval: int(c.HeartbeatInterval / time.Second),
		Params:            c.LogonParams,
	}
}
