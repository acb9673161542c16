// Package config loads the fleet of FIX session configurations from a YAML
// file with environment-variable overrides, grounded on the teacher's
// internal/config package (same gopkg.in/yaml.v2 decode + getEnv-family
// override pattern). Unlike the teacher, which warns and falls back to
// zero-value defaults on a load error, fleet configuration is load-bearing
// for every session's identity (sender/target comp IDs, host, port) — a
// silently-defaulted SenderCompID would log on under the wrong identity, so
// Load fails fast and reports every invalid field at once rather than one
// at a time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// SessionConfig describes one FIX session's wire identity and behavior.
type SessionConfig struct {
	Key                 string            `yaml:"key"`
	Host                string            `yaml:"host"`
	Port                int               `yaml:"port"`
	BeginString         string            `yaml:"begin_string"`
	SenderCompID        string            `yaml:"sender_comp_id"`
	SenderSubID         string            `yaml:"sender_sub_id"`
	TargetCompID        string            `yaml:"target_comp_id"`
	HeartbeatInterval   int               `yaml:"heartbeat_interval_sec"`
	LogonStrategy       string            `yaml:"logon_strategy"`
	LogonParams         map[string]string `yaml:"logon_params"`
	ResetSeqNumOnLogon  bool              `yaml:"reset_seq_num_on_logon"`
	RegistryBackend     string            `yaml:"registry_backend"`
	AuditSinkDSN        string            `yaml:"audit_sink_dsn"`
	ReconnectRatePerMin float64           `yaml:"reconnect_rate_per_min"`
	ReconnectBurst      int               `yaml:"reconnect_burst"`
}

// FleetConfig is the top-level document: one or more sessions plus shared
// infrastructure endpoints.
type FleetConfig struct {
	Sessions []SessionConfig `yaml:"sessions"`
	Redis    RedisConfig     `yaml:"redis"`
	Postgres PostgresConfig  `yaml:"postgres"`
	Admin    AdminConfig     `yaml:"admin"`
}

// RedisConfig configures the optional distributed registry backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig configures the optional forensic audit sink.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// AdminConfig configures the reference admin HTTP surface.
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// ConfigError collects every validation failure found while loading a
// FleetConfig so an operator sees the whole problem in one pass instead of
// fixing one field, reloading, and hitting the next.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ConfigError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Load reads path as YAML, applies FIXSENSE_<KEY>_<FIELD> environment
// overrides per session (KEY is the session's upper-cased Key with non
// alphanumerics turned to underscores), loads a local .env file via
// godotenv if present, and validates the result. It returns a *ConfigError
// (never a bare error) when validation fails, enumerating every problem.
func Load(path string) (*FleetConfig, error) {
	_ = godotenv.Load() // local-dev convenience; absence of .env is not an error

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg FleetConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	for i := range cfg.Sessions {
		applySessionEnvOverrides(&cfg.Sessions[i])
	}
	applyRedisEnvOverrides(&cfg.Redis)
	applyPostgresEnvOverrides(&cfg.Postgres)
	applyAdminEnvOverrides(&cfg.Admin)

	if cerr := validate(&cfg); cerr != nil {
		return nil, cerr
	}
	return &cfg, nil
}

func validate(cfg *FleetConfig) error {
	cerr := &ConfigError{}

	if len(cfg.Sessions) == 0 {
		cerr.add("no sessions configured")
	}

	seen := make(map[string]bool, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		prefix := fmt.Sprintf("session %q", s.Key)
		if s.Key == "" {
			cerr.add("a session is missing key")
			continue
		}
		if seen[s.Key] {
			cerr.add("%s: duplicate key", prefix)
		}
		seen[s.Key] = true

		if s.Host == "" {
			cerr.add("%s: missing host", prefix)
		}
		if s.Port <= 0 || s.Port > 65535 {
			cerr.add("%s: invalid port %d", prefix, s.Port)
		}
		if s.BeginString == "" {
			cerr.add("%s: missing begin_string", prefix)
		}
		if s.SenderCompID == "" {
			cerr.add("%s: missing sender_comp_id", prefix)
		}
		if s.TargetCompID == "" {
			cerr.add("%s: missing target_comp_id", prefix)
		}
		if s.HeartbeatInterval <= 0 {
			cerr.add("%s: heartbeat_interval_sec must be positive", prefix)
		}
		switch s.LogonStrategy {
		case "", "standard", "username_password", "on_behalf_of", "spiffe_mtls":
		default:
			cerr.add("%s: unknown logon_strategy %q", prefix, s.LogonStrategy)
		}
		switch s.RegistryBackend {
		case "", "memory", "redis":
		default:
			cerr.add("%s: unknown registry_backend %q", prefix, s.RegistryBackend)
		}
		if s.RegistryBackend == "redis" && cfg.Redis.Addr == "" {
			cerr.add("%s: registry_backend redis requires redis.addr", prefix)
		}
	}

	if len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

// envKey converts a session key into the FIXSENSE_<KEY> prefix that every
// per-session environment override name starts with.
func envKey(sessionKey string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(sessionKey) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "FIXSENSE_" + b.String()
}

func applySessionEnvOverrides(s *SessionConfig) {
	if s.Key == "" {
		return
	}
	prefix := envKey(s.Key)

	s.Host = getEnv(prefix+"_HOST", s.Host)
	s.BeginString = getEnv(prefix+"_BEGIN_STRING", s.BeginString)
	s.SenderCompID = getEnv(prefix+"_SENDER_COMP_ID", s.SenderCompID)
	s.SenderSubID = getEnv(prefix+"_SENDER_SUB_ID", s.SenderSubID)
	s.TargetCompID = getEnv(prefix+"_TARGET_COMP_ID", s.TargetCompID)
	s.LogonStrategy = getEnv(prefix+"_LOGON_STRATEGY", s.LogonStrategy)
	s.RegistryBackend = getEnv(prefix+"_REGISTRY_BACKEND", s.RegistryBackend)
	s.AuditSinkDSN = getEnv(prefix+"_AUDIT_SINK_DSN", s.AuditSinkDSN)

	if v := getEnvInt(prefix+"_PORT", 0); v > 0 {
		s.Port = v
	}
	if v := getEnvInt(prefix+"_HEARTBEAT_INTERVAL_SEC", 0); v > 0 {
		s.HeartbeatInterval = v
	}
	s.ResetSeqNumOnLogon = getEnvBool(prefix+"_RESET_SEQ_NUM_ON_LOGON", s.ResetSeqNumOnLogon)
	if v := getEnvFloat(prefix+"_RECONNECT_RATE_PER_MIN", 0); v > 0 {
		s.ReconnectRatePerMin = v
	}
	if v := getEnvInt(prefix+"_RECONNECT_BURST", 0); v > 0 {
		s.ReconnectBurst = v
	}
}

func applyRedisEnvOverrides(c *RedisConfig) {
	c.Addr = getEnv("FIXSENSE_REDIS_ADDR", c.Addr)
	c.Password = getEnv("FIXSENSE_REDIS_PASSWORD", c.Password)
	if v := getEnvInt("FIXSENSE_REDIS_DB", -1); v >= 0 {
		c.DB = v
	}
}

func applyPostgresEnvOverrides(c *PostgresConfig) {
	c.DSN = getEnv("FIXSENSE_POSTGRES_DSN", c.DSN)
}

func applyAdminEnvOverrides(c *AdminConfig) {
	c.ListenAddr = getEnv("FIXSENSE_ADMIN_LISTEN_ADDR", c.ListenAddr)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
