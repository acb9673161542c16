package config

import (
	"fmt"
	"os"
	"sync"
)

var (
	instance   *FleetConfig
	instanceMu sync.RWMutex
	loadOnce   sync.Once
	loadErr    error
)

// Get returns the process-wide FleetConfig singleton, loading it from the
// path named by CONFIG_PATH (defaulting to fixsense.yaml) on first call.
// Unlike the teacher's Get(), which swallows a load failure and returns a
// zero-value Config, Get reports the error so callers can fail the process
// at startup rather than run sessions against an empty identity.
func Get() (*FleetConfig, error) {
	loadOnce.Do(func() {
		path := getEnv("CONFIG_PATH", "fixsense.yaml")
		cfg, err := Load(path)
		if err != nil {
			loadErr = err
			return
		}
		instanceMu.Lock()
		instance = cfg
		instanceMu.Unlock()
	})
	return instance, loadErr
}

// MustGet is a convenience for cmd/fixsensed's main: it loads the fleet
// config or terminates the process with the accumulated problems printed to
// stderr.
func MustGet() *FleetConfig {
	cfg, err := Get()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// SessionByKey returns the SessionConfig with the given key, or false if no
// such session is configured.
func (f *FleetConfig) SessionByKey(key string) (SessionConfig, bool) {
	for _, s := range f.Sessions {
		if s.Key == key {
			return s, true
		}
	}
	return SessionConfig{}, false
}

// Keys returns every configured session key, in document order.
func (f *FleetConfig) Keys() []string {
	keys := make([]string, 0, len(f.Sessions))
	for _, s := range f.Sessions {
		keys = append(keys, s.Key)
	}
	return keys
}
