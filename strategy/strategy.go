// Package strategy provides pluggable producers of the body fields that
// must appear in a FIX Logon (35=A) message for a given authentication
// scheme. See spec §4.3.
package strategy

import (
	"errors"

	"github.com/liharsw/ex-fixsense/codec"
)

// ErrMissingCredential is returned when a strategy requires a configuration
// field that was not supplied.
var ErrMissingCredential = errors.New("strategy: missing required credential")

// Config is the subset of session configuration a strategy may read. It
// never exposes session state: strategies are pure functions from
// configuration to body fields and cannot mutate sequence numbers or
// headers.
type Config struct {
	HeartbeatInterval int
	Params            map[string]string
}

// Param returns Params[key] and whether it was present and non-empty.
func (c Config) Param(key string) (string, bool) {
	v, ok := c.Params[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// LogonStrategy builds the ordered body fields to include in a Logon frame
// after the standard headers (8, 35=A, 49, 56, 34, optional 50, 52).
type LogonStrategy interface {
	BuildLogonFields(cfg Config) ([]codec.Field, error)
}

// ResetsSeqNum reports whether a built field list requests ResetSeqNumFlag
// (tag 141 = "Y"), in which case the session must reset send_seq_num to 1
// before writing tag 34 on the Logon frame (spec §4.4 connect routine).
func ResetsSeqNum(fields []codec.Field) bool {
	for _, f := range fields {
		if f.Tag == codec.TagResetSeqNumFl && f.Value == "Y" {
			return true
		}
	}
	return false
}
