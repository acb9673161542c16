package strategy

import (
	"github.com/liharsw/ex-fixsense/codec"
)

// Standard is the minimal Logon strategy: EncryptMethod=None, the
// configured heartbeat interval, and a mutual sequence reset request.
type Standard struct{}

// BuildLogonFields implements LogonStrategy.
func (Standard) BuildLogonFields(cfg Config) ([]codec.Field, error) {
	return standardFields(cfg), nil
}

func standardFields(cfg Config) []codec.Field {
	return []codec.Field{
		codec.NewField(codec.TagEncryptMethod, "0"),
		codec.NewIntField(codec.TagHeartBtInt, cfg.HeartbeatInterval),
		codec.NewField(codec.TagResetSeqNumFl, "Y"),
	}
}
