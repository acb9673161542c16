package strategy

import (
	"fmt"

	"github.com/spiffe/go-spiffe/v2/workloadapi"

	"github.com/liharsw/ex-fixsense/codec"
)

// SpiffeMTLS is a fourth built-in strategy for brokers that gate session
// admission on workload identity rather than a shared secret. It asserts
// the caller's SPIFFE ID (already authenticated at the transport layer via
// mTLS, out of scope for this package) as SecureData fields (95=length,
// 96=raw) alongside the Standard three.
//
// The X.509-SVID source is fetched once, outside BuildLogonFields, the same
// way the teacher's federation package holds an already-fetched
// *workloadapi.X509Source on its OCXInstance rather than blocking inside
// the handshake call itself.
type SpiffeMTLS struct {
	source *workloadapi.X509Source
}

// NewSpiffeMTLS wraps an already-initialized X.509-SVID source.
func NewSpiffeMTLS(source *workloadapi.X509Source) SpiffeMTLS {
	return SpiffeMTLS{source: source}
}

// BuildLogonFields implements LogonStrategy.
func (s SpiffeMTLS) BuildLogonFields(cfg Config) ([]codec.Field, error) {
	if s.source == nil {
		return nil, ErrMissingCredential
	}

	svid, err := s.source.GetX509SVID()
	if err != nil {
		return nil, fmt.Errorf("strategy: spiffe svid unavailable: %w", err)
	}

	id := svid.ID.String()

	fields := standardFields(cfg)
	fields = append(fields,
		codec.NewIntField(95, len(id)),
		codec.NewField(96, id),
	)
	return fields, nil
}
