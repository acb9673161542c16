package strategy

import "github.com/liharsw/ex-fixsense/codec"

// OnBehalfOf produces only the Standard three body fields. OnBehalfOf
// identifiers (tags 115/116) are deliberately NOT included in
// administrative messages; the caller is expected to include them in
// application messages instead.
type OnBehalfOf struct{}

// BuildLogonFields implements LogonStrategy.
func (OnBehalfOf) BuildLogonFields(cfg Config) ([]codec.Field, error) {
	return standardFields(cfg), nil
}
