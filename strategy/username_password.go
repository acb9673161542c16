package strategy

import "github.com/liharsw/ex-fixsense/codec"

// UsernamePassword extends Standard with tags 553/554. It fails with
// ErrMissingCredential if either username or password is absent.
type UsernamePassword struct{}

// BuildLogonFields implements LogonStrategy.
func (UsernamePassword) BuildLogonFields(cfg Config) ([]codec.Field, error) {
	username, ok := cfg.Param("username")
	if !ok {
		return nil, ErrMissingCredential
	}
	password, ok := cfg.Param("password")
	if !ok {
		return nil, ErrMissingCredential
	}

	fields := standardFields(cfg)
	fields = append(fields,
		codec.NewField(codec.TagUsername, username),
		codec.NewField(codec.TagPassword, password),
	)
	return fields, nil
}
