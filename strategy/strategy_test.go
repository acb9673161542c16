package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liharsw/ex-fixsense/codec"
)

func TestStandardBuildsExpectedFields(t *testing.T) {
	fields, err := Standard{}.BuildLogonFields(Config{HeartbeatInterval: 30})
	require.NoError(t, err)
	assert.Equal(t, []codec.Field{
		{Tag: codec.TagEncryptMethod, Value: "0"},
		{Tag: codec.TagHeartBtInt, Value: "30"},
		{Tag: codec.TagResetSeqNumFl, Value: "Y"},
	}, fields)
	assert.True(t, ResetsSeqNum(fields))
}

func TestUsernamePasswordRequiresBoth(t *testing.T) {
	_, err := UsernamePassword{}.BuildLogonFields(Config{HeartbeatInterval: 30})
	require.ErrorIs(t, err, ErrMissingCredential)

	_, err = UsernamePassword{}.BuildLogonFields(Config{
		HeartbeatInterval: 30,
		Params:            map[string]string{"username": "bob"},
	})
	require.ErrorIs(t, err, ErrMissingCredential)
}

func TestUsernamePasswordAppendsCredentials(t *testing.T) {
	fields, err := UsernamePassword{}.BuildLogonFields(Config{
		HeartbeatInterval: 30,
		Params:            map[string]string{"username": "bob", "password": "secret"},
	})
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, codec.Field{Tag: codec.TagUsername, Value: "bob"}, fields[3])
	assert.Equal(t, codec.Field{Tag: codec.TagPassword, Value: "secret"}, fields[4])
}

func TestOnBehalfOfOmitsDelegationTags(t *testing.T) {
	fields, err := OnBehalfOf{}.BuildLogonFields(Config{HeartbeatInterval: 30})
	require.NoError(t, err)
	for _, f := range fields {
		assert.NotEqual(t, codec.TagOnBehalfOf, f.Tag)
		assert.NotEqual(t, codec.TagOnBehalfOfSub, f.Tag)
	}
}

func TestSpiffeMTLSRequiresSource(t *testing.T) {
	_, err := SpiffeMTLS{}.BuildLogonFields(Config{HeartbeatInterval: 30})
	require.ErrorIs(t, err, ErrMissingCredential)
}
