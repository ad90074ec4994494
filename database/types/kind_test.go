package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindIsCaseInsensitive(t *testing.T) {
	for _, name := range []string{"MySQL", " postgresql ", "ORACLE", "SqlServer", "kingbase"} {
		k, err := ParseKind(name)
		require.NoError(t, err, name)
		assert.Contains(t, Kinds(), k)
	}
}

func TestParseKindRejectsUnknown(t *testing.T) {
	_, err := ParseKind("mongodb")
	require.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Contains(t, err.Error(), "supported: mysql, postgresql, oracle, sqlserver, kingbase")
}

func TestEveryKindHasSpec(t *testing.T) {
	for _, k := range Kinds() {
		spec, err := k.Spec()
		require.NoError(t, err, k)
		assert.NotEmpty(t, spec.Driver)
		assert.Positive(t, spec.DefaultPort)
	}
}

func TestSupportsTLS(t *testing.T) {
	assert.True(t, MySQL.SupportsTLS())
	assert.True(t, PostgreSQL.SupportsTLS())
	assert.True(t, SQLServer.SupportsTLS())
	assert.False(t, Oracle.SupportsTLS())
	assert.False(t, KingBase.SupportsTLS())
}
