package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTarget() Target {
	return Target{
		Kind:     PostgreSQL,
		Host:     "db.internal",
		Port:     5432,
		Username: "app",
		Password: "s3cret",
		Database: "orders",
	}
}

func TestTargetKeyEqualForIdenticalFields(t *testing.T) {
	assert.Equal(t, baseTarget().Key(), baseTarget().Key())
}

func TestTargetKeyDiffersOnEveryField(t *testing.T) {
	mutations := map[string]func(*Target){
		"kind":     func(t *Target) { t.Kind = KingBase },
		"host":     func(t *Target) { t.Host = "db2.internal" },
		"port":     func(t *Target) { t.Port = 5433 },
		"username": func(t *Target) { t.Username = "report" },
		"password": func(t *Target) { t.Password = "other" },
		"database": func(t *Target) { t.Database = "billing" },
		"tls":      func(t *Target) { t.TLS = true },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := baseTarget()
			mutate(&changed)
			assert.NotEqual(t, baseTarget().Key(), changed.Key())
		})
	}
}

func TestPoolKeyStringOmitsPassword(t *testing.T) {
	s := baseTarget().Key().String()
	assert.Equal(t, "postgresql://app@db.internal:5432/orders?tls=false", s)
	assert.NotContains(t, s, "s3cret")
}

func TestWithDefaultsFillsPort(t *testing.T) {
	target := Target{Kind: SQLServer, Host: "mssql", Database: "master"}
	assert.Equal(t, 1433, target.WithDefaults().Port)

	target.Port = 14330
	assert.Equal(t, 14330, target.WithDefaults().Port)
}

func TestTargetValidate(t *testing.T) {
	require.NoError(t, baseTarget().Validate())

	noHost := baseTarget()
	noHost.Host = ""
	assert.ErrorContains(t, noHost.Validate(), "host")

	badPort := baseTarget()
	badPort.Port = 70000
	assert.ErrorContains(t, badPort.Validate(), "out of range")

	badKind := baseTarget()
	badKind.Kind = "db2"
	assert.ErrorIs(t, badKind.Validate(), ErrUnsupportedKind)
}
