// Package types holds the value types shared by the connection provider, its
// per-family connectors and the executor. They live apart from the database
// package to keep the connectors free of import cycles.
//
//nolint:revive // Package name "types" is intentionally generic to avoid circular imports.
package types

import (
	"fmt"
	"net"
	"strconv"
)

// Target describes one database endpoint supplied at call time.
// Targets are plain values; copying one never shares state.
type Target struct {
	Kind     Kind
	Host     string
	Port     int
	Username string
	Password string
	Database string
	TLS      bool
}

// PoolKey is the identity under which a pool is cached. It is comparable and
// covers every field of Target, so any difference yields a distinct pool.
type PoolKey struct {
	Kind     Kind
	Host     string
	Port     int
	Username string
	Password string
	Database string
	TLS      bool
}

// Key derives the pool identity of t.
func (t Target) Key() PoolKey {
	return PoolKey(t)
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// WithDefaults fills the family default port when none was given.
func (t Target) WithDefaults() Target {
	if t.Port == 0 {
		if spec, err := t.Kind.Spec(); err == nil {
			t.Port = spec.DefaultPort
		}
	}
	return t
}

// String renders the target without its password.
func (t Target) String() string {
	return t.Key().String()
}

// String renders the key without its password so it is safe to log.
func (k PoolKey) String() string {
	return fmt.Sprintf("%s://%s@%s/%s?tls=%t",
		k.Kind, k.Username, net.JoinHostPort(k.Host, strconv.Itoa(k.Port)), k.Database, k.TLS)
}

// Validate checks that t carries enough to open a connection.
func (t Target) Validate() error {
	if _, err := t.Kind.Spec(); err != nil {
		return err
	}
	if t.Host == "" {
		return fmt.Errorf("target host is required")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("target port %d out of range", t.Port)
	}
	if t.Database == "" {
		return fmt.Errorf("target database is required")
	}
	return nil
}
