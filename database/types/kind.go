//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedKind is returned when a database family name is not recognised.
var ErrUnsupportedKind = errors.New("unsupported database type")

// Kind identifies a database family. The set is closed; every switch over Kind
// in this module is exhaustive.
type Kind string

const (
	MySQL      Kind = "mysql"
	PostgreSQL Kind = "postgresql"
	Oracle     Kind = "oracle"
	SQLServer  Kind = "sqlserver"
	KingBase   Kind = "kingbase"
)

// Kinds returns every supported family in declaration order.
func Kinds() []Kind {
	return []Kind{MySQL, PostgreSQL, Oracle, SQLServer, KingBase}
}

// KindSpec is the per-family data needed to reach a target.
type KindSpec struct {
	// Driver is the database/sql driver name registered for the family.
	Driver string
	// DefaultPort is used when a target omits its port.
	DefaultPort int
	// URLTemplate renders host, port and database for diagnostics (never credentials).
	URLTemplate string
	// TLSOption is the connection parameter that turns on transport encryption.
	// Empty when the family has no TLS option.
	TLSOption string
}

// Spec returns the per-family data for k.
func (k Kind) Spec() (KindSpec, error) {
	switch k {
	case MySQL:
		return KindSpec{Driver: "mysql", DefaultPort: 3306, URLTemplate: "mysql://%s:%d/%s", TLSOption: "tls=true"}, nil
	case PostgreSQL:
		return KindSpec{Driver: "pgx", DefaultPort: 5432, URLTemplate: "postgresql://%s:%d/%s", TLSOption: "sslmode=require"}, nil
	case Oracle:
		return KindSpec{Driver: "oracle", DefaultPort: 1521, URLTemplate: "oracle://%s:%d/%s"}, nil
	case SQLServer:
		return KindSpec{Driver: "sqlserver", DefaultPort: 1433, URLTemplate: "sqlserver://%s:%d?database=%s", TLSOption: "encrypt=true"}, nil
	case KingBase:
		return KindSpec{Driver: "pgx", DefaultPort: 54321, URLTemplate: "kingbase://%s:%d/%s"}, nil
	default:
		return KindSpec{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedKind, string(k), supportedList())
	}
}

// SupportsTLS reports whether the family defines a TLS option.
func (k Kind) SupportsTLS() bool {
	spec, err := k.Spec()
	return err == nil && spec.TLSOption != ""
}

// ParseKind resolves a family name case-insensitively.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, err := k.Spec(); err != nil {
		return "", err
	}
	return k, nil
}

func supportedList() string {
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
