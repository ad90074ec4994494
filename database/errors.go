package database

import (
	"errors"
	"fmt"

	"github.com/sqlgate/sqlgate/database/types"
)

// ErrProviderClosed is returned by every Acquire after Close.
var ErrProviderClosed = errors.New("connection provider is closed")

// ConnectionError reports that no usable connection could be obtained for a
// target: authentication, network, pool exhaustion or a closed provider.
type ConnectionError struct {
	Target types.PoolKey
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
