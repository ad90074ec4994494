package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", errors.New("Error 1045: Access denied for user 'app'@'10.0.0.2'"), MsgAccessDenied},
		{"unknown database", errors.New("Error 1049: Unknown database 'nope'"), MsgUnknownDatabase},
		{"missing table", errors.New("Table 'shop.x' doesn't exist"), MsgMissingTable},
		{"duplicate", errors.New("Duplicate entry '1' for key 'PRIMARY'"), MsgDuplicateEntry},
		{"refused", errors.New("failed to ping mysql database: dial tcp 127.0.0.1:1: connect: connection refused"), MsgConnectionRefused},
		{"refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), MsgConnectionRefused},
		{"timeout keyword", errors.New("i/o timeout"), MsgTimeout},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), MsgTimeout},
		{"fallback", errors.New("syntax error at or near \"SELEC\""), "database error: syntax error at or near \"SELEC\""},
		{"first rule wins", errors.New("Access denied: Connection refused after timeout"), MsgAccessDenied},
		{"table needs both words", errors.New("relation \"t\" does not exist"), "database error: relation \"t\" does not exist"},
		{"case sensitive", errors.New("access denied"), "database error: access denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.err))
		})
	}
}

func TestTranslateNil(t *testing.T) {
	assert.Empty(t, Translate(nil))
}

func TestTranslateRealDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = net.DialTimeout("tcp", addr, time.Second)
	require.Error(t, err)

	assert.Equal(t, MsgConnectionRefused, Translate(fmt.Errorf("failed to ping postgresql database: %w", err)))
}
