//go:build integration

// Package containers starts throwaway database servers for integration tests.
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sqlgate/sqlgate/database/types"
)

// PostgreSQLConfig sizes the container. Zero fields take the defaults.
type PostgreSQLConfig struct {
	ImageTag       string
	Username       string
	Password       string
	Database       string
	StartupTimeout time.Duration
}

func (c PostgreSQLConfig) withDefaults() PostgreSQLConfig {
	if c.ImageTag == "" {
		c.ImageTag = "17-alpine"
	}
	if c.Username == "" {
		c.Username = "sqlgate"
	}
	if c.Password == "" {
		c.Password = "sqlgate"
	}
	if c.Database == "" {
		c.Database = "sqlgate"
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 60 * time.Second
	}
	return c
}

// PostgreSQL is a running server and the Target that reaches it.
type PostgreSQL struct {
	container *postgres.PostgresContainer
	Target    types.Target
}

// StartPostgreSQL runs a container and registers its termination with t.
// The test is skipped when Docker is unreachable.
func StartPostgreSQL(ctx context.Context, t *testing.T, cfg PostgreSQLConfig) *PostgreSQL {
	t.Helper()
	cfg = cfg.withDefaults()

	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available, skipping integration test")
	}

	c, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", cfg.ImageTag),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			// Postgres restarts once after init.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to read PostgreSQL host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to read PostgreSQL port: %v", err)
	}

	target := types.Target{
		Kind:     types.PostgreSQL,
		Host:     host,
		Port:     port.Int(),
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	}
	t.Logf("PostgreSQL container started at %s", target)

	return &PostgreSQL{container: c, Target: target}
}
