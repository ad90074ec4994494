// Package database owns the registry of connection pools keyed by target
// identity. Pools are created lazily on first use, stamped on every lease and
// reaped once idle for longer than the configured timeout.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/internal/tracking"
	"github.com/sqlgate/sqlgate/logger"
)

// Options configures the Provider and every pool it creates.
type Options struct {
	Pool           types.PoolOptions
	AcquireTimeout time.Duration
	// IdleTTL is the time since the last lease after which the reaper closes a pool.
	IdleTTL time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Pool: types.PoolOptions{
			MaxOpen:     100,
			MinIdle:     1,
			IdleTimeout: time.Hour,
			PingTimeout: 10 * time.Second,
		},
		AcquireTimeout: 30 * time.Second,
		IdleTTL:        time.Hour,
	}
}

// Provider hands out connections from per-target pools.
type Provider struct {
	logger    logger.Logger
	connector Connector
	opts      Options
	now       func() time.Time

	mu     sync.RWMutex
	pools  map[types.PoolKey]*poolEntry
	closed atomic.Bool

	cleanupMu sync.Mutex
	cleanupCh chan struct{}
	cleanupWG sync.WaitGroup

	sfg singleflight.Group
}

type poolEntry struct {
	pool types.Pool
	key  types.PoolKey
	// lastAccess is UnixNano and only ever moves forward.
	lastAccess atomic.Int64
}

func (e *poolEntry) touch(t time.Time) {
	ts := t.UnixNano()
	for {
		current := e.lastAccess.Load()
		if ts <= current || e.lastAccess.CompareAndSwap(current, ts) {
			return
		}
	}
}

func (e *poolEntry) lastUsed() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// NewProvider creates an empty registry. A nil connector selects Connect.
func NewProvider(log logger.Logger, opts Options, connector Connector) *Provider {
	defaults := DefaultOptions()
	if opts.Pool.MaxOpen <= 0 {
		opts.Pool.MaxOpen = defaults.Pool.MaxOpen
	}
	if opts.Pool.PingTimeout <= 0 {
		opts.Pool.PingTimeout = defaults.Pool.PingTimeout
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaults.AcquireTimeout
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaults.IdleTTL
	}
	if connector == nil {
		connector = Connect
	}

	return &Provider{
		logger:    log,
		connector: connector,
		opts:      opts,
		now:       time.Now,
		pools:     make(map[types.PoolKey]*poolEntry),
	}
}

// Acquire leases a connection for target, creating its pool on first use.
// The caller must Close the returned connection. Failures are *ConnectionError.
func (p *Provider) Acquire(ctx context.Context, target types.Target) (*sql.Conn, error) {
	target = target.WithDefaults()
	key := target.Key()

	entry, err := p.lookup(ctx, target)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()

	conn, err := entry.pool.Conn(acquireCtx)
	if err != nil {
		if p.closed.Load() {
			err = errors.Join(ErrProviderClosed, err)
		}
		return nil, &ConnectionError{Target: key, Err: err}
	}

	entry.touch(p.now())
	return conn, nil
}

// Pool returns the pool serving target without leasing a connection.
func (p *Provider) Pool(ctx context.Context, target types.Target) (types.Pool, error) {
	entry, err := p.lookup(ctx, target.WithDefaults())
	if err != nil {
		return nil, err
	}
	return entry.pool, nil
}

func (p *Provider) lookup(ctx context.Context, target types.Target) (*poolEntry, error) {
	key := target.Key()
	if p.closed.Load() {
		return nil, &ConnectionError{Target: key, Err: ErrProviderClosed}
	}
	if err := target.Validate(); err != nil {
		return nil, &ConnectionError{Target: key, Err: err}
	}

	entry, err := p.entry(ctx, target)
	if err != nil {
		return nil, &ConnectionError{Target: key, Err: err}
	}
	return entry, nil
}

func (p *Provider) entry(ctx context.Context, target types.Target) (*poolEntry, error) {
	key := target.Key()
	if e := p.getExisting(key); e != nil {
		return e, nil
	}

	// The singleflight key must include the password, so it is never the
	// redacted String form.
	result, err, _ := p.sfg.Do(fmt.Sprintf("%#v", key), func() (any, error) {
		if e := p.getExisting(key); e != nil {
			return e, nil
		}
		return p.createPool(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return result.(*poolEntry), nil
}

// getExisting stamps and returns the entry for key, or nil.
func (p *Provider) getExisting(key types.PoolKey) *poolEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.pools[key]
	if !ok {
		return nil
	}
	e.touch(p.now())
	return e
}

// createPool runs once per key on behalf of every waiter, so it detaches from
// the first caller's cancellation and is bounded by the ping timeout instead.
func (p *Provider) createPool(ctx context.Context, target types.Target) (*poolEntry, error) {
	createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.Pool.PingTimeout)
	defer cancel()

	pool, err := p.connector(createCtx, target, p.opts.Pool, p.logger)
	if err != nil {
		return nil, err
	}

	key := target.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		p.closePool(key, pool, "Error closing pool created during shutdown")
		return nil, ErrProviderClosed
	}
	if existing, ok := p.pools[key]; ok {
		p.closePool(key, pool, "Error closing duplicate pool")
		existing.touch(p.now())
		return existing, nil
	}

	e := &poolEntry{pool: pool, key: key}
	e.touch(p.now())
	p.pools[key] = e

	p.logger.Info().
		Str("pool", key.String()).
		Str("db_type", string(key.Kind)).
		Int("pools", len(p.pools)).
		Msg("Created new database pool")

	return e, nil
}

func (p *Provider) closePool(key types.PoolKey, pool types.Pool, msg string) {
	if err := pool.Close(); err != nil {
		p.logger.Error().Err(err).Str("pool", key.String()).Msg(msg)
	}
}

// StartCleanup starts the background reaper. Calling it twice is a no-op.
func (p *Provider) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	p.cleanupMu.Lock()
	defer p.cleanupMu.Unlock()
	if p.cleanupCh != nil {
		return
	}
	done := make(chan struct{})
	p.cleanupCh = done

	p.cleanupWG.Add(1)
	go p.cleanupLoop(interval, done)
}

// StopCleanup stops the reaper and waits for an in-progress sweep to finish.
func (p *Provider) StopCleanup() {
	p.cleanupMu.Lock()
	if p.cleanupCh == nil {
		p.cleanupMu.Unlock()
		return
	}
	close(p.cleanupCh)
	p.cleanupCh = nil
	p.cleanupMu.Unlock()

	p.cleanupWG.Wait()
}

func (p *Provider) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	defer p.cleanupWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanupIdlePools()
		case <-done:
			return
		}
	}
}

// cleanupIdlePools closes and removes pools not leased within IdleTTL.
func (p *Provider) cleanupIdlePools() int {
	now := p.now()

	p.mu.Lock()
	var idle []*poolEntry
	for key, e := range p.pools {
		if now.Sub(e.lastUsed()) > p.opts.IdleTTL {
			idle = append(idle, e)
			delete(p.pools, key)
		}
	}
	p.mu.Unlock()

	for _, e := range idle {
		p.closePool(e.key, e.pool, "Error closing idle database pool")
		p.logger.Info().
			Str("pool", e.key.String()).
			Dur("idle_time", now.Sub(e.lastUsed())).
			Msg("Cleaned up idle database pool")
	}
	return len(idle)
}

// Close stops the reaper and closes every pool. Later Acquire calls fail with
// ErrProviderClosed.
func (p *Provider) Close() error {
	p.closed.Store(true)
	p.StopCleanup()

	p.mu.Lock()
	pools := p.pools
	p.pools = make(map[types.PoolKey]*poolEntry)
	p.mu.Unlock()

	var errs []error
	for key, e := range pools {
		if err := e.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing pool %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (p *Provider) Closed() bool {
	return p.closed.Load()
}

// Size returns the number of live pools.
func (p *Provider) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pools)
}

// RegisterMetrics exposes the live pool count as a gauge.
func (p *Provider) RegisterMetrics(in *tracking.Instruments) error {
	return in.Gauge(tracking.MetricPools, "Number of live database connection pools", func() int64 {
		return int64(p.Size())
	})
}

// Stats reports per-pool usage for diagnostics. Keys are redacted.
func (p *Provider) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.now()
	pools := make([]map[string]any, 0, len(p.pools))
	for key, e := range p.pools {
		s := e.pool.Stats()
		pools = append(pools, map[string]any{
			"key":              key.String(),
			"last_used":        e.lastUsed().Format(time.RFC3339),
			"idle_seconds":     int(now.Sub(e.lastUsed()).Seconds()),
			"open_connections": s.OpenConnections,
			"in_use":           s.InUse,
			"idle":             s.Idle,
			"wait_count":       s.WaitCount,
			"wait_duration":    s.WaitDuration.String(),
		})
	}

	return map[string]any{
		"pools":            pools,
		"pool_count":       len(p.pools),
		"max_open":         p.opts.Pool.MaxOpen,
		"idle_ttl_seconds": int(p.opts.IdleTTL.Seconds()),
		"closed":           p.closed.Load(),
	}
}
