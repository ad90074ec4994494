// Package confirm holds previewed writes until a second call confirms them.
//
// A token is consumed by its first confirmation attempt whatever the result,
// so each preview executes at most once.
package confirm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/executor"
	"github.com/sqlgate/sqlgate/internal/tracking"
	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/safety"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

var (
	ErrNotFound = errors.New("confirmation id missing or already used")
	ErrExpired  = errors.New("preview exceeded validity window")
)

// Updater runs a confirmed write. *executor.Executor implements it.
type Updater interface {
	Update(ctx context.Context, target types.Target, stmt executor.Statement) *executor.Outcome
}

// Preview is a write waiting for confirmation.
type Preview struct {
	Token     string
	Target    types.Target
	SQL       string
	Params    []any
	Operation safety.Operation
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (p *Preview) expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Store is a concurrency-safe preview cache with a background sweep.
type Store struct {
	updater Updater
	logger  logger.Logger
	ttl     time.Duration
	now     func() time.Time

	previews sync.Map // token -> *Preview
	pending  atomic.Int64

	sweepMu sync.Mutex
	sweepCh chan struct{}
	sweepWG sync.WaitGroup
}

// NewStore creates an empty store. A non-positive ttl selects DefaultTTL.
func NewStore(updater Updater, log logger.Logger, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		updater: updater,
		logger:  log,
		ttl:     ttl,
		now:     time.Now,
	}
}

// TTL returns the validity window of new previews.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Preview stores a write under a fresh random token.
func (s *Store) Preview(target types.Target, sql string, params []any, op safety.Operation) *Preview {
	now := s.now()
	p := &Preview{
		Token:     uuid.NewString(),
		Target:    target,
		SQL:       sql,
		Params:    params,
		Operation: op,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.previews.Store(p.Token, p)
	s.pending.Add(1)

	s.logger.Debug().
		Str("confirm_id", p.Token).
		Str("pool", target.String()).
		Str("operation", string(op)).
		Msg("Write preview created")
	return p
}

// take removes and returns the preview for token.
func (s *Store) take(token string) (*Preview, bool) {
	v, ok := s.previews.LoadAndDelete(token)
	if !ok {
		return nil, false
	}
	s.pending.Add(-1)
	return v.(*Preview), true
}

// ConfirmAndExecute consumes token and runs its write. The outcome of the
// write itself is reported in the returned Outcome; the error is set only
// when the token is unknown, already used or expired.
func (s *Store) ConfirmAndExecute(ctx context.Context, token string, timeout time.Duration) (*executor.Outcome, error) {
	p, ok := s.take(token)
	if !ok {
		return nil, ErrNotFound
	}
	if p.expired(s.now()) {
		s.logger.Info().
			Str("confirm_id", token).
			Str("expired_at", p.ExpiresAt.Format(time.RFC3339)).
			Msg("Rejected expired write preview")
		return nil, ErrExpired
	}

	return s.updater.Update(ctx, p.Target, executor.Statement{
		Text:    p.SQL,
		Params:  p.Params,
		Timeout: timeout,
	}), nil
}

// Len returns the number of pending previews, expired ones included until swept.
func (s *Store) Len() int {
	return int(s.pending.Load())
}

// RegisterMetrics exposes the pending preview count as a gauge.
func (s *Store) RegisterMetrics(in *tracking.Instruments) error {
	return in.Gauge(tracking.MetricPending, "Number of write previews awaiting confirmation", s.pending.Load)
}

// StartSweep removes expired previews every interval until StopSweep.
// Calling it again while running is a no-op.
func (s *Store) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweepCh != nil {
		return
	}
	done := make(chan struct{})
	s.sweepCh = done

	s.sweepWG.Add(1)
	go s.sweepLoop(interval, done)
}

// StopSweep stops the sweep and waits for it to exit.
func (s *Store) StopSweep() {
	s.sweepMu.Lock()
	if s.sweepCh == nil {
		s.sweepMu.Unlock()
		return
	}
	close(s.sweepCh)
	s.sweepCh = nil
	s.sweepMu.Unlock()

	s.sweepWG.Wait()
}

func (s *Store) sweepLoop(interval time.Duration, done <-chan struct{}) {
	defer s.sweepWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-done:
			return
		}
	}
}

// sweep removes expired previews. An entry confirmed concurrently is left
// to the confirming caller.
func (s *Store) sweep() int {
	now := s.now()
	removed := 0
	s.previews.Range(func(key, value any) bool {
		p := value.(*Preview)
		if p.expired(now) && s.previews.CompareAndDelete(key, value) {
			s.pending.Add(-1)
			removed++
		}
		return true
	})

	if removed > 0 {
		s.logger.Info().
			Int("removed", removed).
			Int("pending", s.Len()).
			Msg("Swept expired write previews")
	}
	return removed
}
