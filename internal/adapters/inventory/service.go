// Package inventory wraps the upstream inventory API with a minimum-interval
// throttle so repeated captures cannot exceed the configured call rate.
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bonebunny/lootledger/internal/domain/item"
	"github.com/bonebunny/lootledger/pkg/logger"
	"github.com/bonebunny/lootledger/pkg/metrics"
)

const defaultMinInterval = 2500 * time.Millisecond

// Provider returns a point-in-time item list for a character.
type Provider interface {
	Inventory(ctx context.Context, character string) ([]item.Record, error)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMinInterval sets the minimum gap between upstream calls.
func WithMinInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.minInterval = d
		}
	}
}

// WithClock sets the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service takes throttled inventory snapshots. The throttle is a blocking
// wait, not a breaker: a call made too early sleeps until it is eligible.
type Service struct {
	provider  Provider
	character string

	mu          sync.Mutex
	lastCall    time.Time
	minInterval time.Duration

	now func() time.Time
	log logger.Logger
}

// NewService creates a snapshot service for one character.
func NewService(provider Provider, character string, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		character:   character,
		minInterval: defaultMinInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("inventory")
	}
	return s
}

// Capture takes a snapshot, blocking first if the previous call was too
// recent. The time of last call is recorded after every attempt, success or
// failure, so the throttle stays honest across upstream errors.
func (s *Service) Capture(ctx context.Context, kind item.Kind) (item.Snapshot, error) {
	// Serializes concurrent captures and spans the whole attempt so the
	// lastCall bookkeeping cannot interleave.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.waitEligible(ctx); err != nil {
		return item.Snapshot{}, err
	}

	taken := s.now()
	items, err := s.provider.Inventory(ctx, s.character)
	s.lastCall = s.now()
	if err != nil {
		metrics.RecordSnapshotError()
		return item.Snapshot{}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	metrics.RecordSnapshot(string(kind))
	s.log.Debug(ctx, "snapshot taken",
		logger.String("kind", string(kind)),
		logger.Int("items", len(items)),
	)
	return item.NewSnapshot(items, kind, taken), nil
}

// waitEligible blocks until minInterval has elapsed since the last call.
func (s *Service) waitEligible(ctx context.Context) error {
	if s.minInterval <= 0 || s.lastCall.IsZero() {
		return nil
	}
	wait := s.minInterval - s.now().Sub(s.lastCall)
	if wait <= 0 {
		return nil
	}

	s.log.Debug(ctx, "snapshot throttled", logger.Duration("wait", wait))
	metrics.RecordThrottleWait(wait.Seconds())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("snapshot wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
