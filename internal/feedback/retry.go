package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// RetryStore wraps a SignalStore with bounded retries on writes. Losing an
// emitted signal silently would starve future training, so Append and Resolve
// retry transient failures before surfacing the error.
type RetryStore struct {
	contracts.SignalStore

	retries int
	delay   time.Duration
	onRetry func()
	logger  zerolog.Logger
}

// NewRetryStore wraps inner with up to retries additional attempts per write,
// waiting delay between attempts. onRetry is invoked once per retry, nil ok.
func NewRetryStore(inner contracts.SignalStore, retries int, delay time.Duration, onRetry func(), log *logger.Logger) *RetryStore {
	return &RetryStore{
		SignalStore: inner,
		retries:     retries,
		delay:       delay,
		onRetry:     onRetry,
		logger:      log.Component("feedback"),
	}
}

// Append records the signal, retrying transient write failures.
func (s *RetryStore) Append(ctx context.Context, record *contracts.SignalRecord) error {
	return s.withRetry(ctx, "append", record.SignalID, func() error {
		return s.SignalStore.Append(ctx, record)
	})
}

// Resolve applies the outcome, retrying transient write failures.
func (s *RetryStore) Resolve(ctx context.Context, signalID string, outcome contracts.Outcome, pnl float64, at time.Time) error {
	return s.withRetry(ctx, "resolve", signalID, func() error {
		return s.SignalStore.Resolve(ctx, signalID, outcome, pnl, at)
	})
}

func (s *RetryStore) withRetry(ctx context.Context, op, signalID string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			if s.onRetry != nil {
				s.onRetry()
			}
			s.logger.Warn().
				Str("op", op).
				Str("signal_id", signalID).
				Int("attempt", attempt).
				Err(err).
				Msg("Retrying feedback store write")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		// Only transient store failures are worth retrying.
		var fswe *contracts.FeedStoreWriteError
		if !errors.As(err, &fswe) {
			return err
		}
	}
	return err
}
