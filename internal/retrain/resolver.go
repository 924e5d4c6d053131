package retrain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Resolver closes the feedback loop: it walks unresolved signals and, once
// the market has verified them, writes the WIN/LOSS annotation back to the
// store. A signal resolves when its profit target is hit within the horizon,
// or at horizon expiry on the sign of the realized return. Signals whose
// horizon has not elapsed stay UNRESOLVED.
// ⭐ SSOT: 시그널 결과 판정은 여기서만
type Resolver struct {
	provider contracts.MarketDataProvider
	store    contracts.SignalStore

	horizon  int // bars after emission before expiry resolution
	longThr  float64
	shortThr float64
	logger   zerolog.Logger
}

// NewResolver creates an outcome resolver. horizon matches the labeler's
// lookforward window so training targets and live outcomes measure the same
// thing.
func NewResolver(provider contracts.MarketDataProvider, store contracts.SignalStore, horizon int, longThr, shortThr float64, log *logger.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		store:    store,
		horizon:  horizon,
		longThr:  longThr,
		shortThr: shortThr,
		logger:   log.Component("resolver"),
	}
}

// ResolveDue checks every unresolved signal and resolves those the market
// has decided. Returns the number resolved. A failure on one signal is
// logged and skipped.
func (r *Resolver) ResolveDue(ctx context.Context) (int, error) {
	open, err := r.store.Unresolved(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolver: list unresolved: %w", err)
	}

	resolved := 0
	for i := range open {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		done, err := r.resolveOne(ctx, &open[i])
		if err != nil {
			r.logger.Warn().
				Str("signal_id", open[i].SignalID).
				Err(err).
				Msg("Failed to resolve signal")
			continue
		}
		if done {
			resolved++
		}
	}
	if resolved > 0 {
		r.logger.Info().
			Int("resolved", resolved).
			Int("checked", len(open)).
			Msg("Resolved signal outcomes")
	}
	return resolved, nil
}

func (r *Resolver) resolveOne(ctx context.Context, sig *contracts.SignalRecord) (bool, error) {
	series, err := r.provider.Series(ctx, sig.Symbol)
	if err != nil {
		return false, err
	}

	// Bars strictly after emission.
	start := -1
	for i := range series {
		if series[i].Timestamp.After(sig.EmittedAt) {
			start = i
			break
		}
	}
	if start < 0 {
		return false, nil // no new bars yet
	}

	entry := entryPrice(series, sig.EmittedAt)
	if entry == 0 {
		return false, fmt.Errorf("no entry bar at or before %s", sig.EmittedAt.Format("2006-01-02"))
	}

	forward := series[start:]
	if len(forward) > r.horizon {
		forward = forward[:r.horizon]
	}

	// Target hit inside the horizon resolves immediately.
	for _, bar := range forward {
		ret := (bar.Close - entry) / entry
		if sig.Side == contracts.SideLong && ret >= r.longThr {
			return true, r.store.Resolve(ctx, sig.SignalID, contracts.OutcomeWin, ret, bar.Timestamp)
		}
		if sig.Side == contracts.SideShort && ret <= -r.shortThr {
			return true, r.store.Resolve(ctx, sig.SignalID, contracts.OutcomeWin, -ret, bar.Timestamp)
		}
	}

	// Horizon not elapsed yet: leave UNRESOLVED.
	if len(series)-start < r.horizon {
		return false, nil
	}

	// Expiry: outcome follows the sign of the realized return at the last
	// horizon bar.
	last := forward[len(forward)-1]
	ret := (last.Close - entry) / entry
	pnl := ret
	if sig.Side == contracts.SideShort {
		pnl = -ret
	}
	outcome := contracts.OutcomeLoss
	if pnl > 0 {
		outcome = contracts.OutcomeWin
	}
	return true, r.store.Resolve(ctx, sig.SignalID, outcome, pnl, last.Timestamp)
}

// entryPrice is the close of the latest bar at or before emission.
func entryPrice(series []contracts.Observation, emittedAt time.Time) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].Timestamp.After(emittedAt) {
			return series[i].Close
		}
	}
	return 0
}
