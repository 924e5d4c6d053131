package ranking

import (
	"github.com/wonny/edgefactory/internal/contracts"
)

// SuppressionFactor inspects the most recent resolved signals for one
// symbol+side (newest first) and returns the multiplier to apply to the ML
// probability before blending. A hot streak, meaning winCount or more WINs
// within the last window resolved signals, returns factor; anything else
// returns 1.
//
// The bias is deliberate: a short winning streak often reflects a transient
// regime, and rewarding it at full strength chases that regime.
func SuppressionFactor(recent []contracts.SignalRecord, window, winCount int, factor float64) float64 {
	if window <= 0 || winCount <= 0 {
		return 1.0
	}
	if len(recent) > window {
		recent = recent[:window]
	}
	// Fewer resolved signals than the window still count: 4 wins out of an
	// only-4-deep history is a streak.
	if len(recent) < winCount {
		return 1.0
	}

	wins := 0
	for i := range recent {
		if recent[i].Outcome == contracts.OutcomeWin {
			wins++
		}
	}
	if wins >= winCount {
		return factor
	}
	return 1.0
}
