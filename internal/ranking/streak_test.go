package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/edgefactory/internal/contracts"
)

func resolved(outcomes ...contracts.Outcome) []contracts.SignalRecord {
	out := make([]contracts.SignalRecord, len(outcomes))
	for i, o := range outcomes {
		out[i] = contracts.SignalRecord{Outcome: o}
	}
	return out
}

func TestSuppressionFactor(t *testing.T) {
	win := contracts.OutcomeWin
	loss := contracts.OutcomeLoss

	tests := []struct {
		name   string
		recent []contracts.SignalRecord
		want   float64
	}{
		{"four of five wins", resolved(win, win, loss, win, win), 0.5},
		{"five of five wins", resolved(win, win, win, win, win), 0.5},
		{"three of five wins", resolved(win, loss, win, loss, win), 1.0},
		{"no history", nil, 1.0},
		{"short history below win count", resolved(win, win, win), 1.0},
		{"exactly four resolved, all wins", resolved(win, win, win, win), 0.5},
		{"all losses", resolved(loss, loss, loss, loss, loss), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuppressionFactor(tt.recent, 5, 4, 0.5)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuppressionFactorTrimsToWindow(t *testing.T) {
	win := contracts.OutcomeWin
	loss := contracts.OutcomeLoss

	// Newest five: 3 wins. Older wins beyond the window must not count.
	recent := resolved(win, loss, win, loss, win, win, win, win)
	assert.Equal(t, 1.0, SuppressionFactor(recent, 5, 4, 0.5))
}

func TestSuppressionFactorDisabled(t *testing.T) {
	win := contracts.OutcomeWin
	recent := resolved(win, win, win, win, win)
	assert.Equal(t, 1.0, SuppressionFactor(recent, 0, 0, 0.5))
}
