package labeling

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/features"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func flatBars(n int, close float64) []contracts.Observation {
	bars := make([]contracts.Observation, n)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars[i] = contracts.Observation{
			Symbol:    "TEST",
			Timestamp: base.AddDate(0, 0, i),
			Open:      close,
			High:      close + 0.01,
			Low:       close - 0.01,
			Close:     close,
			Volume:    1000,
		}
	}
	return bars
}

func newTestBuilder(t *testing.T, horizon int) *Builder {
	t.Helper()
	ex := features.NewExtractor(30, testLogger())
	return NewBuilder(ex, horizon, 0.02, 0.02, testLogger())
}

func TestBuildDropsIncompleteForwardWindows(t *testing.T) {
	b := newTestBuilder(t, 5)
	examples, err := b.Build(flatBars(60, 100))
	require.NoError(t, err)
	// The last 5 bars have no complete forward window.
	assert.Len(t, examples, 55)
}

func TestBuildFlatSeriesHasNoPositives(t *testing.T) {
	b := newTestBuilder(t, 5)
	examples, err := b.Build(flatBars(60, 100))
	require.NoError(t, err)
	for _, ex := range examples {
		assert.Equal(t, 0, ex.TargetLong)
		assert.Equal(t, 0, ex.TargetShort)
	}
}

func TestBuildLongTargetFiresOnForwardMove(t *testing.T) {
	bars := flatBars(60, 100)
	// +3% move at bar 42; within the 5-bar window of bars 37..41.
	setClose(bars, 42, 103)

	b := newTestBuilder(t, 5)
	examples, err := b.Build(bars)
	require.NoError(t, err)

	for _, ex := range examples {
		i := dayIndex(bars, ex.Timestamp)
		if i >= 37 && i <= 41 {
			assert.Equalf(t, 1, ex.TargetLong, "bar %d should be labeled long", i)
		} else if i != 42 {
			assert.Equalf(t, 0, ex.TargetLong, "bar %d should not be labeled long", i)
		}
	}
}

func TestBuildShortTargetFiresOnForwardDrop(t *testing.T) {
	bars := flatBars(60, 100)
	setClose(bars, 42, 97)

	b := newTestBuilder(t, 5)
	examples, err := b.Build(bars)
	require.NoError(t, err)

	for _, ex := range examples {
		i := dayIndex(bars, ex.Timestamp)
		if i >= 37 && i <= 41 {
			assert.Equalf(t, 1, ex.TargetShort, "bar %d should be labeled short", i)
		}
	}
}

// The target of bar i must never depend on bar i itself: mutating only the
// current bar's close within valid bounds must not flip a forward-window label
// computed from later bars.
func TestBuildExcludesCurrentBar(t *testing.T) {
	bars := flatBars(60, 100)
	// Bar 40 spikes; its own forward window (41..45) stays flat, so the spike
	// must not label bar 40 itself.
	bars[40].Close = 103
	bars[40].High = 103.5
	bars[40].Open = 103

	b := newTestBuilder(t, 5)
	examples, err := b.Build(bars)
	require.NoError(t, err)

	for _, ex := range examples {
		i := dayIndex(bars, ex.Timestamp)
		if i == 40 {
			// Forward window of bar 40 is flat at 100: a ~3% DROP from 103.
			assert.Equal(t, 0, ex.TargetLong)
			assert.Equal(t, 1, ex.TargetShort)
		}
		if i >= 35 && i <= 39 {
			assert.Equalf(t, 1, ex.TargetLong, "bar %d sees the spike forward", i)
		}
	}
}

func TestBuildTooShortSeriesFails(t *testing.T) {
	b := newTestBuilder(t, 5)
	_, err := b.Build(flatBars(10, 100))
	require.Error(t, err)
	var ihe *contracts.InsufficientHistoryError
	assert.ErrorAs(t, err, &ihe)
}

func TestBuildThresholdBoundary(t *testing.T) {
	bars := flatBars(60, 100)
	// Exactly +2%: threshold is inclusive.
	setClose(bars, 42, 102)

	b := newTestBuilder(t, 5)
	examples, err := b.Build(bars)
	require.NoError(t, err)

	found := false
	for _, ex := range examples {
		if dayIndex(bars, ex.Timestamp) == 41 {
			found = true
			assert.Equal(t, 1, ex.TargetLong)
		}
	}
	require.True(t, found)
}

func setClose(bars []contracts.Observation, i int, close float64) {
	bars[i].Close = close
	bars[i].Open = close
	bars[i].High = math.Max(bars[i].High, close+0.01)
	bars[i].Low = math.Min(bars[i].Low, close-0.01)
}

func dayIndex(bars []contracts.Observation, ts time.Time) int {
	for i := range bars {
		if bars[i].Timestamp.Equal(ts) {
			return i
		}
	}
	return -1
}
