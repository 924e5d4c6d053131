package ranking

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/artifact"
	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/features"
	"github.com/wonny/edgefactory/internal/feedback"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func testRankingConfig() config.RankingConfig {
	return config.RankingConfig{
		RuleWeight:     0.4,
		MLWeight:       0.6,
		StreakWindow:   5,
		StreakWinCount: 4,
		StreakFactor:   0.5,
		TopN:           10,
	}
}

type fakeProvider struct {
	series map[string][]contracts.Observation
	errors map[string]error
}

func (p *fakeProvider) Series(_ context.Context, symbol string) ([]contracts.Observation, error) {
	if err := p.errors[symbol]; err != nil {
		return nil, err
	}
	return p.series[symbol], nil
}

func (p *fakeProvider) Window(ctx context.Context, symbol string, n int) ([]contracts.Observation, error) {
	bars, err := p.Series(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

type nullBus struct {
	events []contracts.Event
}

func (b *nullBus) Publish(e contracts.Event) { b.events = append(b.events, e) }

func bars(symbol string, n int) []contracts.Observation {
	out := make([]contracts.Observation, n)
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 0.4 * math.Sin(float64(i)/3)
		out[i] = contracts.Observation{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Open:      price - 0.1,
			High:      price + 0.4,
			Low:       price - 0.4,
			Close:     price,
			Volume:    1000 + float64(i%5)*40,
		}
	}
	return out
}

func coldManager(t *testing.T) *artifact.Manager {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	m := artifact.NewManager(store, testLogger())
	require.NoError(t, m.Restore())
	return m
}

func newTestRanker(t *testing.T, provider *fakeProvider, store contracts.SignalStore, bus *nullBus) *Ranker {
	t.Helper()
	ex := features.NewExtractor(30, testLogger())
	return NewRanker(testRankingConfig(), 30, provider, ex, coldManager(t), store, bus, nil, testLogger())
}

func TestColdStartFallsBackToNeutralProbability(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{"AAPL": bars("AAPL", 80)}}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)

	out, err := r.RankSignals(context.Background(), []string{"AAPL"}, contracts.ModeConservative)
	require.NoError(t, err)
	require.Len(t, out, 2) // long and short

	for _, rec := range out {
		assert.Equal(t, 0.5, rec.MLProbability)
		assert.Empty(t, rec.SchemaVersion)
		// Weighted score follows the 0.4/0.6 blend exactly.
		want := (0.4*(rec.RuleScore/10) + 0.6*0.5) * 10
		assert.InDelta(t, want, rec.WeightedScore, 1e-9)
		assert.Equal(t, contracts.OutcomeUnresolved, rec.Outcome)
		assert.NotEmpty(t, rec.SignalID)
		assert.NotEmpty(t, rec.Thesis)
		assert.NotEmpty(t, rec.FeatureSnapshot)
	}
}

func TestWeightedScoreFormula(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{}}
	r := newTestRanker(t, provider, feedback.NewMemoryStore(), &nullBus{})

	// rule 8.0 with probability 0.9 blends to 8.6 under the 0.4/0.6 weights.
	assert.InDelta(t, 8.6, r.weightedScore(8.0, 0.9), 1e-9)
	// Pure rule and pure probability land back on their own scales.
	assert.InDelta(t, 4.0, r.weightedScore(10, 0), 1e-9)
	assert.InDelta(t, 6.0, r.weightedScore(0, 1), 1e-9)
}

func TestStreakSuppressionHalvesProbability(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{"AAPL": bars("AAPL", 80)}}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)
	ctx := context.Background()

	// Seed 5 resolved long signals, 4 of them WIN.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	outcomes := []contracts.Outcome{
		contracts.OutcomeWin, contracts.OutcomeWin, contracts.OutcomeLoss,
		contracts.OutcomeWin, contracts.OutcomeWin,
	}
	for i, o := range outcomes {
		id := fmt.Sprintf("old-%d", i)
		require.NoError(t, store.Append(ctx, &contracts.SignalRecord{
			SignalID:  id,
			Symbol:    "AAPL",
			Side:      contracts.SideLong,
			EmittedAt: base.Add(time.Duration(i) * time.Hour),
			Outcome:   contracts.OutcomeUnresolved,
		}))
		require.NoError(t, store.Resolve(ctx, id, o, 1.0, base.Add(time.Duration(i+24)*time.Hour)))
	}

	out, err := r.RankSignals(ctx, []string{"AAPL"}, contracts.ModeConservative)
	require.NoError(t, err)

	var long, short *contracts.SignalRecord
	for i := range out {
		switch out[i].Side {
		case contracts.SideLong:
			long = &out[i]
		case contracts.SideShort:
			short = &out[i]
		}
	}
	require.NotNil(t, long)
	require.NotNil(t, short)

	// Long side suppressed: 0.5 * 0.5 = 0.25. Short side untouched.
	assert.InDelta(t, 0.25, long.MLProbability, 1e-9)
	assert.InDelta(t, 0.5, short.MLProbability, 1e-9)
}

func TestPerSymbolErrorIsolation(t *testing.T) {
	provider := &fakeProvider{
		series: map[string][]contracts.Observation{"AAPL": bars("AAPL", 80)},
		errors: map[string]error{"BROKEN": fmt.Errorf("feed unavailable")},
	}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)

	out, err := r.RankSignals(context.Background(), []string{"BROKEN", "AAPL"}, contracts.ModeConservative)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, rec := range out {
		assert.Equal(t, "AAPL", rec.Symbol)
	}
}

func TestInsufficientHistorySkipsSymbol(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{
		"SHORTHIST": bars("SHORTHIST", 10),
		"AAPL":      bars("AAPL", 80),
	}}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)

	out, err := r.RankSignals(context.Background(), []string{"SHORTHIST", "AAPL"}, contracts.ModeConservative)
	require.NoError(t, err)
	for _, rec := range out {
		assert.Equal(t, "AAPL", rec.Symbol)
	}
}

func TestRankedOutputSortedAndRecorded(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{
		"AAPL": bars("AAPL", 80),
		"MSFT": bars("MSFT", 90),
	}}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)
	ctx := context.Background()

	out, err := r.RankSignals(ctx, []string{"AAPL", "MSFT"}, contracts.ModeConservative)
	require.NoError(t, err)
	require.Len(t, out, 4)

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].WeightedScore, out[i].WeightedScore)
	}

	// Every emitted record is durably appended.
	stored, err := store.Query(ctx, contracts.SignalQuery{})
	require.NoError(t, err)
	assert.Len(t, stored, 4)

	// All four fit within TopN, so all are published.
	assert.Len(t, bus.events, 4)
	for _, e := range bus.events {
		assert.Equal(t, "signal_emitted", e.EventType())
	}
}

func TestUnknownModeFallsBackToConservative(t *testing.T) {
	provider := &fakeProvider{series: map[string][]contracts.Observation{"AAPL": bars("AAPL", 80)}}
	store := feedback.NewMemoryStore()
	bus := &nullBus{}
	r := newTestRanker(t, provider, store, bus)

	out, err := r.RankSignals(context.Background(), []string{"AAPL"}, contracts.RankMode("bogus"))
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
