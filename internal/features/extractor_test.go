package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func syntheticBars(n int) []contracts.Observation {
	bars := make([]contracts.Observation, n)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		// Deterministic wave so indicators have nontrivial values.
		price += 0.5 * math.Sin(float64(i)/4)
		bars[i] = contracts.Observation{
			Symbol:    "TEST",
			Timestamp: base.AddDate(0, 0, i),
			Open:      price - 0.2,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1000 + float64(i%7)*50,
		}
	}
	return bars
}

func TestExtractorFeatureNamesStable(t *testing.T) {
	e := NewExtractor(30, testLogger())
	a := e.FeatureNames()
	b := e.FeatureNames()
	require.Equal(t, a, b)
	assert.Equal(t, "price_change_1", a[0])
	assert.Equal(t, "volat_20", a[len(a)-1])

	// Returned slice is a copy; mutating it must not leak.
	a[0] = "mutated"
	assert.Equal(t, "price_change_1", e.FeatureNames()[0])
}

func TestExtractInsufficientHistory(t *testing.T) {
	e := NewExtractor(30, testLogger())
	_, err := e.Extract(syntheticBars(10))
	require.Error(t, err)

	var ihe *contracts.InsufficientHistoryError
	require.ErrorAs(t, err, &ihe)
	assert.Equal(t, 30, ihe.Need)
	assert.Equal(t, 10, ihe.Got)
	assert.Equal(t, "TEST", ihe.Symbol)
}

func TestExtractVectorShape(t *testing.T) {
	e := NewExtractor(30, testLogger())
	fv, err := e.Extract(syntheticBars(60))
	require.NoError(t, err)
	require.Equal(t, len(fv.Names), len(fv.Values))

	for i, v := range fv.Values {
		assert.Falsef(t, math.IsNaN(v), "feature %s is NaN", fv.Names[i])
		assert.Falsef(t, math.IsInf(v, 0), "feature %s is Inf", fv.Names[i])
	}
}

func TestExtractSeriesMatchesSingle(t *testing.T) {
	e := NewExtractor(30, testLogger())
	bars := syntheticBars(80)

	series, err := e.ExtractSeries(bars)
	require.NoError(t, err)
	require.Len(t, series, 80)

	last, err := e.Extract(bars)
	require.NoError(t, err)
	assert.Equal(t, last.Values, series[79].Values)
}

func TestExtractDeterministic(t *testing.T) {
	e := NewExtractor(30, testLogger())
	bars := syntheticBars(60)

	a, err := e.Extract(bars)
	require.NoError(t, err)
	b, err := e.Extract(bars)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
}

func TestExtractPrefersCarriedIndicators(t *testing.T) {
	e := NewExtractor(30, testLogger())
	bars := syntheticBars(60)
	bars[59].Indicators = map[string]float64{"rsi_14": 25.0}

	fv, err := e.Extract(bars)
	require.NoError(t, err)

	rsi, ok := fv.Get("rsi")
	require.True(t, ok)
	assert.Equal(t, 25.0, rsi)

	oversold, ok := fv.Get("rsi_oversold")
	require.True(t, ok)
	assert.Equal(t, 1.0, oversold)
}

func TestExtractRejectsOutOfOrderSeries(t *testing.T) {
	e := NewExtractor(30, testLogger())
	bars := syntheticBars(60)
	bars[40].Timestamp = bars[10].Timestamp

	_, err := e.Extract(bars)
	require.Error(t, err)
}
