package features

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// featureNames is the canonical feature order. Vector layout never changes
// within a schema version; new features append at the end of a new version.
var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{
		"price_change_1", "price_change_2", "price_change_5",
		"hl_ratio", "co_ratio",
		"vol_std_5", "vol_std_20",
		"atr_ratio",
		"vol_change_1", "vpt", "vol_surge",
		"rsi", "rsi_oversold", "rsi_overbought", "rsi_neutral",
		"ema_bull", "ema_bear", "ema_cross_up", "ema_cross_dn",
		"macd_gt", "macd_lt", "macd_cross",
		"bb_squeeze", "bb_break_up", "bb_break_dn",
		"stoch_oversold", "stoch_overbought",
		"near_support", "near_resistance",
		"dow", "month", "month_end",
	}
	for _, lag := range []string{"1", "2", "3", "5"} {
		names = append(names, "rsi_lag_"+lag, "vol_lag_"+lag, "ret_lag_"+lag)
	}
	for _, w := range []string{"5", "10", "20"} {
		names = append(names, "rsi_mean_"+w, "vol_mean_"+w, "volat_"+w)
	}
	return names
}

// Extractor builds engineered feature vectors from OHLCV bar series.
// ⭐ SSOT: 피처 계산은 여기서만
type Extractor struct {
	minHistory int
	logger     zerolog.Logger
}

// NewExtractor creates a new feature extractor. minHistory is the minimum
// number of bars required before a vector may be extracted for the latest bar.
func NewExtractor(minHistory int, log *logger.Logger) *Extractor {
	return &Extractor{
		minHistory: minHistory,
		logger:     log.Component("features"),
	}
}

// FeatureNames returns the canonical ordered feature list.
func (e *Extractor) FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// barContext holds all aligned indicator series for one bar series.
type barContext struct {
	bars   []contracts.Observation
	close  []float64
	volume []float64

	ret1, ret2, ret5 []float64
	volStd5          []float64
	volStd20         []float64
	atr              []float64
	volChange        []float64
	volSMA20         []float64
	rsi              []float64
	ema12, ema26     []float64
	macd, macdSig    []float64
	bbUp, bbMid      []float64
	bbLo             []float64
	stochK           []float64

	rsiMean5, rsiMean10, rsiMean20 []float64
	volMean5, volMean10, volMean20 []float64
	volat5, volat10, volat20       []float64
}

func newBarContext(bars []contracts.Observation) *barContext {
	c := &barContext{bars: bars}
	c.close = closeSeries(bars)
	c.volume = volumeSeries(bars)

	c.ret1 = pctChange(c.close, 1)
	c.ret2 = pctChange(c.close, 2)
	c.ret5 = pctChange(c.close, 5)
	c.volStd5 = rollingStd(c.close, 5)
	c.volStd20 = rollingStd(c.close, 20)
	c.atr = atrSeries(bars, 14)
	c.volChange = pctChange(c.volume, 1)
	c.volSMA20 = rollingMean(c.volume, 20)
	c.rsi = rsiSeries(c.close, 14)
	c.ema12 = emaSeries(c.close, 12)
	c.ema26 = emaSeries(c.close, 26)
	c.macd, c.macdSig = macdSeries(c.close)
	c.bbUp, c.bbMid, c.bbLo = bollingerSeries(c.close)
	c.stochK = stochKSeries(bars, 14)

	c.rsiMean5 = rollingMean(c.rsi, 5)
	c.rsiMean10 = rollingMean(c.rsi, 10)
	c.rsiMean20 = rollingMean(c.rsi, 20)
	c.volMean5 = rollingMean(c.volume, 5)
	c.volMean10 = rollingMean(c.volume, 10)
	c.volMean20 = rollingMean(c.volume, 20)
	c.volat5 = c.volStd5
	c.volat10 = rollingStd(c.close, 10)
	c.volat20 = c.volStd20

	// Prefer precomputed indicator values carried on the bars themselves.
	for i, b := range bars {
		if v, ok := b.Indicator("rsi_14"); ok {
			c.rsi[i] = v
		}
		if v, ok := b.Indicator("atr_14"); ok {
			c.atr[i] = v
		}
		if v, ok := b.Indicator("ema_12"); ok {
			c.ema12[i] = v
		}
		if v, ok := b.Indicator("ema_26"); ok {
			c.ema26[i] = v
		}
		if v, ok := b.Indicator("macd"); ok {
			c.macd[i] = v
		}
		if v, ok := b.Indicator("macd_signal"); ok {
			c.macdSig[i] = v
		}
		if v, ok := b.Indicator("bb_upper"); ok {
			c.bbUp[i] = v
		}
		if v, ok := b.Indicator("bb_middle"); ok {
			c.bbMid[i] = v
		}
		if v, ok := b.Indicator("bb_lower"); ok {
			c.bbLo[i] = v
		}
		if v, ok := b.Indicator("stoch_k"); ok {
			c.stochK[i] = v
		}
		if v, ok := b.Indicator("volume_sma_20"); ok {
			c.volSMA20[i] = v
		}
	}

	return c
}

// vectorAt assembles the feature vector for bar i. NaN and Inf collapse to 0.
func (c *barContext) vectorAt(i int) []float64 {
	bar := c.bars[i]
	vals := make([]float64, 0, len(featureNames))

	hlRatio := math.NaN()
	if bar.Low != 0 {
		hlRatio = bar.High / bar.Low
	}
	coRatio := math.NaN()
	if bar.Open != 0 {
		coRatio = bar.Close / bar.Open
	}
	atrRatio := math.NaN()
	if bar.Close != 0 {
		atrRatio = c.atr[i] / bar.Close
	}
	vpt := c.volume[i] * c.ret1[i]
	volSurge := math.NaN()
	if c.volSMA20[i] != 0 {
		volSurge = c.volume[i] / c.volSMA20[i]
	}

	rsi := c.rsi[i]

	vals = append(vals,
		c.ret1[i], c.ret2[i], c.ret5[i],
		hlRatio, coRatio,
		c.volStd5[i], c.volStd20[i],
		atrRatio,
		c.volChange[i], vpt, volSurge,
		rsi,
		boolTo(rsi < 30), boolTo(rsi > 70), boolTo(rsi >= 40 && rsi <= 60),
	)

	emaBull := !math.IsNaN(c.ema12[i]) && !math.IsNaN(c.ema26[i]) && c.ema12[i] > c.ema26[i]
	emaBear := !math.IsNaN(c.ema12[i]) && !math.IsNaN(c.ema26[i]) && c.ema12[i] < c.ema26[i]
	crossUp, crossDn := false, false
	if i > 0 && !math.IsNaN(c.ema12[i-1]) && !math.IsNaN(c.ema26[i-1]) {
		crossUp = emaBull && c.ema12[i-1] <= c.ema26[i-1]
		crossDn = emaBear && c.ema12[i-1] >= c.ema26[i-1]
	}
	vals = append(vals, boolTo(emaBull), boolTo(emaBear), boolTo(crossUp), boolTo(crossDn))

	macdGt := !math.IsNaN(c.macd[i]) && !math.IsNaN(c.macdSig[i]) && c.macd[i] > c.macdSig[i]
	macdLt := !math.IsNaN(c.macd[i]) && !math.IsNaN(c.macdSig[i]) && c.macd[i] < c.macdSig[i]
	macdCross := false
	if i > 0 && !math.IsNaN(c.macd[i-1]) && !math.IsNaN(c.macdSig[i-1]) {
		macdCross = macdGt && c.macd[i-1] <= c.macdSig[i-1]
	}
	vals = append(vals, boolTo(macdGt), boolTo(macdLt), boolTo(macdCross))

	bbSqueeze, bbBreakUp, bbBreakDn := false, false, false
	if !math.IsNaN(c.bbUp[i]) && !math.IsNaN(c.bbLo[i]) && !math.IsNaN(c.bbMid[i]) && c.bbMid[i] != 0 {
		width := (c.bbUp[i] - c.bbLo[i]) / c.bbMid[i]
		bbSqueeze = width < 0.1
		bbBreakUp = bar.Close > c.bbUp[i]
		bbBreakDn = bar.Close < c.bbLo[i]
	}
	vals = append(vals, boolTo(bbSqueeze), boolTo(bbBreakUp), boolTo(bbBreakDn))

	stoch := c.stochK[i]
	vals = append(vals, boolTo(stoch < 20), boolTo(stoch > 80))

	nearSupport, nearResist := 0.0, 0.0
	if v, ok := bar.Indicator("support"); ok && v != 0 {
		nearSupport = 1.0
	}
	if v, ok := bar.Indicator("resistance"); ok && v != 0 {
		nearResist = 1.0
	}
	vals = append(vals, nearSupport, nearResist)

	vals = append(vals,
		float64(bar.Timestamp.Weekday()),
		float64(bar.Timestamp.Month()),
		boolTo(bar.Timestamp.Day() > 25),
	)

	for _, lag := range []int{1, 2, 3, 5} {
		j := i - lag
		if j >= 0 {
			vals = append(vals, c.rsi[j], c.volume[j], c.ret1[j])
		} else {
			vals = append(vals, math.NaN(), math.NaN(), math.NaN())
		}
	}

	vals = append(vals,
		c.rsiMean5[i], c.volMean5[i], c.volat5[i],
		c.rsiMean10[i], c.volMean10[i], c.volat10[i],
		c.rsiMean20[i], c.volMean20[i], c.volat20[i],
	)

	for k, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[k] = 0.0
		}
	}
	return vals
}

// Extract builds the feature vector for the latest bar of the series.
// The series must hold at least minHistory bars.
func (e *Extractor) Extract(bars []contracts.Observation) (contracts.FeatureVector, error) {
	if len(bars) < e.minHistory {
		symbol := ""
		if len(bars) > 0 {
			symbol = bars[0].Symbol
		}
		return contracts.FeatureVector{}, &contracts.InsufficientHistoryError{
			Symbol: symbol,
			Need:   e.minHistory,
			Got:    len(bars),
		}
	}
	if err := contracts.ValidateSeries(bars); err != nil {
		return contracts.FeatureVector{}, err
	}
	ctx := newBarContext(bars)
	return contracts.FeatureVector{
		Names:  e.FeatureNames(),
		Values: ctx.vectorAt(len(bars) - 1),
	}, nil
}

// ExtractSeries builds one feature vector per bar. Warm-up bars get zeros for
// the features that are not yet defined, matching the single-bar path.
func (e *Extractor) ExtractSeries(bars []contracts.Observation) ([]contracts.FeatureVector, error) {
	if len(bars) < e.minHistory {
		symbol := ""
		if len(bars) > 0 {
			symbol = bars[0].Symbol
		}
		return nil, &contracts.InsufficientHistoryError{
			Symbol: symbol,
			Need:   e.minHistory,
			Got:    len(bars),
		}
	}
	if err := contracts.ValidateSeries(bars); err != nil {
		return nil, err
	}
	ctx := newBarContext(bars)
	names := e.FeatureNames()
	out := make([]contracts.FeatureVector, len(bars))
	for i := range bars {
		out[i] = contracts.FeatureVector{Names: names, Values: ctx.vectorAt(i)}
	}
	e.logger.Debug().
		Str("symbol", bars[0].Symbol).
		Int("bars", len(bars)).
		Int("features", len(names)).
		Msg("Extracted feature series")
	return out, nil
}

func boolTo(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
