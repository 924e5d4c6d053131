package features

import (
	"math"

	"github.com/wonny/edgefactory/internal/contracts"
)

// Rolling indicator series computed from OHLCV bars. All series are aligned
// with the input: index i of the result corresponds to bars[i]. Elements that
// cannot be computed yet (warm-up window) are NaN and are zeroed later by the
// extractor.

// closeSeries extracts closing prices.
func closeSeries(bars []contracts.Observation) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// volumeSeries extracts volumes.
func volumeSeries(bars []contracts.Observation) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// pctChange computes (x[i] - x[i-n]) / x[i-n].
func pctChange(x []float64, n int) []float64 {
	out := nanSlice(len(x))
	for i := n; i < len(x); i++ {
		prev := x[i-n]
		if prev != 0 {
			out[i] = (x[i] - prev) / prev
		}
	}
	return out
}

// rollingMean computes the trailing mean over window bars ending at i.
func rollingMean(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= window {
			sum -= x[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd computes the trailing sample standard deviation over window bars.
func rollingStd(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	for i := window - 1; i < len(x); i++ {
		var mean float64
		for j := i - window + 1; j <= i; j++ {
			mean += x[j]
		}
		mean /= float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := x[j] - mean
			ss += d * d
		}
		if window > 1 {
			out[i] = math.Sqrt(ss / float64(window-1))
		}
	}
	return out
}

// emaSeries computes an exponential moving average seeded with the SMA of the
// first period values.
func emaSeries(x []float64, period int) []float64 {
	out := nanSlice(len(x))
	if len(x) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += x[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema
	k := 2.0 / float64(period+1)
	for i := period; i < len(x); i++ {
		ema = x[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// rsiSeries computes the Wilder-smoothed Relative Strength Index.
func rsiSeries(close []float64, period int) []float64 {
	out := nanSlice(len(close))
	if len(close) < period+1 {
		return out
	}
	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := close[i] - close[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)
	for i := period + 1; i < len(close); i++ {
		change := close[i] - close[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atrSeries computes the Average True Range with Wilder smoothing.
func atrSeries(bars []contracts.Observation, period int) []float64 {
	out := nanSlice(len(bars))
	if len(bars) < period+1 {
		return out
	}
	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period] = atr
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// macdSeries computes the MACD line (EMA12-EMA26) and its EMA9 signal line.
func macdSeries(close []float64) (macd, signal []float64) {
	ema12 := emaSeries(close, 12)
	ema26 := emaSeries(close, 26)
	macd = nanSlice(len(close))
	for i := range close {
		if !math.IsNaN(ema12[i]) && !math.IsNaN(ema26[i]) {
			macd[i] = ema12[i] - ema26[i]
		}
	}
	signal = nanSlice(len(close))
	// Signal is EMA9 over the defined portion of the MACD line.
	start := -1
	for i, v := range macd {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start < 0 || len(macd)-start < 9 {
		return macd, signal
	}
	sub := emaSeries(macd[start:], 9)
	copy(signal[start:], sub)
	return macd, signal
}

// bollingerSeries computes 20-period Bollinger bands at 2 standard deviations.
func bollingerSeries(close []float64) (upper, middle, lower []float64) {
	middle = rollingMean(close, 20)
	std := rollingStd(close, 20)
	upper = nanSlice(len(close))
	lower = nanSlice(len(close))
	for i := range close {
		if !math.IsNaN(middle[i]) && !math.IsNaN(std[i]) {
			upper[i] = middle[i] + 2*std[i]
			lower[i] = middle[i] - 2*std[i]
		}
	}
	return upper, middle, lower
}

// stochKSeries computes the raw stochastic %K over a 14-bar window.
func stochKSeries(bars []contracts.Observation, period int) []float64 {
	out := nanSlice(len(bars))
	for i := period - 1; i < len(bars); i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := i - period + 1; j <= i; j++ {
			if bars[j].Low < lo {
				lo = bars[j].Low
			}
			if bars[j].High > hi {
				hi = bars[j].High
			}
		}
		if hi > lo {
			out[i] = 100 * (bars[i].Close - lo) / (hi - lo)
		} else {
			out[i] = 50.0
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
