package contracts

import (
	"fmt"
	"time"
)

// Observation is a single timestamped OHLCV bar for one symbol, plus any
// precomputed indicator values keyed by name (rsi_14, ema_12, ...).
// ⭐ SSOT: 시장 데이터 바 표현은 여기서만 정의
// Immutable once created; ordered by Timestamp per symbol.
type Observation struct {
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"timestamp"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Validate checks the OHLCV bar invariants
func (o *Observation) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("observation has empty symbol")
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("observation %s has zero timestamp", o.Symbol)
	}
	if o.High < o.Low {
		return fmt.Errorf("observation %s@%s: high %.4f < low %.4f",
			o.Symbol, o.Timestamp.Format("2006-01-02"), o.High, o.Low)
	}
	if o.High < o.Open || o.High < o.Close {
		return fmt.Errorf("observation %s@%s: high %.4f below open/close",
			o.Symbol, o.Timestamp.Format("2006-01-02"), o.High)
	}
	if o.Low > o.Open || o.Low > o.Close {
		return fmt.Errorf("observation %s@%s: low %.4f above open/close",
			o.Symbol, o.Timestamp.Format("2006-01-02"), o.Low)
	}
	if o.Volume < 0 {
		return fmt.Errorf("observation %s@%s: negative volume %.0f",
			o.Symbol, o.Timestamp.Format("2006-01-02"), o.Volume)
	}
	return nil
}

// Indicator returns a named indicator value and whether it is present
func (o *Observation) Indicator(name string) (float64, bool) {
	v, ok := o.Indicators[name]
	return v, ok
}

// ValidateSeries checks that a series is chronological with no duplicate
// timestamps, and that every bar passes Validate
func ValidateSeries(series []Observation) error {
	for i := range series {
		if err := series[i].Validate(); err != nil {
			return err
		}
		if i > 0 && !series[i].Timestamp.After(series[i-1].Timestamp) {
			return fmt.Errorf("series %s: non-increasing timestamp at index %d",
				series[i].Symbol, i)
		}
	}
	return nil
}
