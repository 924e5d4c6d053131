package ranking

import (
	"fmt"
	"math"

	"github.com/wonny/edgefactory/internal/contracts"
)

// RuleScorer computes the deterministic 0-10 rule score from indicator
// features, independently of any ML model. Same features, same mode, same
// score. No randomness, no wall clock.
// ⭐ SSOT: 규칙 점수 계산은 여기서만
type RuleScorer struct {
	mode contracts.RankMode
}

// NewRuleScorer creates a scorer for one rank mode. Conservative demands
// deeper oscillator extremes and stronger volume confirmation than aggressive.
func NewRuleScorer(mode contracts.RankMode) *RuleScorer {
	return &RuleScorer{mode: mode}
}

// thresholds per mode.
func (s *RuleScorer) params() (rsiOversold, rsiOverbought, volDivisor float64) {
	if s.mode == contracts.ModeAggressive {
		return 40, 60, 1.5
	}
	return 30, 70, 2.0
}

// Score computes the rule score in [0, 10] for one side.
func (s *RuleScorer) Score(fv contracts.FeatureVector, side contracts.Side) float64 {
	f := fv.AsMap()
	rsiOversold, rsiOverbought, volDiv := s.params()

	rsi := valueOr(f, "rsi", 50)
	volSurge := valueOr(f, "vol_surge", 1)
	volScore := math.Min(1, volSurge/volDiv)

	var oscillator, trend, momentum, breakout float64
	if side == contracts.SideLong {
		// Oversold rebound depth.
		if rsi < rsiOversold {
			oscillator = math.Min(1, (rsiOversold-rsi)/rsiOversold)
		}
		if f["ema_bull"] == 1 {
			trend = 0.6
		}
		if f["ema_cross_up"] == 1 {
			trend = 1.0
		}
		if f["macd_gt"] == 1 {
			momentum += 0.5
		}
		if f["macd_cross"] == 1 {
			momentum += 0.5
		}
		if f["bb_break_up"] == 1 {
			breakout = 1.0
		} else if f["bb_squeeze"] == 1 {
			breakout = 0.4
		}
	} else {
		if rsi > rsiOverbought {
			oscillator = math.Min(1, (rsi-rsiOverbought)/(100-rsiOverbought))
		}
		if f["ema_bear"] == 1 {
			trend = 0.6
		}
		if f["ema_cross_dn"] == 1 {
			trend = 1.0
		}
		if f["macd_lt"] == 1 {
			momentum = 0.5
		}
		if f["bb_break_dn"] == 1 {
			breakout = 1.0
		} else if f["bb_squeeze"] == 1 {
			breakout = 0.4
		}
	}

	score := 0.30*oscillator + 0.25*trend + 0.20*momentum + 0.10*breakout + 0.15*volScore
	return clamp(score, 0, 1) * 10
}

// Thesis renders a human-readable one-liner for the strongest component of
// the score.
func (s *RuleScorer) Thesis(fv contracts.FeatureVector, side contracts.Side) string {
	f := fv.AsMap()
	rsi := valueOr(f, "rsi", 50)
	volSurge := valueOr(f, "vol_surge", 1)
	rsiOversold, rsiOverbought, _ := s.params()

	if side == contracts.SideLong {
		switch {
		case rsi < rsiOversold:
			return fmt.Sprintf("RSI oversold at %.1f with %.1fx volume; potential bounce.", rsi, volSurge)
		case f["ema_cross_up"] == 1:
			return fmt.Sprintf("EMA bullish crossover with %.1fx volume; RSI %.1f.", volSurge, rsi)
		case f["bb_break_up"] == 1:
			return fmt.Sprintf("Bollinger-band breakout with %.1fx volume; momentum expansion.", volSurge)
		case f["ema_bull"] == 1:
			return fmt.Sprintf("Bullish EMA trend intact; RSI %.1f.", rsi)
		}
		return fmt.Sprintf("Long setup; RSI %.1f, %.1fx volume.", rsi, volSurge)
	}

	switch {
	case rsi > rsiOverbought:
		return fmt.Sprintf("RSI overbought at %.1f with %.1fx volume; potential pullback.", rsi, volSurge)
	case f["ema_cross_dn"] == 1:
		return fmt.Sprintf("EMA bearish crossover with %.1fx volume; RSI %.1f.", volSurge, rsi)
	case f["bb_break_dn"] == 1:
		return fmt.Sprintf("Bollinger-band breakdown with %.1fx volume; momentum expansion.", volSurge)
	case f["ema_bear"] == 1:
		return fmt.Sprintf("Bearish EMA trend intact; RSI %.1f.", rsi)
	}
	return fmt.Sprintf("Short setup; RSI %.1f, %.1fx volume.", rsi, volSurge)
}

func valueOr(f map[string]float64, key string, def float64) float64 {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
