package ranking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/edgefactory/internal/contracts"
)

func vector(values map[string]float64) contracts.FeatureVector {
	names := make([]string, 0, len(values))
	vals := make([]float64, 0, len(values))
	for k, v := range values {
		names = append(names, k)
		vals = append(vals, v)
	}
	return contracts.FeatureVector{Names: names, Values: vals}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	s := NewRuleScorer(contracts.ModeConservative)
	fv := vector(map[string]float64{
		"rsi": 25, "vol_surge": 2.5, "ema_bull": 1, "macd_gt": 1, "bb_break_up": 1,
	})

	a := s.Score(fv, contracts.SideLong)
	b := s.Score(fv, contracts.SideLong)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.LessOrEqual(t, a, 10.0)
}

func TestOversoldScoresHigherForLong(t *testing.T) {
	s := NewRuleScorer(contracts.ModeConservative)

	oversold := vector(map[string]float64{"rsi": 20, "vol_surge": 2})
	neutral := vector(map[string]float64{"rsi": 50, "vol_surge": 2})

	assert.Greater(t, s.Score(oversold, contracts.SideLong), s.Score(neutral, contracts.SideLong))
}

func TestOverboughtScoresHigherForShort(t *testing.T) {
	s := NewRuleScorer(contracts.ModeConservative)

	overbought := vector(map[string]float64{"rsi": 85, "vol_surge": 2, "ema_bear": 1})
	neutral := vector(map[string]float64{"rsi": 50, "vol_surge": 2})

	assert.Greater(t, s.Score(overbought, contracts.SideShort), s.Score(neutral, contracts.SideShort))
}

func TestAggressiveModeTriggersEarlier(t *testing.T) {
	// RSI 35: below the aggressive oversold threshold (40), above the
	// conservative one (30).
	fv := vector(map[string]float64{"rsi": 35, "vol_surge": 1})

	conservative := NewRuleScorer(contracts.ModeConservative).Score(fv, contracts.SideLong)
	aggressive := NewRuleScorer(contracts.ModeAggressive).Score(fv, contracts.SideLong)

	assert.Greater(t, aggressive, conservative)
}

func TestEmaCrossOutranksTrendOnly(t *testing.T) {
	s := NewRuleScorer(contracts.ModeConservative)

	cross := vector(map[string]float64{"rsi": 50, "ema_bull": 1, "ema_cross_up": 1})
	trendOnly := vector(map[string]float64{"rsi": 50, "ema_bull": 1})

	assert.Greater(t, s.Score(cross, contracts.SideLong), s.Score(trendOnly, contracts.SideLong))
}

func TestThesisMentionsDominantPattern(t *testing.T) {
	s := NewRuleScorer(contracts.ModeConservative)

	oversold := vector(map[string]float64{"rsi": 22, "vol_surge": 2.1})
	assert.True(t, strings.Contains(s.Thesis(oversold, contracts.SideLong), "oversold"))

	crossover := vector(map[string]float64{"rsi": 50, "ema_cross_up": 1})
	assert.True(t, strings.Contains(s.Thesis(crossover, contracts.SideLong), "crossover"))

	overbought := vector(map[string]float64{"rsi": 88, "vol_surge": 1.5})
	assert.True(t, strings.Contains(s.Thesis(overbought, contracts.SideShort), "overbought"))
}
