package ml

import (
	"context"
	"math"
	"math/rand"
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

func testLearningConfig() config.LearningConfig {
	return config.LearningConfig{
		MinTrainSamples: 100,
		Folds:           3,
		HoldoutRatio:    0.2,
		MaxTrainValGap:  0.20,
		ForestTrees:     20,
		BoostingRounds:  20,
		Seed:            42,
	}
}

// learnableExamples builds a dataset where target depends on two features
// through a simple threshold rule plus noise, so all three base models can
// find signal.
func learnableExamples(n int, seed int64, names []string) ([]contracts.LabeledExample, *contracts.FeatureSchema) {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	examples := make([]contracts.LabeledExample, n)
	for i := 0; i < n; i++ {
		a := rng.Float64()
		b := rng.Float64()
		c := rng.Float64()
		label := 0
		if a > 0.6 && b < 0.5 {
			label = 1
		}
		if rng.Float64() < 0.05 { // 5% label noise
			label = 1 - label
		}
		examples[i] = contracts.LabeledExample{
			Symbol:    "TEST",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Features: contracts.FeatureVector{
				Names:  names,
				Values: []float64{a, b, c},
			},
			TargetLong:  label,
			TargetShort: 1 - label,
		}
	}
	s := &contracts.FeatureSchema{
		Version:            "test-v1",
		FeatureNames:       names,
		LookforwardHorizon: 5,
	}
	return examples, s
}

func TestTrainRejectsInsufficientData(t *testing.T) {
	tr := NewTrainer(testLearningConfig(), testLogger())
	examples, s := learnableExamples(50, 1, []string{"a", "b", "c"})

	_, _, err := tr.Train(context.Background(), s, examples, contracts.SideLong)
	require.ErrorIs(t, err, contracts.ErrTrainingDataInsufficient)
}

func TestTrainProducesCandidate(t *testing.T) {
	tr := NewTrainer(testLearningConfig(), testLogger())
	examples, s := learnableExamples(600, 1, []string{"a", "b", "c"})

	artifact, check, err := tr.Train(context.Background(), s, examples, contracts.SideLong)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusCandidate, artifact.Status)
	assert.Equal(t, "test-v1", artifact.SchemaVersion)
	assert.NotEmpty(t, artifact.ModelID)
	assert.Len(t, artifact.BaseModels, 3)
	assert.Equal(t, contracts.DefaultEnsembleWeights(), artifact.EnsembleWeights)

	// Learnable pattern: the holdout score clears a coin flip comfortably.
	assert.Greater(t, artifact.Metrics.ValidationScore, 0.7)
	assert.Greater(t, artifact.Metrics.TrainingSamples, 0)
	assert.Greater(t, artifact.Metrics.ValidationSamples, 0)

	assert.Equal(t, artifact.ModelID, check.ModelID)
	assert.InDelta(t, check.TrainScore-check.ValidationScore, check.Delta, 1e-12)
	assert.Equal(t, check.Delta > 0.20, check.Flagged)
}

func TestTrainDeterministicWithSeed(t *testing.T) {
	cfg := testLearningConfig()
	examples, s := learnableExamples(400, 7, []string{"a", "b", "c"})

	a, _, err := NewTrainer(cfg, testLogger()).Train(context.Background(), s, examples, contracts.SideLong)
	require.NoError(t, err)
	b, _, err := NewTrainer(cfg, testLogger()).Train(context.Background(), s, examples, contracts.SideLong)
	require.NoError(t, err)

	assert.Equal(t, a.BaseModels, b.BaseModels)
	assert.Equal(t, a.Calibration, b.Calibration)
	assert.Equal(t, a.Metrics.ValidationScore, b.Metrics.ValidationScore)
}

func TestTrainArtifactRoundTrip(t *testing.T) {
	tr := NewTrainer(testLearningConfig(), testLogger())
	examples, s := learnableExamples(400, 3, []string{"a", "b", "c"})

	artifact, _, err := tr.Train(context.Background(), s, examples, contracts.SideLong)
	require.NoError(t, err)

	e, err := LoadEnsemble(artifact)
	require.NoError(t, err)

	probHigh := e.PredictProb([]float64{0.9, 0.1, 0.5})
	probLow := e.PredictProb([]float64{0.1, 0.9, 0.5})
	assert.Greater(t, probHigh, probLow)
	assert.GreaterOrEqual(t, probHigh, 0.0)
	assert.LessOrEqual(t, probHigh, 1.0)
}

func TestTrainHonorsContextCancel(t *testing.T) {
	tr := NewTrainer(testLearningConfig(), testLogger())
	examples, s := learnableExamples(400, 3, []string{"a", "b", "c"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := tr.Train(ctx, s, examples, contracts.SideLong)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPlattCalibrationMatchesEmpiricalRate(t *testing.T) {
	// Raw scores systematically overconfident: true rate for score 0.9 is 0.6,
	// for score 0.1 is 0.4. Calibration should pull both toward reality.
	rng := rand.New(rand.NewSource(11))
	var scores []float64
	var y []int
	for i := 0; i < 2000; i++ {
		if i%2 == 0 {
			scores = append(scores, 0.9)
			y = append(y, boolToInt(rng.Float64() < 0.6))
		} else {
			scores = append(scores, 0.1)
			y = append(y, boolToInt(rng.Float64() < 0.4))
		}
	}

	c := FitPlatt(scores, y)
	assert.InDelta(t, 0.6, c.Calibrate(0.9), 0.1)
	assert.InDelta(t, 0.4, c.Calibrate(0.1), 0.1)
}

func TestEnsembleCalibratedOnSubgroups(t *testing.T) {
	// Known conditional rates: 60% positive when the first feature is high,
	// 20% otherwise. The trained ensemble's mean probability on each subgroup
	// should sit near that subgroup's empirical rate.
	rng := rand.New(rand.NewSource(17))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"a", "b", "c"}
	examples := make([]contracts.LabeledExample, 1500)
	for i := range examples {
		a := rng.Float64()
		rate := 0.2
		if a > 0.7 {
			rate = 0.6
		}
		label := boolToInt(rng.Float64() < rate)
		examples[i] = contracts.LabeledExample{
			Symbol:    "TEST",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Features: contracts.FeatureVector{
				Names:  names,
				Values: []float64{a, rng.Float64(), rng.Float64()},
			},
			TargetLong:  label,
			TargetShort: 1 - label,
		}
	}
	s := &contracts.FeatureSchema{Version: "test-v1", FeatureNames: names, LookforwardHorizon: 5}

	tr := NewTrainer(testLearningConfig(), testLogger())
	artifact, _, err := tr.Train(context.Background(), s, examples, contracts.SideLong)
	require.NoError(t, err)
	e, err := LoadEnsemble(artifact)
	require.NoError(t, err)

	for _, group := range []struct {
		name string
		in   func(a float64) bool
	}{
		{"high", func(a float64) bool { return a > 0.7 }},
		{"low", func(a float64) bool { return a <= 0.7 }},
	} {
		var sumProb float64
		count, pos := 0, 0
		for i := range examples {
			if !group.in(examples[i].Features.Values[0]) {
				continue
			}
			sumProb += e.PredictProb(examples[i].Features.Values)
			pos += examples[i].TargetLong
			count++
		}
		require.Greater(t, count, 0, group.name)
		empirical := float64(pos) / float64(count)
		assert.InDelta(t, empirical, sumProb/float64(count), 0.1, group.name)
	}
}

func TestPlattDegenerateLabelsFallsBack(t *testing.T) {
	c := FitPlatt([]float64{0.2, 0.8}, []int{1, 1})
	// Identity-shaped fallback stays monotone in the score.
	assert.Greater(t, c.Calibrate(0.8), c.Calibrate(0.2))
}

func TestWalkForwardFoldsAreChronological(t *testing.T) {
	folds := WalkForwardFolds(120, 5)
	require.Len(t, folds, 5)
	for i, f := range folds {
		assert.Equal(t, 0, f.TrainStart)
		assert.Equal(t, f.TrainEnd, f.TestStart, "validation must start where training ends")
		assert.Greater(t, f.TestEnd, f.TestStart)
		if i > 0 {
			assert.Greater(t, f.TrainEnd, folds[i-1].TrainEnd)
		}
	}
	assert.Equal(t, 120, folds[4].TestEnd)
}

func TestWalkForwardFoldsTooFewRows(t *testing.T) {
	assert.Nil(t, WalkForwardFolds(5, 5))
}

func TestHoldoutSplit(t *testing.T) {
	assert.Equal(t, 80, HoldoutSplit(100, 0.2))
	assert.Equal(t, 1, HoldoutSplit(2, 0.9))
	// Invalid ratio falls back to 0.2.
	assert.Equal(t, 80, HoldoutSplit(100, 1.5))
}

func TestLogisticLearnsSeparablePattern(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var x [][]float64
	var y []int
	for i := 0; i < 500; i++ {
		a := rng.NormFloat64()
		b := rng.NormFloat64()
		x = append(x, []float64{a, b})
		y = append(y, boolToInt(a-b > 0))
	}

	m := FitLogistic(x, y, LogisticConfig{})
	assert.Greater(t, m.PredictProb([]float64{2, -2}), 0.8)
	assert.Less(t, m.PredictProb([]float64{-2, 2}), 0.2)
}

func TestRareClassNotCollapsedToMajority(t *testing.T) {
	// ~5% positives, concentrated where the first feature is high. Without
	// balanced class weighting every learner predicts the majority class on
	// every row and never surfaces a positive.
	rng := rand.New(rand.NewSource(21))
	var x [][]float64
	var y []int
	for i := 0; i < 1000; i++ {
		a := rng.Float64()
		x = append(x, []float64{a, rng.Float64()})
		label := 0
		if a > 0.9 && rng.Float64() < 0.5 {
			label = 1
		}
		y = append(y, label)
	}

	models := map[string]interface{ PredictProb([]float64) float64 }{
		"forest":   FitForest(x, y, ForestConfig{Trees: 30, Seed: 3}),
		"boosting": FitBoosting(x, y, BoostingConfig{Rounds: 40, Seed: 3}),
		"logistic": FitLogistic(x, y, LogisticConfig{}),
	}
	for name, m := range models {
		positives := 0
		for _, row := range x {
			if m.PredictProb(row) > 0.5 {
				positives++
			}
		}
		assert.Greater(t, positives, 0, "%s predicts no row positive", name)
		assert.Greater(t, m.PredictProb([]float64{0.97, 0.5}), 0.5, name)
		assert.Greater(t, m.PredictProb([]float64{0.97, 0.5}), m.PredictProb([]float64{0.3, 0.5}), name)
	}
}

func TestForestProbabilitiesBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	var x [][]float64
	var y []int
	for i := 0; i < 300; i++ {
		a := rng.Float64()
		x = append(x, []float64{a, rng.Float64()})
		y = append(y, boolToInt(a > 0.5))
	}

	f := FitForest(x, y, ForestConfig{Trees: 15, Seed: 1})
	for _, row := range x {
		p := f.PredictProb(row)
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Greater(t, f.PredictProb([]float64{0.95, 0.5}), f.PredictProb([]float64{0.05, 0.5}))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
