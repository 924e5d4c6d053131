package ml

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Trainer fits the three-model ensemble on labeled examples and emits a
// CANDIDATE artifact plus the overfit-check record for that run.
// ⭐ SSOT: 모델 학습 파이프라인은 여기서만
//
// Split discipline: the chronological holdout suffix is reserved for the
// promotion decision. Base models never see it; calibrators fit on a
// calibration block carved from the end of the training prefix.
type Trainer struct {
	cfg    config.LearningConfig
	logger zerolog.Logger
}

// NewTrainer creates a trainer from the learning configuration.
func NewTrainer(cfg config.LearningConfig, log *logger.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: log.Component("ml")}
}

// Train runs one full training pass for one side. Examples must be in
// chronological order. With the same examples, schema and seed the result is
// bit-identical across runs.
func (t *Trainer) Train(ctx context.Context, s *contracts.FeatureSchema, examples []contracts.LabeledExample, side contracts.Side) (*contracts.ModelArtifact, *contracts.OverfitCheckRecord, error) {
	data, err := BuildDataset(s, examples, side)
	if err != nil {
		return nil, nil, err
	}
	if data.Len() < t.cfg.MinTrainSamples {
		t.logger.Warn().
			Int("samples", data.Len()).
			Int("required", t.cfg.MinTrainSamples).
			Msg("Not enough samples to train")
		return nil, nil, contracts.ErrTrainingDataInsufficient
	}

	// Final chronological holdout: promotion metrics come from here only.
	holdoutStart := HoldoutSplit(data.Len(), t.cfg.HoldoutRatio)
	trainSet := data.Slice(0, holdoutStart)
	holdout := data.Slice(holdoutStart, data.Len())

	// Walk-forward CV over the training prefix, for diagnostics.
	if folds := WalkForwardFolds(trainSet.Len(), t.cfg.Folds); len(folds) > 0 {
		cv := t.crossValidate(ctx, trainSet, folds)
		t.logger.Debug().
			Float64("cv_score", cv).
			Int("folds", len(folds)).
			Msg("Walk-forward cross-validation")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Calibration block: the tail of the training prefix, after the rows the
	// base models fit on.
	calibStart := HoldoutSplit(trainSet.Len(), t.cfg.HoldoutRatio)
	fitSet := trainSet.Slice(0, calibStart)
	calibSet := trainSet.Slice(calibStart, trainSet.Len())

	ensemble := t.fit(fitSet, calibSet)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	trainScore := accuracy(ensemble, fitSet)
	valScore := accuracy(ensemble, holdout)
	precision, recall, f1 := prf(ensemble, holdout)

	base, calib, err := ensemble.Serialize()
	if err != nil {
		return nil, nil, err
	}

	artifact := &contracts.ModelArtifact{
		ModelID:         uuid.NewString(),
		SchemaVersion:   s.Version,
		BaseModels:      base,
		EnsembleWeights: contracts.DefaultEnsembleWeights(),
		Calibration:     calib,
		Metrics: contracts.TrainingMetrics{
			TrainScore:        trainScore,
			ValidationScore:   valScore,
			Precision:         precision,
			Recall:            recall,
			F1:                f1,
			TrainingSamples:   fitSet.Len(),
			ValidationSamples: holdout.Len(),
			PositiveRate:      data.PositiveRate(),
		},
		CreatedAt: time.Now().UTC(),
		Status:    contracts.StatusCandidate,
	}

	delta := trainScore - valScore
	check := &contracts.OverfitCheckRecord{
		RunID:           uuid.NewString(),
		ModelID:         artifact.ModelID,
		TrainScore:      trainScore,
		ValidationScore: valScore,
		Delta:           delta,
		Flagged:         delta > t.cfg.MaxTrainValGap,
		Timestamp:       time.Now().UTC(),
	}

	t.logger.Info().
		Str("model_id", artifact.ModelID).
		Str("side", string(side)).
		Float64("train_score", trainScore).
		Float64("validation_score", valScore).
		Float64("delta", delta).
		Bool("overfit_flag", check.Flagged).
		Msg("Training run complete")
	return artifact, check, nil
}

// fit trains the three base models on fitSet and their Platt calibrators on
// calibSet.
func (t *Trainer) fit(fitSet, calibSet *Dataset) *Ensemble {
	forest := FitForest(fitSet.X, fitSet.Y, ForestConfig{
		Trees: t.cfg.ForestTrees,
		Seed:  t.cfg.Seed,
	})
	boosting := FitBoosting(fitSet.X, fitSet.Y, BoostingConfig{
		Rounds: t.cfg.BoostingRounds,
		Seed:   t.cfg.Seed + 1,
	})
	logistic := FitLogistic(fitSet.X, fitSet.Y, LogisticConfig{})

	e := &Ensemble{
		forest:      forest,
		boosting:    boosting,
		logistic:    logistic,
		calibrators: make(map[string]*PlattCalibrator, 3),
		weights:     contracts.DefaultEnsembleWeights(),
	}
	if calibSet.Len() > 0 {
		e.calibrators[ModelForest] = fitCalibrator(forest.PredictProb, calibSet)
		e.calibrators[ModelBoosting] = fitCalibrator(boosting.PredictProb, calibSet)
		e.calibrators[ModelLogistic] = fitCalibrator(logistic.PredictProb, calibSet)
	}
	return e
}

// crossValidate returns the mean holdout accuracy across walk-forward folds.
func (t *Trainer) crossValidate(ctx context.Context, data *Dataset, folds []Fold) float64 {
	var sum float64
	done := 0
	for _, f := range folds {
		if ctx.Err() != nil {
			break
		}
		fit := data.Slice(f.TrainStart, f.TrainEnd)
		test := data.Slice(f.TestStart, f.TestEnd)
		if fit.Len() == 0 || test.Len() == 0 {
			continue
		}
		e := t.fit(fit, &Dataset{})
		sum += accuracy(e, test)
		done++
	}
	if done == 0 {
		return 0
	}
	return sum / float64(done)
}

func fitCalibrator(predict func([]float64) float64, calibSet *Dataset) *PlattCalibrator {
	scores := make([]float64, calibSet.Len())
	for i, row := range calibSet.X {
		scores[i] = predict(row)
	}
	return FitPlatt(scores, calibSet.Y)
}

func accuracy(e *Ensemble, d *Dataset) float64 {
	if d.Len() == 0 {
		return 0
	}
	correct := 0
	for i, row := range d.X {
		pred := 0
		if e.PredictProb(row) >= 0.5 {
			pred = 1
		}
		if pred == d.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(d.Len())
}

func prf(e *Ensemble, d *Dataset) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i, row := range d.X {
		pred := e.PredictProb(row) >= 0.5
		actual := d.Y[i] == 1
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && actual:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
