package ml

import (
	"fmt"

	"github.com/wonny/edgefactory/internal/contracts"
)

// Base-model names used as keys in artifact BaseModels/Calibration maps.
const (
	ModelForest   = "random_forest"
	ModelBoosting = "gradient_boosting"
	ModelLogistic = "logistic_regression"
)

// Ensemble blends the three calibrated base models with fixed weights.
// ⭐ SSOT: 앙상블 추론은 여기서만
type Ensemble struct {
	forest   *Forest
	boosting *Boosting
	logistic *Logistic

	calibrators map[string]*PlattCalibrator
	weights     contracts.EnsembleWeights
}

// PredictProb returns the weighted calibrated probability for one aligned
// feature row.
func (e *Ensemble) PredictProb(x []float64) float64 {
	pf := e.calibrate(ModelForest, e.forest.PredictProb(x))
	pb := e.calibrate(ModelBoosting, e.boosting.PredictProb(x))
	pl := e.calibrate(ModelLogistic, e.logistic.PredictProb(x))

	w := e.weights
	total := w.Forest + w.Boosting + w.Logistic
	if total == 0 {
		w = contracts.DefaultEnsembleWeights()
		total = w.Forest + w.Boosting + w.Logistic
	}
	return (w.Forest*pf + w.Boosting*pb + w.Logistic*pl) / total
}

func (e *Ensemble) calibrate(name string, raw float64) float64 {
	if c, ok := e.calibrators[name]; ok {
		return c.Calibrate(raw)
	}
	return raw
}

// Serialize packs the ensemble's base models and calibrators into artifact
// byte maps.
func (e *Ensemble) Serialize() (base map[string][]byte, calib map[string][]byte, err error) {
	base = make(map[string][]byte, 3)
	calib = make(map[string][]byte, 3)

	if base[ModelForest], err = e.forest.Marshal(); err != nil {
		return nil, nil, fmt.Errorf("ml: marshal forest: %w", err)
	}
	if base[ModelBoosting], err = e.boosting.Marshal(); err != nil {
		return nil, nil, fmt.Errorf("ml: marshal boosting: %w", err)
	}
	if base[ModelLogistic], err = e.logistic.Marshal(); err != nil {
		return nil, nil, fmt.Errorf("ml: marshal logistic: %w", err)
	}
	for name, c := range e.calibrators {
		b, err := c.Marshal()
		if err != nil {
			return nil, nil, fmt.Errorf("ml: marshal calibrator %s: %w", name, err)
		}
		calib[name] = b
	}
	return base, calib, nil
}

// LoadEnsemble restores an ensemble from a stored artifact.
func LoadEnsemble(artifact *contracts.ModelArtifact) (*Ensemble, error) {
	e := &Ensemble{
		calibrators: make(map[string]*PlattCalibrator),
		weights:     artifact.EnsembleWeights,
	}

	var err error
	if e.forest, err = UnmarshalForest(artifact.BaseModels[ModelForest]); err != nil {
		return nil, fmt.Errorf("ml: load forest from %s: %w", artifact.ModelID, err)
	}
	if e.boosting, err = UnmarshalBoosting(artifact.BaseModels[ModelBoosting]); err != nil {
		return nil, fmt.Errorf("ml: load boosting from %s: %w", artifact.ModelID, err)
	}
	if e.logistic, err = UnmarshalLogistic(artifact.BaseModels[ModelLogistic]); err != nil {
		return nil, fmt.Errorf("ml: load logistic from %s: %w", artifact.ModelID, err)
	}
	for name, raw := range artifact.Calibration {
		c, err := UnmarshalPlatt(raw)
		if err != nil {
			return nil, fmt.Errorf("ml: load calibrator %s from %s: %w", name, artifact.ModelID, err)
		}
		e.calibrators[name] = c
	}
	return e, nil
}
