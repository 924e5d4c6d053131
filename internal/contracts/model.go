package contracts

import "time"

// ModelStatus is the lifecycle state of a trained model artifact
type ModelStatus string

const (
	// StatusCandidate 학습 완료, 승격 대기
	StatusCandidate ModelStatus = "CANDIDATE"
	// StatusActive 현재 추론에 사용 중 (동시에 최대 1개)
	StatusActive ModelStatus = "ACTIVE"
	// StatusReverted 과적합 또는 회귀로 강등됨
	StatusReverted ModelStatus = "REVERTED"
)

// EnsembleWeights blends calibrated base-model probabilities.
// Defaults follow the forest/boosting/logistic split used in production.
type EnsembleWeights struct {
	Forest   float64 `json:"forest"`
	Boosting float64 `json:"boosting"`
	Logistic float64 `json:"logistic"`
}

// DefaultEnsembleWeights 기본 앙상블 가중치
func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{Forest: 0.4, Boosting: 0.4, Logistic: 0.2}
}

// TrainingMetrics summarizes one training run. Train/validation scores come
// from the final chronological holdout slice, never from fold selection.
type TrainingMetrics struct {
	TrainScore        float64 `json:"train_score"`
	ValidationScore   float64 `json:"validation_score"`
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1                float64 `json:"f1"`
	TrainingSamples   int     `json:"training_samples"`
	ValidationSamples int     `json:"validation_samples"`
	PositiveRate      float64 `json:"positive_rate"`
}

// ModelArtifact is one immutable versioned trained model: base-model weights,
// calibration parameters, ensemble weights, and training metrics.
// ⭐ SSOT: 모델 수명주기(CANDIDATE → ACTIVE → REVERTED)는 Status 필드로만
// A REVERTED artifact is never reused except as the guard's rollback target.
type ModelArtifact struct {
	ModelID         string            `json:"model_id"`
	SchemaVersion   string            `json:"schema_version"`
	BaseModels      map[string][]byte `json:"base_models"` // algorithm name → serialized weights
	EnsembleWeights EnsembleWeights   `json:"ensemble_weights"`
	Calibration     map[string][]byte `json:"calibration"` // algorithm name → serialized calibrator
	Metrics         TrainingMetrics   `json:"metrics"`
	CreatedAt       time.Time         `json:"created_at"`
	Status          ModelStatus       `json:"status"`
}

// OverfitCheckRecord captures the train/validation gap of one training run.
// At least the last two records are retained to support the
// two-consecutive-flags rollback rule.
type OverfitCheckRecord struct {
	RunID           string    `json:"run_id"`
	ModelID         string    `json:"model_id"`
	TrainScore      float64   `json:"train_score"`
	ValidationScore float64   `json:"validation_score"`
	Delta           float64   `json:"delta"`
	Flagged         bool      `json:"flagged"`
	Timestamp       time.Time `json:"timestamp"`
}
