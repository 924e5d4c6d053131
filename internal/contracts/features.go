package contracts

import "time"

// FeatureVector is an ordered set of named feature values produced from one
// Observation plus its trailing window.
// Names and Values are parallel slices; order is significant and must match
// the active FeatureSchema at inference time. Never a bare map at the model
// boundary, since map iteration order is not a column order.
type FeatureVector struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Get returns a feature value by name and whether it is present
func (fv *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range fv.Names {
		if n == name {
			return fv.Values[i], true
		}
	}
	return 0, false
}

// AsMap returns the vector as a name → value map (for snapshots and logs)
func (fv *FeatureVector) AsMap() map[string]float64 {
	m := make(map[string]float64, len(fv.Names))
	for i, n := range fv.Names {
		m[n] = fv.Values[i]
	}
	return m
}

// Len returns the number of features
func (fv *FeatureVector) Len() int {
	return len(fv.Names)
}

// FeatureSchema freezes the exact ordered feature list used at training time.
// ⭐ SSOT: 학습/추론 피처 순서는 이 스키마에서만
// Immutable; a new training run creates a new schema version. Training and
// inference must reference the same version; mismatch is a fatal error.
type FeatureSchema struct {
	Version              string    `json:"version"`
	FeatureNames         []string  `json:"feature_names"`
	LookforwardHorizon   int       `json:"lookforward_horizon"`
	LongProfitThreshold  float64   `json:"long_profit_threshold"`
	ShortProfitThreshold float64   `json:"short_profit_threshold"`
	CreatedAt            time.Time `json:"created_at"`
}

// LabeledExample is one training example: a feature vector plus leakage-safe
// long/short targets computed strictly from future bars.
type LabeledExample struct {
	Symbol      string        `json:"symbol"`
	Timestamp   time.Time     `json:"timestamp"`
	Features    FeatureVector `json:"features"`
	TargetLong  int           `json:"target_long"`  // 1 if future max return >= long threshold
	TargetShort int           `json:"target_short"` // 1 if future min return <= -short threshold
}
