package ml

import (
	"encoding/json"
	"math"
)

// Logistic is an L2-regularized logistic regression over standardized
// features. Standardization parameters are part of the model so inference
// applies the exact training-time transform.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// LogisticConfig controls logistic regression training.
type LogisticConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// FitLogistic trains logistic regression with full-batch gradient descent
// under class-balanced cross-entropy. Deterministic: no sampling, fixed
// iteration order.
func FitLogistic(x [][]float64, y []int, cfg LogisticConfig) *Logistic {
	if cfg.Epochs <= 0 {
		cfg.Epochs = 300
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.L2 <= 0 {
		cfg.L2 = 1e-3
	}

	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	m := &Logistic{
		Weights: make([]float64, nFeatures),
		Mean:    make([]float64, nFeatures),
		Std:     make([]float64, nFeatures),
	}
	m.fitStandardizer(x)

	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = m.standardize(row)
	}

	// Balanced class weights sum to n, so the same 1/n normalization applies.
	n := float64(len(x))
	w := classWeights(y)
	gradW := make([]float64, nFeatures)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		for i, row := range z {
			err := w[i] * (sigmoid(m.Bias+dot(m.Weights, row)) - float64(y[i]))
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}
		for j := range m.Weights {
			m.Weights[j] -= cfg.LearningRate * (gradW[j]/n + cfg.L2*m.Weights[j])
		}
		m.Bias -= cfg.LearningRate * gradB / n
	}
	return m
}

// PredictProb returns the raw (uncalibrated) positive-class probability.
func (m *Logistic) PredictProb(x []float64) float64 {
	return sigmoid(m.Bias + dot(m.Weights, m.standardize(x)))
}

// Marshal serializes the model to JSON.
func (m *Logistic) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalLogistic restores a model from its serialized form.
func UnmarshalLogistic(data []byte) (*Logistic, error) {
	var m Logistic
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Logistic) fitStandardizer(x [][]float64) {
	n := float64(len(x))
	if n == 0 {
		return
	}
	for _, row := range x {
		for j, v := range row {
			m.Mean[j] += v
		}
	}
	for j := range m.Mean {
		m.Mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - m.Mean[j]
			m.Std[j] += d * d
		}
	}
	for j := range m.Std {
		m.Std[j] = math.Sqrt(m.Std[j] / n)
		if m.Std[j] < 1e-12 {
			m.Std[j] = 1.0 // constant feature contributes nothing
		}
	}
}

func (m *Logistic) standardize(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - m.Mean[j]) / m.Std[j]
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
