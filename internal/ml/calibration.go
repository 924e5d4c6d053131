package ml

import (
	"encoding/json"
	"math"
)

// PlattCalibrator maps raw model scores to calibrated probabilities with the
// sigmoid fit of Platt (1999): p = 1 / (1 + exp(A*s + B)).
// Fit on held-out data, never on the rows the base model trained on.
type PlattCalibrator struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// FitPlatt fits the sigmoid parameters by gradient descent on cross-entropy
// with the Platt target smoothing, which keeps the fit stable on small
// validation sets.
func FitPlatt(scores []float64, y []int) *PlattCalibrator {
	// Identity fallback when there is nothing to fit against.
	if len(scores) == 0 || allSame(y) {
		return &PlattCalibrator{A: -1, B: 0}
	}

	nPos, nNeg := 0.0, 0.0
	for _, v := range y {
		if v == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	// Smoothed targets per Platt.
	tPos := (nPos + 1) / (nPos + 2)
	tNeg := 1 / (nNeg + 2)

	a, b := -1.0, 0.0
	lr := 0.1
	n := float64(len(scores))
	for iter := 0; iter < 2000; iter++ {
		var gradA, gradB float64
		for i, s := range scores {
			target := tNeg
			if y[i] == 1 {
				target = tPos
			}
			p := 1.0 / (1.0 + math.Exp(a*s+b))
			// d(xent)/d(raw) with raw = A*s + B and p = sigmoid(-raw)
			// is (target - p).
			d := target - p
			gradA += d * s
			gradB += d
		}
		a -= lr * gradA / n
		b -= lr * gradB / n
	}
	return &PlattCalibrator{A: a, B: b}
}

// Calibrate maps a raw score to a calibrated probability.
func (c *PlattCalibrator) Calibrate(score float64) float64 {
	return 1.0 / (1.0 + math.Exp(c.A*score+c.B))
}

// Marshal serializes the calibrator to JSON.
func (c *PlattCalibrator) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalPlatt restores a calibrator from its serialized form.
func UnmarshalPlatt(data []byte) (*PlattCalibrator, error) {
	var c PlattCalibrator
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func allSame(y []int) bool {
	for i := 1; i < len(y); i++ {
		if y[i] != y[0] {
			return false
		}
	}
	return true
}
