package ml

import (
	"fmt"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/schema"
)

// Dataset is a design matrix with binary labels, rows in chronological order.
type Dataset struct {
	X [][]float64
	Y []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.X) }

// PositiveRate returns the fraction of rows with label 1.
func (d *Dataset) PositiveRate() float64 {
	if len(d.Y) == 0 {
		return 0
	}
	pos := 0
	for _, y := range d.Y {
		pos += y
	}
	return float64(pos) / float64(len(d.Y))
}

// Slice returns the rows in [from, to). The backing arrays are shared.
func (d *Dataset) Slice(from, to int) *Dataset {
	return &Dataset{X: d.X[from:to], Y: d.Y[from:to]}
}

// classWeights returns per-row weights that give each class half the total
// weight regardless of frequency: n/(2*n_pos) for positives, n/(2*n_neg) for
// negatives. Profitable-move labels are rare, so unweighted fits collapse to
// the majority class. Uniform weights when one class is absent.
func classWeights(y []int) []float64 {
	w := make([]float64, len(y))
	pos := 0
	for _, v := range y {
		pos += v
	}
	neg := len(y) - pos
	if pos == 0 || neg == 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	n := float64(len(y))
	wPos := n / (2 * float64(pos))
	wNeg := n / (2 * float64(neg))
	for i, v := range y {
		if v == 1 {
			w[i] = wPos
		} else {
			w[i] = wNeg
		}
	}
	return w
}

// BuildDataset aligns labeled examples against a frozen schema and selects the
// long or short target. Examples must already be in chronological order.
func BuildDataset(s *contracts.FeatureSchema, examples []contracts.LabeledExample, side contracts.Side) (*Dataset, error) {
	d := &Dataset{
		X: make([][]float64, 0, len(examples)),
		Y: make([]int, 0, len(examples)),
	}
	for i := range examples {
		row, err := schema.Align(s, examples[i].Features)
		if err != nil {
			return nil, fmt.Errorf("ml: align example %s@%s: %w",
				examples[i].Symbol, examples[i].Timestamp.Format("2006-01-02"), err)
		}
		y := examples[i].TargetLong
		if side == contracts.SideShort {
			y = examples[i].TargetShort
		}
		d.X = append(d.X, row)
		d.Y = append(d.Y, y)
	}
	return d, nil
}
