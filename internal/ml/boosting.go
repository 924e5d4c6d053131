package ml

import (
	"encoding/json"
	"math"
	"math/rand"
)

// Boosting is a gradient-boosted ensemble of shallow regression trees under
// logistic loss. Each round fits a tree to the residual gradient and adds it
// at a shrunken learning rate.
type Boosting struct {
	Trees        []*treeNode `json:"trees"`
	LearningRate float64     `json:"learning_rate"`
	InitScore    float64     `json:"init_score"` // log-odds of the base rate
}

// BoostingConfig controls boosting training.
type BoostingConfig struct {
	Rounds       int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Subsample    float64
	Seed         int64
}

// FitBoosting trains a gradient-boosted classifier on 0/1 labels with
// class-balanced sample weights on the gradient fits.
func FitBoosting(x [][]float64, y []int, cfg BoostingConfig) *Boosting {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 5
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.Subsample <= 0 || cfg.Subsample > 1 {
		cfg.Subsample = 0.8
	}

	w := classWeights(y)
	base := baseRate(y, w)
	b := &Boosting{
		Trees:        make([]*treeNode, 0, cfg.Rounds),
		LearningRate: cfg.LearningRate,
		InitScore:    logit(base),
	}

	p := treeParams{MaxDepth: cfg.MaxDepth, MinLeaf: cfg.MinLeaf}
	rng := rand.New(rand.NewSource(cfg.Seed))

	raw := make([]float64, len(x))
	for i := range raw {
		raw[i] = b.InitScore
	}

	grad := make([]float64, len(x))
	sampleSize := int(float64(len(x)) * cfg.Subsample)
	if sampleSize < 1 {
		sampleSize = len(x)
	}

	for round := 0; round < cfg.Rounds; round++ {
		// Negative gradient of logistic loss: y - sigmoid(raw).
		for i := range x {
			grad[i] = float64(y[i]) - sigmoid(raw[i])
		}

		idx := rng.Perm(len(x))[:sampleSize]
		tree := growTree(x, grad, w, idx, p, rng, 0)
		b.Trees = append(b.Trees, tree)

		for i := range x {
			raw[i] += cfg.LearningRate * tree.predict(x[i])
		}
	}
	return b
}

// PredictProb returns the raw (uncalibrated) positive-class probability.
func (b *Boosting) PredictProb(x []float64) float64 {
	raw := b.InitScore
	for _, t := range b.Trees {
		raw += b.LearningRate * t.predict(x)
	}
	return sigmoid(raw)
}

// Marshal serializes the boosting model to JSON.
func (b *Boosting) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBoosting restores a boosting model from its serialized form.
func UnmarshalBoosting(data []byte) (*Boosting, error) {
	var b Boosting
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// baseRate is the weight-adjusted positive rate. With balanced class weights
// this sits at 0.5 whenever both classes are present, so boosting starts from
// even log-odds instead of the raw (skewed) base rate.
func baseRate(y []int, w []float64) float64 {
	if len(y) == 0 {
		return 0.5
	}
	var sumW, sumWY float64
	for i, v := range y {
		sumW += w[i]
		sumWY += w[i] * float64(v)
	}
	rate := sumWY / sumW
	// Keep log-odds finite on degenerate label sets.
	return math.Min(math.Max(rate, 1e-6), 1-1e-6)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
