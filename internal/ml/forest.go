package ml

import (
	"encoding/json"
	"math"
	"math/rand"
)

// Forest is a bagged ensemble of regression trees over 0/1 labels. Each tree
// votes a leaf probability; the forest averages them.
type Forest struct {
	Trees  []*treeNode `json:"trees"`
	Params treeParams  `json:"params"`
}

// ForestConfig controls forest training.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// FitForest trains a bagged forest with class-balanced sample weights. Each
// tree sees a bootstrap sample and sqrt(features) candidates per split.
func FitForest(x [][]float64, y []int, cfg ForestConfig) *Forest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 8
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 5
	}

	yf := toFloat(y)
	w := classWeights(y)
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	p := treeParams{
		MaxDepth:    cfg.MaxDepth,
		MinLeaf:     cfg.MinLeaf,
		MaxFeatures: int(math.Max(1, math.Sqrt(float64(nFeatures)))),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{Trees: make([]*treeNode, 0, cfg.Trees), Params: p}
	for t := 0; t < cfg.Trees; t++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		f.Trees = append(f.Trees, growTree(x, yf, w, idx, p, rng, 0))
	}
	return f
}

// PredictProb returns the raw (uncalibrated) positive-class probability.
func (f *Forest) PredictProb(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.5
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return clamp01(sum / float64(len(f.Trees)))
}

// Marshal serializes the forest to JSON.
func (f *Forest) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// UnmarshalForest restores a forest from its serialized form.
func UnmarshalForest(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func toFloat(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
