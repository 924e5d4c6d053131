package ml

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a binary regression tree. Leaves carry the mean
// target of their training rows; trained on 0/1 labels that mean is a class
// probability.
type treeNode struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Value     float64   `json:"v"`
	Leaf      bool      `json:"leaf,omitempty"`
}

// treeParams controls tree growth.
type treeParams struct {
	MaxDepth    int
	MinLeaf     int
	MaxFeatures int // 0 = use all features at every split
}

// growTree fits a variance-reducing regression tree on rows[idx]. Sample
// weights w flow into split scoring and leaf values, so rare-class rows pull
// their weight when the labels are imbalanced.
// With MaxFeatures > 0 each split considers a random feature subset, which is
// what makes bagged trees decorrelate.
func growTree(x [][]float64, y, w []float64, idx []int, p treeParams, rng *rand.Rand, depth int) *treeNode {
	mean := meanAt(y, w, idx)
	if depth >= p.MaxDepth || len(idx) < 2*p.MinLeaf || pure(y, idx) {
		return &treeNode{Value: mean, Leaf: true}
	}

	feat, thr, ok := bestSplit(x, y, w, idx, p, rng)
	if !ok {
		return &treeNode{Value: mean, Leaf: true}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.MinLeaf || len(right) < p.MinLeaf {
		return &treeNode{Value: mean, Leaf: true}
	}

	return &treeNode{
		Feature:   feat,
		Threshold: thr,
		Value:     mean,
		Left:      growTree(x, y, w, left, p, rng, depth+1),
		Right:     growTree(x, y, w, right, p, rng, depth+1),
	}
}

// bestSplit searches candidate features for the split that minimizes weighted
// child variance. Thresholds come from midpoints of sorted unique values.
func bestSplit(x [][]float64, y, w []float64, idx []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(x[idx[0]])
	candidates := featureCandidates(nFeatures, p.MaxFeatures, rng)

	bestFeat, bestThr := -1, 0.0
	bestScore := sse(y, w, idx)
	found := false

	vals := make([]float64, len(idx))
	for _, feat := range candidates {
		for i, row := range idx {
			vals[i] = x[row][feat]
		}
		order := make([]int, len(idx))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return vals[order[a]] < vals[order[b]] })

		// Incremental split scan: maintain weighted left/right sums.
		var wL, wR, sumL, sumR, sqL, sqR float64
		nL, nR := 0, len(idx)
		for _, o := range order {
			yi, wi := y[idx[o]], w[idx[o]]
			wR += wi
			sumR += wi * yi
			sqR += wi * yi * yi
		}
		for k := 0; k < len(order)-1; k++ {
			yi, wi := y[idx[order[k]]], w[idx[order[k]]]
			wL += wi
			sumL += wi * yi
			sqL += wi * yi * yi
			wR -= wi
			sumR -= wi * yi
			sqR -= wi * yi * yi
			nL++
			nR--

			v, next := vals[order[k]], vals[order[k+1]]
			if v == next {
				continue
			}
			if nL < p.MinLeaf || nR < p.MinLeaf || wL <= 0 || wR <= 0 {
				continue
			}
			score := (sqL - sumL*sumL/wL) + (sqR - sumR*sumR/wR)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeat = feat
				bestThr = (v + next) / 2
				found = true
			}
		}
	}
	return bestFeat, bestThr, found
}

// featureCandidates returns the feature indexes to consider at a split.
func featureCandidates(nFeatures, maxFeatures int, rng *rand.Rand) []int {
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	if maxFeatures <= 0 || maxFeatures >= nFeatures {
		return all
	}
	rng.Shuffle(nFeatures, func(a, b int) { all[a], all[b] = all[b], all[a] })
	sub := all[:maxFeatures]
	sort.Ints(sub)
	return sub
}

// predict walks the tree for one row.
func (n *treeNode) predict(x []float64) float64 {
	node := n
	for !node.Leaf && node.Left != nil && node.Right != nil {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func meanAt(y, w []float64, idx []int) float64 {
	var sumW, sumWY float64
	for _, i := range idx {
		sumW += w[i]
		sumWY += w[i] * y[i]
	}
	if sumW == 0 {
		return 0
	}
	return sumWY / sumW
}

func sse(y, w []float64, idx []int) float64 {
	mean := meanAt(y, w, idx)
	var ss float64
	for _, i := range idx {
		d := y[i] - mean
		ss += w[i] * d * d
	}
	return ss
}

func pure(y []float64, idx []int) bool {
	for i := 1; i < len(idx); i++ {
		if y[idx[i]] != y[idx[0]] {
			return false
		}
	}
	return true
}
