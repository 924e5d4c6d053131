package ml

// Fold is one walk-forward split: train on [TrainStart, TrainEnd), validate on
// [TestStart, TestEnd). Indexes refer to chronologically ordered rows.
type Fold struct {
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// WalkForwardFolds builds k expanding-window folds over n chronological rows.
// The data is cut into k+1 blocks; fold i trains on blocks 0..i and validates
// on block i+1, so validation rows always postdate their training rows.
func WalkForwardFolds(n, k int) []Fold {
	if k < 1 || n < 2*(k+1) {
		return nil
	}
	blockSize := n / (k + 1)
	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		trainEnd := (i + 1) * blockSize
		testEnd := (i + 2) * blockSize
		if i == k-1 {
			testEnd = n
		}
		folds = append(folds, Fold{
			TrainStart: 0,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
	}
	return folds
}

// HoldoutSplit cuts n chronological rows into a training prefix and a
// validation suffix of ratio holdout (0 < holdout < 1). Promotion metrics come
// from this split only, never from fold selection.
func HoldoutSplit(n int, holdout float64) (trainEnd int) {
	if holdout <= 0 || holdout >= 1 {
		holdout = 0.2
	}
	trainEnd = n - int(float64(n)*holdout)
	if trainEnd < 1 {
		trainEnd = 1
	}
	if trainEnd >= n {
		trainEnd = n - 1
	}
	return trainEnd
}
