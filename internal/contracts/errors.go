package contracts

import (
	"errors"
	"fmt"
)

// ErrTrainingDataInsufficient is returned when a training run does not have
// enough labeled examples. Recoverable: the scheduler stays idle and retries
// on the next cadence.
var ErrTrainingDataInsufficient = errors.New("insufficient training data")

// ErrNoActiveModel is returned when inference is requested before any model
// has been promoted. Callers fall back to rule-score-only ranking.
var ErrNoActiveModel = errors.New("no active model artifact")

// InsufficientHistoryError is returned by the feature extractor when the
// trailing window is shorter than the minimum any enabled feature requires.
// Recoverable: callers skip the observation.
type InsufficientHistoryError struct {
	Symbol string
	Need   int
	Got    int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: need %d bars, got %d", e.Symbol, e.Need, e.Got)
}

// SchemaMismatchError is returned when a schema feature name is absent from
// the live feature computation. Fatal for that inference call; alignment
// never reorders or substitutes silently.
type SchemaMismatchError struct {
	SchemaVersion string
	Missing       []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema %s mismatch: missing features %v", e.SchemaVersion, e.Missing)
}

// FeedStoreWriteError wraps a failed outcome-store write. Retryable: losing
// an outcome record degrades future training quality but must never block
// live signal ranking.
type FeedStoreWriteError struct {
	Op  string
	Err error
}

func (e *FeedStoreWriteError) Error() string {
	return fmt.Sprintf("feed store %s failed: %v", e.Op, e.Err)
}

func (e *FeedStoreWriteError) Unwrap() error {
	return e.Err
}

// IsInsufficientHistory reports whether err is an InsufficientHistoryError
func IsInsufficientHistory(err error) bool {
	var target *InsufficientHistoryError
	return errors.As(err, &target)
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError
func IsSchemaMismatch(err error) bool {
	var target *SchemaMismatchError
	return errors.As(err, &target)
}

// IsFeedStoreWrite reports whether err is a FeedStoreWriteError
func IsFeedStoreWrite(err error) bool {
	var target *FeedStoreWriteError
	return errors.As(err, &target)
}
