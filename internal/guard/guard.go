package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Decision is the guard's verdict for one candidate.
type Decision struct {
	Promoted        bool
	ModelID         string
	ActiveModelID   string // ACTIVE after the decision
	RollbackModelID string // previous ACTIVE retained as rollback target, "" when none
	Delta           float64
	PreviousDelta   float64
}

// Guard gates CANDIDATE artifacts into the ACTIVE slot and auto-reverts on
// sustained overfit.
// ⭐ SSOT: 모델 승격/강등 결정은 여기서만
//
// Rule: a candidate whose train/validation gap exceeds the threshold on this
// run AND the immediately preceding run is refused and marked REVERTED; the
// existing ACTIVE artifact stays untouched. A single flagged run still
// promotes: one noisy run is tolerated, sustained degradation is not.
type Guard struct {
	store     contracts.ArtifactStore
	history   contracts.OverfitHistory
	publisher contracts.EventPublisher
	maxGap    float64
	logger    zerolog.Logger
}

// New creates an overfit guard. maxGap is the train-validation score gap above
// which a run is flagged.
func New(store contracts.ArtifactStore, history contracts.OverfitHistory, publisher contracts.EventPublisher, maxGap float64, log *logger.Logger) *Guard {
	return &Guard{
		store:     store,
		history:   history,
		publisher: publisher,
		maxGap:    maxGap,
		logger:    log.Component("guard"),
	}
}

// Evaluate appends the run's check record, then either promotes the candidate
// or reverts it. The check record is appended before the decision so the next
// run always sees this run's flag regardless of outcome.
func (g *Guard) Evaluate(ctx context.Context, candidate *contracts.ModelArtifact, check *contracts.OverfitCheckRecord) (*Decision, error) {
	if candidate.Status != contracts.StatusCandidate {
		return nil, fmt.Errorf("guard: model %s is %s, only CANDIDATE can be evaluated",
			candidate.ModelID, candidate.Status)
	}
	if check.ModelID != candidate.ModelID {
		return nil, fmt.Errorf("guard: check record %s belongs to model %s, not %s",
			check.RunID, check.ModelID, candidate.ModelID)
	}

	previous, err := g.history.LastN(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("guard: load check history: %w", err)
	}
	if err := g.history.Append(ctx, *check); err != nil {
		return nil, fmt.Errorf("guard: append check record: %w", err)
	}

	activeID, err := g.store.ActiveModelID()
	if err != nil {
		return nil, fmt.Errorf("guard: read active pointer: %w", err)
	}

	prevFlagged := len(previous) == 1 && previous[0].Flagged
	prevDelta := 0.0
	if len(previous) == 1 {
		prevDelta = previous[0].Delta
	}

	if check.Flagged && prevFlagged {
		return g.revert(candidate, check, activeID, prevDelta)
	}
	return g.promote(candidate, check, activeID, prevDelta)
}

// revert refuses promotion: candidate becomes REVERTED, ACTIVE is untouched.
func (g *Guard) revert(candidate *contracts.ModelArtifact, check *contracts.OverfitCheckRecord, activeID string, prevDelta float64) (*Decision, error) {
	if err := g.store.UpdateStatus(candidate.ModelID, contracts.StatusReverted); err != nil {
		return nil, fmt.Errorf("guard: mark %s reverted: %w", candidate.ModelID, err)
	}

	g.publisher.Publish(&contracts.ModelRejectedOverfit{
		ModelID:       candidate.ModelID,
		ActiveModelID: activeID,
		Delta:         check.Delta,
		PreviousDelta: prevDelta,
		Timestamp:     time.Now().UTC(),
	})

	g.logger.Warn().
		Str("model_id", candidate.ModelID).
		Str("active_model_id", activeID).
		Float64("delta", check.Delta).
		Float64("previous_delta", prevDelta).
		Msg("Candidate rejected: overfit on two consecutive runs")

	return &Decision{
		Promoted:      false,
		ModelID:       candidate.ModelID,
		ActiveModelID: activeID,
		Delta:         check.Delta,
		PreviousDelta: prevDelta,
	}, nil
}

// promote activates the candidate and retains the previous ACTIVE artifact as
// the rollback target. The active pointer swap is last so a crash mid-promote
// leaves the previous ACTIVE in place.
func (g *Guard) promote(candidate *contracts.ModelArtifact, check *contracts.OverfitCheckRecord, previousActiveID string, prevDelta float64) (*Decision, error) {
	if err := g.store.UpdateStatus(candidate.ModelID, contracts.StatusActive); err != nil {
		return nil, fmt.Errorf("guard: activate %s: %w", candidate.ModelID, err)
	}
	if err := g.store.SetActiveModelID(candidate.ModelID); err != nil {
		return nil, fmt.Errorf("guard: set active pointer to %s: %w", candidate.ModelID, err)
	}
	if previousActiveID != "" && previousActiveID != candidate.ModelID {
		// Rollback target: demoted but kept on disk.
		if err := g.store.UpdateStatus(previousActiveID, contracts.StatusReverted); err != nil {
			return nil, fmt.Errorf("guard: demote previous active %s: %w", previousActiveID, err)
		}
	}

	g.publisher.Publish(&contracts.ModelPromoted{
		ModelID:         candidate.ModelID,
		SchemaVersion:   candidate.SchemaVersion,
		PreviousModelID: previousActiveID,
		ValidationScore: check.ValidationScore,
		TrainScore:      check.TrainScore,
		Timestamp:       time.Now().UTC(),
	})

	g.logger.Info().
		Str("model_id", candidate.ModelID).
		Str("previous_active", previousActiveID).
		Float64("validation_score", check.ValidationScore).
		Bool("flagged_once", check.Flagged).
		Msg("Candidate promoted to ACTIVE")

	return &Decision{
		Promoted:        true,
		ModelID:         candidate.ModelID,
		ActiveModelID:   candidate.ModelID,
		RollbackModelID: previousActiveID,
		Delta:           check.Delta,
		PreviousDelta:   prevDelta,
	}, nil
}
