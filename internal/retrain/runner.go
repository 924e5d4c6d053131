package retrain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/artifact"
	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/guard"
	"github.com/wonny/edgefactory/internal/labeling"
	"github.com/wonny/edgefactory/internal/ml"
	"github.com/wonny/edgefactory/internal/schema"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
	"github.com/wonny/edgefactory/pkg/metrics"
)

// RunResult summarizes one completed retraining cycle.
type RunResult struct {
	Final      State
	ModelID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Runner executes one full retraining cycle: collect bar history, build
// leakage-safe labels, train the ensemble, then gate promotion through the
// overfit guard. Cycles are single-flight: a second Run while one is in
// progress returns immediately.
// ⭐ SSOT: 재학습 파이프라인 실행은 여기서만
type Runner struct {
	cfg     config.LearningConfig
	timeout time.Duration

	provider  contracts.MarketDataProvider
	builder   *labeling.Builder
	extractor FeatureNamer
	registry  *schema.Registry
	trainer   *ml.Trainer
	guard     *guard.Guard
	artifacts contracts.ArtifactStore
	models    *artifact.Manager
	recorder  *metrics.Recorder
	logger    zerolog.Logger

	machine *Machine
	runMu   sync.Mutex

	mu      sync.RWMutex
	lastRun *RunResult
}

// FeatureNamer exposes the canonical feature order frozen at training time.
type FeatureNamer interface {
	FeatureNames() []string
}

// NewRunner wires the training pipeline. recorder may be nil.
func NewRunner(
	cfg config.LearningConfig,
	timeout time.Duration,
	provider contracts.MarketDataProvider,
	builder *labeling.Builder,
	extractor FeatureNamer,
	registry *schema.Registry,
	trainer *ml.Trainer,
	g *guard.Guard,
	artifacts contracts.ArtifactStore,
	models *artifact.Manager,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:       cfg,
		timeout:   timeout,
		provider:  provider,
		builder:   builder,
		extractor: extractor,
		registry:  registry,
		trainer:   trainer,
		guard:     g,
		artifacts: artifacts,
		models:    models,
		recorder:  recorder,
		logger:    log.Component("retrain"),
		machine:   NewMachine(),
	}
}

// State returns the live cycle state.
func (r *Runner) State() (State, time.Time) {
	return r.machine.Current()
}

// LastRun returns the most recent completed cycle, nil before the first.
func (r *Runner) LastRun() *RunResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun
}

// ErrRunInProgress is returned when a cycle is already executing.
var ErrRunInProgress = errors.New("retraining cycle already in progress")

// Run executes one cycle over the given symbol universe. The per-run timeout
// turns an overlong training into a REJECTED outcome rather than a hung
// scheduler.
func (r *Runner) Run(ctx context.Context, symbols []string) (*RunResult, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result := &RunResult{StartedAt: time.Now().UTC()}
	result.Final, result.ModelID, result.Err = r.cycle(ctx, symbols)
	result.FinishedAt = time.Now().UTC()

	r.machine.mustIdle()
	r.mu.Lock()
	r.lastRun = result
	r.mu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordTrainingDuration(result.FinishedAt.Sub(result.StartedAt).Seconds())
		r.recorder.RecordTrainingRun(runOutcomeLabel(result))
	}
	return result, nil
}

func (r *Runner) cycle(ctx context.Context, symbols []string) (State, string, error) {
	if err := r.machine.Transition(StateCollecting); err != nil {
		return StateRejected, "", err
	}

	examples, err := r.collect(ctx, symbols)
	if err != nil {
		r.rejectf("collection failed", err)
		return StateRejected, "", err
	}

	if err := r.machine.Transition(StateTraining); err != nil {
		return StateRejected, "", err
	}

	frozen, err := r.registry.Freeze(
		r.extractor.FeatureNames(),
		r.cfg.LookforwardHorizon,
		r.cfg.LongProfitThreshold,
		r.cfg.ShortProfitThreshold,
	)
	if err != nil {
		r.rejectf("schema freeze failed", err)
		return StateRejected, "", err
	}

	candidate, check, err := r.trainer.Train(ctx, frozen, examples, contracts.SideLong)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.rejectf("training timed out", err)
		} else {
			r.rejectf("training failed", err)
		}
		return StateRejected, "", err
	}
	if err := r.artifacts.SaveArtifact(candidate); err != nil {
		r.rejectf("artifact persist failed", err)
		return StateRejected, candidate.ModelID, err
	}

	if err := r.machine.Transition(StateEvaluating); err != nil {
		return StateRejected, candidate.ModelID, err
	}

	decision, err := r.guard.Evaluate(ctx, candidate, check)
	if err != nil {
		r.rejectf("guard evaluation failed", err)
		return StateRejected, candidate.ModelID, err
	}
	if !decision.Promoted {
		if r.recorder != nil {
			r.recorder.RecordOverfitRejection()
		}
		_ = r.machine.Transition(StateRejected)
		return StateRejected, candidate.ModelID, nil
	}

	// Swap the inference model only after the store-level promotion committed.
	if err := r.models.Activate(candidate.ModelID); err != nil {
		r.rejectf("model activation failed", err)
		return StateRejected, candidate.ModelID, err
	}
	if r.recorder != nil {
		r.recorder.RecordPromotion(check.ValidationScore)
	}
	_ = r.machine.Transition(StatePromoted)
	return StatePromoted, candidate.ModelID, nil
}

// collect pulls full bar history per symbol and builds labeled examples.
// Symbols with too little history are skipped, not fatal.
func (r *Runner) collect(ctx context.Context, symbols []string) ([]contracts.LabeledExample, error) {
	var all []contracts.LabeledExample
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := r.provider.Series(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", symbol, err)
		}
		examples, err := r.builder.Build(bars)
		if err != nil {
			if contracts.IsInsufficientHistory(err) {
				r.logger.Debug().Str("symbol", symbol).Msg("Skipping symbol with short history")
				continue
			}
			return nil, fmt.Errorf("label %s: %w", symbol, err)
		}
		all = append(all, examples...)
	}
	// Splits are time-respecting across the whole universe, so the combined
	// set must be globally chronological.
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].Timestamp.Before(all[b].Timestamp)
	})
	r.logger.Info().
		Int("symbols", len(symbols)).
		Int("examples", len(all)).
		Msg("Collected training examples")
	return all, nil
}

func (r *Runner) rejectf(msg string, err error) {
	r.logger.Warn().Err(err).Msg("Cycle rejected: " + msg)
	_ = r.machine.Transition(StateRejected)
}

func runOutcomeLabel(result *RunResult) string {
	switch {
	case result.Final == StatePromoted:
		return "promoted"
	case errors.Is(result.Err, contracts.ErrTrainingDataInsufficient):
		return "insufficient_data"
	case result.Err != nil:
		return "failed"
	default:
		return "rejected"
	}
}
