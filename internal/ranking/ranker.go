package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/artifact"
	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/features"
	"github.com/wonny/edgefactory/internal/schema"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
	"github.com/wonny/edgefactory/pkg/metrics"
)

// Ranker is the inference entry point: it turns the latest bars of each
// requested symbol into ranked SignalRecords, blending the deterministic rule
// score with the ACTIVE ensemble's calibrated probability.
// ⭐ SSOT: 시그널 랭킹은 여기서만
//
// Cold start: with no ACTIVE model the ML probability is a neutral 0.5, so
// ranking degrades to rule-only ordering instead of failing.
type Ranker struct {
	cfg        config.RankingConfig
	minHistory int

	provider  contracts.MarketDataProvider
	extractor *features.Extractor
	models    *artifact.Manager
	store     contracts.SignalStore
	publisher contracts.EventPublisher
	recorder  *metrics.Recorder
	logger    zerolog.Logger
}

// NewRanker wires the inference path. recorder may be nil.
func NewRanker(
	cfg config.RankingConfig,
	minHistory int,
	provider contracts.MarketDataProvider,
	extractor *features.Extractor,
	models *artifact.Manager,
	store contracts.SignalStore,
	publisher contracts.EventPublisher,
	recorder *metrics.Recorder,
	log *logger.Logger,
) *Ranker {
	return &Ranker{
		cfg:        cfg,
		minHistory: minHistory,
		provider:   provider,
		extractor:  extractor,
		models:     models,
		store:      store,
		publisher:  publisher,
		recorder:   recorder,
		logger:     log.Component("ranking"),
	}
}

// RankSignals evaluates both sides for every symbol and returns the records
// ordered by weighted score, highest first. A failure on one symbol is logged
// and skipped; it never aborts the whole cycle. Every returned record has
// already been appended to the feedback store; the top N are also published
// as SignalEmitted events.
func (r *Ranker) RankSignals(ctx context.Context, symbols []string, mode contracts.RankMode) ([]contracts.SignalRecord, error) {
	if mode != contracts.ModeConservative && mode != contracts.ModeAggressive {
		mode = contracts.ModeConservative
	}
	scorer := NewRuleScorer(mode)
	active := r.models.Current()

	var out []contracts.SignalRecord
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := r.rankSymbol(ctx, symbol, scorer, active)
		if err != nil {
			r.logger.Warn().
				Str("symbol", symbol).
				Err(err).
				Msg("Skipping symbol in ranking cycle")
			continue
		}
		out = append(out, records...)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].WeightedScore > out[b].WeightedScore
	})

	for i := range out {
		if err := r.store.Append(ctx, &out[i]); err != nil {
			r.logger.Error().
				Str("signal_id", out[i].SignalID).
				Err(err).
				Msg("Failed to record emitted signal")
			continue
		}
		if r.recorder != nil {
			r.recorder.RecordSignalEmitted(out[i].Symbol, string(out[i].Side))
		}
		if i < r.cfg.TopN {
			r.publisher.Publish(&contracts.SignalEmitted{
				SignalID:      out[i].SignalID,
				Symbol:        out[i].Symbol,
				Side:          out[i].Side,
				RuleScore:     out[i].RuleScore,
				MLProbability: out[i].MLProbability,
				WeightedScore: out[i].WeightedScore,
				Thesis:        out[i].Thesis,
				Timestamp:     out[i].EmittedAt,
			})
		}
	}
	return out, nil
}

// rankSymbol produces the long and short records for one symbol.
func (r *Ranker) rankSymbol(ctx context.Context, symbol string, scorer *RuleScorer, active *artifact.ActiveModel) ([]contracts.SignalRecord, error) {
	bars, err := r.provider.Window(ctx, symbol, r.minHistory*3)
	if err != nil {
		return nil, err
	}
	fv, err := r.extractor.Extract(bars)
	if err != nil {
		return nil, err
	}
	emittedAt := bars[len(bars)-1].Timestamp

	records := make([]contracts.SignalRecord, 0, 2)
	for _, side := range []contracts.Side{contracts.SideLong, contracts.SideShort} {
		rec, err := r.buildRecord(ctx, symbol, side, fv, emittedAt, scorer, active)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// weightedScore blends a 0-10 rule score and a probability back onto the
// 0-10 scale.
func (r *Ranker) weightedScore(ruleScore, prob float64) float64 {
	return (r.cfg.RuleWeight*(ruleScore/10) + r.cfg.MLWeight*prob) * 10
}

func (r *Ranker) buildRecord(ctx context.Context, symbol string, side contracts.Side, fv contracts.FeatureVector, emittedAt time.Time, scorer *RuleScorer, active *artifact.ActiveModel) (contracts.SignalRecord, error) {
	ruleScore := scorer.Score(fv, side)

	// Cold start: neutral probability, rule-only ordering.
	prob := 0.5
	schemaVersion := ""
	if active != nil {
		aligned, err := schema.Align(active.Schema, fv)
		if err != nil {
			return contracts.SignalRecord{}, err
		}
		prob = active.Ensemble.PredictProb(aligned)
		schemaVersion = active.Schema.Version
	}

	// Streak suppression applies before blending.
	recent, err := r.store.RecentResolved(ctx, symbol, side, r.cfg.StreakWindow)
	if err != nil {
		return contracts.SignalRecord{}, err
	}
	factor := SuppressionFactor(recent, r.cfg.StreakWindow, r.cfg.StreakWinCount, r.cfg.StreakFactor)
	if factor != 1.0 {
		r.logger.Debug().
			Str("symbol", symbol).
			Str("side", string(side)).
			Float64("factor", factor).
			Msg("Streak suppression applied")
	}
	prob *= factor

	weighted := r.weightedScore(ruleScore, prob)

	return contracts.SignalRecord{
		SignalID:        uuid.NewString(),
		Symbol:          symbol,
		Side:            side,
		EmittedAt:       emittedAt,
		RuleScore:       ruleScore,
		MLProbability:   prob,
		WeightedScore:   weighted,
		Thesis:          scorer.Thesis(fv, side),
		FeatureSnapshot: fv.AsMap(),
		SchemaVersion:   schemaVersion,
		Outcome:         contracts.OutcomeUnresolved,
	}, nil
}
