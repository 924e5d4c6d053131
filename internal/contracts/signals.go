package contracts

import (
	"fmt"
	"time"
)

// Side is the direction of a trade signal
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Outcome is the realized result of an emitted signal
type Outcome string

const (
	OutcomeWin        Outcome = "WIN"
	OutcomeLoss       Outcome = "LOSS"
	OutcomeUnresolved Outcome = "UNRESOLVED"
)

// RankMode selects the rule-score configuration at inference time
type RankMode string

const (
	ModeConservative RankMode = "conservative"
	ModeAggressive   RankMode = "aggressive"
)

// SignalRecord is one emitted trade setup, created at emission time and
// append-only afterwards. The outcome annotation is the only permitted
// mutation, applied exactly once when the market verifies the result.
// ⭐ SSOT: 시그널 기록 스키마는 여기서만 정의
type SignalRecord struct {
	SignalID        string             `json:"signal_id"`
	Symbol          string             `json:"symbol"`
	Side            Side               `json:"side"`
	EmittedAt       time.Time          `json:"emitted_at"`
	RuleScore       float64            `json:"rule_score"`     // 0~10, 규칙 기반
	MLProbability   float64            `json:"ml_probability"` // 보정 확률 (스트릭 억제 반영)
	WeightedScore   float64            `json:"weighted_score"` // 0~10, 최종 랭킹 점수
	Thesis          string             `json:"thesis,omitempty"`
	FeatureSnapshot map[string]float64 `json:"feature_snapshot,omitempty"`
	SchemaVersion   string             `json:"schema_version"`

	// Outcome annotation, set once by Resolve
	Outcome     Outcome    `json:"outcome"`
	RealizedPnL float64    `json:"realized_pnl"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Resolve annotates the record with its realized outcome.
// Returns an error if the record is already resolved; resolution is
// applied exactly once.
func (s *SignalRecord) Resolve(outcome Outcome, pnl float64, at time.Time) error {
	if s.IsResolved() {
		return fmt.Errorf("signal %s already resolved as %s", s.SignalID, s.Outcome)
	}
	if outcome != OutcomeWin && outcome != OutcomeLoss {
		return fmt.Errorf("signal %s: invalid resolution outcome %q", s.SignalID, outcome)
	}
	s.Outcome = outcome
	s.RealizedPnL = pnl
	s.ResolvedAt = &at
	return nil
}

// IsResolved reports whether the outcome annotation has been applied
func (s *SignalRecord) IsResolved() bool {
	return s.Outcome == OutcomeWin || s.Outcome == OutcomeLoss
}
