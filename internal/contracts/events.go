package contracts

import "time"

// Event is a notification payload emitted for downstream collaborators.
// Each event carries enough fields to render a human-readable notification
// without re-querying internal state.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// ModelPromoted is emitted when a candidate passes the overfit guard and
// becomes the ACTIVE artifact
type ModelPromoted struct {
	ModelID         string    `json:"model_id"`
	SchemaVersion   string    `json:"schema_version"`
	PreviousModelID string    `json:"previous_model_id,omitempty"`
	ValidationScore float64   `json:"validation_score"`
	TrainScore      float64   `json:"train_score"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e ModelPromoted) EventType() string     { return "model_promoted" }
func (e ModelPromoted) OccurredAt() time.Time { return e.Timestamp }

// ModelRejectedOverfit is emitted when the guard refuses promotion after two
// consecutive flagged runs. The prior ACTIVE model keeps serving.
type ModelRejectedOverfit struct {
	ModelID       string    `json:"model_id"`
	ActiveModelID string    `json:"active_model_id,omitempty"`
	Delta         float64   `json:"delta"`
	PreviousDelta float64   `json:"previous_delta"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e ModelRejectedOverfit) EventType() string     { return "model_rejected_overfit" }
func (e ModelRejectedOverfit) OccurredAt() time.Time { return e.Timestamp }

// SignalEmitted is emitted for each top-N ranked signal per cycle
type SignalEmitted struct {
	SignalID      string    `json:"signal_id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	RuleScore     float64   `json:"rule_score"`
	MLProbability float64   `json:"ml_probability"`
	WeightedScore float64   `json:"weighted_score"`
	Thesis        string    `json:"thesis,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e SignalEmitted) EventType() string     { return "signal_emitted" }
func (e SignalEmitted) OccurredAt() time.Time { return e.Timestamp }
