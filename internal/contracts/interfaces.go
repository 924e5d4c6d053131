package contracts

import (
	"context"
	"time"
)

// MarketDataProvider supplies chronologically ordered observation series.
// The feed collaborator guarantees monotonically increasing timestamps and
// no duplicates per symbol; ingestion itself is outside this system.
type MarketDataProvider interface {
	// Series returns the full ordered bar history for a symbol
	Series(ctx context.Context, symbol string) ([]Observation, error)

	// Window returns up to n trailing bars ending at the latest observation
	Window(ctx context.Context, symbol string, n int) ([]Observation, error)
}

// SignalQuery filters feedback-store reads
type SignalQuery struct {
	Symbol       string
	Side         Side
	From         time.Time
	To           time.Time
	OnlyResolved bool
	Limit        int
}

// SignalStore is the durable outcome feedback log: every emitted signal plus
// its later-resolved outcome. Appends must be safe under concurrency and must
// never corrupt committed records on a crash mid-write.
// ⭐ SSOT: 시그널 이력 저장은 이 인터페이스 구현을 통해서만
type SignalStore interface {
	// Append durably records an emitted signal
	Append(ctx context.Context, record *SignalRecord) error

	// Resolve applies the outcome annotation to one signal, exactly once
	Resolve(ctx context.Context, signalID string, outcome Outcome, pnl float64, at time.Time) error

	// Query returns records matching the filter, newest first
	Query(ctx context.Context, q SignalQuery) ([]SignalRecord, error)

	// RecentResolved returns the last n resolved records for symbol+side,
	// newest first (streak suppression input)
	RecentResolved(ctx context.Context, symbol string, side Side, n int) ([]SignalRecord, error)

	// Unresolved returns all records still awaiting an outcome
	Unresolved(ctx context.Context) ([]SignalRecord, error)

	// ResolvedCountSince counts outcomes resolved at or after t
	// (retraining volume trigger)
	ResolvedCountSince(ctx context.Context, t time.Time) (int, error)
}

// OverfitHistory is the append-only log of train/validation gap checks
type OverfitHistory interface {
	Append(ctx context.Context, record OverfitCheckRecord) error

	// LastN returns up to n most recent records, newest first
	LastN(ctx context.Context, n int) ([]OverfitCheckRecord, error)
}

// ArtifactStore persists versioned model artifacts and feature schemas
type ArtifactStore interface {
	SaveArtifact(artifact *ModelArtifact) error
	LoadArtifact(modelID string) (*ModelArtifact, error)
	UpdateStatus(modelID string, status ModelStatus) error

	SaveSchema(schema *FeatureSchema) error
	LoadSchema(version string) (*FeatureSchema, error)

	// ActiveModelID returns the persisted ACTIVE pointer, "" when none
	ActiveModelID() (string, error)
	SetActiveModelID(modelID string) error
}

// EventPublisher fans emitted events out to downstream consumers
type EventPublisher interface {
	Publish(event Event)
}
