package artifact

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/internal/ml"
	"github.com/wonny/edgefactory/pkg/logger"
)

// ActiveModel is the fully-loaded inference bundle: the deserialized ensemble
// together with the schema it was trained against. Immutable once built, so a
// reader either sees all of the old model or all of the new one.
type ActiveModel struct {
	Artifact *contracts.ModelArtifact
	Schema   *contracts.FeatureSchema
	Ensemble *ml.Ensemble
}

// Manager holds the current ACTIVE model behind an atomic pointer. Inference
// loads the pointer once per call; promotion swaps it after the new bundle is
// fully built.
// ⭐ SSOT: 런타임 ACTIVE 모델 교체는 여기서만
type Manager struct {
	store   contracts.ArtifactStore
	current atomic.Pointer[ActiveModel]
	logger  zerolog.Logger
}

// NewManager creates an active-model manager over the given store.
func NewManager(store contracts.ArtifactStore, log *logger.Logger) *Manager {
	return &Manager{store: store, logger: log.Component("artifact")}
}

// Restore loads the persisted ACTIVE pointer into memory, typically at
// startup. No ACTIVE model on disk is not an error: rankers fall back to
// rule-only scoring until the first promotion.
func (m *Manager) Restore() error {
	id, err := m.store.ActiveModelID()
	if err != nil {
		return err
	}
	if id == "" {
		m.logger.Info().Msg("No active model on disk, starting cold")
		return nil
	}
	return m.Activate(id)
}

// Activate loads a model and its schema from the store and swaps it in as the
// inference model. The swap happens only after the whole bundle deserialized.
func (m *Manager) Activate(modelID string) error {
	art, err := m.store.LoadArtifact(modelID)
	if err != nil {
		return fmt.Errorf("activate %s: %w", modelID, err)
	}
	sch, err := m.store.LoadSchema(art.SchemaVersion)
	if err != nil {
		return fmt.Errorf("activate %s: schema %s: %w", modelID, art.SchemaVersion, err)
	}
	ens, err := ml.LoadEnsemble(art)
	if err != nil {
		return fmt.Errorf("activate %s: %w", modelID, err)
	}

	m.current.Store(&ActiveModel{Artifact: art, Schema: sch, Ensemble: ens})
	m.logger.Info().
		Str("model_id", modelID).
		Str("schema_version", art.SchemaVersion).
		Msg("Swapped active model")
	return nil
}

// Current returns the active inference bundle, nil when cold.
func (m *Manager) Current() *ActiveModel {
	return m.current.Load()
}
