package artifact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	return s
}

func sampleArtifact(id string) *contracts.ModelArtifact {
	return &contracts.ModelArtifact{
		ModelID:         id,
		SchemaVersion:   "schema-1",
		BaseModels:      map[string][]byte{"random_forest": []byte(`{"trees":[]}`)},
		EnsembleWeights: contracts.DefaultEnsembleWeights(),
		Metrics: contracts.TrainingMetrics{
			TrainScore:      0.8,
			ValidationScore: 0.7,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Status:    contracts.StatusCandidate,
	}
}

func TestArtifactSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a := sampleArtifact("m1")
	require.NoError(t, s.SaveArtifact(a))

	got, err := s.LoadArtifact("m1")
	require.NoError(t, err)
	assert.Equal(t, a.ModelID, got.ModelID)
	assert.Equal(t, a.BaseModels, got.BaseModels)
	assert.Equal(t, a.Metrics, got.Metrics)
	assert.Equal(t, contracts.StatusCandidate, got.Status)
}

func TestLoadMissingArtifactFails(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadArtifact("nope")
	assert.Error(t, err)
}

func TestUpdateStatusPersists(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveArtifact(sampleArtifact("m1")))
	require.NoError(t, s.UpdateStatus("m1", contracts.StatusActive))

	got, err := s.LoadArtifact("m1")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusActive, got.Status)
}

func TestSchemaIsImmutable(t *testing.T) {
	s := newTestStore(t)
	schema := &contracts.FeatureSchema{
		Version:      "v1",
		FeatureNames: []string{"rsi"},
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.SaveSchema(schema))

	// A second freeze under the same version must be refused.
	err := s.SaveSchema(schema)
	assert.Error(t, err)

	got, err := s.LoadSchema("v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"rsi"}, got.FeatureNames)
}

func TestActivePointerLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, err := s.ActiveModelID()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SetActiveModelID("m1"))
	id, err = s.ActiveModelID()
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	require.NoError(t, s.SetActiveModelID("m2"))
	id, err = s.ActiveModelID()
	require.NoError(t, err)
	assert.Equal(t, "m2", id)
}

func TestOverfitHistoryAppendAndLastN(t *testing.T) {
	h, err := NewFileOverfitHistory(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	empty, err := h.LastN(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, delta := range []float64{0.05, 0.25, 0.30} {
		require.NoError(t, h.Append(ctx, contracts.OverfitCheckRecord{
			RunID:   string(rune('a' + i)),
			Delta:   delta,
			Flagged: delta > 0.20,
		}))
	}

	last, err := h.LastN(ctx, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	// Newest first.
	assert.InDelta(t, 0.30, last[0].Delta, 1e-12)
	assert.InDelta(t, 0.25, last[1].Delta, 1e-12)
	assert.True(t, last[0].Flagged)
}

func TestManagerColdStart(t *testing.T) {
	s := newTestStore(t)
	m := NewManager(s, testLogger())
	require.NoError(t, m.Restore())
	assert.Nil(t, m.Current())
}
