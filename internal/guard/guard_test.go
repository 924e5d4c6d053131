package guard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

type fakeStore struct {
	statuses map[string]contracts.ModelStatus
	activeID string
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: make(map[string]contracts.ModelStatus)}
}

func (f *fakeStore) SaveArtifact(a *contracts.ModelArtifact) error {
	f.statuses[a.ModelID] = a.Status
	return nil
}

func (f *fakeStore) LoadArtifact(id string) (*contracts.ModelArtifact, error) {
	status, ok := f.statuses[id]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", id)
	}
	return &contracts.ModelArtifact{ModelID: id, Status: status}, nil
}

func (f *fakeStore) UpdateStatus(id string, s contracts.ModelStatus) error {
	f.statuses[id] = s
	return nil
}

func (f *fakeStore) SaveSchema(*contracts.FeatureSchema) error { return nil }
func (f *fakeStore) LoadSchema(string) (*contracts.FeatureSchema, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeStore) ActiveModelID() (string, error) { return f.activeID, nil }
func (f *fakeStore) SetActiveModelID(id string) error {
	f.activeID = id
	return nil
}

type fakeHistory struct {
	records []contracts.OverfitCheckRecord
}

func (h *fakeHistory) Append(_ context.Context, r contracts.OverfitCheckRecord) error {
	h.records = append(h.records, r)
	return nil
}

func (h *fakeHistory) LastN(_ context.Context, n int) ([]contracts.OverfitCheckRecord, error) {
	out := make([]contracts.OverfitCheckRecord, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

type captureBus struct {
	events []contracts.Event
}

func (b *captureBus) Publish(e contracts.Event) { b.events = append(b.events, e) }

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func candidate(id string) *contracts.ModelArtifact {
	return &contracts.ModelArtifact{
		ModelID:       id,
		SchemaVersion: "schema-1",
		Status:        contracts.StatusCandidate,
	}
}

func check(modelID string, delta float64, maxGap float64) *contracts.OverfitCheckRecord {
	return &contracts.OverfitCheckRecord{
		RunID:           "run-" + modelID,
		ModelID:         modelID,
		TrainScore:      0.8 + delta,
		ValidationScore: 0.8,
		Delta:           delta,
		Flagged:         delta > maxGap,
		Timestamp:       time.Now().UTC(),
	}
}

func newGuard(store *fakeStore, hist *fakeHistory, bus *captureBus) *Guard {
	return New(store, hist, bus, 0.20, testLogger())
}

func TestCleanRunPromotes(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	d, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.05, 0.20))
	require.NoError(t, err)

	assert.True(t, d.Promoted)
	assert.Equal(t, "m1", store.activeID)
	assert.Equal(t, contracts.StatusActive, store.statuses["m1"])
	require.Len(t, bus.events, 1)
	assert.Equal(t, "model_promoted", bus.events[0].EventType())
}

func TestSingleFlaggedRunStillPromotes(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	d, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.30, 0.20))
	require.NoError(t, err)

	assert.True(t, d.Promoted)
	assert.Equal(t, "m1", store.activeID)
}

func TestTwoConsecutiveFlagsRevert(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	// Run 1: flagged but promoted.
	_, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.30, 0.20))
	require.NoError(t, err)

	// Run 2: flagged again; candidate reverted, m1 stays ACTIVE.
	d, err := g.Evaluate(context.Background(), candidate("m2"), check("m2", 0.25, 0.20))
	require.NoError(t, err)

	assert.False(t, d.Promoted)
	assert.Equal(t, "m1", store.activeID)
	assert.Equal(t, contracts.StatusActive, store.statuses["m1"])
	assert.Equal(t, contracts.StatusReverted, store.statuses["m2"])

	require.Len(t, bus.events, 2)
	rejected, ok := bus.events[1].(*contracts.ModelRejectedOverfit)
	require.True(t, ok)
	assert.Equal(t, "m2", rejected.ModelID)
	assert.Equal(t, "m1", rejected.ActiveModelID)
	assert.InDelta(t, 0.25, rejected.Delta, 1e-12)
	assert.InDelta(t, 0.30, rejected.PreviousDelta, 1e-12)
}

func TestFlagResetAfterCleanRun(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	_, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.30, 0.20))
	require.NoError(t, err)
	_, err = g.Evaluate(context.Background(), candidate("m2"), check("m2", 0.05, 0.20))
	require.NoError(t, err)

	// A new flag after a clean run is only the first of a potential pair.
	d, err := g.Evaluate(context.Background(), candidate("m3"), check("m3", 0.30, 0.20))
	require.NoError(t, err)
	assert.True(t, d.Promoted)
	assert.Equal(t, "m3", store.activeID)
}

func TestPromotionRetainsPreviousActiveAsRollback(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	_, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.05, 0.20))
	require.NoError(t, err)
	d, err := g.Evaluate(context.Background(), candidate("m2"), check("m2", 0.05, 0.20))
	require.NoError(t, err)

	assert.True(t, d.Promoted)
	assert.Equal(t, "m1", d.RollbackModelID)
	// Demoted, not deleted.
	assert.Equal(t, contracts.StatusReverted, store.statuses["m1"])
	assert.Equal(t, contracts.StatusActive, store.statuses["m2"])
}

func TestRevertIsIdempotentOnActivePointer(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	_, err := g.Evaluate(context.Background(), candidate("m1"), check("m1", 0.30, 0.20))
	require.NoError(t, err)
	before := store.activeID

	_, err = g.Evaluate(context.Background(), candidate("m2"), check("m2", 0.30, 0.20))
	require.NoError(t, err)
	_, err = g.Evaluate(context.Background(), candidate("m3"), check("m3", 0.30, 0.20))
	require.NoError(t, err)

	// Repeated rejections never move the ACTIVE pointer.
	assert.Equal(t, before, store.activeID)
}

func TestEvaluateRejectsNonCandidate(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	active := candidate("m1")
	active.Status = contracts.StatusActive
	_, err := g.Evaluate(context.Background(), active, check("m1", 0.05, 0.20))
	assert.Error(t, err)
}

func TestEvaluateRejectsMismatchedCheck(t *testing.T) {
	store, hist, bus := newFakeStore(), &fakeHistory{}, &captureBus{}
	g := newGuard(store, hist, bus)

	_, err := g.Evaluate(context.Background(), candidate("m1"), check("other", 0.05, 0.20))
	assert.Error(t, err)
}
