package feedback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/edgefactory/internal/contracts"
)

// MemoryStore is an in-memory SignalStore for tests and single-process runs
// without a database. Appends and reads are safe under concurrency.
type MemoryStore struct {
	mu      sync.RWMutex
	records []contracts.SignalRecord
	byID    map[string]int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Append durably records an emitted signal.
func (m *MemoryStore) Append(ctx context.Context, record *contracts.SignalRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.SignalID == "" {
		return fmt.Errorf("feedback: empty signal ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[record.SignalID]; exists {
		return fmt.Errorf("feedback: signal %s already recorded", record.SignalID)
	}
	m.byID[record.SignalID] = len(m.records)
	m.records = append(m.records, *record)
	return nil
}

// Resolve applies the outcome annotation exactly once.
func (m *MemoryStore) Resolve(ctx context.Context, signalID string, outcome contracts.Outcome, pnl float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byID[signalID]
	if !ok {
		return fmt.Errorf("feedback: signal %s not found", signalID)
	}
	return m.records[idx].Resolve(outcome, pnl, at)
}

// Query returns records matching the filter, newest first.
func (m *MemoryStore) Query(ctx context.Context, q contracts.SignalQuery) ([]contracts.SignalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []contracts.SignalRecord
	for i := range m.records {
		r := m.records[i]
		if q.Symbol != "" && r.Symbol != q.Symbol {
			continue
		}
		if q.Side != "" && r.Side != q.Side {
			continue
		}
		if !q.From.IsZero() && r.EmittedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.EmittedAt.After(q.To) {
			continue
		}
		if q.OnlyResolved && !r.IsResolved() {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].EmittedAt.After(out[b].EmittedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// RecentResolved returns the last n resolved records for symbol+side, newest
// first.
func (m *MemoryStore) RecentResolved(ctx context.Context, symbol string, side contracts.Side, n int) ([]contracts.SignalRecord, error) {
	return m.Query(ctx, contracts.SignalQuery{
		Symbol:       symbol,
		Side:         side,
		OnlyResolved: true,
		Limit:        n,
	})
}

// Unresolved returns all records still awaiting an outcome.
func (m *MemoryStore) Unresolved(ctx context.Context) ([]contracts.SignalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []contracts.SignalRecord
	for i := range m.records {
		if !m.records[i].IsResolved() {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// ResolvedCountSince counts outcomes resolved at or after t.
func (m *MemoryStore) ResolvedCountSince(ctx context.Context, t time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for i := range m.records {
		r := &m.records[i]
		if r.IsResolved() && r.ResolvedAt != nil && !r.ResolvedAt.Before(t) {
			count++
		}
	}
	return count, nil
}
