package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/edgefactory/internal/contracts"
)

// PostgresStore is the durable SignalStore over PostgreSQL. Records are
// append-only; the outcome columns are the single permitted update, guarded
// by `outcome = 'UNRESOLVED'` so resolution applies exactly once even under
// concurrent resolvers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append durably records an emitted signal.
func (s *PostgresStore) Append(ctx context.Context, record *contracts.SignalRecord) error {
	snapshot, err := json.Marshal(record.FeatureSnapshot)
	if err != nil {
		return fmt.Errorf("feedback: marshal snapshot for %s: %w", record.SignalID, err)
	}

	query := `
		INSERT INTO signals.signal_records
			(signal_id, symbol, side, emitted_at, rule_score, ml_probability,
			 weighted_score, thesis, feature_snapshot, schema_version, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'UNRESOLVED')`

	_, err = s.pool.Exec(ctx, query,
		record.SignalID, record.Symbol, string(record.Side), record.EmittedAt,
		record.RuleScore, record.MLProbability, record.WeightedScore,
		record.Thesis, snapshot, record.SchemaVersion,
	)
	if err != nil {
		return &contracts.FeedStoreWriteError{Op: "append", Err: err}
	}
	return nil
}

// Resolve applies the outcome annotation exactly once.
func (s *PostgresStore) Resolve(ctx context.Context, signalID string, outcome contracts.Outcome, pnl float64, at time.Time) error {
	if outcome != contracts.OutcomeWin && outcome != contracts.OutcomeLoss {
		return fmt.Errorf("feedback: invalid resolution outcome %q", outcome)
	}

	query := `
		UPDATE signals.signal_records
		SET outcome = $2, realized_pnl = $3, resolved_at = $4
		WHERE signal_id = $1 AND outcome = 'UNRESOLVED'`

	tag, err := s.pool.Exec(ctx, query, signalID, string(outcome), pnl, at)
	if err != nil {
		return &contracts.FeedStoreWriteError{Op: "resolve", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("feedback: signal %s not found or already resolved", signalID)
	}
	return nil
}

// Query returns records matching the filter, newest first.
func (s *PostgresStore) Query(ctx context.Context, q contracts.SignalQuery) ([]contracts.SignalRecord, error) {
	query := `
		SELECT signal_id, symbol, side, emitted_at, rule_score, ml_probability,
			   weighted_score, thesis, feature_snapshot, schema_version,
			   outcome, realized_pnl, resolved_at
		FROM signals.signal_records
		WHERE ($1 = '' OR symbol = $1)
		  AND ($2 = '' OR side = $2)
		  AND ($3::timestamptz IS NULL OR emitted_at >= $3)
		  AND ($4::timestamptz IS NULL OR emitted_at <= $4)
		  AND (NOT $5 OR outcome <> 'UNRESOLVED')
		ORDER BY emitted_at DESC
		LIMIT CASE WHEN $6 > 0 THEN $6 ELSE NULL END`

	var from, to *time.Time
	if !q.From.IsZero() {
		from = &q.From
	}
	if !q.To.IsZero() {
		to = &q.To
	}

	rows, err := s.pool.Query(ctx, query,
		q.Symbol, string(q.Side), from, to, q.OnlyResolved, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("feedback: query signals: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RecentResolved returns the last n resolved records for symbol+side, newest
// first.
func (s *PostgresStore) RecentResolved(ctx context.Context, symbol string, side contracts.Side, n int) ([]contracts.SignalRecord, error) {
	return s.Query(ctx, contracts.SignalQuery{
		Symbol:       symbol,
		Side:         side,
		OnlyResolved: true,
		Limit:        n,
	})
}

// Unresolved returns all records still awaiting an outcome.
func (s *PostgresStore) Unresolved(ctx context.Context) ([]contracts.SignalRecord, error) {
	query := `
		SELECT signal_id, symbol, side, emitted_at, rule_score, ml_probability,
			   weighted_score, thesis, feature_snapshot, schema_version,
			   outcome, realized_pnl, resolved_at
		FROM signals.signal_records
		WHERE outcome = 'UNRESOLVED'
		ORDER BY emitted_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("feedback: query unresolved: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ResolvedCountSince counts outcomes resolved at or after t.
func (s *PostgresStore) ResolvedCountSince(ctx context.Context, t time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM signals.signal_records
		WHERE outcome <> 'UNRESOLVED' AND resolved_at >= $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, t).Scan(&count); err != nil {
		return 0, fmt.Errorf("feedback: count resolved: %w", err)
	}
	return count, nil
}

func scanRecords(rows pgx.Rows) ([]contracts.SignalRecord, error) {
	var out []contracts.SignalRecord
	for rows.Next() {
		var r contracts.SignalRecord
		var side, outcome string
		var snapshot []byte
		var pnl *float64
		err := rows.Scan(
			&r.SignalID, &r.Symbol, &side, &r.EmittedAt,
			&r.RuleScore, &r.MLProbability, &r.WeightedScore,
			&r.Thesis, &snapshot, &r.SchemaVersion,
			&outcome, &pnl, &r.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("feedback: scan signal: %w", err)
		}
		r.Side = contracts.Side(side)
		r.Outcome = contracts.Outcome(outcome)
		if pnl != nil {
			r.RealizedPnL = *pnl
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &r.FeatureSnapshot); err != nil {
				return nil, fmt.Errorf("feedback: decode snapshot for %s: %w", r.SignalID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
