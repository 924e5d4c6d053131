package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// PostgresProvider serves OHLCV history from the marketdata.daily_bars table.
// Bar ingestion is handled by an upstream collector; this provider only reads.
// ⭐ SSOT: DB 시세 조회는 이 구조체에서만
type PostgresProvider struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresProvider creates a provider over an existing connection pool.
func NewPostgresProvider(pool *pgxpool.Pool, log *logger.Logger) *PostgresProvider {
	return &PostgresProvider{
		pool:   pool,
		logger: log.Component("marketdata"),
	}
}

const barColumns = `symbol, ts, open_price, high_price, low_price, close_price, volume, indicators`

// Series returns the full ordered bar history for a symbol.
func (p *PostgresProvider) Series(ctx context.Context, symbol string) ([]contracts.Observation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+barColumns+`
		FROM marketdata.daily_bars
		WHERE symbol = $1
		ORDER BY ts ASC
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Window returns up to n trailing bars ending at the latest observation.
func (p *PostgresProvider) Window(ctx context.Context, symbol string, n int) ([]contracts.Observation, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+barColumns+` FROM (
			SELECT `+barColumns+`
			FROM marketdata.daily_bars
			WHERE symbol = $1
			ORDER BY ts DESC
			LIMIT $2
		) tail
		ORDER BY ts ASC
	`, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("query window for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Symbols lists every symbol with at least one bar.
func (p *PostgresProvider) Symbols(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT symbol FROM marketdata.daily_bars ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

func scanBars(rows pgx.Rows) ([]contracts.Observation, error) {
	var bars []contracts.Observation
	for rows.Next() {
		var (
			bar      contracts.Observation
			rawIndic []byte
		)
		err := rows.Scan(
			&bar.Symbol,
			&bar.Timestamp,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
			&rawIndic,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if len(rawIndic) > 0 {
			if err := json.Unmarshal(rawIndic, &bar.Indicators); err != nil {
				return nil, fmt.Errorf("decode indicators for %s: %w", bar.Symbol, err)
			}
		}
		bars = append(bars, bar)
	}
	return bars, rows.Err()
}
