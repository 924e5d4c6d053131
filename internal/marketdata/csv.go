package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// CSVProvider serves bar history from one CSV file per symbol, for offline
// training and backfills. Expected header:
//
//	timestamp,open,high,low,close,volume
//
// Timestamps are RFC3339 or plain dates (2006-01-02). Files are parsed once
// and cached.
type CSVProvider struct {
	dir    string
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string][]contracts.Observation
}

// NewCSVProvider creates a provider over a directory of <SYMBOL>.csv files.
func NewCSVProvider(dir string, log *logger.Logger) *CSVProvider {
	return &CSVProvider{
		dir:    dir,
		logger: log.Component("marketdata-csv"),
		cache:  make(map[string][]contracts.Observation),
	}
}

// Series returns the full ordered bar history for a symbol.
func (p *CSVProvider) Series(ctx context.Context, symbol string) ([]contracts.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if bars, ok := p.cache[symbol]; ok {
		return bars, nil
	}
	bars, err := p.load(symbol)
	if err != nil {
		return nil, err
	}
	p.cache[symbol] = bars
	return bars, nil
}

// Window returns up to n trailing bars ending at the latest observation.
func (p *CSVProvider) Window(ctx context.Context, symbol string, n int) ([]contracts.Observation, error) {
	bars, err := p.Series(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// Symbols lists every symbol with a CSV file in the directory.
func (p *CSVProvider) Symbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".csv"))
	}
	return symbols, nil
}

func (p *CSVProvider) load(symbol string) ([]contracts.Observation, error) {
	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars for %s: %w", symbol, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.ReuseRecord = true

	// Header row.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header for %s: %w", symbol, err)
	}

	var bars []contracts.Observation
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bars for %s: %w", symbol, err)
		}
		line++
		if len(rec) < 6 {
			return nil, fmt.Errorf("%s line %d: expected 6 columns, got %d", symbol, line, len(rec))
		}

		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", symbol, line, err)
		}

		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d col %d: %w", symbol, line, i+2, err)
			}
			vals[i] = v
		}

		bars = append(bars, contracts.Observation{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}

	p.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Loaded CSV bars")
	return bars, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return ts, nil
}
