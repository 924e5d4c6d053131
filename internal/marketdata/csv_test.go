package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/edgefactory/pkg/config"
	"github.com/wonny/edgefactory/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "console"})
}

func writeCSV(t *testing.T, dir, symbol, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(content), 0o644))
}

const aaplCSV = `timestamp,open,high,low,close,volume
2024-01-02,184.5,186.1,183.9,185.6,48201500
2024-01-03,185.0,185.9,183.4,184.2,51083200
2024-01-04T00:00:00Z,183.8,184.5,181.9,182.7,55912300
`

func TestCSVProviderSeries(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL", aaplCSV)
	p := NewCSVProvider(dir, testLogger())

	bars, err := p.Series(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 185.6, bars[0].Close)
	assert.Equal(t, 48201500.0, bars[0].Volume)
	// RFC3339 rows parse the same as plain dates.
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bars[2].Timestamp)
}

func TestCSVProviderWindow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL", aaplCSV)
	p := NewCSVProvider(dir, testLogger())

	bars, err := p.Window(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 184.2, bars[0].Close)
	assert.Equal(t, 182.7, bars[1].Close)

	// Larger than the file returns everything.
	bars, err = p.Window(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestCSVProviderSymbols(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL", aaplCSV)
	writeCSV(t, dir, "TSLA", aaplCSV)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	p := NewCSVProvider(dir, testLogger())
	symbols, err := p.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "TSLA"}, symbols)
}

func TestCSVProviderMissingSymbol(t *testing.T) {
	p := NewCSVProvider(t.TempDir(), testLogger())
	_, err := p.Series(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestCSVProviderMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "BAD", "timestamp,open,high,low,close,volume\n2024-01-02,abc,1,1,1,1\n")
	p := NewCSVProvider(dir, testLogger())

	_, err := p.Series(context.Background(), "BAD")
	assert.Error(t, err)
}
