package artifact

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wonny/edgefactory/internal/contracts"
)

// FileOverfitHistory is the append-only overfit-check log, one JSON record per
// line. Each append is a single O_APPEND write, so a crash mid-write can only
// lose the record being written, never corrupt committed lines.
type FileOverfitHistory struct {
	mu   sync.Mutex
	path string
}

// NewFileOverfitHistory opens (or creates) the history log under dir.
func NewFileOverfitHistory(dir string) (*FileOverfitHistory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create history dir: %w", err)
	}
	return &FileOverfitHistory{path: filepath.Join(dir, "overfit_checks.jsonl")}, nil
}

// Append writes one check record to the log.
func (h *FileOverfitHistory) Append(ctx context.Context, record contracts.OverfitCheckRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("artifact: marshal check record %s: %w", record.RunID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("artifact: open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("artifact: append check record %s: %w", record.RunID, err)
	}
	return nil
}

// LastN returns up to n most recent records, newest first. Partial trailing
// lines from an interrupted write are skipped.
func (h *FileOverfitHistory) LastN(ctx context.Context, n int) ([]contracts.OverfitCheckRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: open history log: %w", err)
	}
	defer f.Close()

	var all []contracts.OverfitCheckRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r contracts.OverfitCheckRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		all = append(all, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("artifact: read history log: %w", err)
	}

	out := make([]contracts.OverfitCheckRecord, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
