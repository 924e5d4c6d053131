package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// FileStore persists model artifacts, feature schemas and the ACTIVE pointer
// under one directory:
//
//	<dir>/models/<model_id>.json
//	<dir>/schemas/<version>.json
//	<dir>/ACTIVE
//
// Writes go through a temp file + rename so a crash mid-write never corrupts a
// committed artifact.
// ⭐ SSOT: 모델 파일 배치는 여기서만 정의
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates the store, making the directory layout as needed.
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	for _, sub := range []string{"models", "schemas"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("artifact: create %s dir: %w", sub, err)
		}
	}
	return &FileStore{dir: dir, logger: log.Component("artifact")}, nil
}

// SaveArtifact persists one model artifact.
func (s *FileStore) SaveArtifact(a *contracts.ModelArtifact) error {
	if a.ModelID == "" {
		return fmt.Errorf("artifact: empty model ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.modelPath(a.ModelID), a)
}

// LoadArtifact loads one model artifact by ID.
func (s *FileStore) LoadArtifact(modelID string) (*contracts.ModelArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a contracts.ModelArtifact
	if err := s.readJSON(s.modelPath(modelID), &a); err != nil {
		return nil, fmt.Errorf("artifact: load model %s: %w", modelID, err)
	}
	return &a, nil
}

// UpdateStatus rewrites one artifact with a new lifecycle status.
func (s *FileStore) UpdateStatus(modelID string, status contracts.ModelStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a contracts.ModelArtifact
	if err := s.readJSON(s.modelPath(modelID), &a); err != nil {
		return fmt.Errorf("artifact: update status of %s: %w", modelID, err)
	}
	a.Status = status
	if err := s.writeJSON(s.modelPath(modelID), &a); err != nil {
		return err
	}
	s.logger.Debug().
		Str("model_id", modelID).
		Str("status", string(status)).
		Msg("Updated artifact status")
	return nil
}

// SaveSchema persists one frozen feature schema.
func (s *FileStore) SaveSchema(schema *contracts.FeatureSchema) error {
	if schema.Version == "" {
		return fmt.Errorf("artifact: empty schema version")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.schemaPath(schema.Version)
	if _, err := os.Stat(path); err == nil {
		// Schemas are immutable once frozen.
		return fmt.Errorf("artifact: schema %s already exists", schema.Version)
	}
	return s.writeJSON(path, schema)
}

// LoadSchema loads one schema by version.
func (s *FileStore) LoadSchema(version string) (*contracts.FeatureSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var schema contracts.FeatureSchema
	if err := s.readJSON(s.schemaPath(version), &schema); err != nil {
		return nil, fmt.Errorf("artifact: load schema %s: %w", version, err)
	}
	return &schema, nil
}

// ActiveModelID returns the persisted ACTIVE pointer, "" when none is set.
func (s *FileStore) ActiveModelID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.activePath())
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("artifact: read active pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SetActiveModelID atomically replaces the ACTIVE pointer.
func (s *FileStore) SetActiveModelID(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.activePath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(modelID+"\n"), 0o644); err != nil {
		return fmt.Errorf("artifact: write active pointer: %w", err)
	}
	if err := os.Rename(tmp, s.activePath()); err != nil {
		return fmt.Errorf("artifact: replace active pointer: %w", err)
	}
	return nil
}

func (s *FileStore) modelPath(id string) string {
	return filepath.Join(s.dir, "models", id+".json")
}

func (s *FileStore) schemaPath(version string) string {
	return filepath.Join(s.dir, "schemas", version+".json")
}

func (s *FileStore) activePath() string {
	return filepath.Join(s.dir, "ACTIVE")
}

func (s *FileStore) writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifact: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifact: commit %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(bufio.NewReader(f)).Decode(v)
}
