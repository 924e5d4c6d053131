package schema

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/edgefactory/internal/contracts"
	"github.com/wonny/edgefactory/pkg/logger"
)

// Store persists frozen feature schemas by version.
type Store interface {
	SaveSchema(schema *contracts.FeatureSchema) error
	LoadSchema(version string) (*contracts.FeatureSchema, error)
}

// Registry freezes feature schemas at training time and aligns live feature
// vectors against them at inference time.
// ⭐ SSOT: 스키마 버전 관리는 여기서만
//
// A schema is immutable once frozen. Alignment is strict by name: a feature
// the schema names that the live vector lacks fails with SchemaMismatchError,
// never a silent reorder or zero-fill.
type Registry struct {
	mu     sync.RWMutex
	store  Store
	cache  map[string]*contracts.FeatureSchema
	logger zerolog.Logger
}

// NewRegistry creates a schema registry backed by store.
func NewRegistry(store Store, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  make(map[string]*contracts.FeatureSchema),
		logger: log.Component("schema"),
	}
}

// Freeze records the exact feature set and labeling parameters of a training
// run as a new immutable schema version.
func (r *Registry) Freeze(names []string, horizon int, longThr, shortThr float64) (*contracts.FeatureSchema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("schema: cannot freeze empty feature set")
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("schema: duplicate feature name %q", n)
		}
		seen[n] = struct{}{}
	}

	frozen := make([]string, len(names))
	copy(frozen, names)

	s := &contracts.FeatureSchema{
		Version:              uuid.NewString(),
		FeatureNames:         frozen,
		LookforwardHorizon:   horizon,
		LongProfitThreshold:  longThr,
		ShortProfitThreshold: shortThr,
		CreatedAt:            time.Now().UTC(),
	}
	if err := r.store.SaveSchema(s); err != nil {
		return nil, fmt.Errorf("schema: save version %s: %w", s.Version, err)
	}

	r.mu.Lock()
	r.cache[s.Version] = s
	r.mu.Unlock()

	r.logger.Info().
		Str("version", s.Version).
		Int("features", len(frozen)).
		Int("horizon", horizon).
		Msg("Froze feature schema")
	return s, nil
}

// Get loads a schema version, from cache when possible.
func (r *Registry) Get(version string) (*contracts.FeatureSchema, error) {
	r.mu.RLock()
	if s, ok := r.cache[version]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	s, err := r.store.LoadSchema(version)
	if err != nil {
		return nil, fmt.Errorf("schema: load version %s: %w", version, err)
	}

	r.mu.Lock()
	r.cache[version] = s
	r.mu.Unlock()
	return s, nil
}

// Align orders a live feature vector into the schema's frozen layout.
// Extra live features are ignored; missing ones are fatal.
func Align(s *contracts.FeatureSchema, fv contracts.FeatureVector) ([]float64, error) {
	live := make(map[string]float64, fv.Len())
	for i, name := range fv.Names {
		live[name] = fv.Values[i]
	}

	out := make([]float64, len(s.FeatureNames))
	var missing []string
	for i, name := range s.FeatureNames {
		v, ok := live[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		out[i] = v
	}
	if len(missing) > 0 {
		return nil, &contracts.SchemaMismatchError{
			SchemaVersion: s.Version,
			Missing:       missing,
		}
	}
	return out, nil
}
