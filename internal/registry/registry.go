package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"verdict-engine/internal/calibration"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/meta"
	"verdict-engine/internal/models/boosted"
	"verdict-engine/internal/models/gbrt"
	"verdict-engine/internal/weights"
)

// Loaded is one immutable, fully-assembled artifact bundle. Components the
// version dir did not carry are listed in Missing and serve their fallback.
type Loaded struct {
	Version    int
	Manifest   Manifest
	Meta       *meta.Model
	Calibrator *calibration.Calibrator
	Optimizer  *weights.Optimizer
	Stats      map[string]domain.FeatureStats
	LoadedAt   time.Time
	Missing    []string
}

func (l *Loaded) Has(component string) bool {
	if l == nil {
		return false
	}
	for _, m := range l.Missing {
		if m == component {
			return false
		}
	}
	return true
}

// Registry serves the active bundle to handlers through an atomic pointer:
// Reload assembles off to the side and swaps in one step, so a request
// never observes a half-loaded model set.
type Registry struct {
	store *Store
	now   func() time.Time
	cur   atomic.Pointer[Loaded]
}

func New(store *Store, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, now: now}
}

func (r *Registry) Store() *Store { return r.store }

// Load resolves ACTIVE and swaps the bundle in. With no active artifact the
// current bundle stays untouched and ErrModelNotLoaded surfaces.
func (r *Registry) Load() error {
	version, err := r.store.ActiveVersion()
	if err != nil {
		return err
	}
	loaded, err := r.LoadVersion(version)
	if err != nil {
		return err
	}
	r.cur.Store(loaded)
	return nil
}

// Reload re-resolves the ACTIVE pointer, picking up promotions made by the
// trainer since the last load.
func (r *Registry) Reload() error { return r.Load() }

// Current returns the active bundle, nil when nothing was ever loaded.
func (r *Registry) Current() *Loaded {
	return r.cur.Load()
}

// LoadVersion assembles a bundle from one version dir without touching the
// served pointer. Missing component files degrade; corrupt ones fail.
func (r *Registry) LoadVersion(version int) (*Loaded, error) {
	dir := r.store.VersionDir(version)
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("v%d: %w", version, err)
	}

	loaded := &Loaded{
		Version:  version,
		Manifest: manifest,
		Stats:    map[string]domain.FeatureStats{},
		LoadedAt: r.now().UTC(),
	}

	var clf *boosted.Model
	switch data, err := readComponent(dir, classifierFile); {
	case err == nil:
		clf, err = boosted.UnmarshalBinary(data)
		if err != nil {
			return nil, fmt.Errorf("v%d classifier: %w", version, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		loaded.Missing = append(loaded.Missing, "classifier")
	default:
		return nil, fmt.Errorf("v%d classifier: %w", version, err)
	}

	var reg *gbrt.Model
	switch data, err := readComponent(dir, regressorFile); {
	case err == nil:
		reg, err = gbrt.UnmarshalBinary(data)
		if err != nil {
			return nil, fmt.Errorf("v%d regressor: %w", version, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		loaded.Missing = append(loaded.Missing, "regressor")
	default:
		return nil, fmt.Errorf("v%d regressor: %w", version, err)
	}
	loaded.Meta = meta.New(clf, reg)

	curves := make(map[domain.EngineKind]*calibration.Curve)
	for _, engine := range domain.EngineKinds() {
		data, err := readComponent(dir, calibratorFile(engine))
		if errors.Is(err, fs.ErrNotExist) {
			loaded.Missing = append(loaded.Missing, "calibrator_"+string(engine))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("v%d calibrator %s: %w", version, engine, err)
		}
		curve, err := calibration.UnmarshalBinary(data)
		if err != nil {
			return nil, fmt.Errorf("v%d calibrator %s: %w", version, engine, err)
		}
		curves[engine] = curve
	}
	loaded.Calibrator = calibration.New(curves)

	engineNames := manifest.WeightEngines
	if len(engineNames) == 0 {
		for _, k := range domain.EngineKinds() {
			engineNames = append(engineNames, string(k))
		}
	}
	subs := make([]*gbrt.Model, 0, len(engineNames))
	complete := true
	for _, name := range engineNames {
		data, err := readComponent(dir, weightsFile(name))
		if errors.Is(err, fs.ErrNotExist) {
			loaded.Missing = append(loaded.Missing, "weights_"+name)
			complete = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("v%d weights %s: %w", version, name, err)
		}
		sub, err := gbrt.UnmarshalBinary(data)
		if err != nil {
			return nil, fmt.Errorf("v%d weights %s: %w", version, name, err)
		}
		subs = append(subs, sub)
	}
	var multi *weights.MultiOutputRegressor
	if complete && len(subs) > 0 {
		multi, err = weights.NewMultiOutputRegressor(engineNames, subs)
		if err != nil {
			return nil, fmt.Errorf("v%d weights: %w", version, err)
		}
	}
	loaded.Optimizer, err = weights.NewOptimizer(multi)
	if err != nil {
		return nil, fmt.Errorf("v%d weights: %w", version, err)
	}

	switch data, err := readComponent(dir, statsFile); {
	case err == nil:
		if err := json.Unmarshal(data, &loaded.Stats); err != nil {
			return nil, fmt.Errorf("v%d feature stats: %w", version, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		loaded.Missing = append(loaded.Missing, "feature_stats")
	default:
		return nil, fmt.Errorf("v%d feature stats: %w", version, err)
	}

	return loaded, nil
}

func readComponent(dir, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, name))
}
