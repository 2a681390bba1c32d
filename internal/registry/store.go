package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"verdict-engine/internal/calibration"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/models/boosted"
	"verdict-engine/internal/models/gbrt"
	"verdict-engine/internal/weights"
)

const (
	activeFile     = "ACTIVE"
	manifestFile   = "manifest.json"
	classifierFile = "classifier.json"
	regressorFile  = "regressor.json"
	statsFile      = "feature_stats.json"
)

var versionDirPattern = regexp.MustCompile(`^v(\d+)(-candidate|-rejected)?$`)

func calibratorFile(engine domain.EngineKind) string {
	return "calibrator_" + string(engine) + ".json"
}

func weightsFile(engine string) string {
	return "weights_" + engine + ".json"
}

// GateCheck is one validation-gate measurement, recorded in the manifest
// at promotion or rejection time.
type GateCheck struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Mandatory bool    `json:"mandatory"`
}

type GateSummary struct {
	Passed bool        `json:"passed"`
	Checks []GateCheck `json:"checks"`
}

// Manifest describes one trained artifact version.
type Manifest struct {
	Version       int                `json:"version"`
	TrainedAt     time.Time          `json:"trained_at"`
	FeatureNames  []string           `json:"feature_names"`
	WeightEngines []string           `json:"weight_engines"`
	SampleCount   int                `json:"sample_count"`
	Families      map[string]string  `json:"families"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	Gate          *GateSummary       `json:"gate,omitempty"`
}

// Artifacts is the full output of one training run, handed to the store
// for candidate persistence. Nil components are simply not written.
type Artifacts struct {
	Manifest    Manifest
	Classifier  *boosted.Model
	Regressor   *gbrt.Model
	Calibrators map[domain.EngineKind]*calibration.Curve
	Weights     *weights.MultiOutputRegressor
	Stats       map[string]domain.FeatureStats
}

// Store owns the on-disk artifact layout: one directory per version under
// the base dir, plus the ACTIVE pointer file. Candidates live in
// v<N>-candidate until the gate promotes (rename to v<N>) or rejects
// (rename to v<N>-rejected) them.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) VersionDir(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("v%d", version))
}

func (s *Store) CandidateDir(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("v%d-candidate", version))
}

func (s *Store) rejectedDir(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("v%d-rejected", version))
}

// NextVersion is one past the highest version on disk, counting candidates
// and rejects so a rejected v3 never collides with the next run.
func (s *Store) NextVersion() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan artifact dir: %w", err)
	}

	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max + 1, nil
}

// WriteCandidate persists a training run into v<N>-candidate. The manifest
// is always written; model components only when present.
func (s *Store) WriteCandidate(arts *Artifacts) (string, error) {
	if arts == nil || arts.Manifest.Version <= 0 {
		return "", errors.New("artifacts need a positive version")
	}
	dir := s.CandidateDir(arts.Manifest.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create candidate dir: %w", err)
	}

	if err := writeManifest(dir, arts.Manifest); err != nil {
		return "", err
	}
	if arts.Classifier != nil {
		if err := writeComponent(dir, classifierFile, arts.Classifier); err != nil {
			return "", err
		}
	}
	if arts.Regressor != nil {
		if err := writeComponent(dir, regressorFile, arts.Regressor); err != nil {
			return "", err
		}
	}
	for engine, curve := range arts.Calibrators {
		if curve == nil {
			continue
		}
		if err := writeComponent(dir, calibratorFile(engine), curve); err != nil {
			return "", err
		}
	}
	if arts.Weights != nil {
		for _, out := range arts.Weights.Outputs() {
			sub := arts.Weights.ModelFor(out)
			if sub == nil {
				continue
			}
			if err := writeComponent(dir, weightsFile(out), sub); err != nil {
				return "", err
			}
		}
	}
	if len(arts.Stats) > 0 {
		data, err := json.MarshalIndent(arts.Stats, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal feature stats: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, statsFile), data, 0o644); err != nil {
			return "", fmt.Errorf("write feature stats: %w", err)
		}
	}
	return dir, nil
}

// PromoteCandidate stamps the gate verdict into the manifest, renames the
// candidate to its final version dir and atomically repoints ACTIVE.
func (s *Store) PromoteCandidate(version int, gate *GateSummary) error {
	src := s.CandidateDir(version)
	if err := stampGate(src, gate); err != nil {
		return err
	}
	dst := s.VersionDir(version)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("promote candidate v%d: %w", version, err)
	}
	return s.Activate(version)
}

// RejectCandidate stamps the gate verdict and renames the candidate to
// v<N>-rejected. The active artifact is never touched.
func (s *Store) RejectCandidate(version int, gate *GateSummary) error {
	src := s.CandidateDir(version)
	if err := stampGate(src, gate); err != nil {
		return err
	}
	if err := os.Rename(src, s.rejectedDir(version)); err != nil {
		return fmt.Errorf("reject candidate v%d: %w", version, err)
	}
	return nil
}

// Activate repoints the ACTIVE file at an existing version dir via
// temp+rename, so readers only ever observe the old or the new pointer.
func (s *Store) Activate(version int) error {
	if _, err := os.Stat(s.VersionDir(version)); err != nil {
		return fmt.Errorf("activate v%d: %w", version, err)
	}
	path := filepath.Join(s.dir, activeFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("v%d\n", version)), 0o644); err != nil {
		return fmt.Errorf("write active pointer: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("swap active pointer: %w", err)
	}
	return nil
}

// ActiveVersion reads the ACTIVE pointer. A missing pointer means nothing
// has ever been promoted.
func (s *Store) ActiveVersion() (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, activeFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("no active artifact: %w", domain.ErrModelNotLoaded)
	}
	if err != nil {
		return 0, fmt.Errorf("read active pointer: %w", err)
	}
	name := strings.TrimSpace(string(data))
	if !strings.HasPrefix(name, "v") {
		return 0, fmt.Errorf("malformed active pointer %q", name)
	}
	v, err := strconv.Atoi(name[1:])
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("malformed active pointer %q", name)
	}
	return v, nil
}

// Versions lists promoted versions ascending, skipping candidates and
// rejects.
func (s *Store) Versions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact dir: %w", err)
	}
	var out []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := versionDirPattern.FindStringSubmatch(e.Name())
		if m == nil || m[2] != "" {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out, nil
}

type marshaler interface {
	MarshalBinary() ([]byte, error)
}

func writeComponent(dir, name string, m marshaler) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func stampGate(dir string, gate *GateSummary) error {
	if gate == nil {
		return nil
	}
	m, err := readManifest(dir)
	if err != nil {
		return err
	}
	m.Gate = gate
	return writeManifest(dir, m)
}
