package bayes

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat/distuv"

	"verdict-engine/internal/domain"
)

type Config struct {
	PriorAlpha      float64
	PriorBeta       float64
	Decay           float64 // per-day evidence retention, 1 disables forgetting
	MinSamples      int64
	ExplorationRate float64
}

func DefaultConfig() Config {
	return Config{
		PriorAlpha:      1,
		PriorBeta:       1,
		Decay:           0.99,
		MinSamples:      10,
		ExplorationRate: 0.1,
	}
}

// strategy holds one posterior. Writers serialize on mu; readers load the
// committed snapshot pointer without blocking a writer.
type strategy struct {
	mu    sync.Mutex
	state atomic.Pointer[domain.StrategyPosterior]
	dirty atomic.Bool
}

func (s *strategy) snapshot() domain.StrategyPosterior {
	return *s.state.Load()
}

// Engine maintains one Beta-Bernoulli posterior per named strategy,
// updated online from trade outcomes with per-day evidence decay, and
// serves Thompson-sampling strategy selection.
type Engine struct {
	cfg Config
	now func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu         sync.RWMutex
	strategies map[string]*strategy
}

// New builds an engine. A nil clock uses time.Now; a nil source seeds a
// PCG from the clock.
func New(cfg Config, now func() time.Time, src rand.Source) *Engine {
	defaults := DefaultConfig()
	if cfg.PriorAlpha <= 0 {
		cfg.PriorAlpha = defaults.PriorAlpha
	}
	if cfg.PriorBeta <= 0 {
		cfg.PriorBeta = defaults.PriorBeta
	}
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		cfg.Decay = defaults.Decay
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaults.MinSamples
	}
	if cfg.ExplorationRate < 0 || cfg.ExplorationRate > 1 {
		cfg.ExplorationRate = defaults.ExplorationRate
	}
	if now == nil {
		now = time.Now
	}
	if src == nil {
		t := uint64(now().UnixNano())
		src = rand.NewPCG(t, t^0x9e3779b97f4a7c15)
	}
	return &Engine{
		cfg:        cfg,
		now:        now,
		rng:        rand.New(src),
		strategies: make(map[string]*strategy),
	}
}

// get lazily initializes a posterior at the prior on first reference.
func (e *Engine) get(name string) *strategy {
	e.mu.RLock()
	s, ok := e.strategies[name]
	e.mu.RUnlock()
	if ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.strategies[name]; ok {
		return s
	}
	s = &strategy{}
	init := domain.StrategyPosterior{
		Name:        name,
		Alpha:       e.cfg.PriorAlpha,
		Beta:        e.cfg.PriorBeta,
		WinRate:     e.cfg.PriorAlpha / (e.cfg.PriorAlpha + e.cfg.PriorBeta),
		LastUpdated: e.now().UTC(),
	}
	s.state.Store(&init)
	e.strategies[name] = s
	return s
}

// Update decays the existing evidence toward the prior, then folds in the
// new outcome. Decay is applied to the evidence above the prior so alpha
// and beta can never fall below it, keeping the posterior strictly proper.
func (e *Engine) Update(name string, outcome int, pnl *float64) domain.StrategyPosterior {
	s := e.get(name)

	s.mu.Lock()
	cur := *s.state.Load()
	now := e.now().UTC()

	dt := now.Sub(cur.LastUpdated).Hours() / 24
	if dt < 0 {
		dt = 0
	}
	f := math.Pow(e.cfg.Decay, dt)
	alpha := e.cfg.PriorAlpha + (cur.Alpha-e.cfg.PriorAlpha)*f
	beta := e.cfg.PriorBeta + (cur.Beta-e.cfg.PriorBeta)*f

	if outcome == 1 {
		alpha++
	} else {
		beta++
	}

	next := domain.StrategyPosterior{
		Name:         name,
		Alpha:        alpha,
		Beta:         beta,
		TotalSamples: cur.TotalSamples + 1,
		WinRate:      alpha / (alpha + beta),
		LastUpdated:  now,
	}
	s.state.Store(&next)
	s.dirty.Store(true)
	s.mu.Unlock()

	evt := log.Debug().Str("strategy", name).Int("outcome", outcome).
		Float64("alpha", next.Alpha).Float64("beta", next.Beta).
		Float64("win_rate", next.WinRate)
	if pnl != nil {
		evt = evt.Float64("pnl", *pnl)
	}
	evt.Msg("strategy posterior updated")

	return next
}

// Weights answers win_rate per strategy, or the neutral 0.5 while a
// strategy is still below the sample minimum. With normalize the weights
// are rescaled to sum to 1.
func (e *Engine) Weights(normalize bool) map[string]float64 {
	e.mu.RLock()
	snaps := make([]domain.StrategyPosterior, 0, len(e.strategies))
	for _, s := range e.strategies {
		snaps = append(snaps, s.snapshot())
	}
	e.mu.RUnlock()

	out := make(map[string]float64, len(snaps))
	var sum float64
	for _, p := range snaps {
		w := 0.5
		if p.TotalSamples >= e.cfg.MinSamples {
			w = p.WinRate
		}
		out[p.Name] = w
		sum += w
	}
	if normalize && sum > 0 {
		for name := range out {
			out[name] /= sum
		}
	}
	return out
}

// ThompsonSample selects n of the candidate strategies. With probability
// ExplorationRate it picks uniformly at random with replacement, so the
// result may contain duplicates; otherwise it draws once from each
// posterior and keeps the top n draws.
func (e *Engine) ThompsonSample(candidates []string, n int) []string {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}

	e.rngMu.Lock()
	explore := e.rng.Float64() < e.cfg.ExplorationRate
	if explore {
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = candidates[e.rng.IntN(len(candidates))]
		}
		e.rngMu.Unlock()
		return out
	}

	type draw struct {
		name  string
		value float64
	}
	draws := make([]draw, 0, len(candidates))
	for _, name := range candidates {
		p := e.get(name).snapshot()
		dist := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta, Src: e.rng}
		draws = append(draws, draw{name: name, value: dist.Rand()})
	}
	e.rngMu.Unlock()

	sort.Slice(draws, func(i, j int) bool { return draws[i].value > draws[j].value })
	if n > len(draws) {
		n = len(draws)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = draws[i].name
	}
	return out
}

// CredibleIntervals answers the central credible interval per strategy via
// the Beta inverse CDF at the two tails.
func (e *Engine) CredibleIntervals(credibility float64) map[string][2]float64 {
	if credibility <= 0 || credibility >= 1 {
		credibility = 0.95
	}
	tail := (1 - credibility) / 2

	e.mu.RLock()
	snaps := make([]domain.StrategyPosterior, 0, len(e.strategies))
	for _, s := range e.strategies {
		snaps = append(snaps, s.snapshot())
	}
	e.mu.RUnlock()

	out := make(map[string][2]float64, len(snaps))
	for _, p := range snaps {
		dist := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}
		out[p.Name] = [2]float64{dist.Quantile(tail), dist.Quantile(1 - tail)}
	}
	return out
}

// Recommendation reports whether a strategy should be used. Below the
// sample minimum it stays usable with an explicit bootstrap reason; after
// that, use requires the lower 95% bound to clear 0.5.
type Recommendation struct {
	Strategy   string                   `json:"strategy"`
	Use        bool                     `json:"use"`
	Confidence float64                  `json:"confidence"`
	Reason     string                   `json:"reason"`
	Lower      float64                  `json:"lower"`
	Upper      float64                  `json:"upper"`
	Posterior  domain.StrategyPosterior `json:"posterior"`
}

func (e *Engine) Recommendation(name string) Recommendation {
	p := e.get(name).snapshot()
	dist := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}
	lower := dist.Quantile(0.025)
	upper := dist.Quantile(0.975)
	confidence := 1 - math.Min(upper-lower, 1)

	if p.TotalSamples < e.cfg.MinSamples {
		return Recommendation{
			Strategy:   name,
			Use:        true,
			Confidence: confidence,
			Reason:     fmt.Sprintf("bootstrap phase: %d of %d required samples", p.TotalSamples, e.cfg.MinSamples),
			Lower:      lower,
			Upper:      upper,
			Posterior:  p,
		}
	}

	use := lower > 0.5
	reason := fmt.Sprintf("win rate %.3f, 95%% credible interval [%.3f, %.3f]", p.WinRate, lower, upper)
	if !use {
		reason += "; lower bound does not clear 0.5"
	}
	return Recommendation{
		Strategy:   name,
		Use:        use,
		Confidence: confidence,
		Reason:     reason,
		Lower:      lower,
		Upper:      upper,
		Posterior:  p,
	}
}

// Reset reinitializes a strategy to the prior. The strategy itself is
// never deleted.
func (e *Engine) Reset(name string) domain.StrategyPosterior {
	s := e.get(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	next := domain.StrategyPosterior{
		Name:        name,
		Alpha:       e.cfg.PriorAlpha,
		Beta:        e.cfg.PriorBeta,
		WinRate:     e.cfg.PriorAlpha / (e.cfg.PriorAlpha + e.cfg.PriorBeta),
		LastUpdated: e.now().UTC(),
	}
	s.state.Store(&next)
	s.dirty.Store(true)
	return next
}

// Snapshot returns every posterior, sorted by strategy name.
func (e *Engine) Snapshot() []domain.StrategyPosterior {
	e.mu.RLock()
	out := make([]domain.StrategyPosterior, 0, len(e.strategies))
	for _, s := range e.strategies {
		out = append(out, s.snapshot())
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dirty returns the posteriors changed since the last call and clears
// their flags. A failed flush should hand the names back via MarkDirty.
func (e *Engine) Dirty() []domain.StrategyPosterior {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []domain.StrategyPosterior
	for _, s := range e.strategies {
		if s.dirty.CompareAndSwap(true, false) {
			out = append(out, s.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *Engine) MarkDirty(names ...string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, name := range names {
		if s, ok := e.strategies[name]; ok {
			s.dirty.Store(true)
		}
	}
}

// Hydrate installs persisted posteriors, replacing any in-memory state for
// the same names. Meant for startup, before traffic.
func (e *Engine) Hydrate(posteriors []domain.StrategyPosterior) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range posteriors {
		if p.Name == "" || p.Alpha <= 0 || p.Beta <= 0 {
			log.Warn().Str("strategy", p.Name).Float64("alpha", p.Alpha).Float64("beta", p.Beta).
				Msg("skipping invalid persisted posterior")
			continue
		}
		cp := p
		cp.WinRate = cp.Alpha / (cp.Alpha + cp.Beta)
		s := &strategy{}
		s.state.Store(&cp)
		e.strategies[p.Name] = s
	}
}
