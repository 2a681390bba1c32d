package bayes

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"verdict-engine/internal/domain"
)

func TestConsecutiveWinsWithoutDecay(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Decay = 1
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(1, 2))

	const k = 7
	var last = e.Update("momentum", 1, nil)
	for i := 1; i < k; i++ {
		last = e.Update("momentum", 1, nil)
	}
	if last.Alpha != cfg.PriorAlpha+k {
		t.Fatalf("alpha after %d wins = %v, want %v", k, last.Alpha, cfg.PriorAlpha+k)
	}
	if last.Beta != cfg.PriorBeta {
		t.Fatalf("beta after wins = %v, want prior %v", last.Beta, cfg.PriorBeta)
	}
	if last.TotalSamples != k {
		t.Fatalf("total samples = %d, want %d", last.TotalSamples, k)
	}
}

func TestWinRateStaysInOpenUnitInterval(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := New(DefaultConfig(), func() time.Time { return now }, rand.NewPCG(3, 4))

	for i := 0; i < 200; i++ {
		p := e.Update("losses", 0, nil)
		if p.WinRate <= 0 || p.WinRate >= 1 {
			t.Fatalf("win rate left (0,1): %v", p.WinRate)
		}
	}
	for i := 0; i < 200; i++ {
		p := e.Update("wins", 1, nil)
		if p.WinRate <= 0 || p.WinRate >= 1 {
			t.Fatalf("win rate left (0,1): %v", p.WinRate)
		}
	}
}

func TestDecayRelaxesTowardPrior(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Decay = 0.5
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(5, 6))

	e.Update("stale", 1, nil) // alpha 2, beta 1
	now = now.Add(48 * time.Hour)
	p := e.Update("stale", 1, nil)

	// Two days at decay 0.5 keep a quarter of the old evidence:
	// alpha = 1 + (2-1)*0.25 + 1 = 2.25.
	if math.Abs(p.Alpha-2.25) > 1e-9 {
		t.Fatalf("decayed alpha = %v, want 2.25", p.Alpha)
	}
	if math.Abs(p.Beta-1) > 1e-9 {
		t.Fatalf("decayed beta = %v, want 1", p.Beta)
	}
	if p.Alpha <= cfg.PriorAlpha || p.Beta < cfg.PriorBeta {
		t.Fatalf("decay must never drop evidence below the prior: %+v", p)
	}
}

func TestWeightsNeutralUntilMinSamples(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MinSamples = 5
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(7, 8))

	for i := 0; i < 3; i++ {
		e.Update("young", 1, nil)
	}
	for i := 0; i < 20; i++ {
		e.Update("seasoned", 1, nil)
	}

	w := e.Weights(false)
	if w["young"] != 0.5 {
		t.Fatalf("weight below min samples = %v, want neutral 0.5", w["young"])
	}
	if w["seasoned"] <= 0.5 {
		t.Fatalf("seasoned winner weight = %v, want > 0.5", w["seasoned"])
	}

	norm := e.Weights(true)
	var sum float64
	for _, v := range norm {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("normalized weights sum = %v, want 1", sum)
	}
}

func TestThompsonPureExplorationIsUniform(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.ExplorationRate = 1.0
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(9, 10))

	// Give one strategy overwhelming evidence; pure exploration must
	// ignore it.
	for i := 0; i < 100; i++ {
		e.Update("a", 1, nil)
		e.Update("b", 0, nil)
		e.Update("c", 0, nil)
	}

	counts := map[string]int{}
	const trials = 3000
	for i := 0; i < trials; i++ {
		picked := e.ThompsonSample([]string{"a", "b", "c"}, 1)
		if len(picked) != 1 {
			t.Fatalf("sample size = %d, want 1", len(picked))
		}
		counts[picked[0]]++
	}
	for name, c := range counts {
		if c < trials/3-200 || c > trials/3+200 {
			t.Fatalf("exploration not uniform: %s picked %d of %d", name, c, trials)
		}
	}
}

func TestThompsonExplorationMayRepeatNames(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.ExplorationRate = 1.0
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(11, 12))

	picked := e.ThompsonSample([]string{"a", "b"}, 10)
	if len(picked) != 10 {
		t.Fatalf("exploration sample size = %d, want 10", len(picked))
	}
	seen := map[string]int{}
	for _, name := range picked {
		seen[name]++
	}
	dup := false
	for _, c := range seen {
		if c > 1 {
			dup = true
		}
	}
	if !dup {
		t.Fatal("drawing 10 from 2 candidates with replacement must repeat a name")
	}
}

func TestThompsonExploitationPrefersWinner(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.ExplorationRate = 0
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(13, 14))

	for i := 0; i < 80; i++ {
		e.Update("winner", 1, nil)
		e.Update("loser", 0, nil)
	}

	wins := 0
	const trials = 500
	for i := 0; i < trials; i++ {
		if e.ThompsonSample([]string{"winner", "loser"}, 1)[0] == "winner" {
			wins++
		}
	}
	if wins < trials*9/10 {
		t.Fatalf("exploitation picked the winner only %d of %d times", wins, trials)
	}
}

func TestCredibleIntervalsBracketMean(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := New(DefaultConfig(), func() time.Time { return now }, rand.NewPCG(15, 16))

	e.Update("x", 1, nil)
	e.Update("x", 0, nil)
	e.Update("x", 1, nil)

	intervals := e.CredibleIntervals(0.95)
	ci, ok := intervals["x"]
	if !ok {
		t.Fatal("missing interval for strategy x")
	}
	mean := e.Snapshot()[0].Mean()
	if !(ci[0] <= mean && mean <= ci[1]) {
		t.Fatalf("interval [%v, %v] does not bracket mean %v", ci[0], ci[1], mean)
	}
	if ci[0] < 0 || ci[1] > 1 {
		t.Fatalf("interval [%v, %v] left [0,1]", ci[0], ci[1])
	}
}

func TestRecommendationPhases(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	e := New(cfg, func() time.Time { return now }, rand.NewPCG(17, 18))

	rec := e.Recommendation("fresh")
	if !rec.Use {
		t.Fatal("bootstrap phase must stay usable")
	}
	if !strings.Contains(rec.Reason, "bootstrap") {
		t.Fatalf("bootstrap reason missing, got %q", rec.Reason)
	}
	if rec.Confidence > 0.2 {
		t.Fatalf("bootstrap confidence = %v, want low", rec.Confidence)
	}

	for i := 0; i < 60; i++ {
		e.Update("strong", 1, nil)
	}
	e.Update("strong", 0, nil)
	rec = e.Recommendation("strong")
	if !rec.Use {
		t.Fatalf("strong strategy should be recommended: %+v", rec)
	}
	if rec.Confidence <= 0.5 {
		t.Fatalf("strong strategy confidence = %v, want > 0.5", rec.Confidence)
	}

	for i := 0; i < 30; i++ {
		e.Update("coinflip", i%2, nil)
	}
	rec = e.Recommendation("coinflip")
	if rec.Use {
		t.Fatalf("coinflip strategy must not be recommended: %+v", rec)
	}
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := New(DefaultConfig(), func() time.Time { return now }, rand.NewPCG(19, 20))

	const workers = 32
	const each = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				e.Update("shared", (w+i)%2, nil)
				e.Weights(true)
			}
		}(w)
	}
	wg.Wait()

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap))
	}
	if snap[0].TotalSamples != workers*each {
		t.Fatalf("total samples = %d, want %d (lost updates)", snap[0].TotalSamples, workers*each)
	}
}

func TestDirtyFlushCycle(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := New(DefaultConfig(), func() time.Time { return now }, rand.NewPCG(21, 22))

	e.Update("a", 1, nil)
	e.Update("b", 0, nil)

	dirty := e.Dirty()
	if len(dirty) != 2 {
		t.Fatalf("dirty count = %d, want 2", len(dirty))
	}
	if len(e.Dirty()) != 0 {
		t.Fatal("second Dirty call should be empty")
	}

	e.MarkDirty("a")
	dirty = e.Dirty()
	if len(dirty) != 1 || dirty[0].Name != "a" {
		t.Fatalf("re-marked dirty = %+v, want just a", dirty)
	}
}

func TestHydrateRestoresPersistedState(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e := New(DefaultConfig(), func() time.Time { return now }, rand.NewPCG(23, 24))

	e.Hydrate([]domain.StrategyPosterior{
		{Name: "restored", Alpha: 12, Beta: 4, TotalSamples: 14, LastUpdated: now.Add(-24 * time.Hour)},
		{Name: "bad", Alpha: 0, Beta: -1},
	})

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("hydrated %d strategies, want 1 (invalid row skipped)", len(snap))
	}
	if snap[0].Name != "restored" || math.Abs(snap[0].WinRate-0.75) > 1e-9 {
		t.Fatalf("restored posterior = %+v", snap[0])
	}
}
