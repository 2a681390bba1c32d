package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	iforest "github.com/narumiruna/go-iforest/pkg/iforest"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/stat"

	"verdict-engine/internal/calibration"
	"verdict-engine/internal/config"
	"verdict-engine/internal/domain"
	"verdict-engine/internal/features"
	"verdict-engine/internal/models/boosted"
	"verdict-engine/internal/models/gbrt"
	"verdict-engine/internal/registry"
	"verdict-engine/internal/weights"
)

// minDatasetRows is the floor below which a run cannot produce a meaningful
// validation slice no matter which families are forced.
const minDatasetRows = 50

// SampleSource feeds the pipeline its three pooled training sources.
type SampleSource interface {
	ListSnapshotSamples(ctx context.Context) ([]domain.TrainingSample, error)
	ListBacktestTrades(ctx context.Context) ([]BacktestTrade, error)
	ListBarSymbols(ctx context.Context, interval string) ([]string, error)
	ListBars(ctx context.Context, symbol, interval string, from, to time.Time) ([]domain.Bar, error)
}

// Announcer receives the run verdict. The telegram notifier satisfies it.
type Announcer interface {
	ModelPromoted(version int, metrics map[string]float64)
	GateRejected(version int, reasons []string)
}

// Options tune one run. The zero value trains every family that has enough
// data from 90 days of hourly bars plus all stored snapshots and backtests.
type Options struct {
	Force        bool
	BarInterval  string
	LookbackDays int
}

// Result summarizes one training run.
type Result struct {
	Version  int
	Promoted bool
	Gate     registry.GateSummary
	Families map[string]string
	Metrics  map[string]float64
	Samples  int
	Dropped  int
	Outliers int
	TestSize int
}

// Pipeline owns the offline path: pool sources, scrub, split, train each
// family, persist a candidate and let the gate decide its fate. Serving
// never calls into here; it only sees what the store promotes.
type Pipeline struct {
	tracer    trace.Tracer
	source    SampleSource
	store     *registry.Store
	notifier  Announcer
	extractor *features.Extractor
	policy    config.Policy
	now       func() time.Time
}

func NewPipeline(tracer trace.Tracer, source SampleSource, store *registry.Store, notifier Announcer, policy config.Policy, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		tracer:    tracer,
		source:    source,
		store:     store,
		notifier:  notifier,
		extractor: features.New(),
		policy:    policy,
		now:       now,
	}
}

// Run collects from every source and trains. Most callers want this; Train
// exists for callers that already hold a sample pool.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "training.run")
	defer span.End()

	samples, err := p.collect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.Train(ctx, samples, opts)
}

func (p *Pipeline) collect(ctx context.Context, opts Options) ([]domain.TrainingSample, error) {
	if p.source == nil {
		return nil, errors.New("training: no sample source configured")
	}
	interval := opts.BarInterval
	if interval == "" {
		interval = "1h"
	}
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	now := p.now().UTC()

	snapshots, err := p.source.ListSnapshotSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot samples: %w", err)
	}
	trades, err := p.source.ListBacktestTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backtest trades: %w", err)
	}
	samples := append(snapshots, BacktestSamples(p.extractor, trades)...)

	symbols, err := p.source.ListBarSymbols(ctx, interval)
	if err != nil {
		return nil, fmt.Errorf("list bar symbols: %w", err)
	}
	from := now.AddDate(0, 0, -lookback)
	for _, symbol := range symbols {
		bars, err := p.source.ListBars(ctx, symbol, interval, from, now)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", symbol, err)
		}
		samples = append(samples, SynthesizeFromBars(p.extractor, bars, p.policy.Training.BarsHorizon)...)
	}

	log.Info().
		Int("snapshots", len(snapshots)).
		Int("backtests", len(trades)).
		Int("bar_symbols", len(symbols)).
		Int("pooled", len(samples)).
		Msg("training sources collected")
	return samples, nil
}

// Train runs the offline path over an already-pooled sample set.
func (p *Pipeline) Train(ctx context.Context, samples []domain.TrainingSample, opts Options) (*Result, error) {
	_, span := p.tracer.Start(ctx, "training.train")
	defer span.End()

	pool, dropped := filterSamples(samples, p.policy.Training.MaxReturnPct)
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].At.Before(pool[j].At) })
	pool, outliers := p.dropOutliers(pool)

	if len(pool) < minDatasetRows {
		return nil, fmt.Errorf("%w: %d usable samples after scrubbing", domain.ErrInsufficientData, len(pool))
	}
	cut := int(float64(len(pool)) * p.policy.Training.TrainFraction)
	if cut <= 0 || cut >= len(pool) {
		return nil, fmt.Errorf("%w: split at %d of %d leaves an empty partition", domain.ErrInsufficientData, cut, len(pool))
	}
	trainSet, validSet := pool[:cut], pool[cut:]

	version, err := p.store.NextVersion()
	if err != nil {
		return nil, err
	}

	arts, input := p.trainFamilies(trainSet, validSet, opts.Force)
	arts.Manifest = registry.Manifest{
		Version:      version,
		TrainedAt:    p.now().UTC(),
		FeatureNames: domain.FeatureNames(),
		SampleCount:  len(pool),
		Families:     arts.Manifest.Families,
		Metrics:      runMetrics(input),
	}
	if arts.Weights != nil {
		arts.Manifest.WeightEngines = arts.Weights.Outputs()
	}
	arts.Stats = featureStats(trainSet, p.policy.Training.StatsSampleCap)

	if _, err := p.store.WriteCandidate(arts); err != nil {
		return nil, err
	}

	gate := EvaluateGate(input, p.policy.Gate)
	if gate.Passed {
		if err := p.store.PromoteCandidate(version, &gate); err != nil {
			return nil, err
		}
		if p.notifier != nil {
			p.notifier.ModelPromoted(version, arts.Manifest.Metrics)
		}
	} else {
		if err := p.store.RejectCandidate(version, &gate); err != nil {
			return nil, err
		}
		if p.notifier != nil {
			p.notifier.GateRejected(version, FailureReasons(gate))
		}
	}

	res := &Result{
		Version:  version,
		Promoted: gate.Passed,
		Gate:     gate,
		Families: arts.Manifest.Families,
		Metrics:  arts.Manifest.Metrics,
		Samples:  len(pool),
		Dropped:  dropped,
		Outliers: outliers,
		TestSize: len(validSet),
	}
	log.Info().
		Int("version", version).
		Bool("promoted", res.Promoted).
		Int("samples", res.Samples).
		Int("dropped", dropped).
		Int("outliers", outliers).
		Int("validation", res.TestSize).
		Msg("training run finished")
	return res, nil
}

// trainFamilies fits every family that clears the per-family sample floor
// and gathers the validation evidence the gate needs. Family failures are
// recorded, never fatal: the gate decides what an absent family means.
func (p *Pipeline) trainFamilies(trainSet, validSet []domain.TrainingSample, force bool) (*registry.Artifacts, GateInput) {
	arts := &registry.Artifacts{Manifest: registry.Manifest{Families: make(map[string]string, 4)}}
	input := GateInput{}

	trainX, trainY, trainR := matrices(trainSet)
	validX, validY, validR := matrices(validSet)
	names := domain.FeatureNames()

	belowFloor := len(trainSet) < p.policy.Training.MinSamplesPerFamily && !force
	skipAll := func(family string) bool {
		if belowFloor {
			arts.Manifest.Families[family] = "skipped"
			return true
		}
		return false
	}

	if !skipAll("classifier") {
		clf, err := boosted.Train(trainX, trainY, names, boosted.DefaultTrainOptions())
		if err != nil {
			log.Warn().Err(err).Msg("classifier family failed")
			arts.Manifest.Families["classifier"] = "failed"
		} else {
			arts.Classifier = clf
			input.ClassifierMetrics = computeMetrics(validY, clf.PredictBatch(validX))
			arts.Manifest.Families["classifier"] = "trained"
		}
	}

	if !skipAll("regressor") {
		reg, err := gbrt.Train(trainX, trainR, names, gbrt.DefaultTrainOptions())
		if err != nil {
			log.Warn().Err(err).Msg("regressor family failed")
			arts.Manifest.Families["regressor"] = "failed"
		} else {
			arts.Regressor = reg
			input.RegressorError = regressionError(validR, reg.PredictBatch(validX))
			arts.Manifest.Families["regressor"] = "trained"
		}
	}

	if !skipAll("calibrator") {
		arts.Calibrators = p.fitCalibrators(trainSet)
		if len(arts.Calibrators) == 0 {
			arts.Manifest.Families["calibrator"] = "skipped"
		} else {
			input.CalibrationError = validationCalibrationError(arts.Calibrators, validSet)
			arts.Manifest.Families["calibrator"] = "trained"
		}
	}

	if !skipAll("weights") {
		multi, err := p.fitWeights(trainSet, trainX, names)
		if err != nil {
			log.Warn().Err(err).Msg("weights family failed")
			arts.Manifest.Families["weights"] = "failed"
		} else {
			arts.Weights = multi
			input.MeanWeights = meanWeights(multi, validSet)
			arts.Manifest.Families["weights"] = "trained"
		}
	}

	return arts, input
}

func (p *Pipeline) fitCalibrators(trainSet []domain.TrainingSample) map[domain.EngineKind]*calibration.Curve {
	curves := make(map[domain.EngineKind]*calibration.Curve, 4)
	fittedAt := p.now().UTC()
	for i, kind := range domain.EngineKinds() {
		raws, outcomes := confidencePairs(trainSet, 4+i)
		curve, err := calibration.Fit(kind, raws, outcomes, fittedAt)
		if err != nil {
			log.Debug().Err(err).Str("engine", string(kind)).Msg("calibrator engine skipped")
			continue
		}
		curves[kind] = curve
	}
	return curves
}

func (p *Pipeline) fitWeights(trainSet []domain.TrainingSample, trainX [][]float64, names []string) (*weights.MultiOutputRegressor, error) {
	targets := weights.AffinityTargets(trainSet, p.policy.Training.TargetTemperature)
	outputs := make([]string, 0, 4)
	for _, kind := range domain.EngineKinds() {
		outputs = append(outputs, string(kind))
	}
	return weights.TrainMultiOutput(trainX, targets, outputs, names, gbrt.DefaultTrainOptions())
}

// dropOutliers removes the most anomalous rows per the isolation forest,
// never more than the policy fraction. Small pools are left alone.
func (p *Pipeline) dropOutliers(samples []domain.TrainingSample) ([]domain.TrainingSample, int) {
	maxDrop := int(p.policy.Training.MaxOutlierFraction * float64(len(samples)))
	if maxDrop <= 0 || len(samples) < minDatasetRows {
		return samples, 0
	}

	matrix := make([][]float64, len(samples))
	for i := range samples {
		matrix[i] = samples[i].Features[:]
	}
	forest := iforest.New()
	forest.Fit(matrix)
	scores := forest.Score(matrix)

	type flagged struct {
		idx   int
		score float64
	}
	var hits []flagged
	for i, score := range scores {
		if score >= p.policy.Training.OutlierScore {
			hits = append(hits, flagged{idx: i, score: score})
		}
	}
	if len(hits) == 0 {
		return samples, 0
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxDrop {
		hits = hits[:maxDrop]
	}

	drop := make(map[int]struct{}, len(hits))
	for _, h := range hits {
		drop[h.idx] = struct{}{}
	}
	kept := make([]domain.TrainingSample, 0, len(samples)-len(drop))
	for i := range samples {
		if _, gone := drop[i]; gone {
			continue
		}
		kept = append(kept, samples[i])
	}
	return kept, len(drop)
}

// filterSamples drops rows the models must never see: non-finite vectors,
// labels outside {0,1}, implausible returns and all-zero vectors.
func filterSamples(samples []domain.TrainingSample, maxReturnPct float64) ([]domain.TrainingSample, int) {
	kept := make([]domain.TrainingSample, 0, len(samples))
	for _, s := range samples {
		if s.Outcome != 0 && s.Outcome != 1 {
			continue
		}
		if anyNonFinite(s.ReturnPct) || math.Abs(s.ReturnPct) > maxReturnPct {
			continue
		}
		if !usableVector(s.Features) {
			continue
		}
		kept = append(kept, s)
	}
	return kept, len(samples) - len(kept)
}

func usableVector(fv domain.FeatureVector) bool {
	allZero := true
	for _, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if v != 0 {
			allZero = false
		}
	}
	return !allZero
}

func matrices(samples []domain.TrainingSample) (x [][]float64, labels []float64, returns []float64) {
	x = make([][]float64, len(samples))
	labels = make([]float64, len(samples))
	returns = make([]float64, len(samples))
	for i := range samples {
		x[i] = samples[i].Features[:]
		labels[i] = float64(samples[i].Outcome)
		returns[i] = samples[i].ReturnPct
	}
	return x, labels, returns
}

func confidencePairs(samples []domain.TrainingSample, slot int) (raws, outcomes []float64) {
	for _, s := range samples {
		raw := s.Features[slot]
		if raw <= 0 {
			continue
		}
		raws = append(raws, raw)
		outcomes = append(outcomes, float64(s.Outcome))
	}
	return raws, outcomes
}

func validationCalibrationError(curves map[domain.EngineKind]*calibration.Curve, validSet []domain.TrainingSample) map[domain.EngineKind]float64 {
	out := make(map[domain.EngineKind]float64, len(curves))
	for i, kind := range domain.EngineKinds() {
		curve := curves[kind]
		if curve == nil {
			continue
		}
		raws, outcomes := confidencePairs(validSet, 4+i)
		if len(raws) < 10 {
			continue
		}
		preds := make([]float64, len(raws))
		for j, raw := range raws {
			preds[j] = curve.Predict(raw)
		}
		out[kind] = binnedCalibrationError(preds, outcomes)
	}
	return out
}

func meanWeights(multi *weights.MultiOutputRegressor, validSet []domain.TrainingSample) map[domain.EngineKind]float64 {
	if len(validSet) == 0 {
		return nil
	}
	opt, err := weights.NewOptimizer(multi)
	if err != nil {
		return nil
	}
	sums := make(map[domain.EngineKind]float64, 4)
	for _, s := range validSet {
		for kind, w := range opt.Weights(s.Features) {
			sums[kind] += w
		}
	}
	for kind := range sums {
		sums[kind] /= float64(len(validSet))
	}
	return sums
}

// runMetrics flattens the gate evidence into the manifest metrics map.
func runMetrics(input GateInput) map[string]float64 {
	out := make(map[string]float64, 12)
	for k, v := range input.ClassifierMetrics {
		out[k] = v
	}
	if input.RegressorError != nil {
		out["regressor_mae"] = input.RegressorError.MAE
		out["regressor_rmse"] = input.RegressorError.RMSE
	}
	for kind, e := range input.CalibrationError {
		out["calibration_error_"+string(kind)] = e
	}
	for kind, w := range input.MeanWeights {
		out["weight_mean_"+string(kind)] = w
	}
	return out
}

// featureStats snapshots the training-slice distribution per feature. The
// drift monitor later compares live windows against these samples.
func featureStats(trainSet []domain.TrainingSample, sampleCap int) map[string]domain.FeatureStats {
	out := make(map[string]domain.FeatureStats, domain.FeatureCount)
	if len(trainSet) == 0 {
		return out
	}
	quantilePoints := []float64{0.1, 0.25, 0.5, 0.75, 0.9}
	for i, name := range domain.FeatureNames() {
		col := make([]float64, len(trainSet))
		for j := range trainSet {
			col[j] = trainSet[j].Features[i]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)

		quantiles := make([]float64, len(quantilePoints))
		for k, q := range quantilePoints {
			quantiles[k] = stat.Quantile(q, stat.Empirical, sorted, nil)
		}
		out[name] = domain.FeatureStats{
			Mean:      stat.Mean(col, nil),
			Std:       stat.PopStdDev(col, nil),
			Min:       sorted[0],
			Max:       sorted[len(sorted)-1],
			Quantiles: quantiles,
			Sample:    strideSample(col, sampleCap),
		}
	}
	return out
}

// strideSample keeps at most limit values, evenly spaced so the sample
// preserves the chronological spread of the column.
func strideSample(col []float64, limit int) []float64 {
	if limit <= 0 || len(col) <= limit {
		return append([]float64(nil), col...)
	}
	out := make([]float64, 0, limit)
	step := float64(len(col)) / float64(limit)
	for i := 0; i < limit; i++ {
		out = append(out, col[int(float64(i)*step)])
	}
	return out
}
