package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/domain"
	"verdict-engine/internal/registry"
)

type windowReader interface {
	Recent(ctx context.Context) ([]domain.FeatureVector, error)
}

type bundleReader interface {
	Current() *registry.Loaded
}

type comparer interface {
	Compare(train map[string]domain.FeatureStats, recent []domain.FeatureVector) domain.DriftReport
}

type driftRecorder interface {
	RecordDrift(report domain.DriftReport)
}

type escalator interface {
	DriftEscalated(report domain.DriftReport)
}

// DriftJob periodically compares live feature traffic against the active
// artifact's training snapshot. It only observes and reports; retraining
// stays an operator decision.
type DriftJob struct {
	tracer   trace.Tracer
	window   windowReader
	registry bundleReader
	monitor  comparer
	metrics  driftRecorder
	notifier escalator
	interval time.Duration

	lastAggregate domain.AggregateDrift
}

func NewDriftJob(tracer trace.Tracer, window windowReader, reg bundleReader, monitor comparer, metrics driftRecorder, notifier escalator, interval time.Duration) *DriftJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &DriftJob{
		tracer:        tracer,
		window:        window,
		registry:      reg,
		monitor:       monitor,
		metrics:       metrics,
		notifier:      notifier,
		interval:      interval,
		lastAggregate: domain.AggregateStable,
	}
}

func (j *DriftJob) Start(ctx context.Context) {
	j.runOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *DriftJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "drift-job.run-once")
	defer span.End()

	bundle := j.registry.Current()
	if bundle == nil || len(bundle.Stats) == 0 {
		log.Debug().Msg("drift check skipped: no training snapshot loaded")
		return
	}

	recent, err := j.window.Recent(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("drift check failed to read the feature window")
		return
	}

	report := j.monitor.Compare(bundle.Stats, recent)
	if j.metrics != nil {
		j.metrics.RecordDrift(report)
	}

	significant := 0
	for _, fd := range report.Features {
		if fd.Status == domain.DriftSignificant {
			significant++
		}
	}
	log.Info().
		Str("aggregate", string(report.Aggregate)).
		Int("significant", significant).
		Int("window", report.RecentCount).
		Int("model_version", bundle.Version).
		Msg("drift check complete")

	// Notify only on escalation, not on every tick of a known-bad state.
	if report.Aggregate != domain.AggregateStable && report.Aggregate != j.lastAggregate {
		if j.notifier != nil {
			j.notifier.DriftEscalated(report)
		}
	}
	j.lastAggregate = report.Aggregate
}
