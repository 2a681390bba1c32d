package job

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/domain"
)

type dirtySource interface {
	Dirty() []domain.StrategyPosterior
	MarkDirty(names ...string)
}

type posteriorStore interface {
	UpsertPosteriors(ctx context.Context, posteriors []domain.StrategyPosterior) error
}

type flushRecorder interface {
	RecordPosteriorFlush(err error)
}

// PosteriorFlushJob drains changed posteriors to the store on a timer.
// Flushing is best-effort: a failed upsert re-marks the posteriors and the
// next tick retries, while the in-memory engine keeps serving.
type PosteriorFlushJob struct {
	tracer   trace.Tracer
	engine   dirtySource
	store    posteriorStore
	metrics  flushRecorder
	interval time.Duration
}

func NewPosteriorFlushJob(tracer trace.Tracer, engine dirtySource, store posteriorStore, metrics flushRecorder, interval time.Duration) *PosteriorFlushJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PosteriorFlushJob{
		tracer:   tracer,
		engine:   engine,
		store:    store,
		metrics:  metrics,
		interval: interval,
	}
}

func (j *PosteriorFlushJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain so a clean shutdown loses nothing.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			j.runOnce(flushCtx)
			cancel()
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *PosteriorFlushJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "posterior-flush-job.run-once")
	defer span.End()

	dirty := j.engine.Dirty()
	if len(dirty) == 0 {
		return
	}

	err := j.store.UpsertPosteriors(ctx, dirty)
	if j.metrics != nil {
		j.metrics.RecordPosteriorFlush(err)
	}
	if err != nil {
		names := make([]string, len(dirty))
		for i, p := range dirty {
			names[i] = p.Name
		}
		j.engine.MarkDirty(names...)
		log.Warn().Err(err).Int("posteriors", len(dirty)).Msg("posterior flush failed, will retry")
		return
	}
	log.Debug().Int("posteriors", len(dirty)).Msg("posteriors flushed")
}
