package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"verdict-engine/internal/domain"
)

type stubDirtySource struct {
	dirty    []domain.StrategyPosterior
	remarked []string
}

func (s *stubDirtySource) Dirty() []domain.StrategyPosterior {
	out := s.dirty
	s.dirty = nil
	return out
}

func (s *stubDirtySource) MarkDirty(names ...string) {
	s.remarked = append(s.remarked, names...)
}

type stubPosteriorStore struct {
	err     error
	flushed [][]domain.StrategyPosterior
}

func (s *stubPosteriorStore) UpsertPosteriors(_ context.Context, posteriors []domain.StrategyPosterior) error {
	s.flushed = append(s.flushed, posteriors)
	return s.err
}

type stubFlushRecorder struct {
	errs []error
}

func (s *stubFlushRecorder) RecordPosteriorFlush(err error) {
	s.errs = append(s.errs, err)
}

func flushTestJob(engine *stubDirtySource, store *stubPosteriorStore, rec *stubFlushRecorder) *PosteriorFlushJob {
	tracer := noop.NewTracerProvider().Tracer("flush-job-test")
	return NewPosteriorFlushJob(tracer, engine, store, rec, time.Minute)
}

func TestFlushJobUpsertsDirtyPosteriors(t *testing.T) {
	engine := &stubDirtySource{dirty: []domain.StrategyPosterior{
		{Name: "momentum", Alpha: 4, Beta: 2},
		{Name: "meanrev", Alpha: 1, Beta: 3},
	}}
	store := &stubPosteriorStore{}
	rec := &stubFlushRecorder{}
	j := flushTestJob(engine, store, rec)

	j.runOnce(context.Background())
	if len(store.flushed) != 1 || len(store.flushed[0]) != 2 {
		t.Fatalf("expected one flush of two posteriors, got %v", store.flushed)
	}
	if len(rec.errs) != 1 || rec.errs[0] != nil {
		t.Fatalf("expected one successful flush metric, got %v", rec.errs)
	}
	if len(engine.remarked) != 0 {
		t.Fatalf("success must not re-mark, got %v", engine.remarked)
	}
}

func TestFlushJobSkipsWhenClean(t *testing.T) {
	store := &stubPosteriorStore{}
	j := flushTestJob(&stubDirtySource{}, store, &stubFlushRecorder{})

	j.runOnce(context.Background())
	if len(store.flushed) != 0 {
		t.Fatalf("expected no flush with nothing dirty, got %v", store.flushed)
	}
}

func TestFlushJobRemarksOnFailure(t *testing.T) {
	engine := &stubDirtySource{dirty: []domain.StrategyPosterior{{Name: "momentum", Alpha: 2, Beta: 1}}}
	store := &stubPosteriorStore{err: errors.New("pg down")}
	rec := &stubFlushRecorder{}
	j := flushTestJob(engine, store, rec)

	j.runOnce(context.Background())
	if len(engine.remarked) != 1 || engine.remarked[0] != "momentum" {
		t.Fatalf("expected the failed posterior re-marked, got %v", engine.remarked)
	}
	if len(rec.errs) != 1 || rec.errs[0] == nil {
		t.Fatalf("expected a failure metric, got %v", rec.errs)
	}
}

func TestFlushJobFinalDrainOnCancel(t *testing.T) {
	engine := &stubDirtySource{dirty: []domain.StrategyPosterior{{Name: "momentum", Alpha: 2, Beta: 1}}}
	store := &stubPosteriorStore{}
	j := flushTestJob(engine, store, &stubFlushRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop on context cancellation")
	}
	if len(store.flushed) != 1 {
		t.Fatalf("expected the final drain to flush, got %v", store.flushed)
	}
}
