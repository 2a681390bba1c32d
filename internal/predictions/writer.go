package predictions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"verdict-engine/internal/domain"
)

const insertTimeout = 5 * time.Second

type inserter interface {
	Insert(ctx context.Context, rec domain.PredictionRecord) (int64, error)
}

// Writer drains logged decisions to the store off the request path. The
// queue never blocks: a full buffer drops the record, and a tripped breaker
// sheds load while the store is unhealthy.
type Writer struct {
	repo    inserter
	breaker *gobreaker.CircuitBreaker
	ch      chan domain.PredictionRecord
	onDrop  func()
	wg      sync.WaitGroup
}

func NewWriter(repo inserter, buffer int, onDrop func()) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	st := gobreaker.Settings{Name: "prediction-log"}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Writer{
		repo:    repo,
		breaker: gobreaker.NewCircuitBreaker(st),
		ch:      make(chan domain.PredictionRecord, buffer),
		onDrop:  onDrop,
	}
}

// Start launches the drain loop; it exits when ctx is canceled.
func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.wg.Add(1)
	go w.loop(ctx)
}

// Enqueue hands one record to the drain loop. Nil-safe and non-blocking:
// an unconfigured or saturated writer drops instead of stalling a response.
func (w *Writer) Enqueue(rec domain.PredictionRecord) {
	if w == nil {
		return
	}
	select {
	case w.ch <- rec:
	default:
		if w.onDrop != nil {
			w.onDrop()
		}
		log.Warn().Msg("prediction log buffer full, dropping record")
	}
}

// Wait blocks until the drain loop has exited.
func (w *Writer) Wait() {
	if w == nil {
		return
	}
	w.wg.Wait()
}

func (w *Writer) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-w.ch:
			if _, err := w.breaker.Execute(func() (any, error) {
				insertCtx, cancel := context.WithTimeout(context.Background(), insertTimeout)
				defer cancel()
				return w.repo.Insert(insertCtx, rec)
			}); err != nil {
				log.Warn().Err(err).Msg("prediction log write failed")
			}
		}
	}
}
