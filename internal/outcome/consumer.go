package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"verdict-engine/internal/domain"
)

// fetcher is the slice of kafka.Reader the consumer uses; tests swap in a
// scripted queue.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// updater is the posterior side of the bayes engine.
type updater interface {
	Update(name string, outcome int, pnl *float64) domain.StrategyPosterior
}

// resolver closes the loop on logged predictions.
type resolver interface {
	Resolve(ctx context.Context, id int64, outcome int, realizedReturn *float64, closedAt time.Time) error
}

type metrics interface {
	RecordOutcome(ok bool)
}

// Consumer feeds trade-completion events into the posterior engine and the
// prediction log. Offsets commit only after a message is handled, so a
// crash replays rather than drops.
type Consumer struct {
	reader   fetcher
	engine   updater
	resolver resolver
	metrics  metrics
}

func NewConsumer(reader fetcher, engine updater, resolver resolver, metrics metrics) *Consumer {
	return &Consumer{reader: reader, engine: engine, resolver: resolver, metrics: metrics}
}

// NewReader builds the kafka reader for the outcome topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run fetches until ctx is canceled. Malformed messages are logged and
// committed so a poison event cannot wedge the partition.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Warn().Err(err).Msg("outcome reader close failed")
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Warn().Err(err).Msg("outcome fetch failed")
			continue
		}

		if err := c.handle(ctx, msg.Value); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("outcome event rejected")
			if c.metrics != nil {
				c.metrics.RecordOutcome(false)
			}
		} else if c.metrics != nil {
			c.metrics.RecordOutcome(true)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Msg("outcome commit failed")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event domain.OutcomeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse outcome event: %w", err)
	}
	if event.Strategy == "" {
		return errors.New("outcome event without strategy")
	}
	if event.Outcome != 0 && event.Outcome != 1 {
		return fmt.Errorf("outcome must be 0 or 1, got %d", event.Outcome)
	}

	posterior := c.engine.Update(event.Strategy, event.Outcome, event.PnL)
	log.Debug().
		Str("strategy", event.Strategy).
		Int("outcome", event.Outcome).
		Float64("win_rate", posterior.WinRate).
		Msg("posterior updated from outcome stream")

	if event.PredictionID != nil && c.resolver != nil {
		err := c.resolver.Resolve(ctx, *event.PredictionID, event.Outcome, event.PnL, event.ClosedAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Int64("prediction_id", *event.PredictionID).Msg("prediction resolution failed")
		}
	}
	return nil
}
