package outcome

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"verdict-engine/internal/domain"
)

type scriptedReader struct {
	msgs    []kafka.Message
	next    int
	commits []kafka.Message
	closed  bool
}

func (s *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if s.next >= len(s.msgs) {
		return kafka.Message{}, context.Canceled
	}
	m := s.msgs[s.next]
	s.next++
	return m, nil
}

func (s *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	s.commits = append(s.commits, msgs...)
	return nil
}

func (s *scriptedReader) Close() error {
	s.closed = true
	return nil
}

type stubEngine struct {
	updates []string
	pnls    []*float64
}

func (s *stubEngine) Update(name string, outcome int, pnl *float64) domain.StrategyPosterior {
	s.updates = append(s.updates, name)
	s.pnls = append(s.pnls, pnl)
	wins := 0.0
	if outcome == 1 {
		wins = 1
	}
	return domain.StrategyPosterior{Name: name, Alpha: 1 + wins, Beta: 2 - wins, WinRate: (1 + wins) / 3}
}

type stubResolver struct {
	ids      []int64
	outcomes []int
}

func (s *stubResolver) Resolve(ctx context.Context, id int64, outcome int, realizedReturn *float64, closedAt time.Time) error {
	s.ids = append(s.ids, id)
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

type countingMetrics struct {
	handled  int
	rejected int
}

func (c *countingMetrics) RecordOutcome(ok bool) {
	if ok {
		c.handled++
	} else {
		c.rejected++
	}
}

func msg(value string, offset int64) kafka.Message {
	return kafka.Message{Topic: "trade-outcomes", Offset: offset, Value: []byte(value)}
}

func TestConsumerRoutesUpdatesAndCommits(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{
		msg(`{"strategy":"momentum_v2","outcome":1,"closed_at":"2025-06-01T12:00:00Z"}`, 1),
		msg(`{"strategy":"mean_reversion","outcome":0,"pnl":-1.8,"closed_at":"2025-06-01T12:05:00Z"}`, 2),
	}}
	engine := &stubEngine{}
	m := &countingMetrics{}
	c := NewConsumer(reader, engine, nil, m)

	c.Run(context.Background())

	if len(engine.updates) != 2 || engine.updates[0] != "momentum_v2" || engine.updates[1] != "mean_reversion" {
		t.Fatalf("unexpected updates %v", engine.updates)
	}
	if engine.pnls[0] != nil {
		t.Fatal("expected nil pnl on first event")
	}
	if engine.pnls[1] == nil || *engine.pnls[1] != -1.8 {
		t.Fatalf("expected pnl -1.8, got %v", engine.pnls[1])
	}
	if len(reader.commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(reader.commits))
	}
	if m.handled != 2 || m.rejected != 0 {
		t.Fatalf("unexpected metrics handled=%d rejected=%d", m.handled, m.rejected)
	}
	if !reader.closed {
		t.Fatal("expected reader closed on exit")
	}
}

func TestConsumerCommitsPoisonMessages(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{
		msg(`{not json`, 1),
		msg(`{"strategy":"","outcome":1}`, 2),
		msg(`{"strategy":"momentum_v2","outcome":7}`, 3),
	}}
	engine := &stubEngine{}
	m := &countingMetrics{}
	c := NewConsumer(reader, engine, nil, m)

	c.Run(context.Background())

	if len(engine.updates) != 0 {
		t.Fatalf("poison events must not move posteriors, got %v", engine.updates)
	}
	if len(reader.commits) != 3 {
		t.Fatalf("poison events must still commit, got %d commits", len(reader.commits))
	}
	if m.rejected != 3 {
		t.Fatalf("expected 3 rejections, got %d", m.rejected)
	}
}

func TestConsumerResolvesLinkedPrediction(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{
		msg(`{"strategy":"breakout","outcome":1,"pnl":2.4,"prediction_id":42,"closed_at":"2025-06-01T15:00:00Z"}`, 1),
	}}
	engine := &stubEngine{}
	res := &stubResolver{}
	c := NewConsumer(reader, engine, res, nil)

	c.Run(context.Background())

	if len(res.ids) != 1 || res.ids[0] != 42 {
		t.Fatalf("expected resolution of prediction 42, got %v", res.ids)
	}
	if res.outcomes[0] != 1 {
		t.Fatalf("expected outcome 1, got %d", res.outcomes[0])
	}
	if len(engine.updates) != 1 {
		t.Fatalf("linked events still update posteriors, got %v", engine.updates)
	}
}
