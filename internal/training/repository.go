package training

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/domain"
)

type pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// BacktestTrade is one historical simulated trade with the raw engine
// outputs it was entered on. Rows predate the feature schema, so the
// pipeline re-extracts vectors from these instead of trusting stored ones.
type BacktestTrade struct {
	Symbol                 string
	TechnicalSignal        string
	TechnicalConfidence    float64
	FundamentalSignal      string
	FundamentalConfidence  float64
	QuantitativeSignal     string
	QuantitativeConfidence float64
	SentimentSignal        string
	SentimentConfidence    float64
	Regime                 string
	ReturnPct              float64
	Outcome                int
	ExecutedAt             time.Time
}

// Repository reads the three training sources. It never writes; the
// prediction log and backtest importers own their tables.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

// ListSnapshotSamples returns resolved prediction-log rows as labeled
// samples. Features come back exactly as they were served, which makes
// this the highest-fidelity source.
func (r *Repository) ListSnapshotSamples(ctx context.Context) ([]domain.TrainingSample, error) {
	_, span := r.tracer.Start(ctx, "training-repo.list-snapshots")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT features, outcome, COALESCE(realized_return, 0), created_at
FROM predictions
WHERE resolved_at IS NOT NULL
  AND outcome IS NOT NULL
ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TrainingSample, 0)
	for rows.Next() {
		var raw []byte
		var sample domain.TrainingSample
		if err := rows.Scan(&raw, &sample.Outcome, &sample.ReturnPct, &sample.At); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &sample.Features); err != nil {
			return nil, err
		}
		sample.Source = domain.SourceSnapshot
		sample.At = sample.At.UTC()
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (r *Repository) ListBacktestTrades(ctx context.Context) ([]BacktestTrade, error) {
	_, span := r.tracer.Start(ctx, "training-repo.list-backtests")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol,
       technical_signal, technical_confidence,
       fundamental_signal, fundamental_confidence,
       quantitative_signal, quantitative_confidence,
       sentiment_signal, sentiment_confidence,
       COALESCE(regime, ''), return_pct, outcome, executed_at
FROM backtest_trades
ORDER BY executed_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]BacktestTrade, 0)
	for rows.Next() {
		var t BacktestTrade
		if err := rows.Scan(
			&t.Symbol,
			&t.TechnicalSignal,
			&t.TechnicalConfidence,
			&t.FundamentalSignal,
			&t.FundamentalConfidence,
			&t.QuantitativeSignal,
			&t.QuantitativeConfidence,
			&t.SentimentSignal,
			&t.SentimentConfidence,
			&t.Regime,
			&t.ReturnPct,
			&t.Outcome,
			&t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		t.ExecutedAt = t.ExecutedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) ListBarSymbols(ctx context.Context, interval string) ([]string, error) {
	_, span := r.tracer.Start(ctx, "training-repo.list-bar-symbols")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT DISTINCT symbol
FROM bars
WHERE interval = $1
ORDER BY symbol ASC`, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, err
		}
		out = append(out, symbol)
	}
	return out, rows.Err()
}

func (r *Repository) ListBars(ctx context.Context, symbol, interval string, from, to time.Time) ([]domain.Bar, error) {
	_, span := r.tracer.Start(ctx, "training-repo.list-bars")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT symbol, interval, open_time, open, high, low, close, volume
FROM bars
WHERE symbol = $1
  AND interval = $2
  AND open_time >= $3
  AND open_time <= $4
ORDER BY open_time ASC`, symbol, interval, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Bar, 0)
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(
			&b.Symbol,
			&b.Interval,
			&b.OpenTime,
			&b.Open,
			&b.High,
			&b.Low,
			&b.Close,
			&b.Volume,
		); err != nil {
			return nil, err
		}
		b.OpenTime = b.OpenTime.UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}
