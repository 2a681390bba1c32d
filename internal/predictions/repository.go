package predictions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/domain"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the prediction log. Writes arrive through the async writer,
// resolution through the outcome consumer.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) Insert(ctx context.Context, rec domain.PredictionRecord) (int64, error) {
	_, span := r.tracer.Start(ctx, "predictions.insert")
	defer span.End()

	features, err := json.Marshal(rec.Features)
	if err != nil {
		return 0, err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = r.pool.QueryRow(ctx, `
INSERT INTO predictions (
    symbol, features, probability, expected_return,
    recommendation, model_version, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		rec.Symbol,
		features,
		rec.Probability,
		rec.ExpectedReturn,
		string(rec.Recommendation),
		rec.ModelVersion,
		createdAt.UTC(),
	).Scan(&id)
	return id, err
}

// Resolve stamps the realized outcome onto one unresolved record. Resolving
// twice, or an unknown id, reports pgx.ErrNoRows.
func (r *Repository) Resolve(ctx context.Context, id int64, outcome int, realizedReturn *float64, closedAt time.Time) error {
	_, span := r.tracer.Start(ctx, "predictions.resolve")
	defer span.End()

	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	tag, err := r.pool.Exec(ctx, `
UPDATE predictions
SET resolved_at = $2,
    outcome = $3,
    realized_return = $4
WHERE id = $1
  AND resolved_at IS NULL`, id, closedAt.UTC(), outcome, realizedReturn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListUnresolved(ctx context.Context, limit int) ([]domain.PredictionRecord, error) {
	_, span := r.tracer.Start(ctx, "predictions.list-unresolved")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, symbol, features, probability, expected_return,
       recommendation, model_version, created_at,
       resolved_at, outcome, realized_return
FROM predictions
WHERE resolved_at IS NULL
ORDER BY created_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PredictionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanPredictionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPredictionRow(s scanner) (*domain.PredictionRecord, error) {
	var out domain.PredictionRecord
	var features []byte
	var recommendation string
	var resolvedAt pgtype.Timestamptz
	var outcome pgtype.Int4
	var realized pgtype.Float8

	if err := s.Scan(
		&out.ID,
		&out.Symbol,
		&features,
		&out.Probability,
		&out.ExpectedReturn,
		&recommendation,
		&out.ModelVersion,
		&out.CreatedAt,
		&resolvedAt,
		&outcome,
		&realized,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &out.Features); err != nil {
		return nil, err
	}
	out.Recommendation = domain.Action(recommendation)
	out.CreatedAt = out.CreatedAt.UTC()

	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		out.ResolvedAt = &t
	}
	if outcome.Valid {
		v := int(outcome.Int32)
		out.Outcome = &v
	}
	if realized.Valid {
		v := realized.Float64
		out.RealizedReturn = &v
	}
	return &out, nil
}
