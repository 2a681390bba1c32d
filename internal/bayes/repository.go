package bayes

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"

	"verdict-engine/internal/domain"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists posteriors in the strategy_posteriors table. The
// serving decision never waits on it; the flush job drains dirty state
// through here best-effort.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) UpsertPosteriors(ctx context.Context, posteriors []domain.StrategyPosterior) error {
	_, span := r.tracer.Start(ctx, "strategy-posteriors.upsert")
	defer span.End()

	for _, p := range posteriors {
		if p.Name == "" || p.Alpha <= 0 || p.Beta <= 0 {
			continue
		}
		if _, err := r.pool.Exec(ctx, `
INSERT INTO strategy_posteriors (name, alpha, beta, total_samples, win_rate, last_updated)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
    alpha = EXCLUDED.alpha,
    beta = EXCLUDED.beta,
    total_samples = EXCLUDED.total_samples,
    win_rate = EXCLUDED.win_rate,
    last_updated = EXCLUDED.last_updated,
    updated_at = NOW()`,
			p.Name,
			p.Alpha,
			p.Beta,
			p.TotalSamples,
			p.WinRate,
			p.LastUpdated.UTC(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListPosteriors(ctx context.Context) ([]domain.StrategyPosterior, error) {
	_, span := r.tracer.Start(ctx, "strategy-posteriors.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT name, alpha, beta, total_samples, win_rate, last_updated
FROM strategy_posteriors
ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StrategyPosterior
	for rows.Next() {
		var p domain.StrategyPosterior
		if err := rows.Scan(&p.Name, &p.Alpha, &p.Beta, &p.TotalSamples, &p.WinRate, &p.LastUpdated); err != nil {
			return nil, err
		}
		p.LastUpdated = p.LastUpdated.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetPosterior(ctx context.Context, name string) (*domain.StrategyPosterior, error) {
	_, span := r.tracer.Start(ctx, "strategy-posteriors.get")
	defer span.End()

	var p domain.StrategyPosterior
	err := r.pool.QueryRow(ctx, `
SELECT name, alpha, beta, total_samples, win_rate, last_updated
FROM strategy_posteriors
WHERE name = $1`, name).Scan(&p.Name, &p.Alpha, &p.Beta, &p.TotalSamples, &p.WinRate, &p.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.LastUpdated = p.LastUpdated.UTC()
	return &p, nil
}
