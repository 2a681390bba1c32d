package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"verdict-engine/internal/domain"
)

const (
	windowKey   = "features:recent"
	decisionKey = "decision:latest"
	decisionTTL = 10 * time.Minute
)

// windowClient is the slice of the redis API the live window uses.
type windowClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// FeatureWindow keeps the most recent production feature vectors for drift
// comparison. Backed by a redis list when a client is connected, otherwise
// by an in-process ring so drift checks still run on a single instance.
type FeatureWindow struct {
	client windowClient
	size   int

	mu    sync.Mutex
	local []domain.FeatureVector
}

func NewFeatureWindow(client *redis.Client, size int) *FeatureWindow {
	if size <= 0 {
		size = 500
	}
	w := &FeatureWindow{size: size}
	if client != nil {
		w.client = client
	}
	return w
}

// Push records one served feature vector, evicting the oldest past size.
func (w *FeatureWindow) Push(ctx context.Context, fv domain.FeatureVector) error {
	if w.client == nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.local = append([]domain.FeatureVector{fv}, w.local...)
		if len(w.local) > w.size {
			w.local = w.local[:w.size]
		}
		return nil
	}

	data, err := json.Marshal(fv)
	if err != nil {
		return err
	}
	if err := w.client.LPush(ctx, windowKey, data).Err(); err != nil {
		return err
	}
	return w.client.LTrim(ctx, windowKey, 0, int64(w.size)-1).Err()
}

// Recent returns the window newest-first. Entries that fail to decode are
// skipped rather than failing the whole read.
func (w *FeatureWindow) Recent(ctx context.Context) ([]domain.FeatureVector, error) {
	if w.client == nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		out := make([]domain.FeatureVector, len(w.local))
		copy(out, w.local)
		return out, nil
	}

	rows, err := w.client.LRange(ctx, windowKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeatureVector, 0, len(rows))
	for _, row := range rows {
		var fv domain.FeatureVector
		if err := json.Unmarshal([]byte(row), &fv); err != nil {
			continue
		}
		out = append(out, fv)
	}
	return out, nil
}

// StoreDecision caches the latest served decision for operator inspection.
// Best effort: no-op without redis.
func (w *FeatureWindow) StoreDecision(ctx context.Context, decision any) error {
	if w.client == nil {
		return nil
	}
	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	return w.client.Set(ctx, decisionKey, data, decisionTTL).Err()
}

// LatestDecision unmarshals the cached decision into out. Returns redis.Nil
// when nothing is cached.
func (w *FeatureWindow) LatestDecision(ctx context.Context, out any) error {
	if w.client == nil {
		return redis.Nil
	}
	data, err := w.client.Get(ctx, decisionKey).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
