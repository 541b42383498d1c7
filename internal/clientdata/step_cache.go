package clientdata

import (
	"context"
	"encoding/json"
	"time"
)

// StepCache stores serialized evaluation step results in the evaluation_cache table
type StepCache struct {
	repo *Repository
}

// NewStepCache creates a sqlite-backed step result cache
func NewStepCache(repo *Repository) *StepCache {
	return &StepCache{repo: repo}
}

// Get returns a fresh entry. Expired entries are misses.
func (c *StepCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.repo.GetIfFresh(ctx, TableEvaluationCache, key)
	if err != nil || data == nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value, which must already be JSON
func (c *StepCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.repo.Store(ctx, TableEvaluationCache, key, json.RawMessage(value), ttl)
}
