// Package cache memoizes raw model outputs keyed by the encoded feature vector.
package cache

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agripredict/agripredict/internal/domain/model"
)

// PredictionCache is a bounded LRU of raw predictions. A nil or disabled
// cache misses every lookup and ignores every insert.
type PredictionCache struct {
	lru *lru.Cache[string, float64]
}

// New creates a cache holding up to size entries. size <= 0 disables caching.
func New(size int) (*PredictionCache, error) {
	if size <= 0 {
		return &PredictionCache{}, nil
	}
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, err
	}
	return &PredictionCache{lru: c}, nil
}

// Enabled reports whether the cache stores anything.
func (c *PredictionCache) Enabled() bool { return c != nil && c.lru != nil }

// Get returns the cached prediction for key.
func (c *PredictionCache) Get(key string) (float64, bool) {
	if !c.Enabled() {
		return 0, false
	}
	return c.lru.Get(key)
}

// Add stores a prediction.
func (c *PredictionCache) Add(key string, v float64) {
	if !c.Enabled() {
		return
	}
	c.lru.Add(key, v)
}

// Len returns the number of cached entries.
func (c *PredictionCache) Len() int {
	if !c.Enabled() {
		return 0
	}
	return c.lru.Len()
}

// Key renders a task and vector as an exact cache key. Floats use the
// shortest representation that round-trips, so distinct vectors never collide.
func Key(task model.Task, vec []float64) string {
	var b strings.Builder
	b.Grow(len(task) + 1 + len(vec)*8)
	b.WriteString(string(task))
	b.WriteByte('|')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
