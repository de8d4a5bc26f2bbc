// internal/ranking/cache.go
package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"roommate-engine/internal/common/database"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
)

// ScoreCache memoizes pairwise scores in Redis. Keys embed both profile
// versions, so a profile edit silently misses the old entry and the pair
// is recomputed lazily on the next read; nothing ever invalidates eagerly.
type ScoreCache struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewScoreCache(client *database.RedisClient, ttl time.Duration) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl}
}

// pairKey is order-independent: the lexicographically lower user ID comes
// first so both directions of a pair share one entry.
func pairKey(a *models.PreferenceProfile, b *models.PreferenceProfile) string {
	lo, hi := a, b
	if hi.UserID < lo.UserID {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("score:v1:%s:%d:%s:%d", lo.UserID, lo.Version, hi.UserID, hi.Version)
}

// Get returns the cached score for the pair at these exact profile
// versions, or nil on a miss. Cache errors degrade to a miss.
func (c *ScoreCache) Get(ctx context.Context, a, b *models.PreferenceProfile) *models.CompatibilityScore {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, pairKey(a, b))
	if err == redis.Nil {
		metrics.ScoreCacheHits.WithLabelValues("miss").Inc()
		return nil
	}
	if err != nil {
		metrics.ScoreCacheHits.WithLabelValues("miss").Inc()
		return nil
	}
	var score models.CompatibilityScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		metrics.ScoreCacheHits.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.ScoreCacheHits.WithLabelValues("hit").Inc()
	return &score
}

// Put stores the score under the pair's version-qualified key. Best
// effort; a failed write only costs a future recompute.
func (c *ScoreCache) Put(ctx context.Context, a, b *models.PreferenceProfile, score *models.CompatibilityScore) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(score)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, pairKey(a, b), string(raw), c.ttl)
}
