package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/database"
	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/models"
	"roommate-engine/internal/scoring"
)

func rankProfile(userID string, mutate func(*models.PreferenceProfile)) *models.PreferenceProfile {
	p := &models.PreferenceProfile{
		UserID:           userID,
		Version:          1,
		Budget:           models.BudgetRange{Min: 400, Max: 600},
		Cleanliness:      3,
		SocialLevel:      3,
		NoiseTolerance:   3,
		SmokingTolerance: 3,
		PetTolerance:     3,
		LastActiveAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func newRanker(t *testing.T, cache *ScoreCache) *Ranker {
	t.Helper()
	scorer, err := scoring.New(nil)
	require.NoError(t, err)
	return New(scorer, cache, logger.NewNoOpLogger())
}

func newTestCache(t *testing.T, ttl time.Duration) (*ScoreCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { client.Close() })
	return NewScoreCache(client, ttl), mr
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{
		rankProfile("far", func(p *models.PreferenceProfile) {
			p.Cleanliness = 1
			p.SocialLevel = 1
			p.NoiseTolerance = 1
		}),
		rankProfile("close", nil),
		rankProfile("mid", func(p *models.PreferenceProfile) { p.Cleanliness = 5 }),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "close", got[0].Profile.UserID)
	assert.Equal(t, "mid", got[1].Profile.UserID)
	assert.Equal(t, "far", got[2].Profile.UserID)
	assert.GreaterOrEqual(t, got[0].Score.Overall, got[1].Score.Overall)
}

func TestRankTieBreaks(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	recent := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	stale := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	pool := []*models.PreferenceProfile{
		rankProfile("zed", func(p *models.PreferenceProfile) { p.LastActiveAt = stale }),
		rankProfile("amy", func(p *models.PreferenceProfile) { p.LastActiveAt = stale }),
		rankProfile("kim", func(p *models.PreferenceProfile) { p.LastActiveAt = recent }),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Identical scores: recent activity first, then user ID.
	assert.Equal(t, "kim", got[0].Profile.UserID)
	assert.Equal(t, "amy", got[1].Profile.UserID)
	assert.Equal(t, "zed", got[2].Profile.UserID)
}

func TestRankExcludesSelfAndListed(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{
		rankProfile("me", nil),
		rankProfile("dismissed", nil),
		rankProfile("ok", nil),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{
		Exclude: map[string]struct{}{"dismissed": {}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Profile.UserID)
}

func TestRankDropsHardFilteredPairs(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", func(p *models.PreferenceProfile) {
		p.AcceptedGenders = []models.Gender{models.GenderFemale}
	})
	pool := []*models.PreferenceProfile{
		rankProfile("blocked", func(p *models.PreferenceProfile) { p.Gender = models.GenderMale }),
		rankProfile("fine", func(p *models.PreferenceProfile) { p.Gender = models.GenderFemale }),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fine", got[0].Profile.UserID)
}

func TestRankSkipsUnscorableProfiles(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{
		rankProfile("broken", func(p *models.PreferenceProfile) { p.Cleanliness = 0 }),
		rankProfile("ok", nil),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Profile.UserID)
}

func TestRankPagination(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{
		rankProfile("a", nil),
		rankProfile("b", nil),
		rankProfile("c", nil),
		rankProfile("d", nil),
	}

	page1, err := r.Rank(context.Background(), requester, pool, Options{Limit: 2})
	require.NoError(t, err)
	page2, err := r.Rank(context.Background(), requester, pool, Options{Offset: 2, Limit: 2})
	require.NoError(t, err)
	beyond, err := r.Rank(context.Background(), requester, pool, Options{Offset: 10, Limit: 2})
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.Empty(t, beyond)
	assert.Equal(t, "a", page1[0].Profile.UserID)
	assert.Equal(t, "c", page2[0].Profile.UserID)
}

func TestRankMinScoreFilter(t *testing.T) {
	r := newRanker(t, nil)
	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{
		rankProfile("weak", func(p *models.PreferenceProfile) {
			p.Budget = models.BudgetRange{Min: 2000, Max: 2500}
			p.Cleanliness = 1
			p.SocialLevel = 1
			p.NoiseTolerance = 1
			p.SmokingTolerance = 1
			p.PetTolerance = 1
		}),
		rankProfile("strong", nil),
	}

	got, err := r.Rank(context.Background(), requester, pool, Options{MinScore: 60})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "strong", got[0].Profile.UserID)
}

func TestScoreCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	a := rankProfile("alice", nil)
	b := rankProfile("bob", nil)

	assert.Nil(t, cache.Get(ctx, a, b))

	score := &models.CompatibilityScore{
		Overall:         87.5,
		ProfileVersions: map[string]int{"alice": 1, "bob": 1},
	}
	cache.Put(ctx, a, b, score)

	got := cache.Get(ctx, a, b)
	require.NotNil(t, got)
	assert.Equal(t, 87.5, got.Overall)

	// Order-independent key: the reversed pair hits the same entry.
	assert.NotNil(t, cache.Get(ctx, b, a))

	mr.FastForward(2 * time.Hour)
	assert.Nil(t, cache.Get(ctx, a, b))
}

func TestScoreCacheMissesAfterVersionBump(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	a := rankProfile("alice", nil)
	b := rankProfile("bob", nil)
	cache.Put(ctx, a, b, &models.CompatibilityScore{Overall: 70})

	// An edited profile carries a new version, so the stale entry is
	// never seen again.
	edited := rankProfile("bob", func(p *models.PreferenceProfile) { p.Version = 2 })
	assert.Nil(t, cache.Get(ctx, a, edited))
	assert.NotNil(t, cache.Get(ctx, a, b))
}

func TestRankUsesCachedScores(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	r := newRanker(t, cache)
	ctx := context.Background()

	requester := rankProfile("me", nil)
	pool := []*models.PreferenceProfile{rankProfile("other", nil)}

	first, err := r.Rank(ctx, requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A pre-seeded cache entry wins over recomputation.
	cache.Put(ctx, requester, pool[0], &models.CompatibilityScore{Overall: 42})
	second, err := r.Rank(ctx, requester, pool, Options{})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 42.0, second[0].Score.Overall)
}
