// Package ranking orders candidate roommates for a requester by pairwise
// compatibility. Ranking is read-only and lazily cached: scores come from
// the version-keyed Redis cache when possible and are recomputed otherwise.
package ranking

import (
	"context"
	"sort"
	"time"

	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
	"roommate-engine/internal/scoring"
)

// Candidate is one ranked result.
type Candidate struct {
	Profile     *models.PreferenceProfile  `json:"profile"`
	Score       *models.CompatibilityScore `json:"score"`
	Explanation scoring.Explanation        `json:"explanation"`
}

// Options narrows and pages a ranking request.
type Options struct {
	// Exclude drops these user IDs from the pool (self, current
	// groupmates, dismissed users).
	Exclude map[string]struct{}
	// MinScore drops candidates scoring below the threshold. Zero keeps
	// everyone except hard-filtered pairs, which are always dropped.
	MinScore float64
	Offset   int
	Limit    int
}

type Ranker struct {
	scorer *scoring.Scorer
	cache  *ScoreCache
	log    logger.Logger
}

// New builds a Ranker. cache may be nil, in which case every pair is
// scored fresh.
func New(scorer *scoring.Scorer, cache *ScoreCache, log logger.Logger) *Ranker {
	return &Ranker{scorer: scorer, cache: cache, log: log}
}

// Rank scores the requester against every pool profile and returns the
// page ordered by score descending. Ties break on recent activity, then
// user ID, so the full ordering is total and stable across calls.
func (r *Ranker) Rank(ctx context.Context, requester *models.PreferenceProfile, pool []*models.PreferenceProfile, opts Options) ([]Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.RankingDuration.Observe(time.Since(start).Seconds())
	}()

	candidates := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		if p.UserID == requester.UserID {
			continue
		}
		if _, skip := opts.Exclude[p.UserID]; skip {
			continue
		}

		score := r.cache.Get(ctx, requester, p)
		if score == nil {
			computed, err := r.scorer.Score(requester, p)
			if err != nil {
				// One bad profile must not poison the whole ranking.
				r.log.Warn("skipping candidate with unscorable profile", map[string]interface{}{
					"requester": requester.UserID,
					"candidate": p.UserID,
					"error":     err.Error(),
				})
				continue
			}
			score = computed
			r.cache.Put(ctx, requester, p, score)
		}

		if score.HardFiltered != "" {
			continue
		}
		if score.Overall < opts.MinScore {
			continue
		}
		candidates = append(candidates, Candidate{
			Profile:     p,
			Score:       score,
			Explanation: scoring.Explain(score),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		if !a.Profile.LastActiveAt.Equal(b.Profile.LastActiveAt) {
			return a.Profile.LastActiveAt.After(b.Profile.LastActiveAt)
		}
		return a.Profile.UserID < b.Profile.UserID
	})

	return page(candidates, opts.Offset, opts.Limit), nil
}

func page(candidates []Candidate, offset, limit int) []Candidate {
	if offset >= len(candidates) {
		return []Candidate{}
	}
	candidates = candidates[offset:]
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates
}
