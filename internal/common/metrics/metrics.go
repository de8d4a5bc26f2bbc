// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_scores_computed_total",
			Help: "Total number of compatibility scores computed",
		},
		[]string{"kind"}, // pairwise | group
	)

	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "engine_ranking_duration_seconds",
			Help: "Duration of candidate ranking in seconds",
		},
	)

	ScoreCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_score_cache_requests_total",
			Help: "Score cache lookups by result",
		},
		[]string{"result"}, // hit | miss
	)

	ProposalsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_proposals_opened_total",
			Help: "Total number of proposals opened",
		},
		[]string{"kind"},
	)

	ProposalsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_proposals_resolved_total",
			Help: "Total number of proposals resolved by outcome",
		},
		[]string{"kind", "outcome"}, // approved | rejected | expired
	)

	VotesCast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_votes_cast_total",
			Help: "Total number of votes cast",
		},
		[]string{"value"},
	)

	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_application_transitions_total",
			Help: "Application status transitions",
		},
		[]string{"status"},
	)
)
