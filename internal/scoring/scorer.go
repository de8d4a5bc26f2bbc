// internal/scoring/scorer.go
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
)

const (
	// neutralScore is the sub-score for axes where either profile left the
	// data out (optional axes only; required axes fail validation instead).
	neutralScore = 50.0
	// ordinalStep is the penalty per level of distance on a 1..5 axis.
	ordinalStep = 25.0
)

// Scorer computes pairwise and group compatibility. It is pure: the result
// depends only on the input profile versions and the weight set, never on
// wall-clock time or hidden state.
type Scorer struct {
	weights Weights
}

// New builds a Scorer with the given weights (normalized internally).
func New(weights Weights) (*Scorer, error) {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	norm, err := weights.Normalized()
	if err != nil {
		return nil, err
	}
	return &Scorer{weights: norm}, nil
}

// Score computes the pairwise compatibility of a and b under the scorer's
// configured weights.
func (s *Scorer) Score(a, b *models.PreferenceProfile) (*models.CompatibilityScore, error) {
	return s.score(a, b, s.weights)
}

// ScoreWithWeights computes the pairwise score under caller-supplied
// weights, leaving the scorer's configuration untouched. Used for weight
// sensitivity testing.
func (s *Scorer) ScoreWithWeights(a, b *models.PreferenceProfile, weights Weights) (*models.CompatibilityScore, error) {
	norm, err := weights.Normalized()
	if err != nil {
		return nil, err
	}
	return s.score(a, b, norm)
}

// ScoreGroup aggregates all pairwise scores among the supplied profiles
// using the minimum: the weakest pairwise relationship bounds the group.
func (s *Scorer) ScoreGroup(profiles []*models.PreferenceProfile) (*models.CompatibilityScore, error) {
	if len(profiles) < 2 {
		return nil, errors.NewEmptyGroupError(len(profiles))
	}

	versions := make(map[string]int, len(profiles))
	for _, p := range profiles {
		versions[p.UserID] = p.Version
	}

	var weakest *models.CompatibilityScore
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			pair, err := s.score(profiles[i], profiles[j], s.weights)
			if err != nil {
				return nil, err
			}
			if weakest == nil || pair.Overall < weakest.Overall {
				weakest = pair
			}
		}
	}

	metrics.ScoresComputed.WithLabelValues("group").Inc()
	return &models.CompatibilityScore{
		Overall:         weakest.Overall,
		Breakdown:       weakest.Breakdown,
		Axes:            weakest.Axes,
		HardFiltered:    weakest.HardFiltered,
		ProfileVersions: versions,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

func (s *Scorer) score(a, b *models.PreferenceProfile, weights Weights) (*models.CompatibilityScore, error) {
	if err := a.Validate(); err != nil {
		return nil, errors.NewInvalidProfileError(fmt.Sprintf("profile %s: %v", a.UserID, err))
	}
	if err := b.Validate(); err != nil {
		return nil, errors.NewInvalidProfileError(fmt.Sprintf("profile %s: %v", b.UserID, err))
	}

	versions := map[string]int{a.UserID: a.Version, b.UserID: b.Version}

	// Hard filters first: a violated roommate constraint means
	// "incompatible", not "low compatibility".
	if axis := violatedHardFilter(a, b); axis != "" {
		metrics.ScoresComputed.WithLabelValues("pairwise").Inc()
		return &models.CompatibilityScore{
			Overall:         0,
			Breakdown:       map[string]float64{},
			Axes:            map[string]float64{},
			HardFiltered:    axis,
			ProfileVersions: versions,
			ComputedAt:      time.Now().UTC(),
		}, nil
	}

	axes := map[string]float64{
		AxisBudget:      budgetOverlap(a.Budget, b.Budget),
		AxisLocation:    locationOverlap(a.Locations, b.Locations),
		AxisMoveIn:      moveInOverlap(a.MoveIn, b.MoveIn),
		AxisCleanliness: ordinalDistance(a.Cleanliness, b.Cleanliness),
		AxisSocial:      ordinalDistance(a.SocialLevel, b.SocialLevel),
		AxisNoise:       ordinalDistance(a.NoiseTolerance, b.NoiseTolerance),
		AxisSmoking:     ordinalDistance(a.SmokingTolerance, b.SmokingTolerance),
		AxisPets:        ordinalDistance(a.PetTolerance, b.PetTolerance),
		AxisInterests:   interestOverlap(a.Interests, b.Interests),
	}

	var overall float64
	breakdown := make(map[string]float64, len(weights))
	for axis, weight := range weights {
		sub, ok := axes[axis]
		if !ok {
			continue
		}
		contribution := weight * sub
		breakdown[axis] = contribution
		overall += contribution
	}
	overall = math.Min(100, math.Max(0, overall))

	metrics.ScoresComputed.WithLabelValues("pairwise").Inc()
	return &models.CompatibilityScore{
		Overall:         overall,
		Breakdown:       breakdown,
		Axes:            axes,
		ProfileVersions: versions,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// violatedHardFilter checks the roommate constraints in both directions and
// returns the violated axis name, or "".
func violatedHardFilter(a, b *models.PreferenceProfile) string {
	if b.Gender != "" && !a.AcceptsGender(b.Gender) {
		return "gender"
	}
	if a.Gender != "" && !b.AcceptsGender(a.Gender) {
		return "gender"
	}
	if b.Age > 0 && !a.AcceptsAge(b.Age) {
		return "age"
	}
	if a.Age > 0 && !b.AcceptsAge(a.Age) {
		return "age"
	}
	return ""
}

// budgetOverlap scores the interval intersection against the average range
// size. Disjoint budgets score 0.
func budgetOverlap(a, b models.BudgetRange) float64 {
	overlap := math.Min(a.Max, b.Max) - math.Max(a.Min, b.Min)
	if overlap < 0 {
		return 0
	}
	avgRange := ((a.Max - a.Min) + (b.Max - b.Min)) / 2
	if avgRange == 0 {
		// Two point budgets; overlap >= 0 means they coincide.
		return 100
	}
	return math.Min(100, overlap/avgRange*100)
}

// ordinalDistance scores a 1..5 axis by capped distance decay.
func ordinalDistance(a, b int) float64 {
	diff := math.Abs(float64(a - b))
	return math.Max(0, 100-ordinalStep*diff)
}

// locationOverlap scores the rank-weighted intersection of preferred areas.
// Each profile distributes weight across its ranked areas as 1/rank,
// normalized; common areas contribute the mean of both sides' weights.
func locationOverlap(a, b []models.LocationPreference) float64 {
	if len(a) == 0 || len(b) == 0 {
		return neutralScore
	}
	wa := rankWeights(a)
	wb := rankWeights(b)

	var common float64
	for area, w := range wa {
		if w2, ok := wb[area]; ok {
			common += (w + w2) / 2
		}
	}
	return math.Min(100, common*100)
}

func rankWeights(prefs []models.LocationPreference) map[string]float64 {
	raw := make(map[string]float64, len(prefs))
	var sum float64
	for _, p := range prefs {
		rank := p.Rank
		if rank < 1 {
			rank = len(prefs)
		}
		w := 1 / float64(rank)
		area := strings.ToLower(strings.TrimSpace(p.Area))
		if area == "" {
			continue
		}
		// Keep the best rank on duplicate areas.
		if w > raw[area] {
			sum += w - raw[area]
			raw[area] = w
		}
	}
	if sum == 0 {
		return raw
	}
	for area, w := range raw {
		raw[area] = w / sum
	}
	return raw
}

// moveInOverlap scores the day-overlap of the two desired windows against
// the average window length.
func moveInOverlap(a, b models.MoveInWindow) float64 {
	if a.Earliest.IsZero() || a.Latest.IsZero() || b.Earliest.IsZero() || b.Latest.IsZero() {
		return neutralScore
	}
	start := a.Earliest
	if b.Earliest.After(start) {
		start = b.Earliest
	}
	end := a.Latest
	if b.Latest.Before(end) {
		end = b.Latest
	}
	overlap := end.Sub(start).Hours() / 24
	if overlap < 0 {
		return 0
	}
	avgWindow := (a.Latest.Sub(a.Earliest).Hours()/24 + b.Latest.Sub(b.Earliest).Hours()/24) / 2
	if avgWindow == 0 {
		return 100
	}
	return math.Min(100, overlap/avgWindow*100)
}

// interestOverlap scores shared interest tags by Jaccard similarity.
func interestOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return neutralScore
	}
	set := make(map[string]int)
	for _, t := range a {
		set[strings.ToLower(strings.TrimSpace(t))] |= 1
	}
	for _, t := range b {
		set[strings.ToLower(strings.TrimSpace(t))] |= 2
	}
	delete(set, "")

	var union, both int
	for _, mask := range set {
		union++
		if mask == 3 {
			both++
		}
	}
	if union == 0 {
		return neutralScore
	}
	return float64(both) / float64(union) * 100
}
