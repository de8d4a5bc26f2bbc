// internal/scoring/explain.go
package scoring

import (
	"fmt"
	"sort"

	"roommate-engine/internal/models"
)

// Explanation is a human-readable rendering of a score for recommendation
// surfaces.
type Explanation struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights,omitempty"`
	Concerns   []string `json:"concerns,omitempty"`
}

const (
	highlightThreshold = 75.0
	concernThreshold   = 40.0
)

var axisPhrases = map[string]struct{ high, low string }{
	AxisBudget:      {"budgets line up well", "budgets barely overlap"},
	AxisLocation:    {"both want the same areas", "few preferred areas in common"},
	AxisMoveIn:      {"move-in timelines match", "move-in timelines conflict"},
	AxisCleanliness: {"similar cleanliness standards", "very different cleanliness standards"},
	AxisSocial:      {"similar social energy at home", "different expectations of social life at home"},
	AxisNoise:       {"compatible noise tolerance", "mismatched noise tolerance"},
	AxisSmoking:     {"aligned on smoking", "opposed on smoking"},
	AxisPets:        {"aligned on pets", "opposed on pets"},
	AxisInterests:   {"plenty of shared interests", "few shared interests"},
}

// Explain turns a score into summary text plus the strongest and weakest
// axes. Deterministic: axes are walked in sorted order so the same score
// always yields the same explanation.
func Explain(score *models.CompatibilityScore) Explanation {
	if score.HardFiltered != "" {
		return Explanation{
			Summary: fmt.Sprintf("Incompatible: %s requirements do not match.", score.HardFiltered),
		}
	}

	var summary string
	switch {
	case score.Overall >= 80:
		summary = "Excellent match across most preferences."
	case score.Overall >= 60:
		summary = "Good match with some differences to discuss."
	case score.Overall >= 40:
		summary = "Moderate match; expect compromises."
	default:
		summary = "Weak match across key preferences."
	}

	names := make([]string, 0, len(score.Axes))
	for axis := range score.Axes {
		names = append(names, axis)
	}
	sort.Strings(names)

	expl := Explanation{Summary: summary}
	for _, axis := range names {
		phrases, ok := axisPhrases[axis]
		if !ok {
			continue
		}
		sub := score.Axes[axis]
		switch {
		case sub >= highlightThreshold:
			expl.Highlights = append(expl.Highlights, phrases.high)
		case sub < concernThreshold:
			expl.Concerns = append(expl.Concerns, phrases.low)
		}
	}
	return expl
}
