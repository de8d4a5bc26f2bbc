// internal/scoring/weights.go
package scoring

import "fmt"

// Axis names. Every scored dimension has exactly one entry here; the
// closed set keeps new axes from sliding in without a comparison rule.
const (
	AxisBudget      = "budget"
	AxisLocation    = "location"
	AxisMoveIn      = "movein"
	AxisCleanliness = "cleanliness"
	AxisSocial      = "social"
	AxisNoise       = "noise"
	AxisSmoking     = "smoking"
	AxisPets        = "pets"
	AxisInterests   = "interests"
)

// Weights maps axis name to its relative weight. Values are normalized to
// sum 1 before scoring, so callers only supply proportions.
type Weights map[string]float64

// DefaultWeights returns the baseline axis proportions.
func DefaultWeights() Weights {
	return Weights{
		AxisBudget:      0.25,
		AxisLocation:    0.20,
		AxisMoveIn:      0.05,
		AxisCleanliness: 0.125,
		AxisSocial:      0.10,
		AxisNoise:       0.075,
		AxisSmoking:     0.10,
		AxisPets:        0.05,
		AxisInterests:   0.05,
	}
}

// Normalized returns a copy scaled to sum 1.
func (w Weights) Normalized() (Weights, error) {
	var sum float64
	for axis, v := range w {
		if v < 0 {
			return nil, fmt.Errorf("weight for axis %q is negative: %v", axis, v)
		}
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	out := make(Weights, len(w))
	for axis, v := range w {
		out[axis] = v / sum
	}
	return out, nil
}
