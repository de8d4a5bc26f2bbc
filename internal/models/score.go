// internal/models/score.go
package models

import "time"

// CompatibilityScore is derived data, never a source of truth: recomputing
// with the same profile versions must reproduce it exactly.
type CompatibilityScore struct {
	// Overall is the weighted score in [0, 100]. Zero with HardFiltered set
	// means "incompatible", not merely "low compatibility".
	Overall float64 `json:"overall"`
	// Breakdown maps axis name to its weighted contribution to Overall.
	Breakdown map[string]float64 `json:"breakdown"`
	// Axes maps axis name to the raw, unweighted sub-score in [0, 100].
	Axes map[string]float64 `json:"axes"`
	// HardFiltered names the violated hard-filter axis, if any.
	HardFiltered string `json:"hardFiltered,omitempty"`
	// ProfileVersions records each input userID -> profile version, so a
	// cached score can be replayed or invalidated deterministically.
	ProfileVersions map[string]int `json:"profileVersions"`
	ComputedAt      time.Time      `json:"computedAt"`
}
