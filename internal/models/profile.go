// internal/models/profile.go
package models

import (
	"fmt"
	"time"
)

// Ordinal lifestyle axes share a fixed 1..5 scale.
const (
	OrdinalMin = 1
	OrdinalMax = 5
)

type Gender string

const (
	GenderMale         Gender = "male"
	GenderFemale       Gender = "female"
	GenderNonBinary    Gender = "non_binary"
	GenderPreferNotSay Gender = "prefer_not_say"
)

// BudgetRange is a per-person rent budget.
type BudgetRange struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency"`
}

// MoveInWindow is the desired move-in interval.
type MoveInWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// LocationPreference is one preferred area with its rank (1 = most wanted).
type LocationPreference struct {
	Area string `json:"area"`
	Rank int    `json:"rank"`
}

// PreferenceProfile is an immutable-per-version snapshot of a user's
// matching attributes. Profile edits supersede the snapshot with a new,
// higher Version; nothing mutates an existing version in place. Age is the
// stated age at snapshot time rather than a birth date, so a scored version
// pair always reproduces the same result.
type PreferenceProfile struct {
	UserID  string `json:"userId"`
	Version int    `json:"version"`

	Budget            BudgetRange          `json:"budget"`
	MoveIn            MoveInWindow         `json:"moveIn"`
	Locations         []LocationPreference `json:"locations,omitempty"`
	MaxCommuteMinutes int                  `json:"maxCommuteMinutes,omitempty"`

	// Lifestyle ordinals, all on the 1..5 scale.
	Cleanliness      int `json:"cleanliness"`
	SocialLevel      int `json:"socialLevel"`
	NoiseTolerance   int `json:"noiseTolerance"`
	SmokingTolerance int `json:"smokingTolerance"`
	PetTolerance     int `json:"petTolerance"`

	// Roommate constraints. Empty AcceptedGenders means no restriction;
	// a zero AcceptedAgeMin/Max likewise.
	Age             int      `json:"age"`
	Gender          Gender   `json:"gender"`
	AcceptedGenders []Gender `json:"acceptedGenders,omitempty"`
	AcceptedAgeMin  int      `json:"acceptedAgeMin,omitempty"`
	AcceptedAgeMax  int      `json:"acceptedAgeMax,omitempty"`
	MaxGroupSize    int      `json:"maxGroupSize"`

	Interests []string `json:"interests,omitempty"`

	LastActiveAt time.Time `json:"lastActiveAt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate enforces the snapshot invariants. Scoring rejects profiles that
// fail here with INVALID_PROFILE.
func (p *PreferenceProfile) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if p.Budget.Max <= 0 {
		return fmt.Errorf("budget is required")
	}
	if p.Budget.Min > p.Budget.Max {
		return fmt.Errorf("budget.min %v exceeds budget.max %v", p.Budget.Min, p.Budget.Max)
	}
	for name, v := range map[string]int{
		"cleanliness":      p.Cleanliness,
		"socialLevel":      p.SocialLevel,
		"noiseTolerance":   p.NoiseTolerance,
		"smokingTolerance": p.SmokingTolerance,
		"petTolerance":     p.PetTolerance,
	} {
		if v < OrdinalMin || v > OrdinalMax {
			return fmt.Errorf("%s %d outside [%d, %d]", name, v, OrdinalMin, OrdinalMax)
		}
	}
	if p.AcceptedAgeMin != 0 && p.AcceptedAgeMax != 0 && p.AcceptedAgeMin > p.AcceptedAgeMax {
		return fmt.Errorf("acceptedAgeMin %d exceeds acceptedAgeMax %d", p.AcceptedAgeMin, p.AcceptedAgeMax)
	}
	if p.MaxGroupSize < 0 {
		return fmt.Errorf("maxGroupSize must be non-negative")
	}
	return nil
}

// AcceptsGender reports whether the profile's roommate constraint admits g.
func (p *PreferenceProfile) AcceptsGender(g Gender) bool {
	if len(p.AcceptedGenders) == 0 {
		return true
	}
	for _, a := range p.AcceptedGenders {
		if a == g {
			return true
		}
	}
	return false
}

// AcceptsAge reports whether the profile's accepted age range admits age.
func (p *PreferenceProfile) AcceptsAge(age int) bool {
	if p.AcceptedAgeMin == 0 && p.AcceptedAgeMax == 0 {
		return true
	}
	if p.AcceptedAgeMin != 0 && age < p.AcceptedAgeMin {
		return false
	}
	if p.AcceptedAgeMax != 0 && age > p.AcceptedAgeMax {
		return false
	}
	return true
}
