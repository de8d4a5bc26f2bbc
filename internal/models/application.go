// internal/models/application.go
package models

import "time"

type ApplicationStatus string

const (
	ApplicationDraft                 ApplicationStatus = "draft"
	ApplicationAwaitingConfirmations ApplicationStatus = "awaiting_confirmations"
	ApplicationSubmitted             ApplicationStatus = "submitted"
	ApplicationWithdrawn             ApplicationStatus = "withdrawn"
	ApplicationRejectedByLandlord    ApplicationStatus = "rejected_by_landlord"
)

// Application is a coordinated submission to a property on behalf of a
// consensus-approved group. It cannot reach submitted until every member's
// confirmation flag is true, and the draft -> submitted commit is atomic:
// external collaborators never observe a partially counted submission.
type Application struct {
	ID         string `json:"id"`
	GroupID    string `json:"groupId"`
	PropertyID string `json:"propertyId"`

	Status ApplicationStatus `json:"status"`
	// Confirmations is the explicit "I'm in" acknowledgment per member,
	// distinct from the original vote. Only true entries are recorded;
	// a decline withdraws the whole application instead.
	Confirmations map[string]bool `json:"confirmations"`
	// DeclinedBy records who withdrew the application, if anyone.
	DeclinedBy string `json:"declinedBy,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// AllConfirmed reports whether every listed member has confirmed.
func (a *Application) AllConfirmed(members []string) bool {
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !a.Confirmations[m] {
			return false
		}
	}
	return true
}
