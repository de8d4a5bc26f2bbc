// internal/models/invitation.go
package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation asks a user to join a forming group. At most one pending
// invitation per (group, invitee); re-inviting returns the pending one.
type Invitation struct {
	ID        string `json:"id"`
	GroupID   string `json:"groupId"`
	InviterID string `json:"inviterId"`
	InviteeID string `json:"inviteeId"`
	Message   string `json:"message,omitempty"`

	Status      InvitationStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty"`
}

func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
