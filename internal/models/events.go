// internal/models/events.go
package models

import "time"

type EventType string

const (
	EventGroupFormed              EventType = "GroupFormed"
	EventProposalOpened           EventType = "ProposalOpened"
	EventProposalResolved         EventType = "ProposalResolved"
	EventApplicationStatusChanged EventType = "ApplicationStatusChanged"
)

// Event is a domain event handed to the notification collaborator.
// Delivery is fire-and-forget from the engine's perspective.
type Event struct {
	Type EventType `json:"type"`
	// EntityID is the affected entity (group, proposal or application).
	EntityID string `json:"entityId"`
	GroupID  string `json:"groupId"`
	// State is the new state, e.g. "approved" for a resolved proposal or
	// "submitted" for an application.
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurredAt"`
}
