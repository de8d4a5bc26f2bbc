// internal/models/group.go
package models

import (
	"encoding/json"
	"time"
)

type GroupStatus string

const (
	GroupForming   GroupStatus = "forming"
	GroupVoting    GroupStatus = "voting"
	GroupConfirmed GroupStatus = "confirmed"
	GroupDisbanded GroupStatus = "disbanded"
)

// Group is a candidate or active roommate cohort. It is shared by all its
// members; nobody owns it, and every write goes through the engine's
// per-group serialization. The open proposal and application are held by
// identifier, not by reference, so the consistency domain has no ownership
// cycle.
type Group struct {
	ID string `json:"id"`
	// Members in join order.
	Members []string    `json:"members"`
	Status  GroupStatus `json:"status"`

	// AggregateScore is the minimum pairwise score among members,
	// recomputed synchronously on every membership change.
	AggregateScore float64 `json:"aggregateScore"`
	// SizeLimit is the most restrictive MaxGroupSize among members.
	// Zero means no member imposes a limit.
	SizeLimit int `json:"sizeLimit"`

	// OpenProposals maps proposal kind -> open proposal ID. At most one
	// open proposal per kind.
	OpenProposals map[ProposalKind]string `json:"openProposals,omitempty"`
	// Decisions holds the approved payload per proposal kind.
	Decisions map[ProposalKind]json.RawMessage `json:"decisions,omitempty"`
	// ApplicationID is the in-flight or submitted application, if any.
	ApplicationID string `json:"applicationId,omitempty"`

	// Version is the optimistic-concurrency token for the group's
	// consistency domain.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// RemoveMemberRef drops userID from the member list, preserving join order.
func (g *Group) RemoveMemberRef(userID string) {
	out := g.Members[:0]
	for _, m := range g.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	g.Members = out
}
