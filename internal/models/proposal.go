// internal/models/proposal.go
package models

import (
	"encoding/json"
	"time"
)

type ProposalKind string

const (
	ProposalTargetProperty        ProposalKind = "target_property"
	ProposalMoveInDate            ProposalKind = "move_in_date"
	ProposalApplicationSubmission ProposalKind = "application_submission"
	ProposalMemberRemoval         ProposalKind = "member_removal"
)

type ProposalStatus string

const (
	ProposalOpen     ProposalStatus = "open"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExpired  ProposalStatus = "expired"
)

type VoteValue string

const (
	VoteApprove VoteValue = "approve"
	VoteReject  VoteValue = "reject"
	VoteAbstain VoteValue = "abstain"
)

// Vote is one member's response. Unique per (proposal, member); a later
// vote overwrites the earlier one while the proposal is open.
type Vote struct {
	MemberID string    `json:"memberId"`
	Value    VoteValue `json:"value"`
	CastAt   time.Time `json:"castAt"`
}

// Proposal is a decision item the group votes on. Owned by the group;
// referenced by ID from the group's OpenProposals.
type Proposal struct {
	ID      string          `json:"id"`
	GroupID string          `json:"groupId"`
	Kind    ProposalKind    `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`

	CreatorID string    `json:"creatorId"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  time.Time `json:"deadline"`

	Status ProposalStatus `json:"status"`
	// Votes keyed by member ID.
	Votes      map[string]Vote `json:"votes"`
	ResolvedAt *time.Time      `json:"resolvedAt,omitempty"`
	// QuorumMet records, for audit, whether quorum was reached at
	// resolution. An expired proposal is rejected for workflow purposes
	// but kept distinct here.
	QuorumMet bool `json:"quorumMet"`
}

// CastCounts tallies non-abstain votes from current members only, so a
// removed member's vote stops counting.
func (p *Proposal) CastCounts(members []string) (approve, reject int) {
	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		current[m] = struct{}{}
	}
	for _, v := range p.Votes {
		if _, ok := current[v.MemberID]; !ok {
			continue
		}
		switch v.Value {
		case VoteApprove:
			approve++
		case VoteReject:
			reject++
		}
	}
	return approve, reject
}
