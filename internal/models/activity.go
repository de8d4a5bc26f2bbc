// internal/models/activity.go
package models

import "time"

type ActivityType string

const (
	ActivityMemberJoined         ActivityType = "member_joined"
	ActivityMemberLeft           ActivityType = "member_left"
	ActivityMemberRemoved        ActivityType = "member_removed"
	ActivityGroupDisbanded       ActivityType = "group_disbanded"
	ActivityProposalOpened       ActivityType = "proposal_opened"
	ActivityProposalResolved     ActivityType = "proposal_resolved"
	ActivityVoteCast             ActivityType = "vote_cast"
	ActivityApplicationCreated   ActivityType = "application_created"
	ActivityApplicationConfirmed ActivityType = "application_confirmed"
	ActivityApplicationSubmitted ActivityType = "application_submitted"
	ActivityApplicationWithdrawn ActivityType = "application_withdrawn"
	ActivityInvitationSent       ActivityType = "invitation_sent"
	ActivityInvitationResponded  ActivityType = "invitation_responded"
)

// Activity is one audit-log entry for a group.
type Activity struct {
	ID          string                 `json:"id"`
	GroupID     string                 `json:"groupId"`
	UserID      string                 `json:"userId,omitempty"`
	Type        ActivityType           `json:"type"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Interaction records one user acting on another (viewed, contacted,
// dismissed). Dismissals feed the ranker's exclusion list; the score at
// the time of the interaction is kept for later model tuning.
type Interaction struct {
	SourceUserID   string    `json:"sourceUserId"`
	TargetUserID   string    `json:"targetUserId"`
	Type           string    `json:"type"`
	WasRecommended bool      `json:"wasRecommended"`
	ScoreAtTime    *float64  `json:"scoreAtTime,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

const (
	InteractionViewed    = "viewed"
	InteractionContacted = "contacted"
	InteractionDismissed = "dismissed"
)
