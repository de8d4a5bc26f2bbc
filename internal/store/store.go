// Package store persists the engine's aggregates. Groups carry an
// optimistic version token; every group update must present the version it
// loaded, and a stale write comes back as a retryable CONFLICT.
package store

import (
	"context"
	"time"

	"roommate-engine/internal/models"
)

// Store is the persistence boundary for profiles, groups, proposals,
// applications, invitations and the audit trail.
type Store interface {
	// PutProfile upserts a profile snapshot. A write with a Version lower
	// than the stored one is ignored; edits always arrive with a higher
	// version.
	PutProfile(ctx context.Context, p *models.PreferenceProfile) error
	GetProfile(ctx context.Context, userID string) (*models.PreferenceProfile, error)
	ListProfiles(ctx context.Context) ([]*models.PreferenceProfile, error)

	CreateGroup(ctx context.Context, g *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	// UpdateGroup persists g if g.Version still matches the stored row,
	// then bumps the version. A mismatch returns CONFLICT.
	UpdateGroup(ctx context.Context, g *models.Group) error
	ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error)

	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	UpdateProposal(ctx context.Context, p *models.Proposal) error
	// ListDueProposals returns open proposals whose deadline is at or
	// before now, for the sweeper.
	ListDueProposals(ctx context.Context, now time.Time) ([]*models.Proposal, error)

	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	UpdateApplication(ctx context.Context, a *models.Application) error

	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, id string) (*models.Invitation, error)
	UpdateInvitation(ctx context.Context, inv *models.Invitation) error
	// FindPendingInvitation returns the pending invitation for
	// (groupID, inviteeID), or nil when none exists.
	FindPendingInvitation(ctx context.Context, groupID, inviteeID string) (*models.Invitation, error)

	AppendActivity(ctx context.Context, act *models.Activity) error
	ListActivities(ctx context.Context, groupID string, limit int) ([]*models.Activity, error)

	RecordInteraction(ctx context.Context, it *models.Interaction) error
	// ListDismissedTargets returns the user IDs this user dismissed, for
	// ranking exclusion.
	ListDismissedTargets(ctx context.Context, userID string) ([]string, error)
}
