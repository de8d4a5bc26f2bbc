// internal/engine/invitations.go
package engine

import (
	"context"
	"fmt"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

// Invite asks a user to join a forming group. Idempotent per
// (group, invitee): re-inviting while a pending invitation exists returns
// the pending one.
func (e *Engine) Invite(ctx context.Context, groupID, inviterID, inviteeID, message string) (*models.Invitation, error) {
	unlock := e.locks.Lock(groupID)
	defer unlock()

	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupForming {
		return nil, errors.NewGroupNotFormingError(g.ID, string(g.Status))
	}
	if !g.HasMember(inviterID) {
		return nil, errors.NewNotAMemberError(inviterID, g.ID)
	}

	if pending, err := e.store.FindPendingInvitation(ctx, groupID, inviteeID); err != nil {
		return nil, err
	} else if pending != nil && !pending.IsExpired(e.now()) {
		return pending, nil
	}

	// The invitee must exist and be joinable before the invite goes out.
	if _, err := e.store.GetProfile(ctx, inviteeID); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	inv := &models.Invitation{
		ID:        e.newID(),
		GroupID:   groupID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Message:   message,
		Status:    models.InvitationPending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.settings.InvitationTTL),
	}
	if err := e.store.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	e.audit(ctx, groupID, inviterID, models.ActivityInvitationSent, fmt.Sprintf("%s invited %s", inviterID, inviteeID), map[string]interface{}{
		"invitationId": inv.ID,
	})
	return inv, nil
}

// RespondInvitation answers a pending invitation. Accepting joins the
// invitee through the same viability checks as any other member add; a
// failed join leaves the invitation pending so the group can adjust and
// the invitee can retry.
func (e *Engine) RespondInvitation(ctx context.Context, invitationID string, accept bool) (*models.Invitation, error) {
	inv, err := e.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvitationPending {
		return inv, nil
	}

	now := e.now().UTC()
	if inv.IsExpired(now) {
		inv.Status = models.InvitationExpired
		inv.RespondedAt = &now
		if err := e.store.UpdateInvitation(ctx, inv); err != nil {
			return nil, err
		}
		return nil, errors.NewInvitationExpiredError(inv.ID)
	}

	if accept {
		if _, err := e.AddMember(ctx, inv.GroupID, inv.InviteeID); err != nil {
			return nil, err
		}
		inv.Status = models.InvitationAccepted
	} else {
		inv.Status = models.InvitationDeclined
	}
	inv.RespondedAt = &now
	if err := e.store.UpdateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	e.audit(ctx, inv.GroupID, inv.InviteeID, models.ActivityInvitationResponded, fmt.Sprintf("%s %s the invitation", inv.InviteeID, inv.Status), map[string]interface{}{
		"invitationId": inv.ID,
	})
	return inv, nil
}
