// internal/engine/group.go
package engine

import (
	"context"
	"fmt"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
)

// CreateGroup starts a forming group with the creator as its first member.
func (e *Engine) CreateGroup(ctx context.Context, creatorID string) (*models.Group, error) {
	creator, err := e.store.GetProfile(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	g := &models.Group{
		ID:        e.newID(),
		Members:   []string{creatorID},
		Status:    models.GroupForming,
		SizeLimit: creator.MaxGroupSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateGroup(ctx, g); err != nil {
		return nil, err
	}

	e.audit(ctx, g.ID, creatorID, models.ActivityMemberJoined, "group created", nil)
	e.publish(ctx, models.Event{
		Type:     models.EventGroupFormed,
		EntityID: g.ID,
		GroupID:  g.ID,
		State:    string(g.Status),
	})
	e.log.Info("group created", map[string]interface{}{
		"groupId": g.ID,
		"creator": creatorID,
	})
	return g, nil
}

// GetGroup loads a group.
func (e *Engine) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return e.store.GetGroup(ctx, groupID)
}

// GroupsForUser lists the groups the user belongs to.
func (e *Engine) GroupsForUser(ctx context.Context, userID string) ([]*models.Group, error) {
	return e.store.ListGroupsByMember(ctx, userID)
}

// AddMember joins a candidate to a forming group. The candidate must score
// at or above the viability threshold against every current member; any
// hard-filtered or below-threshold pair rejects the join.
func (e *Engine) AddMember(ctx context.Context, groupID, userID string) (*models.Group, error) {
	unlock := e.locks.Lock(groupID)
	defer unlock()

	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupForming {
		return nil, errors.NewGroupNotFormingError(g.ID, string(g.Status))
	}
	if g.HasMember(userID) {
		return g, nil
	}
	if g.SizeLimit > 0 && len(g.Members)+1 > g.SizeLimit {
		return nil, errors.NewIncompatibleMemberError(userID, g.ID, 0, 0)
	}

	candidate, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, memberID := range g.Members {
		member, err := e.store.GetProfile(ctx, memberID)
		if err != nil {
			return nil, err
		}
		score, err := e.scorer.Score(candidate, member)
		if err != nil {
			return nil, err
		}
		if score.HardFiltered != "" || score.Overall < e.settings.MinViabilityScore {
			return nil, errors.NewIncompatibleMemberError(userID, memberID, score.Overall, e.settings.MinViabilityScore)
		}
	}

	g.Members = append(g.Members, userID)
	if candidate.MaxGroupSize > 0 && (g.SizeLimit == 0 || candidate.MaxGroupSize < g.SizeLimit) {
		g.SizeLimit = candidate.MaxGroupSize
	}
	if err := e.refreshAggregate(ctx, g); err != nil {
		return nil, err
	}
	g.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	e.audit(ctx, g.ID, userID, models.ActivityMemberJoined, fmt.Sprintf("%s joined the group", userID), nil)
	e.log.Info("member added", map[string]interface{}{
		"groupId":        g.ID,
		"userId":         userID,
		"aggregateScore": g.AggregateScore,
	})
	return g, nil
}

// RemoveMember takes a member out of a forming or voting group. The
// member's votes on open proposals stop counting; if the group falls
// below the viable size it disbands.
func (e *Engine) RemoveMember(ctx context.Context, groupID, userID, removedBy string) (*models.Group, error) {
	unlock := e.locks.Lock(groupID)
	defer unlock()

	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupForming && g.Status != models.GroupVoting {
		return nil, errors.NewGroupNotFormingError(g.ID, string(g.Status))
	}
	if !g.HasMember(userID) {
		return nil, errors.NewNotAMemberError(userID, g.ID)
	}

	g.RemoveMemberRef(userID)

	activity := models.ActivityMemberLeft
	if removedBy != "" && removedBy != userID {
		activity = models.ActivityMemberRemoved
	}
	e.audit(ctx, g.ID, userID, activity, fmt.Sprintf("%s left the group", userID), map[string]interface{}{
		"removedBy": removedBy,
	})

	if len(g.Members) < e.settings.MinViableSize {
		return e.disbandLocked(ctx, g, "group fell below viable size")
	}

	if err := e.refreshAggregate(ctx, g); err != nil {
		return nil, err
	}

	// The departed member's votes stop counting, and the shrunk
	// electorate can push an open proposal over quorum.
	for _, proposalID := range g.OpenProposals {
		p, err := e.store.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, err
		}
		delete(p.Votes, userID)
		resolved, err := e.maybeResolve(ctx, g, p)
		if err != nil {
			return nil, err
		}
		if !resolved {
			if err := e.store.UpdateProposal(ctx, p); err != nil {
				return nil, err
			}
		}
	}

	// Dropping the departed member's confirmation obligation can complete
	// an awaiting application.
	if err := e.reconcileConfirmationsLocked(ctx, g, userID); err != nil {
		return nil, err
	}
	e.settleVotingStatus(g)

	g.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	e.log.Info("member removed", map[string]interface{}{
		"groupId": g.ID,
		"userId":  userID,
	})
	return g, nil
}

// Disband dissolves the group on request of a member.
func (e *Engine) Disband(ctx context.Context, groupID, requestedBy string) (*models.Group, error) {
	unlock := e.locks.Lock(groupID)
	defer unlock()

	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status == models.GroupDisbanded {
		return g, nil
	}
	if !g.HasMember(requestedBy) {
		return nil, errors.NewNotAMemberError(requestedBy, g.ID)
	}
	return e.disbandLocked(ctx, g, fmt.Sprintf("disbanded by %s", requestedBy))
}

// disbandLocked finalizes a disband under the group lock: open proposals
// expire, an in-flight application withdraws.
func (e *Engine) disbandLocked(ctx context.Context, g *models.Group, reason string) (*models.Group, error) {
	now := e.now().UTC()
	for _, proposalID := range g.OpenProposals {
		p, err := e.store.GetProposal(ctx, proposalID)
		if err != nil {
			return nil, err
		}
		p.Status = models.ProposalExpired
		p.ResolvedAt = &now
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return nil, err
		}
		metrics.ProposalsResolved.WithLabelValues(string(p.Kind), string(p.Status)).Inc()
		e.publish(ctx, models.Event{
			Type:     models.EventProposalResolved,
			EntityID: p.ID,
			GroupID:  g.ID,
			State:    string(p.Status),
		})
	}
	g.OpenProposals = nil

	if g.ApplicationID != "" {
		app, err := e.store.GetApplication(ctx, g.ApplicationID)
		if err != nil {
			return nil, err
		}
		if app.Status == models.ApplicationAwaitingConfirmations || app.Status == models.ApplicationDraft {
			app.Status = models.ApplicationWithdrawn
			app.UpdatedAt = now
			if err := e.store.UpdateApplication(ctx, app); err != nil {
				return nil, err
			}
		}
	}

	g.Status = models.GroupDisbanded
	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	e.audit(ctx, g.ID, "", models.ActivityGroupDisbanded, reason, nil)
	e.log.Info("group disbanded", map[string]interface{}{
		"groupId": g.ID,
		"reason":  reason,
	})
	return g, nil
}

// refreshAggregate recomputes the min-pairwise aggregate for the current
// member set. Single-member groups carry no aggregate.
func (e *Engine) refreshAggregate(ctx context.Context, g *models.Group) error {
	if len(g.Members) < 2 {
		g.AggregateScore = 0
		return nil
	}
	profiles := make([]*models.PreferenceProfile, 0, len(g.Members))
	for _, id := range g.Members {
		p, err := e.store.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		profiles = append(profiles, p)
	}
	score, err := e.scorer.ScoreGroup(profiles)
	if err != nil {
		return err
	}
	g.AggregateScore = score.Overall
	return nil
}

// settleVotingStatus moves a voting group back to forming once nothing is
// pending: no open proposals and no in-flight application.
func (e *Engine) settleVotingStatus(g *models.Group) {
	if g.Status != models.GroupVoting {
		return
	}
	if len(g.OpenProposals) > 0 {
		return
	}
	if g.ApplicationID != "" {
		return
	}
	g.Status = models.GroupForming
}
