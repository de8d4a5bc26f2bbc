// internal/engine/voting.go
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
)

// MemberRemovalPayload is the payload of a member_removal proposal.
type MemberRemovalPayload struct {
	MemberID string `json:"memberId"`
	Reason   string `json:"reason,omitempty"`
}

// ApplicationSubmissionPayload is the payload of an application_submission
// proposal.
type ApplicationSubmissionPayload struct {
	PropertyID string `json:"propertyId"`
}

// OpenProposal opens a decision item for the group to vote on. At most
// one proposal per kind is open at a time: reopening the same kind with
// the same payload returns the existing proposal, a different payload is
// rejected until the open one resolves.
func (e *Engine) OpenProposal(ctx context.Context, groupID, creatorID string, kind models.ProposalKind, payload json.RawMessage, deadline time.Time) (*models.Proposal, error) {
	unlock := e.locks.Lock(groupID)
	defer unlock()

	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g.Status != models.GroupForming && g.Status != models.GroupVoting {
		return nil, errors.NewGroupNotFormingError(g.ID, string(g.Status))
	}
	if !g.HasMember(creatorID) {
		return nil, errors.NewNotAMemberError(creatorID, g.ID)
	}

	if existingID, ok := g.OpenProposals[kind]; ok {
		existing, err := e.store.GetProposal(ctx, existingID)
		if err != nil {
			return nil, err
		}
		if existing.Status == models.ProposalOpen {
			if bytes.Equal(existing.Payload, payload) {
				return existing, nil
			}
			return nil, errors.NewDuplicateProposalError(g.ID, string(kind))
		}
		// Stale reference left by a crashed resolution.
		delete(g.OpenProposals, kind)
	}

	now := e.now().UTC()
	if deadline.IsZero() {
		deadline = now.Add(e.settings.ProposalTTL)
	}
	p := &models.Proposal{
		ID:        e.newID(),
		GroupID:   g.ID,
		Kind:      kind,
		Payload:   payload,
		CreatorID: creatorID,
		CreatedAt: now,
		Deadline:  deadline,
		Status:    models.ProposalOpen,
		Votes:     make(map[string]models.Vote),
	}
	if err := e.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}

	if g.OpenProposals == nil {
		g.OpenProposals = make(map[models.ProposalKind]string)
	}
	g.OpenProposals[kind] = p.ID
	if g.Status == models.GroupForming {
		g.Status = models.GroupVoting
	}
	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	metrics.ProposalsOpened.WithLabelValues(string(kind)).Inc()
	e.audit(ctx, g.ID, creatorID, models.ActivityProposalOpened, fmt.Sprintf("proposal %s opened", kind), map[string]interface{}{
		"proposalId": p.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventProposalOpened,
		EntityID: p.ID,
		GroupID:  g.ID,
		State:    string(models.ProposalOpen),
	})
	e.log.Info("proposal opened", map[string]interface{}{
		"groupId":    g.ID,
		"proposalId": p.ID,
		"kind":       string(kind),
		"deadline":   deadline,
	})
	return p, nil
}

// GetProposal loads a proposal, resolving it first if its deadline has
// quietly passed. Reads never observe an overdue proposal as open.
func (e *Engine) GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalOpen || p.Deadline.After(e.now()) {
		return p, nil
	}

	unlock := e.locks.Lock(p.GroupID)
	defer unlock()

	p, err = e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalOpen || p.Deadline.After(e.now()) {
		return p, nil
	}
	g, err := e.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}
	if err := e.resolveLocked(ctx, g, p); err != nil {
		return nil, err
	}
	g.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	return p, nil
}

// CastVote records a member's vote on an open proposal. A repeat vote
// overwrites the earlier one. A vote arriving past the deadline resolves
// the proposal from the persisted votes and comes back as PROPOSAL_CLOSED.
func (e *Engine) CastVote(ctx context.Context, proposalID, memberID string, value models.VoteValue) (p *models.Proposal, err error) {
	started := e.now()
	defer func() { e.observe(ctx, "cast_vote", started, err) }()

	switch value {
	case models.VoteApprove, models.VoteReject, models.VoteAbstain:
	default:
		return nil, errors.NewInvalidVoteError(proposalID, string(value))
	}

	loaded, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(loaded.GroupID)
	defer unlock()

	p, err = e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ProposalOpen {
		return nil, errors.NewProposalClosedError(p.ID, string(p.Status))
	}

	g, err := e.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	if !p.Deadline.After(now) {
		approve, reject := p.CastCounts(g.Members)
		cast, total := approve+reject, len(g.Members)
		if err := e.resolveLocked(ctx, g, p); err != nil {
			return nil, err
		}
		g.UpdatedAt = now
		if err := e.store.UpdateGroup(ctx, g); err != nil {
			return nil, err
		}
		if !p.QuorumMet {
			return nil, errors.NewQuorumNotMetError(p.ID, cast, total)
		}
		return nil, errors.NewProposalClosedError(p.ID, string(p.Status))
	}
	if !g.HasMember(memberID) {
		return nil, errors.NewNotAMemberError(memberID, g.ID)
	}

	p.Votes[memberID] = models.Vote{MemberID: memberID, Value: value, CastAt: now}
	metrics.VotesCast.WithLabelValues(string(value)).Inc()
	e.audit(ctx, g.ID, memberID, models.ActivityVoteCast, fmt.Sprintf("voted %s on %s", value, p.Kind), map[string]interface{}{
		"proposalId": p.ID,
	})

	// Early resolution: once every member has spoken the outcome can only
	// be changed by an overwrite, and an overwrite before the deadline is
	// exactly what waiting would allow. Resolve only when quorum holds;
	// abstain-heavy tallies wait so members can still change their minds.
	if len(p.Votes) >= len(g.Members) && e.quorumMet(g, p) {
		if err := e.resolveLocked(ctx, g, p); err != nil {
			return nil, err
		}
	} else {
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return nil, err
		}
	}

	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	return p, nil
}

func (e *Engine) quorumMet(g *models.Group, p *models.Proposal) bool {
	if len(g.Members) == 0 {
		return false
	}
	approve, reject := p.CastCounts(g.Members)
	return float64(approve+reject)/float64(len(g.Members)) >= e.settings.QuorumFraction
}

// maybeResolve resolves the proposal if it is due, or if every member has
// voted and quorum holds. Reports whether the proposal left the open state.
func (e *Engine) maybeResolve(ctx context.Context, g *models.Group, p *models.Proposal) (bool, error) {
	if p.Status != models.ProposalOpen {
		delete(g.OpenProposals, p.Kind)
		return true, nil
	}
	due := !p.Deadline.After(e.now())
	allVoted := len(p.Votes) >= len(g.Members)
	if !due && !(allVoted && e.quorumMet(g, p)) {
		return false, nil
	}
	if err := e.resolveLocked(ctx, g, p); err != nil {
		return false, err
	}
	return true, nil
}

// resolveLocked finalizes an open proposal under the group lock: tallies
// the votes, persists the proposal and applies the approved payload's
// effects to g. The caller persists g afterwards.
func (e *Engine) resolveLocked(ctx context.Context, g *models.Group, p *models.Proposal) error {
	approve, reject := p.CastCounts(g.Members)
	cast := approve + reject
	total := len(g.Members)
	now := e.now().UTC()

	p.ResolvedAt = &now
	if total == 0 || float64(cast)/float64(total) < e.settings.QuorumFraction {
		// Too few spoke: expired, distinct from an explicit rejection.
		p.Status = models.ProposalExpired
		p.QuorumMet = false
	} else {
		p.QuorumMet = true
		if approve > reject {
			p.Status = models.ProposalApproved
		} else {
			p.Status = models.ProposalRejected
		}
	}
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return err
	}

	delete(g.OpenProposals, p.Kind)

	metrics.ProposalsResolved.WithLabelValues(string(p.Kind), string(p.Status)).Inc()
	e.audit(ctx, g.ID, "", models.ActivityProposalResolved, fmt.Sprintf("proposal %s %s", p.Kind, p.Status), map[string]interface{}{
		"proposalId": p.ID,
		"approve":    approve,
		"reject":     reject,
		"quorumMet":  p.QuorumMet,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventProposalResolved,
		EntityID: p.ID,
		GroupID:  g.ID,
		State:    string(p.Status),
	})
	e.log.Info("proposal resolved", map[string]interface{}{
		"groupId":    g.ID,
		"proposalId": p.ID,
		"kind":       string(p.Kind),
		"status":     string(p.Status),
		"approve":    approve,
		"reject":     reject,
	})

	if p.Status == models.ProposalApproved {
		if err := e.applyApproved(ctx, g, p); err != nil {
			return err
		}
	}

	e.settleVotingStatus(g)
	return nil
}

// applyApproved executes the effect of an approved proposal.
func (e *Engine) applyApproved(ctx context.Context, g *models.Group, p *models.Proposal) error {
	if g.Decisions == nil {
		g.Decisions = make(map[models.ProposalKind]json.RawMessage)
	}
	g.Decisions[p.Kind] = p.Payload

	switch p.Kind {
	case models.ProposalApplicationSubmission:
		var payload ApplicationSubmissionPayload
		if len(p.Payload) > 0 {
			if err := json.Unmarshal(p.Payload, &payload); err != nil {
				return fmt.Errorf("decode application payload: %w", err)
			}
		}
		return e.openApplicationLocked(ctx, g, payload.PropertyID)

	case models.ProposalMemberRemoval:
		var payload MemberRemovalPayload
		if err := json.Unmarshal(p.Payload, &payload); err != nil {
			return fmt.Errorf("decode removal payload: %w", err)
		}
		if !g.HasMember(payload.MemberID) {
			return nil
		}
		g.RemoveMemberRef(payload.MemberID)
		e.audit(ctx, g.ID, payload.MemberID, models.ActivityMemberRemoved, fmt.Sprintf("%s removed by group vote", payload.MemberID), nil)
		if len(g.Members) < e.settings.MinViableSize {
			return e.windDownLocked(ctx, g)
		}
		if err := e.refreshAggregate(ctx, g); err != nil {
			return err
		}
		return e.reconcileConfirmationsLocked(ctx, g, payload.MemberID)
	}
	return nil
}

// windDownLocked marks the group disbanded in memory and retires its open
// proposals and in-flight application. The caller persists g.
func (e *Engine) windDownLocked(ctx context.Context, g *models.Group) error {
	now := e.now().UTC()
	for _, proposalID := range g.OpenProposals {
		p, err := e.store.GetProposal(ctx, proposalID)
		if err != nil {
			return err
		}
		p.Status = models.ProposalExpired
		p.ResolvedAt = &now
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return err
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
			return err
		}
		if app.Status == models.ApplicationDraft || app.Status == models.ApplicationAwaitingConfirmations {
			app.Status = models.ApplicationWithdrawn
			app.UpdatedAt = now
			if err := e.store.UpdateApplication(ctx, app); err != nil {
				return err
			}
		}
	}

	g.Status = models.GroupDisbanded
	e.audit(ctx, g.ID, "", models.ActivityGroupDisbanded, "group fell below viable size", nil)
	return nil
}

// ExpireDueProposals resolves every open proposal whose deadline has
// passed. Called by the sweeper and safe to run concurrently with reads.
func (e *Engine) ExpireDueProposals(ctx context.Context) (int, error) {
	due, err := e.store.ListDueProposals(ctx, e.now())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, stale := range due {
		err := func() error {
			unlock := e.locks.Lock(stale.GroupID)
			defer unlock()

			p, err := e.store.GetProposal(ctx, stale.ID)
			if err != nil {
				return err
			}
			if p.Status != models.ProposalOpen || p.Deadline.After(e.now()) {
				return nil
			}
			g, err := e.store.GetGroup(ctx, p.GroupID)
			if err != nil {
				return err
			}
			if err := e.resolveLocked(ctx, g, p); err != nil {
				return err
			}
			g.UpdatedAt = e.now().UTC()
			if err := e.store.UpdateGroup(ctx, g); err != nil {
				return err
			}
			resolved++
			return nil
		}()
		if err != nil {
			e.log.Error("failed to expire proposal", map[string]interface{}{
				"proposalId": stale.ID,
				"error":      err.Error(),
			})
		}
	}
	return resolved, nil
}
