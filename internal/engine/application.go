// internal/engine/application.go
package engine

import (
	"context"
	"fmt"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/common/metrics"
	"roommate-engine/internal/models"
)

// openApplicationLocked creates the application for an approved
// submission proposal. Runs under the group lock; the caller persists g.
// The application starts collecting confirmations immediately.
func (e *Engine) openApplicationLocked(ctx context.Context, g *models.Group, propertyID string) error {
	now := e.now().UTC()
	app := &models.Application{
		ID:            e.newID(),
		GroupID:       g.ID,
		PropertyID:    propertyID,
		Status:        models.ApplicationAwaitingConfirmations,
		Confirmations: make(map[string]bool),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.CreateApplication(ctx, app); err != nil {
		return err
	}
	g.ApplicationID = app.ID

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status)).Inc()
	e.audit(ctx, g.ID, "", models.ActivityApplicationCreated, fmt.Sprintf("application opened for property %s", propertyID), map[string]interface{}{
		"applicationId": app.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventApplicationStatusChanged,
		EntityID: app.ID,
		GroupID:  g.ID,
		State:    string(app.Status),
	})
	return nil
}

// submitLocked is the commit point: every remaining member has confirmed.
// Persists the application and flips the group to confirmed in memory;
// the caller persists g.
func (e *Engine) submitLocked(ctx context.Context, g *models.Group, app *models.Application) error {
	now := e.now().UTC()
	app.Status = models.ApplicationSubmitted
	app.SubmittedAt = &now
	app.UpdatedAt = now
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return err
	}
	g.Status = models.GroupConfirmed

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status)).Inc()
	e.audit(ctx, g.ID, "", models.ActivityApplicationSubmitted, "application submitted", map[string]interface{}{
		"applicationId": app.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventApplicationStatusChanged,
		EntityID: app.ID,
		GroupID:  g.ID,
		State:    string(app.Status),
	})
	e.log.Info("application submitted", map[string]interface{}{
		"groupId":       g.ID,
		"applicationId": app.ID,
		"propertyId":    app.PropertyID,
	})
	return nil
}

// reconcileConfirmationsLocked drops a departed member's confirmation
// obligation and re-checks the commit point: removing the only member
// who had not confirmed submits the application. Runs under the group
// lock; the caller persists g.
func (e *Engine) reconcileConfirmationsLocked(ctx context.Context, g *models.Group, departedID string) error {
	if g.ApplicationID == "" {
		return nil
	}
	app, err := e.store.GetApplication(ctx, g.ApplicationID)
	if err != nil {
		return err
	}
	if app.Status != models.ApplicationAwaitingConfirmations {
		return nil
	}
	delete(app.Confirmations, departedID)
	app.UpdatedAt = e.now().UTC()
	if app.AllConfirmed(g.Members) {
		return e.submitLocked(ctx, g, app)
	}
	return e.store.UpdateApplication(ctx, app)
}

// GetApplication loads an application.
func (e *Engine) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	return e.store.GetApplication(ctx, applicationID)
}

// ConfirmParticipation records a member's "I'm in". Idempotent per
// member. The instant the last confirmation lands the application commits
// to submitted and the group to confirmed, in one step under the group
// lock: no observer ever sees all confirmations present with the
// application still pending.
func (e *Engine) ConfirmParticipation(ctx context.Context, applicationID, memberID string) (app *models.Application, err error) {
	started := e.now()
	defer func() { e.observe(ctx, "confirm_participation", started, err) }()

	loaded, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(loaded.GroupID)
	defer unlock()

	app, err = e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case models.ApplicationAwaitingConfirmations:
	case models.ApplicationWithdrawn:
		return nil, errors.NewConfirmationConflictError(app.ID, memberID)
	default:
		return nil, errors.NewConfirmationConflictError(app.ID, memberID)
	}

	g, err := e.store.GetGroup(ctx, app.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(memberID) {
		return nil, errors.NewNotAMemberError(memberID, g.ID)
	}

	now := e.now().UTC()
	app.Confirmations[memberID] = true
	app.UpdatedAt = now
	e.audit(ctx, g.ID, memberID, models.ActivityApplicationConfirmed, fmt.Sprintf("%s confirmed participation", memberID), map[string]interface{}{
		"applicationId": app.ID,
	})

	if app.AllConfirmed(g.Members) {
		if err := e.submitLocked(ctx, g, app); err != nil {
			return nil, err
		}
		g.UpdatedAt = now
		if err := e.store.UpdateGroup(ctx, g); err != nil {
			return nil, err
		}
		return app, nil
	}

	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// DeclineParticipation is one member backing out before submission. The
// whole application withdraws and the group returns to forming; a single
// decline always beats any number of confirmations.
func (e *Engine) DeclineParticipation(ctx context.Context, applicationID, memberID string) (*models.Application, error) {
	loaded, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(loaded.GroupID)
	defer unlock()

	app, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationAwaitingConfirmations {
		return nil, errors.NewConfirmationConflictError(app.ID, memberID)
	}

	g, err := e.store.GetGroup(ctx, app.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(memberID) {
		return nil, errors.NewNotAMemberError(memberID, g.ID)
	}

	now := e.now().UTC()
	app.Status = models.ApplicationWithdrawn
	app.DeclinedBy = memberID
	app.UpdatedAt = now
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}

	g.ApplicationID = ""
	if g.Status == models.GroupVoting {
		e.settleVotingStatus(g)
	}
	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status)).Inc()
	e.audit(ctx, g.ID, memberID, models.ActivityApplicationWithdrawn, fmt.Sprintf("%s declined, application withdrawn", memberID), map[string]interface{}{
		"applicationId": app.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventApplicationStatusChanged,
		EntityID: app.ID,
		GroupID:  g.ID,
		State:    string(app.Status),
	})
	e.log.Info("application withdrawn by decline", map[string]interface{}{
		"groupId":       g.ID,
		"applicationId": app.ID,
		"declinedBy":    memberID,
	})
	return app, nil
}

// WithdrawApplication pulls an application on behalf of a member. Before
// submission the group simply returns to forming; withdrawing an already
// submitted application dissolves the confirmed group.
func (e *Engine) WithdrawApplication(ctx context.Context, applicationID, memberID string) (*models.Application, error) {
	loaded, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(loaded.GroupID)
	defer unlock()

	app, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	g, err := e.store.GetGroup(ctx, app.GroupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(memberID) {
		return nil, errors.NewNotAMemberError(memberID, g.ID)
	}

	now := e.now().UTC()
	switch app.Status {
	case models.ApplicationAwaitingConfirmations:
		app.Status = models.ApplicationWithdrawn
		app.DeclinedBy = memberID
		g.ApplicationID = ""
		e.settleVotingStatus(g)

	case models.ApplicationSubmitted:
		app.Status = models.ApplicationWithdrawn
		app.DeclinedBy = memberID
		g.ApplicationID = ""
		g.Status = models.GroupDisbanded
		e.audit(ctx, g.ID, "", models.ActivityGroupDisbanded, "submitted application withdrawn", nil)

	default:
		return nil, errors.NewConfirmationConflictError(app.ID, memberID)
	}

	app.UpdatedAt = now
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}
	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status)).Inc()
	e.audit(ctx, g.ID, memberID, models.ActivityApplicationWithdrawn, fmt.Sprintf("application withdrawn by %s", memberID), map[string]interface{}{
		"applicationId": app.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventApplicationStatusChanged,
		EntityID: app.ID,
		GroupID:  g.ID,
		State:    string(app.Status),
	})
	return app, nil
}

// MarkLandlordRejected records an external rejection of a submitted
// application. The group survives and returns to forming to try another
// property.
func (e *Engine) MarkLandlordRejected(ctx context.Context, applicationID string) (*models.Application, error) {
	loaded, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(loaded.GroupID)
	defer unlock()

	app, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationSubmitted {
		return nil, errors.NewConfirmationConflictError(app.ID, "")
	}

	g, err := e.store.GetGroup(ctx, app.GroupID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	app.Status = models.ApplicationRejectedByLandlord
	app.UpdatedAt = now
	if err := e.store.UpdateApplication(ctx, app); err != nil {
		return nil, err
	}

	g.ApplicationID = ""
	g.Status = models.GroupForming
	g.UpdatedAt = now
	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(app.Status)).Inc()
	e.audit(ctx, g.ID, "", models.ActivityApplicationWithdrawn, "application rejected by landlord", map[string]interface{}{
		"applicationId": app.ID,
	})
	e.publish(ctx, models.Event{
		Type:     models.EventApplicationStatusChanged,
		EntityID: app.ID,
		GroupID:  g.ID,
		State:    string(app.Status),
	})
	e.log.Info("application rejected by landlord", map[string]interface{}{
		"groupId":       g.ID,
		"applicationId": app.ID,
	})
	return app, nil
}
