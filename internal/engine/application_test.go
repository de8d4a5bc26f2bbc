package engine

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

// seedApplication drives a group through an approved submission proposal
// and returns the group and its awaiting application.
func seedApplication(t *testing.T, f *fixture, members ...string) (*models.Group, *models.Application) {
	t.Helper()
	ctx := context.Background()
	g := f.seedGroup(t, members...)

	payload, err := json.Marshal(ApplicationSubmissionPayload{PropertyID: "prop-1"})
	require.NoError(t, err)
	p, err := f.engine.OpenProposal(ctx, g.ID, members[0], models.ProposalApplicationSubmission, payload, time.Time{})
	require.NoError(t, err)
	for _, m := range members {
		_, err = f.engine.CastVote(ctx, p.ID, m, models.VoteApprove)
		require.NoError(t, err)
	}

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, g.ApplicationID)
	app, err := f.engine.GetApplication(ctx, g.ApplicationID)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationAwaitingConfirmations, app.Status)
	return g, app
}

func TestConfirmationsSubmitAtomically(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob", "carol")

	app, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAwaitingConfirmations, app.Status)

	app, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAwaitingConfirmations, app.Status)
	assert.Nil(t, app.SubmittedAt)

	// The last confirmation flips application and group together.
	app, err = f.engine.ConfirmParticipation(ctx, app.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, app.Status)
	require.NotNil(t, app.SubmittedAt)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupConfirmed, g.Status)
}

func TestConfirmIdempotent(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	_, app := seedApplication(t, f, "alice", "bob")

	app, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	app, err = f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAwaitingConfirmations, app.Status)
	assert.True(t, app.Confirmations["alice"])
}

func TestConfirmByNonMember(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	_, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "ghost")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotAMember))
}

func TestDeclineWithdrawsDespiteConfirmations(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob", "carol")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	_, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)

	// One decline beats two confirmations.
	app, err = f.engine.DeclineParticipation(ctx, app.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, app.Status)
	assert.Equal(t, "carol", app.DeclinedBy)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupForming, g.Status)
	assert.Empty(t, g.ApplicationID)
}

func TestRemovingLastUnconfirmedMemberSubmits(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5, MinViableSize: 2})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob", "carol")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	_, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)

	// carol leaves without confirming; everyone remaining has confirmed,
	// so the application commits instead of waiting forever.
	g, err = f.engine.RemoveMember(ctx, g.ID, "carol", "carol")
	require.NoError(t, err)
	assert.Equal(t, models.GroupConfirmed, g.Status)

	app, err = f.engine.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, app.Status)
	require.NotNil(t, app.SubmittedAt)
}

func TestVotedRemovalOfUnconfirmedMemberSubmits(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5, MinViableSize: 2})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob", "carol")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	_, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)

	payload, err := json.Marshal(MemberRemovalPayload{MemberID: "carol"})
	require.NoError(t, err)
	p, err := f.engine.OpenProposal(ctx, g.ID, "alice", models.ProposalMemberRemoval, payload, time.Time{})
	require.NoError(t, err)
	_, err = f.engine.CastVote(ctx, p.ID, "alice", models.VoteApprove)
	require.NoError(t, err)
	_, err = f.engine.CastVote(ctx, p.ID, "bob", models.VoteApprove)
	require.NoError(t, err)
	_, err = f.engine.CastVote(ctx, p.ID, "carol", models.VoteReject)
	require.NoError(t, err)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, g.Members)
	assert.Equal(t, models.GroupConfirmed, g.Status)

	app, err = f.engine.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSubmitted, app.Status)
}

func TestConfirmAfterWithdrawalConflicts(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	_, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.DeclineParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)

	_, err = f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfirmationConflict))
}

func TestWithdrawBeforeSubmission(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob")

	app, err := f.engine.WithdrawApplication(ctx, app.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, app.Status)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupForming, g.Status)
}

func TestWithdrawAfterSubmissionDisbands(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	app, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationSubmitted, app.Status)

	app, err = f.engine.WithdrawApplication(ctx, app.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, app.Status)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupDisbanded, g.Status)
}

func TestLandlordRejectionReturnsGroupToForming(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	g, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	app, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, models.ApplicationSubmitted, app.Status)

	app, err = f.engine.MarkLandlordRejected(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejectedByLandlord, app.Status)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupForming, g.Status)
	assert.Empty(t, g.ApplicationID)

	// Rejection by the landlord is distinct from a member withdrawal.
	assert.NotEqual(t, models.ApplicationWithdrawn, app.Status)
}

func TestLandlordRejectionRequiresSubmitted(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	_, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.MarkLandlordRejected(ctx, app.ID)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConfirmationConflict))
}

func TestApplicationEventsPublished(t *testing.T) {
	f := newFixture(t, Settings{QuorumFraction: 0.5})
	ctx := context.Background()
	_, app := seedApplication(t, f, "alice", "bob")

	_, err := f.engine.ConfirmParticipation(ctx, app.ID, "alice")
	require.NoError(t, err)
	_, err = f.engine.ConfirmParticipation(ctx, app.ID, "bob")
	require.NoError(t, err)

	events := f.events.ByType(models.EventApplicationStatusChanged)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, string(models.ApplicationSubmitted), last.State)
	assert.Equal(t, app.ID, last.EntityID)
}
