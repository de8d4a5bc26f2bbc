package engine

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

func TestInviteAndAccept(t *testing.T) {
	f := newFixture(t, Settings{MinViabilityScore: 40})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	inv, err := f.engine.Invite(ctx, g.ID, "alice", "carol", "join us")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, f.now.Add(7*24*time.Hour), inv.ExpiresAt)

	inv, err = f.engine.RespondInvitation(ctx, inv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, g.HasMember("carol"))
}

func TestInviteIdempotentWhilePending(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	first, err := f.engine.Invite(ctx, g.ID, "alice", "carol", "")
	require.NoError(t, err)
	again, err := f.engine.Invite(ctx, g.ID, "bob", "carol", "different message")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestInviteRequiresFormingGroup(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	_, err := f.engine.OpenProposal(ctx, g.ID, "alice", models.ProposalMoveInDate, nil, time.Time{})
	require.NoError(t, err)

	_, err = f.engine.Invite(ctx, g.ID, "alice", "carol", "")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrGroupNotForming))
}

func TestInviteByNonMember(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	_, err := f.engine.Invite(ctx, g.ID, "carol", "carol", "")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotAMember))
}

func TestRespondExpiredInvitation(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	inv, err := f.engine.Invite(ctx, g.ID, "alice", "carol", "")
	require.NoError(t, err)

	f.advance(8 * 24 * time.Hour)
	_, err = f.engine.RespondInvitation(ctx, inv.ID, true)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvitationExpired))

	inv, err = f.engine.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, inv.Status)

	g, err = f.engine.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, g.HasMember("carol"))
}

func TestDeclineInvitation(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)

	inv, err := f.engine.Invite(ctx, g.ID, "alice", "carol", "")
	require.NoError(t, err)
	inv, err = f.engine.RespondInvitation(ctx, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, inv.Status)

	// A declined invitation does not block a fresh one.
	fresh, err := f.engine.Invite(ctx, g.ID, "alice", "carol", "")
	require.NoError(t, err)
	assert.NotEqual(t, inv.ID, fresh.ID)
}

func TestAcceptFailsWhenIncompatibleKeepsPending(t *testing.T) {
	f := newFixture(t, Settings{MinViabilityScore: 60})
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "mallory", func(p *models.PreferenceProfile) {
		p.Budget = models.BudgetRange{Min: 2000, Max: 2500}
		p.Cleanliness = 1
		p.SocialLevel = 1
		p.NoiseTolerance = 1
	})

	inv, err := f.engine.Invite(ctx, g.ID, "alice", "mallory", "")
	require.NoError(t, err)

	_, err = f.engine.RespondInvitation(ctx, inv.ID, true)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIncompatibleMember))

	inv, err = f.engine.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
}
