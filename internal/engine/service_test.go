package engine

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/config"
	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

func TestUpsertProfileRejectsInvalid(t *testing.T) {
	f := newFixture(t, Settings{})
	err := f.engine.UpsertProfile(context.Background(), &models.PreferenceProfile{UserID: "alice"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidProfile))
}

func TestUpsertProfilePayload(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()

	payload := []byte(`{
		"userId": "alice",
		"version": 1,
		"budget": {"min": 400, "max": 600},
		"cleanliness": 3,
		"socialLevel": 3,
		"noiseTolerance": 3,
		"smokingTolerance": 3,
		"petTolerance": 3
	}`)
	p, err := f.engine.UpsertProfilePayload(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserID)

	stored, err := f.store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 600.0, stored.Budget.Max)
}

func TestUpsertProfilePayloadSchemaViolation(t *testing.T) {
	f := newFixture(t, Settings{})

	// cleanliness out of range fails at the schema gate.
	payload := []byte(`{
		"userId": "alice",
		"budget": {"min": 400, "max": 600},
		"cleanliness": 9,
		"socialLevel": 3,
		"noiseTolerance": 3,
		"smokingTolerance": 3,
		"petTolerance": 3
	}`)
	_, err := f.engine.UpsertProfilePayload(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidProfile))
}

func TestScorePair(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()
	f.seedProfile(t, "alice", nil)
	f.seedProfile(t, "bob", nil)

	score, err := f.engine.ScorePair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Greater(t, score.Overall, 0.0)

	_, err = f.engine.ScorePair(ctx, "alice", "ghost")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestRankCandidatesExcludesGroupmatesAndDismissed(t *testing.T) {
	f := newFixture(t, Settings{MinViabilityScore: 0})
	ctx := context.Background()

	f.seedGroup(t, "alice", "bob")
	f.seedProfile(t, "carol", nil)
	f.seedProfile(t, "dave", nil)

	require.NoError(t, f.engine.RecordInteraction(ctx, &models.Interaction{
		SourceUserID: "alice",
		TargetUserID: "dave",
		Type:         models.InteractionDismissed,
	}))

	got, err := f.engine.RankCandidates(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].Profile.UserID)
	assert.NotEmpty(t, got[0].Explanation.Summary)
}

func TestRankCandidatesIncludesDisbandedGroupmates(t *testing.T) {
	f := newFixture(t, Settings{})
	ctx := context.Background()

	g := f.seedGroup(t, "alice", "bob")
	_, err := f.engine.Disband(ctx, g.ID, "alice")
	require.NoError(t, err)

	got, err := f.engine.RankCandidates(ctx, "alice", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Profile.UserID)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Groups.MinViabilityScore = 55
	cfg.Groups.MinViableSize = 3
	cfg.Groups.InvitationTTL = 48 * 3600
	cfg.Voting.QuorumFraction = 0.6
	cfg.Voting.ProposalTTL = 24 * 3600
	cfg.Ranking.DefaultLimit = 10

	s := SettingsFromConfig(cfg)
	assert.Equal(t, 55.0, s.MinViabilityScore)
	assert.Equal(t, 3, s.MinViableSize)
	assert.Equal(t, 0.6, s.QuorumFraction)
	assert.Equal(t, 24*time.Hour, s.ProposalTTL)
	assert.Equal(t, 48*time.Hour, s.InvitationTTL)
	assert.Equal(t, 10, s.DefaultRankLimit)
}

// opRecorder captures operation telemetry for assertions.
type opRecorder struct {
	ops []string
}

func (r *opRecorder) RecordOperation(_ context.Context, op, status string) {
	r.ops = append(r.ops, op+":"+status)
}

func (r *opRecorder) RecordDuration(context.Context, string, time.Duration) {}

func TestOperationTelemetryRecorded(t *testing.T) {
	rec := &opRecorder{}
	f := newFixture(t, Settings{QuorumFraction: 0.5}, WithObservability(rec))
	ctx := context.Background()
	g := f.seedGroup(t, "alice", "bob")

	_, err := f.engine.ScorePair(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.engine.ScorePair(ctx, "alice", "ghost")
	require.Error(t, err)

	p, err := f.engine.OpenProposal(ctx, g.ID, "alice", models.ProposalMoveInDate, nil, time.Time{})
	require.NoError(t, err)
	_, err = f.engine.CastVote(ctx, p.ID, "alice", models.VoteApprove)
	require.NoError(t, err)

	_, err = f.engine.RankCandidates(ctx, "alice", 0, 0)
	require.NoError(t, err)

	assert.Contains(t, rec.ops, "score_pair:ok")
	assert.Contains(t, rec.ops, "score_pair:error")
	assert.Contains(t, rec.ops, "cast_vote:ok")
	assert.Contains(t, rec.ops, "rank_candidates:ok")
}

func TestRankCandidatesDefaultLimit(t *testing.T) {
	f := newFixture(t, Settings{DefaultRankLimit: 2})
	ctx := context.Background()

	f.seedProfile(t, "me", nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.seedProfile(t, id, nil)
	}

	got, err := f.engine.RankCandidates(ctx, "me", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
