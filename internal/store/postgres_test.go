package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/database"
	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgres(&database.PostgresClient{DB: db}), mock
}

func TestPostgresGetGroup(t *testing.T) {
	s, mock := newMockStore(t)

	g := models.Group{ID: "g1", Members: []string{"alice", "bob"}, Status: models.GroupForming}
	doc, err := json.Marshal(g)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, doc FROM groups WHERE id = $1")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "doc"}).AddRow(int64(4), doc))

	got, err := s.GetGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Members)
	assert.EqualValues(t, 4, got.Version)
}

func TestPostgresGetGroupNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, doc FROM groups WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"version", "doc"}))

	_, err := s.GetGroup(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestPostgresUpdateGroupConflict(t *testing.T) {
	s, mock := newMockStore(t)

	g := &models.Group{ID: "g1", Members: []string{"alice"}, Status: models.GroupForming, Version: 3}
	doc, err := json.Marshal(g)
	require.NoError(t, err)

	// Stale version matches no row; the follow-up read finds the group, so
	// the failure is a lost race rather than a missing row.
	mock.ExpectExec("UPDATE groups SET version").
		WithArgs("g1", string(models.GroupForming), sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, doc FROM groups WHERE id = $1")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"version", "doc"}).AddRow(int64(5), doc))

	err = s.UpdateGroup(context.Background(), g)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConflict))
	assert.True(t, errors.IsRetryable(err))
}

func TestPostgresUpdateGroupBumpsVersion(t *testing.T) {
	s, mock := newMockStore(t)

	g := &models.Group{ID: "g1", Status: models.GroupVoting, Version: 3}

	mock.ExpectExec("UPDATE groups SET version").
		WithArgs("g1", string(models.GroupVoting), sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateGroup(context.Background(), g))
	assert.EqualValues(t, 4, g.Version)
}

func TestPostgresListDueProposals(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	p := models.Proposal{ID: "p1", GroupID: "g1", Status: models.ProposalOpen, Deadline: now.Add(-time.Hour)}
	doc, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT doc FROM proposals").
		WithArgs(string(models.ProposalOpen), now).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	got, err := s.ListDueProposals(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, models.ProposalOpen, got[0].Status)
}

func TestPostgresFindPendingInvitationAbsent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT doc FROM invitations").
		WithArgs("g1", "bob", string(models.InvitationPending)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	inv, err := s.FindPendingInvitation(context.Background(), "g1", "bob")
	require.NoError(t, err)
	assert.Nil(t, inv)
}

func TestPostgresListDismissedTargets(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT target_user_id FROM interactions").
		WithArgs("alice", models.InteractionDismissed).
		WillReturnRows(sqlmock.NewRows([]string{"target_user_id"}).AddRow("bob").AddRow("carol"))

	got, err := s.ListDismissedTargets(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, got)
}

func TestPostgresPutProfile(t *testing.T) {
	s, mock := newMockStore(t)

	p := &models.PreferenceProfile{UserID: "alice", Version: 2}
	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("alice", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.PutProfile(context.Background(), p))
}
