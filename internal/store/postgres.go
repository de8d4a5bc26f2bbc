// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"roommate-engine/internal/common/database"
	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

// Postgres persists aggregates as JSONB documents with the columns the
// queries need (status, deadline, membership) promoted alongside. Group
// rows carry the optimistic version column; a stale UPDATE matches zero
// rows and surfaces as CONFLICT.
type Postgres struct {
	db *database.PostgresClient
}

var _ Store = (*Postgres)(nil)

func NewPostgres(db *database.PostgresClient) *Postgres {
	return &Postgres{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id    TEXT PRIMARY KEY,
		version    INTEGER NOT NULL,
		doc        JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id      TEXT PRIMARY KEY,
		version BIGINT NOT NULL,
		status  TEXT NOT NULL,
		doc     JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_groups_members ON groups USING GIN ((doc -> 'members'))`,
	`CREATE TABLE IF NOT EXISTS proposals (
		id       TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		status   TEXT NOT NULL,
		deadline TIMESTAMPTZ NOT NULL,
		doc      JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_proposals_due ON proposals (status, deadline)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id       TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		status   TEXT NOT NULL,
		doc      JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invitations (
		id         TEXT PRIMARY KEY,
		group_id   TEXT NOT NULL,
		invitee_id TEXT NOT NULL,
		status     TEXT NOT NULL,
		doc        JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invitations_pending ON invitations (group_id, invitee_id, status)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id         TEXT PRIMARY KEY,
		group_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		doc        JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_group ON activities (group_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		source_user_id TEXT NOT NULL,
		target_user_id TEXT NOT NULL,
		type           TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		doc            JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_source ON interactions (source_user_id, type)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func marshalDoc(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal doc: %w", err)
	}
	return raw, nil
}

func (s *Postgres) PutProfile(ctx context.Context, p *models.PreferenceProfile) error {
	doc, err := marshalDoc(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO profiles (user_id, version, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE
		SET version = EXCLUDED.version, doc = EXCLUDED.doc, updated_at = now()
		WHERE profiles.version <= EXCLUDED.version`,
		p.UserID, p.Version, doc)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.UserID, err)
	}
	return nil
}

func (s *Postgres) GetProfile(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM profiles WHERE user_id = $1`, userID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("profile", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	var p models.PreferenceProfile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	return &p, nil
}

func (s *Postgres) ListProfiles(ctx context.Context) ([]*models.PreferenceProfile, error) {
	rows, err := s.db.Query(ctx, `SELECT doc FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.PreferenceProfile
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		var p models.PreferenceProfile
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateGroup(ctx context.Context, g *models.Group) error {
	g.Version = 1
	doc, err := marshalDoc(g)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO groups (id, version, status, doc) VALUES ($1, $2, $3, $4)`,
		g.ID, g.Version, string(g.Status), doc)
	if err != nil {
		return fmt.Errorf("create group %s: %w", g.ID, err)
	}
	return nil
}

func (s *Postgres) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	var doc []byte
	var version int64
	err := s.db.QueryRow(ctx, `SELECT version, doc FROM groups WHERE id = $1`, id).Scan(&version, &doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("group", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}
	var g models.Group
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", id, err)
	}
	g.Version = version
	return &g, nil
}

func (s *Postgres) UpdateGroup(ctx context.Context, g *models.Group) error {
	next := *g
	next.Version = g.Version + 1
	doc, err := marshalDoc(&next)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(ctx, `
		UPDATE groups SET version = version + 1, status = $2, doc = $3
		WHERE id = $1 AND version = $4`,
		g.ID, string(g.Status), doc, g.Version)
	if err != nil {
		return fmt.Errorf("update group %s: %w", g.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group %s: %w", g.ID, err)
	}
	if affected == 0 {
		if _, getErr := s.GetGroup(ctx, g.ID); getErr != nil {
			return getErr
		}
		return errors.NewConflictError("group", g.ID)
	}
	g.Version++
	return nil
}

func (s *Postgres) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT version, doc FROM groups
		WHERE doc -> 'members' ? $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*models.Group
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var g models.Group
		if err := json.Unmarshal(doc, &g); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		g.Version = version
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateProposal(ctx context.Context, p *models.Proposal) error {
	doc, err := marshalDoc(p)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO proposals (id, group_id, status, deadline, doc)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.GroupID, string(p.Status), p.Deadline, doc)
	if err != nil {
		return fmt.Errorf("create proposal %s: %w", p.ID, err)
	}
	return nil
}

func (s *Postgres) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM proposals WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("proposal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal %s: %w", id, err)
	}
	var p models.Proposal
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode proposal %s: %w", id, err)
	}
	return &p, nil
}

func (s *Postgres) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	doc, err := marshalDoc(p)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(ctx, `
		UPDATE proposals SET status = $2, deadline = $3, doc = $4 WHERE id = $1`,
		p.ID, string(p.Status), p.Deadline, doc)
	if err != nil {
		return fmt.Errorf("update proposal %s: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update proposal %s: %w", p.ID, err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("proposal", p.ID)
	}
	return nil
}

func (s *Postgres) ListDueProposals(ctx context.Context, now time.Time) ([]*models.Proposal, error) {
	rows, err := s.db.Query(ctx, `
		SELECT doc FROM proposals
		WHERE status = $1 AND deadline <= $2 ORDER BY id`,
		string(models.ProposalOpen), now)
	if err != nil {
		return nil, fmt.Errorf("list due proposals: %w", err)
	}
	defer rows.Close()

	var out []*models.Proposal
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		var p models.Proposal
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode proposal: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateApplication(ctx context.Context, a *models.Application) error {
	doc, err := marshalDoc(a)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO applications (id, group_id, status, doc) VALUES ($1, $2, $3, $4)`,
		a.ID, a.GroupID, string(a.Status), doc)
	if err != nil {
		return fmt.Errorf("create application %s: %w", a.ID, err)
	}
	return nil
}

func (s *Postgres) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM applications WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	var a models.Application
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("decode application %s: %w", id, err)
	}
	return &a, nil
}

func (s *Postgres) UpdateApplication(ctx context.Context, a *models.Application) error {
	doc, err := marshalDoc(a)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(ctx, `
		UPDATE applications SET status = $2, doc = $3 WHERE id = $1`,
		a.ID, string(a.Status), doc)
	if err != nil {
		return fmt.Errorf("update application %s: %w", a.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application %s: %w", a.ID, err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("application", a.ID)
	}
	return nil
}

func (s *Postgres) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	doc, err := marshalDoc(inv)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO invitations (id, group_id, invitee_id, status, doc)
		VALUES ($1, $2, $3, $4, $5)`,
		inv.ID, inv.GroupID, inv.InviteeID, string(inv.Status), doc)
	if err != nil {
		return fmt.Errorf("create invitation %s: %w", inv.ID, err)
	}
	return nil
}

func (s *Postgres) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM invitations WHERE id = $1`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("invitation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation %s: %w", id, err)
	}
	var inv models.Invitation
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, fmt.Errorf("decode invitation %s: %w", id, err)
	}
	return &inv, nil
}

func (s *Postgres) UpdateInvitation(ctx context.Context, inv *models.Invitation) error {
	doc, err := marshalDoc(inv)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(ctx, `
		UPDATE invitations SET status = $2, doc = $3 WHERE id = $1`,
		inv.ID, string(inv.Status), doc)
	if err != nil {
		return fmt.Errorf("update invitation %s: %w", inv.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invitation %s: %w", inv.ID, err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("invitation", inv.ID)
	}
	return nil
}

func (s *Postgres) FindPendingInvitation(ctx context.Context, groupID, inviteeID string) (*models.Invitation, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `
		SELECT doc FROM invitations
		WHERE group_id = $1 AND invitee_id = $2 AND status = $3
		LIMIT 1`,
		groupID, inviteeID, string(models.InvitationPending)).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending invitation: %w", err)
	}
	var inv models.Invitation
	if err := json.Unmarshal(doc, &inv); err != nil {
		return nil, fmt.Errorf("decode invitation: %w", err)
	}
	return &inv, nil
}

func (s *Postgres) AppendActivity(ctx context.Context, act *models.Activity) error {
	doc, err := marshalDoc(act)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO activities (id, group_id, created_at, doc) VALUES ($1, $2, $3, $4)`,
		act.ID, act.GroupID, act.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("append activity %s: %w", act.ID, err)
	}
	return nil
}

func (s *Postgres) ListActivities(ctx context.Context, groupID string, limit int) ([]*models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT doc FROM activities
		WHERE group_id = $1 ORDER BY created_at DESC LIMIT $2`,
		groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities for %s: %w", groupID, err)
	}
	defer rows.Close()

	var out []*models.Activity
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var act models.Activity
		if err := json.Unmarshal(doc, &act); err != nil {
			return nil, fmt.Errorf("decode activity: %w", err)
		}
		out = append(out, &act)
	}
	return out, rows.Err()
}

func (s *Postgres) RecordInteraction(ctx context.Context, it *models.Interaction) error {
	doc, err := marshalDoc(it)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO interactions (source_user_id, target_user_id, type, created_at, doc)
		VALUES ($1, $2, $3, $4, $5)`,
		it.SourceUserID, it.TargetUserID, it.Type, it.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

func (s *Postgres) ListDismissedTargets(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT target_user_id FROM interactions
		WHERE source_user_id = $1 AND type = $2 ORDER BY target_user_id`,
		userID, models.InteractionDismissed)
	if err != nil {
		return nil, fmt.Errorf("list dismissed for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dismissed target: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
