// Package engine coordinates the group-formation workflow: membership,
// consensus voting and the coordinated application. Scoring and ranking
// stay pure; everything stateful funnels through here under per-group
// serialization.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roommate-engine/internal/common/config"
	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/models"
	"roommate-engine/internal/notify"
	"roommate-engine/internal/ranking"
	"roommate-engine/internal/scoring"
	"roommate-engine/internal/store"
)

// Settings are the workflow knobs, usually derived from the yaml config.
type Settings struct {
	// MinViabilityScore is the pairwise score a candidate must reach with
	// every current member before joining.
	MinViabilityScore float64
	// MinViableSize is the size below which a group disbands.
	MinViableSize int
	// QuorumFraction of members that must cast a non-abstain vote.
	QuorumFraction float64
	// ProposalTTL is the default voting window when the caller supplies
	// no deadline.
	ProposalTTL time.Duration
	// InvitationTTL bounds how long an invitation stays answerable.
	InvitationTTL time.Duration
	// DefaultRankLimit is the ranking page size when the caller passes
	// limit <= 0.
	DefaultRankLimit int
}

func (s *Settings) normalize() {
	if s.MinViableSize < 2 {
		s.MinViableSize = 2
	}
	if s.QuorumFraction <= 0 || s.QuorumFraction > 1 {
		s.QuorumFraction = 0.51
	}
	if s.ProposalTTL <= 0 {
		s.ProposalTTL = 72 * time.Hour
	}
	if s.InvitationTTL <= 0 {
		s.InvitationTTL = 7 * 24 * time.Hour
	}
	if s.DefaultRankLimit <= 0 {
		s.DefaultRankLimit = 20
	}
}

// SettingsFromConfig maps the loaded yaml config onto engine settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MinViabilityScore: cfg.Groups.MinViabilityScore,
		MinViableSize:     cfg.Groups.MinViableSize,
		QuorumFraction:    cfg.Voting.QuorumFraction,
		ProposalTTL:       time.Duration(cfg.Voting.ProposalTTL) * time.Second,
		InvitationTTL:     time.Duration(cfg.Groups.InvitationTTL) * time.Second,
		DefaultRankLimit:  cfg.Ranking.DefaultLimit,
	}
}

// OperationRecorder receives per-operation telemetry. Satisfied by
// *observability.Observability.
type OperationRecorder interface {
	RecordOperation(ctx context.Context, op, status string)
	RecordDuration(ctx context.Context, op string, duration time.Duration)
}

type Engine struct {
	store    store.Store
	scorer   *scoring.Scorer
	ranker   *ranking.Ranker
	notifier notify.Notifier
	log      logger.Logger
	settings Settings

	locks *keyedMutex
	now   func() time.Time
	newID func() string
	obs   OperationRecorder
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithClock replaces the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the engine's ID source.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithObservability attaches an operation recorder to the hot paths.
func WithObservability(rec OperationRecorder) Option {
	return func(e *Engine) { e.obs = rec }
}

func New(st store.Store, scorer *scoring.Scorer, ranker *ranking.Ranker, notifier notify.Notifier, log logger.Logger, settings Settings, opts ...Option) *Engine {
	settings.normalize()
	if notifier == nil {
		notifier = notify.Nop{}
	}
	e := &Engine{
		store:    st,
		scorer:   scorer,
		ranker:   ranker,
		notifier: notifier,
		log:      log,
		settings: settings,
		locks:    newKeyedMutex(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpsertProfile validates and stores a profile snapshot.
func (e *Engine) UpsertProfile(ctx context.Context, p *models.PreferenceProfile) error {
	if err := p.Validate(); err != nil {
		return errors.NewInvalidProfileError(err.Error())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.now().UTC()
	}
	if err := e.store.PutProfile(ctx, p); err != nil {
		return err
	}
	e.log.Debug("profile upserted", map[string]interface{}{
		"userId":  p.UserID,
		"version": p.Version,
	})
	return nil
}

// UpsertProfilePayload decodes, schema-validates and stores a raw profile
// payload from an external collaborator.
func (e *Engine) UpsertProfilePayload(ctx context.Context, payload []byte) (*models.PreferenceProfile, error) {
	p, err := models.ParseProfilePayload(payload)
	if err != nil {
		return nil, errors.NewInvalidProfileError(err.Error())
	}
	if err := e.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// observe records one operation's outcome and duration. No-op without a
// recorder.
func (e *Engine) observe(ctx context.Context, op string, started time.Time, err error) {
	if e.obs == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.obs.RecordOperation(ctx, op, status)
	e.obs.RecordDuration(ctx, op, e.now().Sub(started))
}

// ScorePair computes the compatibility of two stored profiles.
func (e *Engine) ScorePair(ctx context.Context, userA, userB string) (score *models.CompatibilityScore, err error) {
	started := e.now()
	defer func() { e.observe(ctx, "score_pair", started, err) }()

	a, err := e.store.GetProfile(ctx, userA)
	if err != nil {
		return nil, err
	}
	b, err := e.store.GetProfile(ctx, userB)
	if err != nil {
		return nil, err
	}
	return e.scorer.Score(a, b)
}

// RankCandidates ranks every stored profile against the requester,
// excluding the requester, their active groupmates and anyone they
// dismissed.
func (e *Engine) RankCandidates(ctx context.Context, userID string, offset, limit int) (candidates []ranking.Candidate, err error) {
	started := e.now()
	defer func() { e.observe(ctx, "rank_candidates", started, err) }()

	requester, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := e.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	exclude := map[string]struct{}{userID: {}}
	groups, err := e.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Status == models.GroupDisbanded {
			continue
		}
		for _, m := range g.Members {
			exclude[m] = struct{}{}
		}
	}
	dismissed, err := e.store.ListDismissedTargets(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range dismissed {
		exclude[id] = struct{}{}
	}

	if limit <= 0 {
		limit = e.settings.DefaultRankLimit
	}
	return e.ranker.Rank(ctx, requester, pool, ranking.Options{
		Exclude: exclude,
		Offset:  offset,
		Limit:   limit,
	})
}

// RecordInteraction stores one user acting on another's recommendation.
func (e *Engine) RecordInteraction(ctx context.Context, it *models.Interaction) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = e.now().UTC()
	}
	return e.store.RecordInteraction(ctx, it)
}

// publish hands an event to the notifier. Fire-and-forget: a delivery
// failure is logged and swallowed.
func (e *Engine) publish(ctx context.Context, event models.Event) {
	event.OccurredAt = e.now().UTC()
	if err := e.notifier.Publish(ctx, event); err != nil {
		e.log.Warn("event publish failed", map[string]interface{}{
			"eventType": string(event.Type),
			"entityId":  event.EntityID,
			"error":     err.Error(),
		})
	}
}

// audit appends one activity entry. Best effort.
func (e *Engine) audit(ctx context.Context, groupID, userID string, typ models.ActivityType, description string, metadata map[string]interface{}) {
	err := e.store.AppendActivity(ctx, &models.Activity{
		ID:          e.newID(),
		GroupID:     groupID,
		UserID:      userID,
		Type:        typ,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   e.now().UTC(),
	})
	if err != nil {
		e.log.Warn("activity append failed", map[string]interface{}{
			"groupId": groupID,
			"type":    string(typ),
			"error":   err.Error(),
		})
	}
}

// Activities returns the newest audit entries for a group.
func (e *Engine) Activities(ctx context.Context, groupID string, limit int) ([]*models.Activity, error) {
	return e.store.ListActivities(ctx, groupID, limit)
}
