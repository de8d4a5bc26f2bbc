package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roommate-engine/internal/common/logger"
	"roommate-engine/internal/models"
	"roommate-engine/internal/notify"
	"roommate-engine/internal/ranking"
	"roommate-engine/internal/scoring"
	"roommate-engine/internal/store"
)

// fixture wires an engine over the in-memory store with a controllable
// clock.
type fixture struct {
	engine *Engine
	store  *store.Memory
	events *notify.Recorder
	now    time.Time
}

func newFixture(t *testing.T, settings Settings, opts ...Option) *fixture {
	t.Helper()
	scorer, err := scoring.New(nil)
	require.NoError(t, err)

	log := logger.NewNoOpLogger()
	f := &fixture{
		store:  store.NewMemory(),
		events: &notify.Recorder{},
		now:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	ranker := ranking.New(scorer, nil, log)
	opts = append([]Option{WithClock(func() time.Time { return f.now })}, opts...)
	f.engine = New(f.store, scorer, ranker, f.events, log, settings, opts...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) seedProfile(t *testing.T, userID string, mutate func(*models.PreferenceProfile)) {
	t.Helper()
	p := &models.PreferenceProfile{
		UserID:           userID,
		Version:          1,
		Budget:           models.BudgetRange{Min: 400, Max: 600},
		Cleanliness:      3,
		SocialLevel:      3,
		NoiseTolerance:   3,
		SmokingTolerance: 3,
		PetTolerance:     3,
		LastActiveAt:     f.now,
	}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, f.engine.UpsertProfile(context.Background(), p))
}

// seedGroup creates a group with the given members already joined.
func (f *fixture) seedGroup(t *testing.T, members ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	for _, m := range members {
		f.seedProfile(t, m, nil)
	}
	g, err := f.engine.CreateGroup(ctx, members[0])
	require.NoError(t, err)
	for _, m := range members[1:] {
		g, err = f.engine.AddMember(ctx, g.ID, m)
		require.NoError(t, err)
	}
	return g
}
