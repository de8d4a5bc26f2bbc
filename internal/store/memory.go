// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"roommate-engine/internal/common/errors"
	"roommate-engine/internal/models"
)

// Memory is an in-process Store for tests and single-node deployments.
// Values are deep-copied on the way in and out so callers never share
// state with the store.
type Memory struct {
	mu sync.RWMutex

	profiles     map[string]*models.PreferenceProfile
	groups       map[string]*models.Group
	proposals    map[string]*models.Proposal
	applications map[string]*models.Application
	invitations  map[string]*models.Invitation
	activities   map[string][]*models.Activity
	interactions []*models.Interaction
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[string]*models.PreferenceProfile),
		groups:       make(map[string]*models.Group),
		proposals:    make(map[string]*models.Proposal),
		applications: make(map[string]*models.Application),
		invitations:  make(map[string]*models.Invitation),
		activities:   make(map[string][]*models.Activity),
	}
}

func clone[T any](src *T) *T {
	if src == nil {
		return nil
	}
	raw, err := json.Marshal(src)
	if err != nil {
		panic(err)
	}
	dst := new(T)
	if err := json.Unmarshal(raw, dst); err != nil {
		panic(err)
	}
	return dst
}

func (m *Memory) PutProfile(_ context.Context, p *models.PreferenceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.UserID]; ok && existing.Version > p.Version {
		return nil
	}
	m.profiles[p.UserID] = clone(p)
	return nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*models.PreferenceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, errors.NewNotFoundError("profile", userID)
	}
	return clone(p), nil
}

func (m *Memory) ListProfiles(_ context.Context) ([]*models.PreferenceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.PreferenceProfile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *Memory) CreateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[g.ID]; ok {
		return errors.NewConflictError("group", g.ID)
	}
	g.Version = 1
	m.groups[g.ID] = clone(g)
	return nil
}

func (m *Memory) GetGroup(_ context.Context, id string) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, errors.NewNotFoundError("group", id)
	}
	return clone(g), nil
}

func (m *Memory) UpdateGroup(_ context.Context, g *models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.groups[g.ID]
	if !ok {
		return errors.NewNotFoundError("group", g.ID)
	}
	if existing.Version != g.Version {
		return errors.NewConflictError("group", g.ID)
	}
	g.Version++
	m.groups[g.ID] = clone(g)
	return nil
}

func (m *Memory) ListGroupsByMember(_ context.Context, userID string) ([]*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Group
	for _, g := range m.groups {
		if g.HasMember(userID) {
			out = append(out, clone(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateProposal(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; ok {
		return errors.NewConflictError("proposal", p.ID)
	}
	m.proposals[p.ID] = clone(p)
	return nil
}

func (m *Memory) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, errors.NewNotFoundError("proposal", id)
	}
	return clone(p), nil
}

func (m *Memory) UpdateProposal(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proposals[p.ID]; !ok {
		return errors.NewNotFoundError("proposal", p.ID)
	}
	m.proposals[p.ID] = clone(p)
	return nil
}

func (m *Memory) ListDueProposals(_ context.Context, now time.Time) ([]*models.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Proposal
	for _, p := range m.proposals {
		if p.Status == models.ProposalOpen && !p.Deadline.After(now) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateApplication(_ context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applications[a.ID]; ok {
		return errors.NewConflictError("application", a.ID)
	}
	m.applications[a.ID] = clone(a)
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id string) (*models.Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, errors.NewNotFoundError("application", id)
	}
	return clone(a), nil
}

func (m *Memory) UpdateApplication(_ context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applications[a.ID]; !ok {
		return errors.NewNotFoundError("application", a.ID)
	}
	m.applications[a.ID] = clone(a)
	return nil
}

func (m *Memory) CreateInvitation(_ context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[inv.ID]; ok {
		return errors.NewConflictError("invitation", inv.ID)
	}
	m.invitations[inv.ID] = clone(inv)
	return nil
}

func (m *Memory) GetInvitation(_ context.Context, id string) (*models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, errors.NewNotFoundError("invitation", id)
	}
	return clone(inv), nil
}

func (m *Memory) UpdateInvitation(_ context.Context, inv *models.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[inv.ID]; !ok {
		return errors.NewNotFoundError("invitation", inv.ID)
	}
	m.invitations[inv.ID] = clone(inv)
	return nil
}

func (m *Memory) FindPendingInvitation(_ context.Context, groupID, inviteeID string) (*models.Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invitations {
		if inv.GroupID == groupID && inv.InviteeID == inviteeID && inv.Status == models.InvitationPending {
			return clone(inv), nil
		}
	}
	return nil, nil
}

func (m *Memory) AppendActivity(_ context.Context, act *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities[act.GroupID] = append(m.activities[act.GroupID], clone(act))
	return nil
}

func (m *Memory) ListActivities(_ context.Context, groupID string, limit int) ([]*models.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.activities[groupID]
	// Newest first.
	out := make([]*models.Activity, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, clone(entries[i]))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) RecordInteraction(_ context.Context, it *models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, clone(it))
	return nil
}

func (m *Memory) ListDismissedTargets(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, it := range m.interactions {
		if it.SourceUserID != userID || it.Type != models.InteractionDismissed {
			continue
		}
		if _, ok := seen[it.TargetUserID]; ok {
			continue
		}
		seen[it.TargetUserID] = struct{}{}
		out = append(out, it.TargetUserID)
	}
	sort.Strings(out)
	return out, nil
}
