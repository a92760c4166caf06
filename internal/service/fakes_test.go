package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caraudio-league/points-engine/internal/eligibility"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// memoryEvents is an in-memory EventRepository
type memoryEvents struct {
	events []*models.Event
	err    error
}

func (m *memoryEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryEvents) ListBySeason(_ context.Context, seasonID uuid.UUID) ([]*models.Event, error) {
	var out []*models.Event
	for _, e := range m.events {
		if e.SeasonID != nil && *e.SeasonID == seasonID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEvents) ListWithResults(context.Context) ([]*models.Event, error) {
	return m.events, nil
}

// memoryResults is an in-memory ResultRepository that hands out copies so callers cannot
// change stored rows without going through the repository.
type memoryResults struct {
	mu          sync.Mutex
	results     []*models.CompetitionResult
	batches     int
	placeErr    error
	deletedRows []uuid.UUID

	// transaction numbers seen by LockByEventID and UpdatePlacements, 0 outside one
	lockedIn []int
	placedIn []int
	onLock   func()
}

func (m *memoryResults) Create(_ context.Context, r *models.CompetitionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.results = append(m.results, &cp)
	return nil
}

func (m *memoryResults) GetByID(_ context.Context, id uuid.UUID) (*models.CompetitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryResults) GetByEventID(_ context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CompetitionResult
	for _, r := range m.results {
		if r.EventID == eventID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryResults) LockByEventID(ctx context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error) {
	out, err := m.GetByEventID(ctx, eventID)
	m.mu.Lock()
	m.lockedIn = append(m.lockedIn, txNumber(ctx))
	hook := m.onLock
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, err
}

func (m *memoryResults) Update(_ context.Context, r *models.CompetitionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.results {
		if existing.ID == r.ID {
			cp := *r
			m.results[i] = &cp
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryResults) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.results {
		if r.ID == id {
			m.results = append(m.results[:i], m.results[i+1:]...)
			m.deletedRows = append(m.deletedRows, id)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryResults) UpdatePlacements(ctx context.Context, updates []models.PlacementUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placedIn = append(m.placedIn, txNumber(ctx))
	if m.placeErr != nil {
		return m.placeErr
	}
	m.batches++
	for _, u := range updates {
		for _, r := range m.results {
			if r.ID == u.ResultID {
				r.Placement = u.Placement
				r.PointsEarned = u.PointsEarned
			}
		}
	}
	return nil
}

func (m *memoryResults) ListForBackfill(context.Context, models.ResultFilter) ([]*models.CompetitionResult, error) {
	return nil, errors.New("not supported")
}

func (m *memoryResults) SumSeasonClassPoints(_ context.Context, seasonID uuid.UUID, memberID, className string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, r := range m.results {
		if r.SeasonID != nil && *r.SeasonID == seasonID && r.MemberID == memberID && strings.EqualFold(r.CompetitionClass, className) {
			total += r.PointsEarned
		}
	}
	return total, nil
}

func (m *memoryResults) byID(id uuid.UUID) *models.CompetitionResult {
	r, _ := m.GetByID(context.Background(), id)
	return r
}

// stubConfigs resolves every season to one configuration
type stubConfigs struct {
	cfg      *models.PointsConfiguration
	degraded bool
	updates  int
}

func (s *stubConfigs) Resolve(_ context.Context, seasonID *uuid.UUID) (*models.PointsConfiguration, bool) {
	if s.cfg == nil {
		var id uuid.UUID
		if seasonID != nil {
			id = *seasonID
		}
		return models.DefaultPointsConfiguration(id, ""), s.degraded
	}
	return s.cfg, s.degraded
}

func (s *stubConfigs) Update(_ context.Context, seasonID uuid.UUID, input *models.PointsConfigurationInput, _ *uuid.UUID) (*models.PointsConfiguration, error) {
	s.updates++
	cfg := models.DefaultPointsConfiguration(seasonID, "")
	input.ApplyTo(cfg)
	s.cfg = cfg
	return cfg, nil
}

// stubGate treats a fixed set of member ids and profiles as eligible
type stubGate struct {
	mu        sync.Mutex
	members   map[string]bool
	profiles  map[uuid.UUID]bool
	refreshes int
	err       error
}

func newStubGate() *stubGate {
	return &stubGate{members: map[string]bool{}, profiles: map[uuid.UUID]bool{}}
}

func (g *stubGate) IsEligible(_ context.Context, memberID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if eligibility.IsGuestID(memberID) {
		return false, nil
	}
	return g.members[memberID], nil
}

func (g *stubGate) IsProfileEligible(_ context.Context, profileID uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profiles[profileID], nil
}

func (g *stubGate) Refresh(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshes++
	return nil
}

// recordingAchievements records every result it is asked about
type recordingAchievements struct {
	checked []models.CompetitionResult
	failFor map[uuid.UUID]bool
}

func (r *recordingAchievements) CheckAndAward(_ context.Context, result *models.CompetitionResult) ([]*models.AchievementRecipient, error) {
	r.checked = append(r.checked, *result)
	if r.failFor[result.ID] {
		return nil, errors.New("image service unavailable")
	}
	return nil, nil
}

// recordingQualification records every (member, class) it is asked about
type recordingQualification struct {
	calls []string
	err   error
}

func (r *recordingQualification) CheckAndUpdateQualification(_ context.Context, memberID, _ string, _ *uuid.UUID, _ uuid.UUID, className string) (bool, error) {
	r.calls = append(r.calls, memberID+"/"+className)
	return false, r.err
}

type txKey struct{}

// txNumber returns the inlineTx call the context belongs to, 0 outside a transaction
func txNumber(ctx context.Context) int {
	n, _ := ctx.Value(txKey{}).(int)
	return n
}

// inlineTx runs the unit of work without a database and numbers each call on the context
type inlineTx struct {
	calls int
}

func (tx *inlineTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	tx.calls++
	return fn(context.WithValue(ctx, txKey{}, tx.calls))
}

// memoryDefinitions serves List for the awarder
type memoryDefinitions struct {
	repository.AchievementDefinitionRepository
	defs []*models.AchievementDefinition
}

func (m *memoryDefinitions) List(_ context.Context, activeOnly bool) ([]*models.AchievementDefinition, error) {
	out := make([]*models.AchievementDefinition, 0, len(m.defs))
	for _, d := range m.defs {
		if !activeOnly || d.IsActive {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ThresholdValue.GreaterThan(out[j].ThresholdValue)
	})
	return out, nil
}

// memoryRecipients supports the automatic award path of the awarder
type memoryRecipients struct {
	repository.AchievementRecipientRepository
	mu         sync.Mutex
	recipients []*models.AchievementRecipient
}

func (m *memoryRecipients) Create(_ context.Context, r *models.AchievementRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.recipients {
		if existing.AchievementID == r.AchievementID && existing.ProfileID == r.ProfileID {
			return models.ErrDuplicateKey
		}
	}
	m.recipients = append(m.recipients, r)
	return nil
}

func (m *memoryRecipients) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.recipients {
		if r.ID == id {
			m.recipients = append(m.recipients[:i], m.recipients[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *memoryRecipients) FindInGroup(_ context.Context, profileID uuid.UUID, groupKey string) (*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if r.ProfileID == profileID && r.Achievement.GroupKey() == groupKey {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

// heldBy returns the names of the awards a profile holds
func (m *memoryRecipients) heldBy(profileID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, r := range m.recipients {
		if r.ProfileID == profileID {
			names = append(names, r.Achievement.Name)
		}
	}
	return names
}

func threshold(name string, value int64) *models.AchievementDefinition {
	d := &models.AchievementDefinition{
		ID:              uuid.New(),
		Name:            name,
		TemplateKey:     "headrest",
		CompetitionType: models.CompetitionCertifiedAtTheHeadrest,
		ThresholdValue:  decimal.NewFromInt(value),
		IsActive:        true,
	}
	d.ApplyDefaults()
	return d
}
