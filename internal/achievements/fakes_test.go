package achievements

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// memoryDefinitions is an in-memory AchievementDefinitionRepository
type memoryDefinitions struct {
	mu   sync.Mutex
	defs map[uuid.UUID]*models.AchievementDefinition
}

func newMemoryDefinitions(defs ...*models.AchievementDefinition) *memoryDefinitions {
	m := &memoryDefinitions{defs: make(map[uuid.UUID]*models.AchievementDefinition)}
	for _, d := range defs {
		m.defs[d.ID] = d
	}
	return m
}

func (m *memoryDefinitions) Create(_ context.Context, d *models.AchievementDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[d.ID] = d
	return nil
}

func (m *memoryDefinitions) GetByID(_ context.Context, id uuid.UUID) (*models.AchievementDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return d, nil
}

func (m *memoryDefinitions) Update(_ context.Context, d *models.AchievementDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[d.ID]; !ok {
		return models.ErrNotFound
	}
	m.defs[d.ID] = d
	return nil
}

func (m *memoryDefinitions) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.defs, id)
	return nil
}

func (m *memoryDefinitions) List(_ context.Context, activeOnly bool) ([]*models.AchievementDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AchievementDefinition
	for _, d := range m.defs {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ThresholdValue.Equal(out[j].ThresholdValue) {
			return out[i].ThresholdValue.GreaterThan(out[j].ThresholdValue)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// memoryRecipients is an in-memory AchievementRecipientRepository
type memoryRecipients struct {
	mu         sync.Mutex
	defs       *memoryDefinitions
	profiles   *memoryProfiles
	recipients map[uuid.UUID]*models.AchievementRecipient
	deleted    []uuid.UUID
}

func newMemoryRecipients(defs *memoryDefinitions) *memoryRecipients {
	return &memoryRecipients{defs: defs, recipients: make(map[uuid.UUID]*models.AchievementRecipient)}
}

func (m *memoryRecipients) withDefinition(r *models.AchievementRecipient) *models.AchievementRecipient {
	cp := *r
	if d, err := m.defs.GetByID(context.Background(), r.AchievementID); err == nil {
		cp.Achievement = d
	}
	return &cp
}

func (m *memoryRecipients) Create(_ context.Context, r *models.AchievementRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.recipients {
		if existing.AchievementID == r.AchievementID && existing.ProfileID == r.ProfileID {
			return models.ErrDuplicateKey
		}
	}
	m.recipients[r.ID] = r
	return nil
}

func (m *memoryRecipients) GetByID(_ context.Context, id uuid.UUID) (*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m.withDefinition(r), nil
}

func (m *memoryRecipients) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipients[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.recipients, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memoryRecipients) GetByAchievementAndProfile(_ context.Context, achievementID, profileID uuid.UUID) (*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if r.AchievementID == achievementID && r.ProfileID == profileID {
			return m.withDefinition(r), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryRecipients) FindInGroup(_ context.Context, profileID uuid.UUID, groupKey string) (*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.AchievementRecipient
	for _, r := range m.recipients {
		if r.ProfileID != profileID {
			continue
		}
		full := m.withDefinition(r)
		if full.Achievement == nil || full.Achievement.GroupKey() != groupKey {
			continue
		}
		if best == nil || full.Achievement.ThresholdValue.GreaterThan(best.Achievement.ThresholdValue) {
			best = full
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (m *memoryRecipients) ListByProfile(_ context.Context, profileID uuid.UUID) ([]*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AchievementRecipient
	for _, r := range m.recipients {
		if r.ProfileID == profileID {
			out = append(out, m.withDefinition(r))
		}
	}
	return out, nil
}

func (m *memoryRecipients) ListByMemberID(_ context.Context, memberID string) ([]*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AchievementRecipient
	for _, r := range m.recipients {
		if r.MemberID == memberID {
			out = append(out, m.withDefinition(r))
		}
	}
	return out, nil
}

func (m *memoryRecipients) List(_ context.Context, filter models.RecipientFilter, limit, offset int) ([]*models.AchievementRecipient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(filter.Search)
	var matched []*models.AchievementRecipient
	for _, r := range m.recipients {
		switch {
		case filter.AchievementID != nil && r.AchievementID != *filter.AchievementID:
			continue
		case filter.ProfileID != nil && r.ProfileID != *filter.ProfileID:
			continue
		case filter.MemberID != "" && r.MemberID != filter.MemberID:
			continue
		case filter.SeasonID != nil && (r.SeasonID == nil || *r.SeasonID != *filter.SeasonID):
			continue
		}
		if search != "" && !m.searchMatches(r, search) {
			continue
		}
		matched = append(matched, m.withDefinition(r))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].AchievedAt.Equal(matched[j].AchievedAt) {
			return matched[i].AchievedAt.After(matched[j].AchievedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memoryRecipients) searchMatches(r *models.AchievementRecipient, search string) bool {
	if strings.Contains(strings.ToLower(r.MemberID), search) {
		return true
	}
	if m.profiles == nil {
		return false
	}
	p, err := m.profiles.GetByID(context.Background(), r.ProfileID)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(p.FirstName), search) ||
		strings.Contains(strings.ToLower(p.LastName), search)
}

func (m *memoryRecipients) ListProfileIDs(_ context.Context, achievementID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, r := range m.recipients {
		if r.AchievementID == achievementID {
			out = append(out, r.ProfileID)
		}
	}
	return out, nil
}

func (m *memoryRecipients) ListMissingImages(_ context.Context) ([]*models.AchievementRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AchievementRecipient
	for _, r := range m.recipients {
		if r.ImageURL == "" {
			out = append(out, m.withDefinition(r))
		}
	}
	return out, nil
}

func (m *memoryRecipients) UpdateImage(_ context.Context, id uuid.UUID, imageURL string, generatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return models.ErrNotFound
	}
	r.ImageURL = imageURL
	r.ImageGeneratedAt = &generatedAt
	return nil
}

// forProfile returns the live recipients of a profile keyed by definition name
func (m *memoryRecipients) forProfile(profileID uuid.UUID) map[string]*models.AchievementRecipient {
	list, _ := m.ListByProfile(context.Background(), profileID)
	out := make(map[string]*models.AchievementRecipient, len(list))
	for _, r := range list {
		out[r.Achievement.Name] = r
	}
	return out
}

// memoryProfiles is an in-memory ProfileRepository
type memoryProfiles struct {
	profiles []*models.Profile
}

func (m *memoryProfiles) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryProfiles) ListWithEligibleMembership(_ context.Context, _ time.Time) ([]*models.Profile, error) {
	return m.profiles, nil
}

// storedResults serves GetByID from a map; other methods are not used by the awarder
type storedResults struct {
	repository.ResultRepository
	mu      sync.Mutex
	results map[uuid.UUID]*models.CompetitionResult
}

func (s *storedResults) add(r *models.CompetitionResult) *models.CompetitionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ID] = r
	return r
}

func (s *storedResults) GetByID(_ context.Context, id uuid.UUID) (*models.CompetitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

// staticEligibility treats a fixed set of member ids and profiles as eligible
type staticEligibility struct {
	members   map[string]bool
	profiles  map[uuid.UUID]bool
	refreshes int
}

func (s *staticEligibility) IsEligible(_ context.Context, memberID string) (bool, error) {
	return s.members[memberID], nil
}

func (s *staticEligibility) IsProfileEligible(_ context.Context, profileID uuid.UUID) (bool, error) {
	return s.profiles[profileID], nil
}

func (s *staticEligibility) Refresh(context.Context) error {
	s.refreshes++
	return nil
}

// inlineTx runs the unit of work without a database
type inlineTx struct {
	calls int
}

func (tx *inlineTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	tx.calls++
	return fn(ctx)
}

// recordingImages records badge requests and deletions
type recordingImages struct {
	mu        sync.Mutex
	requests  []models.BadgeRequest
	deleted   []string
	failNext  bool
	deleteErr error
}

func (r *recordingImages) GenerateBadge(_ context.Context, req models.BadgeRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.failNext {
		r.failNext = false
		return "", context.DeadlineExceeded
	}
	return "https://cdn.example.com/badges/" + req.RecipientID.String() + ".png", nil
}

func (r *recordingImages) DeleteImage(_ context.Context, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, imageURL)
	return r.deleteErr
}

func definition(name, competition string, threshold float64) *models.AchievementDefinition {
	d := &models.AchievementDefinition{
		ID:              uuid.New(),
		Name:            name,
		TemplateKey:     "badge",
		CompetitionType: competition,
		ThresholdValue:  decimal.NewFromFloat(threshold),
		IsActive:        true,
	}
	d.ApplyDefaults()
	return d
}

type awarderFixture struct {
	awarder     *Awarder
	results     *storedResults
	defs        *memoryDefinitions
	recipients  *memoryRecipients
	profiles    *memoryProfiles
	eligibility *staticEligibility
	images      *recordingImages
	tx          *inlineTx
}

func newAwarderFixture(defs ...*models.AchievementDefinition) *awarderFixture {
	f := &awarderFixture{
		results:     &storedResults{results: make(map[uuid.UUID]*models.CompetitionResult)},
		defs:        newMemoryDefinitions(defs...),
		profiles:    &memoryProfiles{},
		eligibility: &staticEligibility{members: map[string]bool{}, profiles: map[uuid.UUID]bool{}},
		images:      &recordingImages{},
		tx:          &inlineTx{},
	}
	f.recipients = newMemoryRecipients(f.defs)
	f.recipients.profiles = f.profiles
	log := logger.NewNopLogger()
	f.awarder = NewAwarder(AwarderDeps{
		Results:     f.results,
		Definitions: f.defs,
		Recipients:  f.recipients,
		Profiles:    f.profiles,
		Eligibility: f.eligibility,
		Tx:          f.tx,
		Images:      NewImagePipeline(f.images, f.images, f.recipients, log),
		Logger:      log,
		Audit:       logger.NewAuditLogger(log, nil),
	})
	return f
}

// addCompetitor registers an eligible profile and returns it
func (f *awarderFixture) addCompetitor(first, last, memberID string) *models.Profile {
	p := &models.Profile{ID: uuid.New(), FirstName: first, LastName: last, MemberID: memberID}
	f.profiles.profiles = append(f.profiles.profiles, p)
	f.eligibility.members[memberID] = true
	f.eligibility.profiles[p.ID] = true
	return p
}

func resultFor(p *models.Profile, class, format string, score float64) *models.CompetitionResult {
	id := p.ID
	return &models.CompetitionResult{
		ID:               uuid.New(),
		EventID:          uuid.New(),
		CompetitorID:     &id,
		CompetitorName:   p.DisplayName(),
		MemberID:         p.MemberID,
		CompetitionClass: class,
		Format:           format,
		Score:            decimal.NewFromFloat(score),
		EventMultiplier:  models.DefaultEventMultiplier,
	}
}
