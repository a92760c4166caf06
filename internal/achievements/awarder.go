package achievements

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// Award sources used in metrics
const (
	SourceAutomatic = "auto"
	SourceManual    = "manual"
	SourceBackfill  = "backfill"
)

// EligibilityChecker answers membership questions for the awarder
type EligibilityChecker interface {
	IsEligible(ctx context.Context, memberID string) (bool, error)
	IsProfileEligible(ctx context.Context, profileID uuid.UUID) (bool, error)
}

// ManualAwardRequest is an admin request to award a definition directly
type ManualAwardRequest struct {
	ProfileID     uuid.UUID       `json:"profile_id" validate:"required"`
	AchievementID uuid.UUID       `json:"achievement_id" validate:"required"`
	AchievedValue decimal.Decimal `json:"achieved_value"`
	Notes         string          `json:"notes,omitempty"`
	AwardedBy     *uuid.UUID      `json:"-"`
}

// Awarder creates and maintains achievement recipients.
type Awarder struct {
	results     repository.ResultRepository
	definitions repository.AchievementDefinitionRepository
	recipients  repository.AchievementRecipientRepository
	profiles    repository.ProfileRepository
	eligibility EligibilityChecker
	tx          database.Transactor
	images      *ImagePipeline
	validate    *validator.Validate
	logger      *logrus.Logger
	achLog      *logger.AchievementLogger
	audit       *logger.AuditLogger
	now         func() time.Time
}

// AwarderDeps groups the collaborators of an Awarder.
type AwarderDeps struct {
	Results     repository.ResultRepository
	Definitions repository.AchievementDefinitionRepository
	Recipients  repository.AchievementRecipientRepository
	Profiles    repository.ProfileRepository
	Eligibility EligibilityChecker
	Tx          database.Transactor
	Images      *ImagePipeline
	Logger      *logrus.Logger
	Audit       *logger.AuditLogger
}

// NewAwarder creates a new awarder. Images and Audit are optional.
func NewAwarder(deps AwarderDeps) *Awarder {
	return &Awarder{
		results:     deps.Results,
		definitions: deps.Definitions,
		recipients:  deps.Recipients,
		profiles:    deps.Profiles,
		eligibility: deps.Eligibility,
		tx:          deps.Tx,
		images:      deps.Images,
		validate:    validator.New(),
		logger:      deps.Logger,
		achLog:      logger.NewAchievementLogger(deps.Logger),
		audit:       deps.Audit,
		now:         time.Now,
	}
}

// CheckAndAward awards the highest qualifying achievement of every matching group to the
// result's competitor and returns the recipients it created.
func (a *Awarder) CheckAndAward(ctx context.Context, result *models.CompetitionResult) ([]*models.AchievementRecipient, error) {
	awarded, err := a.award(ctx, result, SourceAutomatic)
	a.images.GenerateBestEffort(ctx, awarded)
	return awarded, err
}

// CheckResult runs the automatic award check for one stored result.
func (a *Awarder) CheckResult(ctx context.Context, resultID uuid.UUID) ([]*models.AchievementRecipient, error) {
	result, err := a.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, notFound(err, "competition result", resultID)
	}
	return a.CheckAndAward(ctx, result)
}

func (a *Awarder) award(ctx context.Context, result *models.CompetitionResult, source string) ([]*models.AchievementRecipient, error) {
	if !result.HasCompetitor() {
		return nil, nil
	}

	eligible, err := a.eligibility.IsEligible(ctx, result.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to check eligibility: %w", err)
	}
	if !eligible {
		a.logger.WithFields(logrus.Fields{
			"result_id": result.ID,
			"meca_id":   result.MemberID,
		}).Debug("Skipping achievement check for ineligible competitor")
		return nil, nil
	}

	defs, err := a.definitions.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement definitions: %w", err)
	}

	var awarded []*models.AchievementRecipient
	for _, group := range groupDefinitions(defs) {
		target := group.qualifying(result)
		if target == nil {
			continue
		}

		recipient, err := a.awardInGroup(ctx, result, group.key, target)
		if err != nil {
			return awarded, fmt.Errorf("failed to award %q: %w", target.Name, err)
		}
		if recipient == nil {
			continue
		}
		metrics.RecordAchievementAwarded(source)
		awarded = append(awarded, recipient)
	}
	return awarded, nil
}

// awardInGroup applies the upgrade rule for one group. It returns nil when the competitor
// already holds an equal or higher award in the group.
func (a *Awarder) awardInGroup(ctx context.Context, result *models.CompetitionResult, groupKey string, target *models.AchievementDefinition) (*models.AchievementRecipient, error) {
	profileID := *result.CompetitorID
	var created *models.AchievementRecipient

	err := a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := a.findInGroup(ctx, profileID, groupKey)
		if err != nil {
			return err
		}
		if existing != nil {
			held := existingThreshold(existing)
			if held.GreaterThanOrEqual(target.ThresholdValue) {
				a.achLog.LogSkipped(profileID, groupKey, held.String(), target.ThresholdValue.String())
				return nil
			}
			a.achLog.LogUpgrade(profileID, groupKey, held.String(), target.ThresholdValue.String())
			if err := a.recipients.Delete(ctx, existing.ID); err != nil {
				return fmt.Errorf("failed to remove replaced recipient: %w", err)
			}
			metrics.RecordAchievementUpgrade()
		}

		now := a.now().UTC()
		resultID, eventID := result.ID, result.EventID
		recipient := &models.AchievementRecipient{
			ID:                  uuid.New(),
			AchievementID:       target.ID,
			ProfileID:           profileID,
			MemberID:            result.MemberID,
			AchievedValue:       result.Score,
			AchievedAt:          now,
			CompetitionResultID: &resultID,
			EventID:             &eventID,
			SeasonID:            result.SeasonID,
			CreatedAt:           now,
			Achievement:         target,
		}
		if err := a.recipients.Create(ctx, recipient); err != nil {
			return fmt.Errorf("failed to create recipient: %w", err)
		}
		created = recipient
		return nil
	})
	if errors.Is(err, models.ErrDuplicateKey) {
		// a concurrent pass created the same award
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if created != nil {
		a.achLog.LogAwarded(profileID, target.Name, groupKey, result.Score.String(), target.ThresholdValue.String())
	}
	return created, nil
}

// ManualAward awards a definition chosen by an admin. Unlike automatic awarding it rejects
// duplicates and downgrades with a ConflictError, and ineligible members with an
// IneligibleError.
func (a *Awarder) ManualAward(ctx context.Context, req ManualAwardRequest) (*models.AchievementRecipient, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	def, err := a.definitions.GetByID(ctx, req.AchievementID)
	if err != nil {
		return nil, notFound(err, "achievement definition", req.AchievementID)
	}
	profile, err := a.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, notFound(err, "profile", req.ProfileID)
	}

	eligible, err := a.eligibility.IsProfileEligible(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check eligibility: %w", err)
	}
	if !eligible {
		return nil, &models.IneligibleError{
			MemberID: profile.MemberID,
			Reason:   "no active, paid, points-eligible membership",
		}
	}

	var (
		created  *models.AchievementRecipient
		replaced *models.AchievementRecipient
	)
	err = a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		dup, err := a.recipients.GetByAchievementAndProfile(ctx, def.ID, profile.ID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to check existing award: %w", err)
		}
		if dup != nil {
			return &models.ConflictError{
				Reason:              fmt.Sprintf("%s already holds %q", profile.DisplayName(), def.Name),
				ExistingAchievement: def.Name,
				ExistingThreshold:   def.ThresholdValue.String(),
			}
		}

		existing, err := a.findInGroup(ctx, profile.ID, def.GroupKey())
		if err != nil {
			return err
		}
		if existing != nil {
			held := existingThreshold(existing)
			if held.GreaterThanOrEqual(def.ThresholdValue) {
				name := existingName(existing)
				return &models.ConflictError{
					Reason: fmt.Sprintf("%s already holds %q (%s), which is equal to or higher than %q",
						profile.DisplayName(), name, held.String(), def.Name),
					ExistingAchievement: name,
					ExistingThreshold:   held.String(),
				}
			}
			if err := a.recipients.Delete(ctx, existing.ID); err != nil {
				return fmt.Errorf("failed to remove replaced recipient: %w", err)
			}
			replaced = existing
		}

		now := a.now().UTC()
		recipient := &models.AchievementRecipient{
			ID:            uuid.New(),
			AchievementID: def.ID,
			ProfileID:     profile.ID,
			MemberID:      profile.MemberID,
			AchievedValue: req.AchievedValue,
			AchievedAt:    now,
			CreatedAt:     now,
			Achievement:   def,
		}
		if err := a.recipients.Create(ctx, recipient); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) {
				return &models.ConflictError{Reason: fmt.Sprintf("%s already holds %q", profile.DisplayName(), def.Name)}
			}
			return fmt.Errorf("failed to create recipient: %w", err)
		}
		created = recipient
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAchievementAwarded(SourceManual)
	if replaced != nil {
		metrics.RecordAchievementUpgrade()
	}
	if a.audit != nil {
		a.audit.LogManualAward(created, replaced, req.AwardedBy)
	}
	if err := a.images.Generate(ctx, created, def); err != nil {
		a.logger.WithError(err).WithField("recipient_id", created.ID).Warn("Badge image generation failed")
	}
	return created, nil
}

// DeleteRecipient removes an award and, best effort, its badge image.
func (a *Awarder) DeleteRecipient(ctx context.Context, id uuid.UUID, removedBy *uuid.UUID) error {
	recipient, err := a.recipients.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "achievement recipient", id)
	}
	if err := a.recipients.Delete(ctx, id); err != nil {
		return notFound(err, "achievement recipient", id)
	}
	a.images.Delete(ctx, recipient.ImageURL)
	if a.audit != nil {
		a.audit.LogRecipientRemoved(recipient, removedBy)
	}
	return nil
}

// RegenerateImage renders a recipient's badge again.
func (a *Awarder) RegenerateImage(ctx context.Context, id uuid.UUID) (*models.AchievementRecipient, error) {
	recipient, err := a.recipients.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "achievement recipient", id)
	}
	if a.images == nil || a.images.generator == nil {
		return nil, errors.New("image generation is not configured")
	}
	if err := a.images.Generate(ctx, recipient, recipient.Achievement); err != nil {
		return nil, err
	}
	return recipient, nil
}

// ForProfile lists the achievements held by a profile.
func (a *Awarder) ForProfile(ctx context.Context, profileID uuid.UUID) ([]models.MemberAchievement, error) {
	recipients, err := a.recipients.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return toMemberAchievements(recipients), nil
}

// ForMemberID lists the achievements recorded against a member id.
func (a *Awarder) ForMemberID(ctx context.Context, memberID string) ([]models.MemberAchievement, error) {
	recipients, err := a.recipients.ListByMemberID(ctx, strings.TrimSpace(memberID))
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	return toMemberAchievements(recipients), nil
}

// Default and maximum page sizes of the recipient listing
const (
	DefaultRecipientPageSize = 20
	MaxRecipientPageSize     = 100
)

// Recipients returns one page of awards matching filter, newest first. page starts at 1;
// values below 1 select the first page and limit falls back to DefaultRecipientPageSize.
func (a *Awarder) Recipients(ctx context.Context, filter models.RecipientFilter, page, limit int) (*models.RecipientPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultRecipientPageSize
	}
	if limit > MaxRecipientPageSize {
		limit = MaxRecipientPageSize
	}
	filter.MemberID = strings.TrimSpace(filter.MemberID)

	items, total, err := a.recipients.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	if items == nil {
		items = []*models.AchievementRecipient{}
	}
	return &models.RecipientPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// EligibleProfiles lists profiles that could be manually awarded a definition: those with
// an eligible membership that do not already hold it, sorted by name. search filters on
// name, member id or email.
func (a *Awarder) EligibleProfiles(ctx context.Context, achievementID uuid.UUID, search string) ([]*models.Profile, error) {
	if _, err := a.definitions.GetByID(ctx, achievementID); err != nil {
		return nil, notFound(err, "achievement definition", achievementID)
	}

	holders, err := a.recipients.ListProfileIDs(ctx, achievementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holders: %w", err)
	}
	held := make(map[uuid.UUID]struct{}, len(holders))
	for _, id := range holders {
		held[id] = struct{}{}
	}

	profiles, err := a.profiles.ListWithEligibleMembership(ctx, a.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible profiles: %w", err)
	}

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]*models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if _, ok := held[p.ID]; ok {
			continue
		}
		if search != "" && !profileMatches(p, search) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].DisplayName()), strings.ToLower(out[j].DisplayName())
		if ni != nj {
			return ni < nj
		}
		return out[i].MemberID < out[j].MemberID
	})
	return out, nil
}

func (a *Awarder) findInGroup(ctx context.Context, profileID uuid.UUID, groupKey string) (*models.AchievementRecipient, error) {
	existing, err := a.recipients.FindInGroup(ctx, profileID, groupKey)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up group award: %w", err)
	}
	return existing, nil
}

func existingThreshold(r *models.AchievementRecipient) decimal.Decimal {
	if r.Achievement == nil {
		return decimal.Zero
	}
	return r.Achievement.ThresholdValue
}

func existingName(r *models.AchievementRecipient) string {
	if r.Achievement == nil {
		return r.AchievementID.String()
	}
	return r.Achievement.Name
}

func profileMatches(p *models.Profile, search string) bool {
	return strings.Contains(strings.ToLower(p.DisplayName()), search) ||
		strings.Contains(strings.ToLower(p.MemberID), search) ||
		strings.Contains(strings.ToLower(p.Email), search)
}

func toMemberAchievements(recipients []*models.AchievementRecipient) []models.MemberAchievement {
	out := make([]models.MemberAchievement, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, models.NewMemberAchievement(r))
	}
	return out
}

func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}
