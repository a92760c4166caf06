package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

const definitionColumns = `
	d.id, d.name, COALESCE(d.description, ''), COALESCE(d.group_name, ''), d.achievement_type, d.template_key,
	d.render_value, COALESCE(d.format, ''), d.competition_type, d.metric_type, d.threshold_value,
	d.threshold_operator, d.class_filter, d.division_filter, d.points_multiplier, d.is_active,
	d.display_order, d.created_at, d.updated_at`

// groupKeyExpr mirrors AchievementDefinition.GroupKey
const groupKeyExpr = `COALESCE(NULLIF(TRIM(d.group_name), ''), d.competition_type)`

func scanDefinition(row pgx.Row) (*models.AchievementDefinition, error) {
	var (
		d           models.AchievementDefinition
		renderValue decimal.NullDecimal
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.GroupName, &d.AchievementType, &d.TemplateKey,
		&renderValue, &d.Format, &d.CompetitionType, &d.MetricType, &d.ThresholdValue,
		&d.ThresholdOperator, &d.ClassFilter, &d.DivisionFilter, &d.PointsMultiplier, &d.IsActive,
		&d.DisplayOrder, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if renderValue.Valid {
		rv := renderValue.Decimal
		d.RenderValue = &rv
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// PostgresAchievementDefinitionRepository implements AchievementDefinitionRepository for PostgreSQL
type PostgresAchievementDefinitionRepository struct {
	db *database.DB
}

// NewPostgresAchievementDefinitionRepository creates a new achievement definition repository
func NewPostgresAchievementDefinitionRepository(db *database.DB) AchievementDefinitionRepository {
	return &PostgresAchievementDefinitionRepository{db: db}
}

// Create inserts a definition
func (r *PostgresAchievementDefinitionRepository) Create(ctx context.Context, d *models.AchievementDefinition) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	query := `
		INSERT INTO achievement_definitions (
			id, name, description, group_name, achievement_type, template_key, render_value, format,
			competition_type, metric_type, threshold_value, threshold_operator, class_filter,
			division_filter, points_multiplier, is_active, display_order, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		d.ID, d.Name, nullableString(d.Description), nullableString(d.GroupName), string(d.AchievementType), d.TemplateKey,
		nullDecimal(d.RenderValue), nullableString(d.Format), d.CompetitionType, string(d.MetricType), d.ThresholdValue,
		string(d.ThresholdOperator), d.ClassFilter, d.DivisionFilter, d.PointsMultiplier, d.IsActive,
		d.DisplayOrder, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create achievement definition: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a definition by ID
func (r *PostgresAchievementDefinitionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AchievementDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM achievement_definitions d WHERE d.id = $1`

	d, err := scanDefinition(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return d, nil
}

// Update saves a definition
func (r *PostgresAchievementDefinitionRepository) Update(ctx context.Context, d *models.AchievementDefinition) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE achievement_definitions SET
			name = $2, description = $3, group_name = $4, achievement_type = $5, template_key = $6,
			render_value = $7, format = $8, competition_type = $9, metric_type = $10, threshold_value = $11,
			threshold_operator = $12, class_filter = $13, division_filter = $14, points_multiplier = $15,
			is_active = $16, display_order = $17, updated_at = $18
		WHERE id = $1
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		d.ID, d.Name, nullableString(d.Description), nullableString(d.GroupName), string(d.AchievementType), d.TemplateKey,
		nullDecimal(d.RenderValue), nullableString(d.Format), d.CompetitionType, string(d.MetricType), d.ThresholdValue,
		string(d.ThresholdOperator), d.ClassFilter, d.DivisionFilter, d.PointsMultiplier,
		d.IsActive, d.DisplayOrder, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update achievement definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a definition and, by cascade, its recipients
func (r *PostgresAchievementDefinitionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM achievement_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete achievement definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List retrieves definitions by threshold descending
func (r *PostgresAchievementDefinitionRepository) List(ctx context.Context, activeOnly bool) ([]*models.AchievementDefinition, error) {
	query := `SELECT ` + definitionColumns + `
		FROM achievement_definitions d
		WHERE ($1::boolean = FALSE OR d.is_active)
		ORDER BY d.threshold_value DESC, d.display_order ASC, d.id ASC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievement definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.AchievementDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement definition: %w", err)
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievement definitions: %w", err)
	}
	return defs, nil
}

const recipientColumns = `
	ar.id, ar.achievement_id, ar.profile_id, COALESCE(ar.meca_id, ''), ar.achieved_value, ar.achieved_at,
	ar.competition_result_id, ar.event_id, ar.season_id, COALESCE(ar.image_url, ''), ar.image_generated_at,
	ar.created_at`

// recipientWithDefinition selects a recipient followed by its definition
const recipientWithDefinition = `SELECT ` + recipientColumns + `,` + definitionColumns + `
	FROM achievement_recipients ar
	JOIN achievement_definitions d ON d.id = ar.achievement_id`

func scanRecipient(row pgx.Row, withDefinition bool) (*models.AchievementRecipient, error) {
	var (
		ar          models.AchievementRecipient
		d           models.AchievementDefinition
		renderValue decimal.NullDecimal
	)
	dest := []any{
		&ar.ID, &ar.AchievementID, &ar.ProfileID, &ar.MemberID, &ar.AchievedValue, &ar.AchievedAt,
		&ar.CompetitionResultID, &ar.EventID, &ar.SeasonID, &ar.ImageURL, &ar.ImageGeneratedAt,
		&ar.CreatedAt,
	}
	if withDefinition {
		dest = append(dest,
			&d.ID, &d.Name, &d.Description, &d.GroupName, &d.AchievementType, &d.TemplateKey,
			&renderValue, &d.Format, &d.CompetitionType, &d.MetricType, &d.ThresholdValue,
			&d.ThresholdOperator, &d.ClassFilter, &d.DivisionFilter, &d.PointsMultiplier, &d.IsActive,
			&d.DisplayOrder, &d.CreatedAt, &d.UpdatedAt,
		)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if withDefinition {
		if renderValue.Valid {
			rv := renderValue.Decimal
			d.RenderValue = &rv
		}
		ar.Achievement = &d
	}
	return &ar, nil
}

func collectRecipients(rows pgx.Rows, withDefinition bool) ([]*models.AchievementRecipient, error) {
	defer rows.Close()

	var recipients []*models.AchievementRecipient
	for rows.Next() {
		ar, err := scanRecipient(rows, withDefinition)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement recipient: %w", err)
		}
		recipients = append(recipients, ar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievement recipients: %w", err)
	}
	return recipients, nil
}

// PostgresAchievementRecipientRepository implements AchievementRecipientRepository for PostgreSQL
type PostgresAchievementRecipientRepository struct {
	db *database.DB
}

// NewPostgresAchievementRecipientRepository creates a new achievement recipient repository
func NewPostgresAchievementRecipientRepository(db *database.DB) AchievementRecipientRepository {
	return &PostgresAchievementRecipientRepository{db: db}
}

// Create inserts a recipient
func (r *PostgresAchievementRecipientRepository) Create(ctx context.Context, ar *models.AchievementRecipient) error {
	if ar.ID == uuid.Nil {
		ar.ID = uuid.New()
	}
	if ar.CreatedAt.IsZero() {
		ar.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO achievement_recipients (
			id, achievement_id, profile_id, meca_id, achieved_value, achieved_at,
			competition_result_id, event_id, season_id, image_url, image_generated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		ar.ID, ar.AchievementID, ar.ProfileID, nullableString(ar.MemberID), ar.AchievedValue, ar.AchievedAt,
		ar.CompetitionResultID, ar.EventID, ar.SeasonID, nullableString(ar.ImageURL), ar.ImageGeneratedAt, ar.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create achievement recipient: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a recipient with its definition
func (r *PostgresAchievementRecipientRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AchievementRecipient, error) {
	ar, err := scanRecipient(r.db.Conn(ctx).QueryRow(ctx, recipientWithDefinition+` WHERE ar.id = $1`, id), true)
	if err != nil {
		return nil, translateError(err)
	}
	return ar, nil
}

// Delete removes a recipient
func (r *PostgresAchievementRecipientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM achievement_recipients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete achievement recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetByAchievementAndProfile retrieves the exact award of a definition to a profile
func (r *PostgresAchievementRecipientRepository) GetByAchievementAndProfile(ctx context.Context, achievementID, profileID uuid.UUID) (*models.AchievementRecipient, error) {
	query := recipientWithDefinition + ` WHERE ar.achievement_id = $1 AND ar.profile_id = $2`

	ar, err := scanRecipient(r.db.Conn(ctx).QueryRow(ctx, query, achievementID, profileID), true)
	if err != nil {
		return nil, translateError(err)
	}
	return ar, nil
}

// FindInGroup retrieves the profile's award within a group, highest threshold first
func (r *PostgresAchievementRecipientRepository) FindInGroup(ctx context.Context, profileID uuid.UUID, groupKey string) (*models.AchievementRecipient, error) {
	query := recipientWithDefinition + `
		WHERE ar.profile_id = $1 AND ` + groupKeyExpr + ` = $2
		ORDER BY d.threshold_value DESC
		LIMIT 1`

	ar, err := scanRecipient(r.db.Conn(ctx).QueryRow(ctx, query, profileID, groupKey), true)
	if err != nil {
		return nil, translateError(err)
	}
	return ar, nil
}

// ListByProfile retrieves a profile's awards, newest first
func (r *PostgresAchievementRecipientRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.AchievementRecipient, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, recipientWithDefinition+`
		WHERE ar.profile_id = $1
		ORDER BY ar.achieved_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients by profile: %w", err)
	}
	return collectRecipients(rows, true)
}

// ListByMemberID retrieves awards by the member id snapshot, newest first
func (r *PostgresAchievementRecipientRepository) ListByMemberID(ctx context.Context, memberID string) ([]*models.AchievementRecipient, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, recipientWithDefinition+`
		WHERE ar.meca_id = $1
		ORDER BY ar.achieved_at DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients by member id: %w", err)
	}
	return collectRecipients(rows, true)
}

// List retrieves one window of filtered recipients with their definitions
func (r *PostgresAchievementRecipientRepository) List(ctx context.Context, filter models.RecipientFilter, limit, offset int) ([]*models.AchievementRecipient, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.AchievementID != nil {
		where = append(where, "ar.achievement_id = "+arg(*filter.AchievementID))
	}
	if filter.ProfileID != nil {
		where = append(where, "ar.profile_id = "+arg(*filter.ProfileID))
	}
	if filter.MemberID != "" {
		where = append(where, "ar.meca_id = "+arg(filter.MemberID))
	}
	if filter.SeasonID != nil {
		where = append(where, "ar.season_id = "+arg(*filter.SeasonID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + search + "%")
		where = append(where, "(ar.meca_id ILIKE "+p+" OR p.first_name ILIKE "+p+" OR p.last_name ILIKE "+p+")")
	}

	from := `
		FROM achievement_recipients ar
		JOIN achievement_definitions d ON d.id = ar.achievement_id
		LEFT JOIN profiles p ON p.id = ar.profile_id`
	if len(where) > 0 {
		from += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count achievement recipients: %w", err)
	}

	query := `SELECT ` + recipientColumns + `,` + definitionColumns + from + `
		ORDER BY ar.achieved_at DESC, ar.id ASC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query achievement recipients: %w", err)
	}
	recipients, err := collectRecipients(rows, true)
	if err != nil {
		return nil, 0, err
	}
	return recipients, total, nil
}

// ListProfileIDs retrieves every profile holding a definition
func (r *PostgresAchievementRecipientRepository) ListProfileIDs(ctx context.Context, achievementID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `SELECT profile_id FROM achievement_recipients WHERE achievement_id = $1`, achievementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipient profiles: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan profile id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListMissingImages retrieves awards that have no generated image yet
func (r *PostgresAchievementRecipientRepository) ListMissingImages(ctx context.Context) ([]*models.AchievementRecipient, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, recipientWithDefinition+`
		WHERE ar.image_url IS NULL OR ar.image_url = ''
		ORDER BY ar.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients without images: %w", err)
	}
	return collectRecipients(rows, true)
}

// UpdateImage records a generated image
func (r *PostgresAchievementRecipientRepository) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string, generatedAt time.Time) error {
	tag, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE achievement_recipients SET image_url = $2, image_generated_at = $3 WHERE id = $1`,
		id, imageURL, generatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update recipient image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
