package achievements

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/models"
)

// CreateDefinition validates input and stores a new achievement definition.
func (a *Awarder) CreateDefinition(ctx context.Context, input *models.DefinitionInput) (*models.AchievementDefinition, error) {
	if err := a.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if input.ThresholdValue == nil {
		return nil, fmt.Errorf("%w: threshold_value is required", models.ErrInvalidInput)
	}

	now := a.now().UTC()
	def := &models.AchievementDefinition{
		ID:        uuid.New(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := input.ApplyTo(def); err != nil {
		return nil, err
	}
	def.ApplyDefaults()
	if err := a.validate.Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if err := a.definitions.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to create achievement definition: %w", err)
	}
	a.logger.WithField("achievement_id", def.ID).WithField("name", def.Name).Info("Created achievement definition")
	return def, nil
}

// UpdateDefinition applies input to an existing definition.
func (a *Awarder) UpdateDefinition(ctx context.Context, id uuid.UUID, input *models.DefinitionInput) (*models.AchievementDefinition, error) {
	if err := a.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	def, err := a.definitions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "achievement definition", id)
	}
	if err := input.ApplyTo(def); err != nil {
		return nil, err
	}
	def.UpdatedAt = a.now().UTC()
	if err := a.validate.Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if err := a.definitions.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update achievement definition: %w", err)
	}
	return def, nil
}

// Definition returns one definition.
func (a *Awarder) Definition(ctx context.Context, id uuid.UUID) (*models.AchievementDefinition, error) {
	def, err := a.definitions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "achievement definition", id)
	}
	return def, nil
}

// Definitions lists definitions by threshold, highest first.
func (a *Awarder) Definitions(ctx context.Context, activeOnly bool) ([]*models.AchievementDefinition, error) {
	defs, err := a.definitions.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement definitions: %w", err)
	}
	return defs, nil
}

// DeleteDefinition removes a definition and its recipients.
func (a *Awarder) DeleteDefinition(ctx context.Context, id uuid.UUID) error {
	if err := a.definitions.Delete(ctx, id); err != nil {
		return notFound(err, "achievement definition", id)
	}
	a.logger.WithField("achievement_id", id).Info("Deleted achievement definition")
	return nil
}
