package achievements

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// ImageGenerator renders a badge and returns its public URL
type ImageGenerator interface {
	GenerateBadge(ctx context.Context, req models.BadgeRequest) (string, error)
}

// ImageStore removes a previously generated badge
type ImageStore interface {
	DeleteImage(ctx context.Context, imageURL string) error
}

// ImageReport summarizes a bulk generation run
type ImageReport struct {
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
}

// ImagePipeline generates and removes badge images. Every failure is logged and
// reported but never undoes the award it belongs to.
type ImagePipeline struct {
	generator  ImageGenerator
	store      ImageStore
	recipients repository.AchievementRecipientRepository
	logger     *logrus.Logger
}

// NewImagePipeline creates a new image pipeline. generator and store may each be nil to
// disable that half.
func NewImagePipeline(generator ImageGenerator, store ImageStore, recipients repository.AchievementRecipientRepository, logger *logrus.Logger) *ImagePipeline {
	return &ImagePipeline{
		generator:  generator,
		store:      store,
		recipients: recipients,
		logger:     logger,
	}
}

// Generate renders the badge of one recipient and stores its URL.
func (p *ImagePipeline) Generate(ctx context.Context, recipient *models.AchievementRecipient, def *models.AchievementDefinition) error {
	if p == nil || p.generator == nil {
		return nil
	}
	if def == nil {
		return fmt.Errorf("recipient %s has no achievement definition loaded", recipient.ID)
	}

	url, err := p.generator.GenerateBadge(ctx, models.NewBadgeRequest(recipient, def))
	metrics.RecordImageRequest("generate", err)
	if err != nil {
		return fmt.Errorf("failed to generate badge: %w", err)
	}

	generatedAt := time.Now().UTC()
	if err := p.recipients.UpdateImage(ctx, recipient.ID, url, generatedAt); err != nil {
		return fmt.Errorf("failed to store badge url: %w", err)
	}
	recipient.ImageURL = url
	recipient.ImageGeneratedAt = &generatedAt
	return nil
}

// GenerateBestEffort renders badges for new recipients, logging failures.
func (p *ImagePipeline) GenerateBestEffort(ctx context.Context, recipients []*models.AchievementRecipient) ImageReport {
	var report ImageReport
	if p == nil || p.generator == nil {
		return report
	}
	for _, r := range recipients {
		if err := p.Generate(ctx, r, r.Achievement); err != nil {
			report.Failed++
			p.logger.WithError(err).WithField("recipient_id", r.ID).Warn("Badge image generation failed")
			continue
		}
		report.Generated++
	}
	return report
}

// GenerateMissing renders a badge for every recipient that has none.
func (p *ImagePipeline) GenerateMissing(ctx context.Context) (ImageReport, error) {
	if p == nil || p.generator == nil {
		return ImageReport{}, nil
	}
	missing, err := p.recipients.ListMissingImages(ctx)
	if err != nil {
		return ImageReport{}, fmt.Errorf("failed to list recipients without images: %w", err)
	}
	return p.GenerateBestEffort(ctx, missing), nil
}

// Delete removes a badge from storage, logging failures.
func (p *ImagePipeline) Delete(ctx context.Context, imageURL string) {
	if p == nil || p.store == nil || imageURL == "" {
		return
	}
	err := p.store.DeleteImage(ctx, imageURL)
	metrics.RecordImageRequest("delete", err)
	if err != nil {
		p.logger.WithError(err).WithField("image_url", imageURL).Warn("Failed to delete badge image")
	}
}
