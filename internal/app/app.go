// Package app wires the engine's components from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/achievements"
	"github.com/caraudio-league/points-engine/internal/clients"
	"github.com/caraudio-league/points-engine/internal/config"
	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/eligibility"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/points"
	"github.com/caraudio-league/points-engine/internal/repository"
	"github.com/caraudio-league/points-engine/internal/service"
)

// Engine holds every wired component of the points engine
type Engine struct {
	Repos         *repository.Repositories
	Configs       *points.ConfigStore
	Gate          *eligibility.Gate
	Images        *achievements.ImagePipeline
	Awarder       *achievements.Awarder
	Backfill      *achievements.Backfill
	Qualification *service.QualificationService
	Recalculator  *service.PointsRecalculator
	Results       *service.ResultService

	httpClient *clients.RateLimitedHTTPClient
}

// New wires an engine on top of repos. tx is usually the *database.DB the repositories use.
func New(ctx context.Context, cfg *config.Config, repos *repository.Repositories, tx database.Transactor, log *logrus.Logger) (*Engine, error) {
	e := &Engine{Repos: repos}
	audit := logger.NewAuditLogger(log, repos.Audit)

	images, err := e.imagePipeline(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e.Images = images

	e.Configs = points.NewConfigStore(repos.PointsConfig, repos.Season, cfg.PointsCacheTTL(), log, audit)
	e.Gate = eligibility.NewGate(repos.Membership, cfg.EligibilityCacheTTL(), log)
	e.Awarder = achievements.NewAwarder(achievements.AwarderDeps{
		Results:     repos.Result,
		Definitions: repos.AchievementDefinition,
		Recipients:  repos.AchievementRecipient,
		Profiles:    repos.Profile,
		Eligibility: e.Gate,
		Tx:          tx,
		Images:      images,
		Logger:      log,
		Audit:       audit,
	})
	e.Backfill = achievements.NewBackfill(repos.Result, e.Awarder, e.Gate, cfg.Achievements.ProgressEvery, log)
	e.Qualification = service.NewQualificationService(repos.Result, repos.Season, repos.Qualification, log)
	e.Recalculator = service.NewPointsRecalculator(
		repos.Event,
		repos.Result,
		e.Configs,
		e.Gate,
		e.Awarder,
		e.Qualification,
		tx,
		log,
	)
	e.Results = service.NewResultService(repos.Result, repos.Event, repos.Audit, e.Recalculator, audit, log)

	return e, nil
}

// imagePipeline connects the badge renderer and the image bucket when they are configured.
// Either half may be missing; the pipeline then skips that step.
func (e *Engine) imagePipeline(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*achievements.ImagePipeline, error) {
	var (
		generator achievements.ImageGenerator
		store     achievements.ImageStore
	)

	if cfg.ImageServiceEnabled() {
		e.httpClient = clients.NewRateLimitedHTTPClient(clients.HTTPClientConfigFrom(cfg.ImageService), log)
		generator = clients.NewImageClient(e.httpClient, cfg.ImageService.BaseURL, cfg.ImageService.APIKey, log)
	}

	if cfg.ImageStorageEnabled() {
		s3Store, err := clients.NewS3ImageStore(ctx, cfg.ImageStorage)
		if err != nil {
			return nil, fmt.Errorf("failed to create image store: %w", err)
		}
		store = s3Store
	}

	if generator == nil && store == nil {
		return nil, nil
	}
	return achievements.NewImagePipeline(generator, store, e.Repos.AchievementRecipient, log), nil
}

// Close releases outbound connections
func (e *Engine) Close() {
	if e.httpClient != nil {
		_ = e.httpClient.Close()
	}
}
