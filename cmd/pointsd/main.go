// Package main provides the entry point for the points engine daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/app"
	"github.com/caraudio-league/points-engine/internal/config"
	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/health"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/repository"
	"github.com/caraudio-league/points-engine/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Info("Points engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to create repositories")
	}

	engine, err := app.New(ctx, cfg, repos, db, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to wire engine")
	}
	defer engine.Close()

	// warm the eligibility set so the first recalculation does not pay for it
	if err := engine.Gate.Refresh(ctx); err != nil {
		appLog.WithError(err).Warn("Initial eligibility refresh failed")
	}

	sched := scheduler.NewScheduler(appLog)
	if cfg.Eligibility.RefreshIntervalSeconds > 0 {
		if _, err := sched.ScheduleEligibilityRefresh(cfg.Eligibility.RefreshIntervalSeconds, engine.Gate); err != nil {
			appLog.WithError(err).Fatal("Failed to schedule eligibility refresh")
		}
	}
	if cfg.Scheduler.SeasonRecalculation != "" {
		if _, err := sched.ScheduleSeasonRecalculation(cfg.Scheduler.SeasonRecalculation, repos.Season, engine.Recalculator); err != nil {
			appLog.WithError(err).Fatal("Failed to schedule season recalculation")
		}
	}
	if len(sched.Entries()) > 0 {
		if err := sched.Start(); err != nil {
			appLog.WithError(err).Fatal("Failed to start scheduler")
		}
	}

	var grpcServer *health.GRPCServer
	if cfg.Health.GRPCPort > 0 {
		grpcServer = health.NewGRPCServer(strconv.Itoa(cfg.Health.GRPCPort), appLog)
		if err := grpcServer.Start(); err != nil {
			appLog.WithError(err).Fatal("Failed to start gRPC health server")
		}
	}

	healthCfg := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        strconv.Itoa(cfg.Health.Port),
		Logger:      appLog,
		DB:          db,
		Backfill:    engine.Backfill,
		GRPC:        grpcServer,
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		healthCfg.Metrics = metrics.Handler()
		healthCfg.MetricsPath = cfg.Metrics.Path
	}
	healthServer := health.NewServer(healthCfg)
	if err := healthServer.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}
	healthServer.SetReady(true)

	appLog.WithFields(logrus.Fields{
		"health_port":      cfg.Health.Port,
		"grpc_port":        cfg.Health.GRPCPort,
		"scheduled_jobs":   len(sched.Entries()),
		"next_job_run":     sched.GetNextRun(),
		"eligible_members": engine.Gate.Size(),
	}).Info("Points engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	healthServer.SetReady(false)
	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	if err := healthServer.Shutdown(); err != nil {
		appLog.WithError(err).Warn("Health server did not stop cleanly")
	}

	appLog.Info("Points engine stopped")
}
