// Package main provides the administrative CLI of the points engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caraudio-league/points-engine/internal/app"
	"github.com/caraudio-league/points-engine/internal/config"
	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	actorID    string
	reason     string
	appLog     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	engine     *app.Engine
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&actorID, "user", "", "Admin user id recorded on changes")
	rootCmd.PersistentFlags().StringVar(&reason, "reason", "", "Reason recorded in the audit trail")

	rootCmd.AddCommand(recalculateCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(pointsConfigCmd())
	rootCmd.AddCommand(awardCmd())
	rootCmd.AddCommand(recipientCmd())
	rootCmd.AddCommand(definitionsCmd())
	rootCmd.AddCommand(eligibleProfilesCmd())
	rootCmd.AddCommand(achievementsCmd())
	rootCmd.AddCommand(resultCmd())
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "points-admin",
	Short: "Administer league points and achievements",
	Long: `Recalculates placements and points, manages points configurations and
achievement definitions, and awards or removes achievements.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := setupDependencies(cmd.Context()); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engine != nil {
			engine.Close()
		}
		if db != nil {
			db.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("points-admin %s (%s)\n", Version, GitCommit)
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.LoadAndValidate(configFile)
	return err
}

func setupDependencies(ctx context.Context) error {
	appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.SetOutput(os.Stderr)

	var err error
	db, err = database.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		return err
	}

	engine, err = app.New(ctx, cfg, repos, db, appLog)
	return err
}

// actor builds the audit identity from the global flags
func actor() (models.Actor, error) {
	a := models.Actor{Reason: reason, IPAddress: "cli"}
	if actorID == "" {
		return a, nil
	}
	id, err := uuid.Parse(actorID)
	if err != nil {
		return a, fmt.Errorf("invalid --user: %w", err)
	}
	a.UserID = &id
	return a, nil
}

func parseID(kind, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", kind, value, err)
	}
	return id, nil
}

// optionalID parses value when it is set
func optionalID(kind, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(kind, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
