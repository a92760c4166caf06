package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/caraudio-league/points-engine/internal/config"
)

var requiredTables = []string{
	"seasons",
	"events",
	"profiles",
	"memberships",
	"competition_classes",
	"competition_results",
	"points_configurations",
	"achievement_definitions",
	"achievement_recipients",
	"world_finals_qualifications",
	"result_audit_log",
}

// Initialize creates a database connection pool and verifies the schema is migrated
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	missing, err := db.missingTables(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(missing) > 0 {
		db.Close()
		return nil, fmt.Errorf(
			"database schema incomplete, missing tables: %s (run: migrate -path migrations -database %q up)",
			strings.Join(missing, ", "), "<dsn>",
		)
	}

	return db, nil
}

func (db *DB) missingTables(ctx context.Context) ([]string, error) {
	var missing []string
	for _, table := range requiredTables {
		var exists bool
		if err := db.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
